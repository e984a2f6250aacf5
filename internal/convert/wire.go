// Package convert reconciles backend JSON shapes into the canonical client model.
//
// Backends in the wild disagree on details: ids arrive as numbers or strings, users carry
// `username` or `name`, pagination meta uses `rpp` or `limit`, single resources are bare or
// wrapped in `{"data": ...}`. Everything is decoded here so the rest of the client sees one
// shape.
package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/cardtrader/internal/model"
)

// --- scalar helpers ---

type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*f = flexID(n)
	return nil
}

type flexTime time.Time

func (f *flexTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = flexTime(time.Time{})
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			*f = flexTime(t.UTC())
			return nil
		}
	}
	return fmt.Errorf("invalid time %s", b)
}

func (f flexTime) value() time.Time { return time.Time(f) }

// --- wire shapes ---

type wireUser struct {
	ID       flexID `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

func (w wireUser) toModel() model.User {
	name := w.Username
	if name == "" {
		name = w.Name
	}
	return model.User{ID: int64(w.ID), Username: name, Email: w.Email}
}

type wireCard struct {
	ID          flexID   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl"`
	Rarity      string   `json:"rarity"`
	Category    string   `json:"category"`
	CreatedAt   flexTime `json:"createdAt"`
}

func (w wireCard) toModel() model.Card {
	return model.Card{
		ID:          int64(w.ID),
		Name:        w.Name,
		Description: w.Description,
		ImageURL:    w.ImageURL,
		Rarity:      w.Rarity,
		Category:    w.Category,
		CreatedAt:   w.CreatedAt.value(),
	}
}

type wireUserCard struct {
	ID        flexID    `json:"id"`
	UserID    flexID    `json:"userId"`
	CardID    flexID    `json:"cardId"`
	Condition string    `json:"condition"`
	CreatedAt flexTime  `json:"createdAt"`
	Card      *wireCard `json:"card"`
}

func (w wireUserCard) toModel() model.UserCard {
	uc := model.UserCard{
		ID:        int64(w.ID),
		UserID:    int64(w.UserID),
		CardID:    int64(w.CardID),
		Condition: model.Condition(w.Condition),
		CreatedAt: w.CreatedAt.value(),
	}
	if w.Card != nil {
		c := w.Card.toModel()
		uc.Card = &c
		if uc.CardID == 0 {
			uc.CardID = c.ID
		}
	}
	return uc
}

type wireTrade struct {
	ID             flexID     `json:"id"`
	CreatorID      flexID     `json:"creatorId"`
	Status         string     `json:"status"`
	Description    string     `json:"description"`
	CreatedAt      flexTime   `json:"createdAt"`
	Creator        *wireUser  `json:"creator"`
	OfferingCards  []wireCard `json:"offeringCards"`
	ReceivingCards []wireCard `json:"receivingCards"`
}

func (w wireTrade) toModel() model.TradeWithCards {
	t := model.TradeWithCards{
		Trade: model.Trade{
			ID:          int64(w.ID),
			CreatorID:   int64(w.CreatorID),
			Status:      model.TradeStatus(w.Status),
			Description: w.Description,
			CreatedAt:   w.CreatedAt.value(),
		},
		OfferingCards:  cards(w.OfferingCards),
		ReceivingCards: cards(w.ReceivingCards),
	}
	if w.Creator != nil {
		t.Creator = w.Creator.toModel()
		if t.CreatorID == 0 {
			t.CreatorID = t.Creator.ID
		}
	}
	if t.Status == "" {
		t.Status = model.TradeOpen
	}
	return t
}

func cards(in []wireCard) []model.Card {
	out := make([]model.Card, 0, len(in))
	for _, c := range in {
		out = append(out, c.toModel())
	}
	return out
}

type wireMeta struct {
	Page       int `json:"page"`
	RPP        int `json:"rpp"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type wirePage[W any] struct {
	Data []W      `json:"data"`
	Meta wireMeta `json:"meta"`
}

type wireAuth struct {
	User        wireUser `json:"user"`
	Token       string   `json:"token"`
	AccessToken string   `json:"accessToken"`
}

// --- decoders ---

// Auth decodes a login response.
func Auth(b []byte) (model.AuthResponse, error) {
	var w wireAuth
	if err := json.Unmarshal(b, &w); err != nil {
		return model.AuthResponse{}, fmt.Errorf("decode auth: %w", err)
	}
	tok := w.Token
	if tok == "" {
		tok = w.AccessToken
	}
	if tok == "" {
		return model.AuthResponse{}, fmt.Errorf("decode auth: missing token")
	}
	return model.AuthResponse{User: w.User.toModel(), Token: tok}, nil
}

// User decodes a single user.
func User(b []byte) (model.User, error) {
	var w wireUser
	if err := single(b, &w); err != nil {
		return model.User{}, fmt.Errorf("decode user: %w", err)
	}
	return w.toModel(), nil
}

// Card decodes a single card.
func Card(b []byte) (model.Card, error) {
	var w wireCard
	if err := single(b, &w); err != nil {
		return model.Card{}, fmt.Errorf("decode card: %w", err)
	}
	return w.toModel(), nil
}

// UserCard decodes a single collection entry.
func UserCard(b []byte) (model.UserCard, error) {
	var w wireUserCard
	if err := single(b, &w); err != nil {
		return model.UserCard{}, fmt.Errorf("decode user card: %w", err)
	}
	return w.toModel(), nil
}

// Trade decodes a single trade.
func Trade(b []byte) (model.TradeWithCards, error) {
	var w wireTrade
	if err := single(b, &w); err != nil {
		return model.TradeWithCards{}, fmt.Errorf("decode trade: %w", err)
	}
	return w.toModel(), nil
}

// CardPage decodes a page of catalog cards.
func CardPage(b []byte) (model.Page[model.Card], error) {
	return page(b, wireCard.toModel)
}

// UserCardPage decodes a page of collection entries.
func UserCardPage(b []byte) (model.Page[model.UserCard], error) {
	return page(b, wireUserCard.toModel)
}

// TradePage decodes a page of trades.
func TradePage(b []byte) (model.Page[model.TradeWithCards], error) {
	return page(b, wireTrade.toModel)
}

func page[W any, M any](b []byte, conv func(W) M) (model.Page[M], error) {
	var w wirePage[W]
	if err := json.Unmarshal(b, &w); err != nil {
		return model.Page[M]{}, fmt.Errorf("decode page: %w", err)
	}
	out := model.Page[M]{Data: make([]M, 0, len(w.Data))}
	for _, d := range w.Data {
		out.Data = append(out.Data, conv(d))
	}
	out.Meta = meta(w.Meta, len(out.Data))
	return out, nil
}

// meta recomputes totalPages so the client invariant holds whatever the backend sent.
func meta(w wireMeta, n int) model.Meta {
	rpp := w.RPP
	if rpp <= 0 {
		rpp = w.Limit
	}
	if rpp <= 0 {
		rpp = model.DefaultRPP
	}
	total := w.Total
	if total < n {
		total = n
	}
	return model.NewMeta(w.Page, rpp, total)
}

// single decodes a bare object or one wrapped in {"data": {...}}.
func single(b []byte, v any) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if inner, ok := probe["data"]; ok {
		if _, hasID := probe["id"]; !hasID && bytes.HasPrefix(bytes.TrimSpace(inner), []byte("{")) {
			b = inner
		}
	}
	return json.Unmarshal(b, v)
}
