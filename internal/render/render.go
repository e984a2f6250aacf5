// Package render prepares backend-provided text for terminal output. Markup is stripped
// with a strict bluemonday policy and control characters are dropped so a card name
// cannot carry escape sequences.
package render

import (
	"html"
	"net/url"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"github.com/and161185/cardtrader/internal/model"
)

// Sanitizer is safe for concurrent use.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// New builds a Sanitizer that allows no elements at all.
func New() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Text strips markup and control characters from s and collapses runs of whitespace.
func (s *Sanitizer) Text(in string) string {
	if in == "" {
		return ""
	}
	out := html.UnescapeString(s.policy.Sanitize(in))
	out = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, out)
	return strings.Join(strings.Fields(out), " ")
}

// URL keeps absolute http(s) URLs and drops everything else.
func (s *Sanitizer) URL(in string) string {
	u, err := url.Parse(strings.TrimSpace(in))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.String()
}

func (s *Sanitizer) User(u model.User) model.User {
	u.Username = s.Text(u.Username)
	u.Email = s.Text(u.Email)
	return u
}

func (s *Sanitizer) Card(c model.Card) model.Card {
	c.Name = s.Text(c.Name)
	c.Description = s.Text(c.Description)
	c.Rarity = s.Text(c.Rarity)
	c.Category = s.Text(c.Category)
	c.ImageURL = s.URL(c.ImageURL)
	return c
}

func (s *Sanitizer) Cards(cs []model.Card) []model.Card {
	out := make([]model.Card, len(cs))
	for i, c := range cs {
		out[i] = s.Card(c)
	}
	return out
}

func (s *Sanitizer) UserCard(uc model.UserCard) model.UserCard {
	uc.Condition = model.Condition(s.Text(string(uc.Condition)))
	if uc.Card != nil {
		c := s.Card(*uc.Card)
		uc.Card = &c
	}
	return uc
}

func (s *Sanitizer) UserCards(ucs []model.UserCard) []model.UserCard {
	out := make([]model.UserCard, len(ucs))
	for i, uc := range ucs {
		out[i] = s.UserCard(uc)
	}
	return out
}

func (s *Sanitizer) Trade(t model.TradeWithCards) model.TradeWithCards {
	t.Description = s.Text(t.Description)
	t.Status = model.TradeStatus(s.Text(string(t.Status)))
	t.Creator = s.User(t.Creator)
	t.OfferingCards = s.Cards(t.OfferingCards)
	t.ReceivingCards = s.Cards(t.ReceivingCards)
	return t
}

func (s *Sanitizer) Trades(ts []model.TradeWithCards) []model.TradeWithCards {
	out := make([]model.TradeWithCards, len(ts))
	for i, t := range ts {
		out[i] = s.Trade(t)
	}
	return out
}
