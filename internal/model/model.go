// Package model defines the entities the client caches from the marketplace backend.
package model

import "time"

// User is the public identity of an account. Passwords never reach the client model.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Card is a read-only catalog item.
type Card struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Rarity      string    `json:"rarity,omitempty"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Condition grades a physical card in a collection.
type Condition string

const (
	ConditionMint             Condition = "mint"
	ConditionNearMint         Condition = "near-mint"
	ConditionLightlyPlayed    Condition = "lightly-played"
	ConditionModeratelyPlayed Condition = "moderately-played"
	ConditionHeavilyPlayed    Condition = "heavily-played"
	ConditionDamaged          Condition = "damaged"
)

// Conditions lists every grade from best to worst.
var Conditions = []Condition{
	ConditionMint,
	ConditionNearMint,
	ConditionLightlyPlayed,
	ConditionModeratelyPlayed,
	ConditionHeavilyPlayed,
	ConditionDamaged,
}

// Valid reports whether c is one of the known grades.
func (c Condition) Valid() bool {
	for _, k := range Conditions {
		if c == k {
			return true
		}
	}
	return false
}

// UserCard links a user to a card they own.
type UserCard struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	CardID    int64     `json:"cardId"`
	Condition Condition `json:"condition,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Card      *Card     `json:"card,omitempty"` // set when the backend joins the catalog row
}

// TradeStatus is owned by the backend; the client only reconciles it.
type TradeStatus string

const (
	TradeOpen      TradeStatus = "open"
	TradePending   TradeStatus = "pending"
	TradeCompleted TradeStatus = "completed"
	TradeCancelled TradeStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s TradeStatus) Valid() bool {
	switch s {
	case TradeOpen, TradePending, TradeCompleted, TradeCancelled:
		return true
	}
	return false
}

// TradeCardType tags a card inside a trade.
type TradeCardType string

const (
	TradeCardOffering  TradeCardType = "OFFERING"
	TradeCardReceiving TradeCardType = "RECEIVING"
)

// TradeCard tags a card as offered or requested within a trade.
type TradeCard struct {
	ID      int64         `json:"id"`
	TradeID int64         `json:"tradeId"`
	CardID  int64         `json:"cardId"`
	Type    TradeCardType `json:"type"`
}

// Trade is an offer created by a user.
type Trade struct {
	ID          int64       `json:"id"`
	CreatorID   int64       `json:"creatorId"`
	Status      TradeStatus `json:"status"`
	Description string      `json:"description,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// TradeWithCards is the materialized view of a trade.
type TradeWithCards struct {
	Trade
	Creator        User   `json:"creator"`
	OfferingCards  []Card `json:"offeringCards"`
	ReceivingCards []Card `json:"receivingCards"`
}

// AuthResponse is returned by a successful login.
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}
