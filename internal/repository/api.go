// Package repository defines the ports the services depend on: the marketplace backend and
// the durable session storage. Concrete adapters live in apiclient and the subpackages.
package repository

import (
	"context"

	"github.com/and161185/cardtrader/internal/model"
)

// Credentials is the narrow view of the session the request pipeline needs.
type Credentials interface {
	// Token returns the current bearer token, or "" when anonymous.
	Token() string
	// Invalidate tears the session down after the backend rejected the token.
	Invalidate()
}

// AuthAPI covers the account endpoints.
type AuthAPI interface {
	// Login exchanges credentials for a user and bearer token.
	Login(ctx context.Context, c model.Credentials) (model.AuthResponse, error)
	// Register creates an account.
	Register(ctx context.Context, r model.Registration) error
	// Me returns the user the current token belongs to.
	Me(ctx context.Context) (model.User, error)
}

// Revoker performs backend-side session cleanup for a token.
type Revoker interface {
	Revoke(ctx context.Context, token string) error
}

// CardsAPI covers the catalog and collection endpoints.
type CardsAPI interface {
	ListCards(ctx context.Context, p model.ListParams) (model.Page[model.Card], error)
	GetCard(ctx context.Context, id int64) (model.Card, error)
	ListUserCards(ctx context.Context, p model.ListParams) (model.Page[model.UserCard], error)
	AddUserCard(ctx context.Context, r model.AddCardRequest) error
}

// TradesAPI covers the trade endpoints.
type TradesAPI interface {
	ListTrades(ctx context.Context, p model.ListParams) (model.Page[model.TradeWithCards], error)
	ListUserTrades(ctx context.Context, p model.ListParams) (model.Page[model.TradeWithCards], error)
	GetTrade(ctx context.Context, id int64) (model.TradeWithCards, error)
	CreateTrade(ctx context.Context, r model.CreateTradeRequest) (model.TradeWithCards, error)
	DeleteTrade(ctx context.Context, id int64) error
	CancelTrade(ctx context.Context, id int64) (model.TradeWithCards, error)
	AcceptTrade(ctx context.Context, id int64) (model.TradeWithCards, error)
	RejectTrade(ctx context.Context, id int64) (model.TradeWithCards, error)
}
