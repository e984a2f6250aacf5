package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/and161185/cardtrader/internal/convert"
	"github.com/and161185/cardtrader/internal/model"
	"github.com/and161185/cardtrader/internal/repository"
)

var (
	_ repository.AuthAPI   = (*Client)(nil)
	_ repository.Revoker   = (*Client)(nil)
	_ repository.CardsAPI  = (*Client)(nil)
	_ repository.TradesAPI = (*Client)(nil)
)

func decode[T any](route string, b []byte, conv func([]byte) (T, error)) (T, error) {
	v, err := conv(b)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("decode %s response: %w", route, err)
	}
	return v, nil
}

// Login exchanges credentials for a user and token.
func (c *Client) Login(ctx context.Context, cr model.Credentials) (model.AuthResponse, error) {
	b, err := c.do(ctx, call{method: http.MethodPost, route: "/login", path: "/login", body: cr})
	if err != nil {
		return model.AuthResponse{}, err
	}
	return decode("/login", b, convert.Auth)
}

// Register creates an account. The response body is not used.
func (c *Client) Register(ctx context.Context, r model.Registration) error {
	_, err := c.do(ctx, call{method: http.MethodPost, route: "/register", path: "/register", body: r})
	return err
}

// Me returns the owner of the current token.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	b, err := c.do(ctx, call{method: http.MethodGet, route: "/me", path: "/me"})
	if err != nil {
		return model.User{}, err
	}
	return decode("/me", b, convert.User)
}

// Revoke asks the backend to drop token. Failures are not announced and never touch the
// session.
func (c *Client) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/logout",
		path:   "/logout",
		bearer: token,
		silent: true,
	})
	return err
}

// ListCards fetches a page of the catalog.
func (c *Client) ListCards(ctx context.Context, p model.ListParams) (model.Page[model.Card], error) {
	b, err := c.do(ctx, call{method: http.MethodGet, route: "/cards", path: "/cards", query: p.Values()})
	if err != nil {
		return model.Page[model.Card]{}, err
	}
	return decode("/cards", b, convert.CardPage)
}

// GetCard fetches one catalog card.
func (c *Client) GetCard(ctx context.Context, id int64) (model.Card, error) {
	b, err := c.do(ctx, call{method: http.MethodGet, route: "/cards/{id}", path: fmt.Sprintf("/cards/%d", id)})
	if err != nil {
		return model.Card{}, err
	}
	return decode("/cards/{id}", b, convert.Card)
}

// ListUserCards fetches a page of the current user's collection.
func (c *Client) ListUserCards(ctx context.Context, p model.ListParams) (model.Page[model.UserCard], error) {
	b, err := c.do(ctx, call{method: http.MethodGet, route: "/me/cards", path: "/me/cards", query: p.Values()})
	if err != nil {
		return model.Page[model.UserCard]{}, err
	}
	return decode("/me/cards", b, convert.UserCardPage)
}

// AddUserCard attaches a catalog card to the current user's collection.
func (c *Client) AddUserCard(ctx context.Context, r model.AddCardRequest) error {
	_, err := c.do(ctx, call{method: http.MethodPost, route: "/me/cards", path: "/me/cards", body: r})
	return err
}

// ListTrades fetches a page of all trades.
func (c *Client) ListTrades(ctx context.Context, p model.ListParams) (model.Page[model.TradeWithCards], error) {
	return c.tradePage(ctx, "/trades", p)
}

// ListUserTrades fetches a page of the current user's trades.
func (c *Client) ListUserTrades(ctx context.Context, p model.ListParams) (model.Page[model.TradeWithCards], error) {
	return c.tradePage(ctx, "/me/trades", p)
}

func (c *Client) tradePage(ctx context.Context, path string, p model.ListParams) (model.Page[model.TradeWithCards], error) {
	b, err := c.do(ctx, call{method: http.MethodGet, route: path, path: path, query: p.Values()})
	if err != nil {
		return model.Page[model.TradeWithCards]{}, err
	}
	return decode(path, b, convert.TradePage)
}

// GetTrade fetches one trade with its cards.
func (c *Client) GetTrade(ctx context.Context, id int64) (model.TradeWithCards, error) {
	return c.trade(ctx, http.MethodGet, "/trades/{id}", fmt.Sprintf("/trades/%d", id), nil)
}

// CreateTrade creates an open trade and returns it as stored by the backend.
func (c *Client) CreateTrade(ctx context.Context, r model.CreateTradeRequest) (model.TradeWithCards, error) {
	return c.trade(ctx, http.MethodPost, "/trades", "/trades", r)
}

// DeleteTrade deletes one of the current user's trades.
func (c *Client) DeleteTrade(ctx context.Context, id int64) error {
	_, err := c.do(ctx, call{method: http.MethodDelete, route: "/trades/{id}", path: fmt.Sprintf("/trades/%d", id)})
	return err
}

// CancelTrade withdraws one of the current user's open trades.
func (c *Client) CancelTrade(ctx context.Context, id int64) (model.TradeWithCards, error) {
	return c.trade(ctx, http.MethodPatch, "/trades/{id}/cancel", fmt.Sprintf("/trades/%d/cancel", id), nil)
}

// AcceptTrade accepts another user's open trade.
func (c *Client) AcceptTrade(ctx context.Context, id int64) (model.TradeWithCards, error) {
	return c.trade(ctx, http.MethodPost, "/trades/{id}/accept", fmt.Sprintf("/trades/%d/accept", id), nil)
}

// RejectTrade rejects another user's open trade.
func (c *Client) RejectTrade(ctx context.Context, id int64) (model.TradeWithCards, error) {
	return c.trade(ctx, http.MethodPost, "/trades/{id}/reject", fmt.Sprintf("/trades/%d/reject", id), nil)
}

func (c *Client) trade(ctx context.Context, method, route, path string, body any) (model.TradeWithCards, error) {
	b, err := c.do(ctx, call{method: method, route: route, path: path, body: body})
	if err != nil {
		return model.TradeWithCards{}, err
	}
	return decode(route, b, convert.Trade)
}
