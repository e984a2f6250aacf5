package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/and161185/cardtrader/internal/model"
	"github.com/and161185/cardtrader/internal/repository"
	"github.com/and161185/cardtrader/internal/validate"
)

// TradesService owns the public trade list and the current user's trades.
type TradesService interface {
	FetchTrades(ctx context.Context, p model.ListParams) error
	FetchUserTrades(ctx context.Context, p model.ListParams) error
	// Create opens a trade and reloads both lists.
	Create(ctx context.Context, r model.CreateTradeRequest) (model.TradeWithCards, error)
	// Delete removes a trade and drops it from both cached lists.
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (model.TradeWithCards, error)
	// Cancel, Accept and Reject request a transition and reconcile the returned trade.
	Cancel(ctx context.Context, id int64) (model.TradeWithCards, error)
	Accept(ctx context.Context, id int64) (model.TradeWithCards, error)
	Reject(ctx context.Context, id int64) (model.TradeWithCards, error)
	Trades() List[model.TradeWithCards]
	UserTrades() List[model.TradeWithCards]
}

var _ TradesService = (*TradesServiceImpl)(nil)

type TradesServiceImpl struct {
	api repository.TradesAPI
	log *zap.Logger

	trades     listState[model.TradeWithCards]
	userTrades listState[model.TradeWithCards]
}

// NewTradesService constructs the trades store.
func NewTradesService(api repository.TradesAPI, log *zap.Logger) *TradesServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &TradesServiceImpl{api: api, log: log}
}

func tradeID(t model.TradeWithCards) int64 { return t.ID }

func (s *TradesServiceImpl) FetchTrades(ctx context.Context, p model.ListParams) error {
	return s.trades.fetch(ctx, p, s.api.ListTrades)
}

func (s *TradesServiceImpl) FetchUserTrades(ctx context.Context, p model.ListParams) error {
	return s.userTrades.fetch(ctx, p, s.api.ListUserTrades)
}

// Create returns the trade as stored by the backend. Both lists are reloaded with their
// last-known parameters; reload errors are joined and returned alongside the trade.
func (s *TradesServiceImpl) Create(ctx context.Context, r model.CreateTradeRequest) (model.TradeWithCards, error) {
	if err := validate.CreateTrade(r); err != nil {
		return model.TradeWithCards{}, err
	}
	t, err := s.api.CreateTrade(ctx, r)
	if err != nil {
		return model.TradeWithCards{}, err
	}
	s.log.Debug("trade created", zap.Int64("trade_id", t.ID))

	return t, errors.Join(
		s.trades.refetch(ctx, s.api.ListTrades),
		s.userTrades.refetch(ctx, s.api.ListUserTrades),
	)
}

// Delete drops the trade from both caches as soon as the backend confirms, without a
// reload.
func (s *TradesServiceImpl) Delete(ctx context.Context, id int64) error {
	if err := validate.ID(id); err != nil {
		return err
	}
	if err := s.api.DeleteTrade(ctx, id); err != nil {
		return err
	}
	n := s.trades.remove(id, tradeID) + s.userTrades.remove(id, tradeID)
	s.log.Debug("trade deleted", zap.Int64("trade_id", id), zap.Int("cached_rows", n))
	return nil
}

func (s *TradesServiceImpl) Get(ctx context.Context, id int64) (model.TradeWithCards, error) {
	if err := validate.ID(id); err != nil {
		return model.TradeWithCards{}, err
	}
	return s.api.GetTrade(ctx, id)
}

func (s *TradesServiceImpl) Cancel(ctx context.Context, id int64) (model.TradeWithCards, error) {
	return s.transition(ctx, id, s.api.CancelTrade)
}

func (s *TradesServiceImpl) Accept(ctx context.Context, id int64) (model.TradeWithCards, error) {
	return s.transition(ctx, id, s.api.AcceptTrade)
}

func (s *TradesServiceImpl) Reject(ctx context.Context, id int64) (model.TradeWithCards, error) {
	return s.transition(ctx, id, s.api.RejectTrade)
}

// transition never computes the next status: the trade the backend returns replaces the
// cached rows with the same id.
func (s *TradesServiceImpl) transition(ctx context.Context, id int64, do func(context.Context, int64) (model.TradeWithCards, error)) (model.TradeWithCards, error) {
	if err := validate.ID(id); err != nil {
		return model.TradeWithCards{}, err
	}
	t, err := do(ctx, id)
	if err != nil {
		return model.TradeWithCards{}, err
	}
	s.trades.replace(t, tradeID)
	s.userTrades.replace(t, tradeID)
	s.log.Debug("trade transitioned", zap.Int64("trade_id", t.ID), zap.String("status", string(t.Status)))
	return t, nil
}

func (s *TradesServiceImpl) Trades() List[model.TradeWithCards] { return s.trades.snapshot() }

func (s *TradesServiceImpl) UserTrades() List[model.TradeWithCards] { return s.userTrades.snapshot() }
