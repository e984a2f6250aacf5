package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/cardtrader/internal/model"
	"github.com/and161185/cardtrader/internal/repository"
	"github.com/and161185/cardtrader/internal/validate"
)

// CardsService owns the catalog list and the current user's collection.
type CardsService interface {
	// FetchAll loads a page of the catalog.
	FetchAll(ctx context.Context, p model.ListParams) error
	// FetchUserCards loads a page of the user's collection.
	FetchUserCards(ctx context.Context, p model.ListParams) error
	// AddCardToUser attaches a catalog card and reloads the collection.
	AddCardToUser(ctx context.Context, r model.AddCardRequest) error
	// Search queries the catalog without touching list state.
	Search(ctx context.Context, query string) ([]model.Card, error)
	// Get fetches one catalog card.
	Get(ctx context.Context, id int64) (model.Card, error)
	// All returns the catalog list state.
	All() List[model.Card]
	// UserCards returns the collection list state.
	UserCards() List[model.UserCard]
}

var _ CardsService = (*CardsServiceImpl)(nil)

type CardsServiceImpl struct {
	api repository.CardsAPI
	log *zap.Logger

	cards     listState[model.Card]
	userCards listState[model.UserCard]
}

// NewCardsService constructs the cards store.
func NewCardsService(api repository.CardsAPI, log *zap.Logger) *CardsServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &CardsServiceImpl{api: api, log: log}
}

func (s *CardsServiceImpl) FetchAll(ctx context.Context, p model.ListParams) error {
	return s.cards.fetch(ctx, p, s.api.ListCards)
}

func (s *CardsServiceImpl) FetchUserCards(ctx context.Context, p model.ListParams) error {
	return s.userCards.fetch(ctx, p, s.api.ListUserCards)
}

// AddCardToUser never builds the new entry locally: on success the collection is reloaded
// exactly once with the parameters of the page currently held, and that reload's error is
// returned.
func (s *CardsServiceImpl) AddCardToUser(ctx context.Context, r model.AddCardRequest) error {
	if err := validate.AddCard(r); err != nil {
		return err
	}
	if err := s.api.AddUserCard(ctx, r); err != nil {
		return err
	}
	s.log.Debug("card added", zap.Int64("card_id", r.CardID), zap.String("condition", string(r.Condition)))
	return s.userCards.refetch(ctx, s.api.ListUserCards)
}

// Search returns an empty result without a request for queries below the length threshold.
func (s *CardsServiceImpl) Search(ctx context.Context, query string) ([]model.Card, error) {
	q := model.SearchQuery(query)
	if q == "" {
		return []model.Card{}, nil
	}
	page, err := s.api.ListCards(ctx, model.ListParams{Page: 1, RPP: model.DefaultRPP, Search: q})
	if err != nil {
		return nil, err
	}
	if page.Data == nil {
		return []model.Card{}, nil
	}
	return page.Data, nil
}

func (s *CardsServiceImpl) Get(ctx context.Context, id int64) (model.Card, error) {
	if err := validate.ID(id); err != nil {
		return model.Card{}, err
	}
	return s.api.GetCard(ctx, id)
}

func (s *CardsServiceImpl) All() List[model.Card] { return s.cards.snapshot() }

func (s *CardsServiceImpl) UserCards() List[model.UserCard] { return s.userCards.snapshot() }
