package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/and161185/cardtrader/internal/model"
	"github.com/and161185/cardtrader/internal/repository"
)

func paginate[T any](all []T, p model.ListParams) model.Page[T] {
	meta := model.NewMeta(p.Page, p.RPP, len(all))
	from := meta.Offset()
	if from > len(all) {
		from = len(all)
	}
	to := from + meta.RPP
	if to > len(all) {
		to = len(all)
	}
	return model.Page[T]{Data: append([]T{}, all[from:to]...), Meta: meta}
}

func catalog(n int) []model.Card {
	out := make([]model.Card, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, model.Card{ID: int64(i), Name: fmt.Sprintf("Card %02d", i)})
	}
	return out
}

type fakeCardsAPI struct {
	mu sync.Mutex

	catalog   []model.Card
	userCards []model.UserCard

	listErr     error
	userListErr error
	addErr      error

	listCalls     []model.ListParams
	userListCalls []model.ListParams
	added         []model.AddCardRequest
}

var _ repository.CardsAPI = (*fakeCardsAPI)(nil)

func (f *fakeCardsAPI) ListCards(_ context.Context, p model.ListParams) (model.Page[model.Card], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, p)
	if f.listErr != nil {
		return model.Page[model.Card]{}, f.listErr
	}
	var hits []model.Card
	for _, c := range f.catalog {
		if p.Search == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(p.Search)) {
			hits = append(hits, c)
		}
	}
	return paginate(hits, p), nil
}

func (f *fakeCardsAPI) GetCard(_ context.Context, id int64) (model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.catalog {
		if c.ID == id {
			return c, nil
		}
	}
	return model.Card{}, fmt.Errorf("card %d not found", id)
}

func (f *fakeCardsAPI) ListUserCards(_ context.Context, p model.ListParams) (model.Page[model.UserCard], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userListCalls = append(f.userListCalls, p)
	if f.userListErr != nil {
		return model.Page[model.UserCard]{}, f.userListErr
	}
	return paginate(f.userCards, p), nil
}

func (f *fakeCardsAPI) AddUserCard(_ context.Context, r model.AddCardRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, r)
	f.userCards = append(f.userCards, model.UserCard{ID: int64(len(f.userCards) + 1), UserID: 1, CardID: r.CardID, Condition: r.Condition})
	return nil
}

func (f *fakeCardsAPI) userListCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.userListCalls)
}

// gatedCards answers the n-th ListCards call with pages[n] once gates[n] is closed.
type gatedCards struct {
	fakeCardsAPI

	mu      sync.Mutex
	calls   int
	pages   []model.Page[model.Card]
	gates   []chan struct{}
	started chan model.ListParams
}

func newGatedCards(pages ...model.Page[model.Card]) *gatedCards {
	g := &gatedCards{pages: pages, started: make(chan model.ListParams, len(pages))}
	for range pages {
		g.gates = append(g.gates, make(chan struct{}))
	}
	return g
}

func (g *gatedCards) ListCards(ctx context.Context, p model.ListParams) (model.Page[model.Card], error) {
	g.mu.Lock()
	n := g.calls
	g.calls++
	g.mu.Unlock()

	g.started <- p
	select {
	case <-g.gates[n]:
	case <-ctx.Done():
		return model.Page[model.Card]{}, ctx.Err()
	}
	return g.pages[n], nil
}

type fakeTradesAPI struct {
	mu sync.Mutex

	all  []model.TradeWithCards
	mine []model.TradeWithCards

	deleteErr error
	createErr error

	listCalls     []model.ListParams
	userListCalls []model.ListParams
	deleted       []int64
	transitions   []string
}

var _ repository.TradesAPI = (*fakeTradesAPI)(nil)

func trade(id int64, status model.TradeStatus) model.TradeWithCards {
	return model.TradeWithCards{
		Trade:          model.Trade{ID: id, CreatorID: 1, Status: status},
		OfferingCards:  []model.Card{{ID: 1}},
		ReceivingCards: []model.Card{{ID: 2}},
	}
}

func (f *fakeTradesAPI) ListTrades(_ context.Context, p model.ListParams) (model.Page[model.TradeWithCards], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, p)
	return paginate(f.all, p), nil
}

func (f *fakeTradesAPI) ListUserTrades(_ context.Context, p model.ListParams) (model.Page[model.TradeWithCards], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userListCalls = append(f.userListCalls, p)
	return paginate(f.mine, p), nil
}

func (f *fakeTradesAPI) GetTrade(_ context.Context, id int64) (model.TradeWithCards, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.all {
		if t.ID == id {
			return t, nil
		}
	}
	return model.TradeWithCards{}, fmt.Errorf("trade %d not found", id)
}

func (f *fakeTradesAPI) CreateTrade(_ context.Context, r model.CreateTradeRequest) (model.TradeWithCards, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return model.TradeWithCards{}, f.createErr
	}
	t := trade(int64(100+len(f.all)), model.TradeOpen)
	t.Description = r.Description
	f.all = append([]model.TradeWithCards{t}, f.all...)
	f.mine = append([]model.TradeWithCards{t}, f.mine...)
	return t, nil
}

func (f *fakeTradesAPI) DeleteTrade(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeTradesAPI) transition(name string, id int64, to model.TradeStatus) (model.TradeWithCards, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, fmt.Sprintf("%s %d", name, id))
	for i := range f.all {
		if f.all[i].ID == id {
			f.all[i].Status = to
			return f.all[i], nil
		}
	}
	return model.TradeWithCards{}, fmt.Errorf("trade %d not found", id)
}

func (f *fakeTradesAPI) CancelTrade(_ context.Context, id int64) (model.TradeWithCards, error) {
	return f.transition("cancel", id, model.TradeCancelled)
}

func (f *fakeTradesAPI) AcceptTrade(_ context.Context, id int64) (model.TradeWithCards, error) {
	return f.transition("accept", id, model.TradeCompleted)
}

func (f *fakeTradesAPI) RejectTrade(_ context.Context, id int64) (model.TradeWithCards, error) {
	return f.transition("reject", id, model.TradeCancelled)
}
