package devapi

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/and161185/cardtrader/internal/errs"
	"github.com/and161185/cardtrader/internal/model"
)

type userRow struct {
	model.User
	hash string
}

type tradeRow struct {
	model.Trade
	offering  []int64
	receiving []int64
}

// store is the in-memory state of the backend. Every method takes the lock; none of them
// does I/O.
type store struct {
	mu  sync.RWMutex
	now func() time.Time

	users   map[int64]*userRow
	byEmail map[string]int64

	cards     []model.Card
	userCards []model.UserCard
	trades    []*tradeRow

	revoked map[string]struct{}

	nextUser, nextUserCard, nextTrade int64
}

func newStore(now func() time.Time, cards []model.Card) *store {
	return &store{
		now:      now,
		users:    map[int64]*userRow{},
		byEmail:  map[string]int64{},
		cards:    cards,
		revoked:  map[string]struct{}{},
		nextUser: 1, nextUserCard: 1, nextTrade: 1,
	}
}

func (s *store) createUser(username, email, hash string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := s.byEmail[key]; ok {
		return model.User{}, errs.ErrAlreadyExists
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return model.User{}, errs.ErrAlreadyExists
		}
	}
	u := &userRow{User: model.User{ID: s.nextUser, Username: username, Email: email}, hash: hash}
	s.nextUser++
	s.users[u.ID] = u
	s.byEmail[key] = u.ID
	return u.User, nil
}

func (s *store) userByEmail(email string) (model.User, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return model.User{}, "", errs.ErrNotFound
	}
	u := s.users[id]
	return u.User, u.hash, nil
}

func (s *store) user(id int64) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	return u.User, nil
}

func (s *store) revoke(token string) {
	s.mu.Lock()
	s.revoked[token] = struct{}{}
	s.mu.Unlock()
}

func (s *store) isRevoked(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[token]
	return ok
}

// --- cards ---

func (s *store) card(id int64) (model.Card, bool) {
	for _, c := range s.cards {
		if c.ID == id {
			return c, true
		}
	}
	return model.Card{}, false
}

func (s *store) getCard(id int64) (model.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.card(id)
	if !ok {
		return model.Card{}, errs.ErrNotFound
	}
	return c, nil
}

func (s *store) listCards(p model.ListParams) model.Page[model.Card] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []model.Card
	for _, c := range s.cards {
		if matches(p.Search, c.Name, c.Description) {
			hits = append(hits, c)
		}
	}
	return paginate(hits, p)
}

func (s *store) addUserCard(userID int64, r model.AddCardRequest) (model.UserCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.card(r.CardID)
	if !ok {
		return model.UserCard{}, errs.ErrNotFound
	}
	cond := r.Condition
	if cond == "" {
		cond = model.ConditionNearMint
	}
	uc := model.UserCard{
		ID:        s.nextUserCard,
		UserID:    userID,
		CardID:    c.ID,
		Condition: cond,
		CreatedAt: s.now().UTC(),
		Card:      &c,
	}
	s.nextUserCard++
	s.userCards = append(s.userCards, uc)
	return uc, nil
}

func (s *store) listUserCards(userID int64, p model.ListParams) model.Page[model.UserCard] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []model.UserCard
	for _, uc := range s.userCards {
		if uc.UserID != userID {
			continue
		}
		if p.Category != "" && !strings.EqualFold(uc.Card.Category, p.Category) {
			continue
		}
		if !matches(p.Search, uc.Card.Name, uc.Card.Description) {
			continue
		}
		hits = append(hits, uc)
	}

	switch p.Sort {
	case "name":
		slices.SortStableFunc(hits, func(a, b model.UserCard) int { return cmp.Compare(a.Card.Name, b.Card.Name) })
	case "rarity":
		slices.SortStableFunc(hits, func(a, b model.UserCard) int {
			return cmp.Compare(rarityRank[b.Card.Rarity], rarityRank[a.Card.Rarity])
		})
	case "condition":
		slices.SortStableFunc(hits, func(a, b model.UserCard) int {
			return cmp.Compare(conditionRank(a.Condition), conditionRank(b.Condition))
		})
	default:
		slices.SortStableFunc(hits, func(a, b model.UserCard) int { return cmp.Compare(b.ID, a.ID) })
	}
	return paginate(hits, p)
}

func conditionRank(c model.Condition) int {
	if i := slices.Index(model.Conditions, c); i >= 0 {
		return i
	}
	return len(model.Conditions)
}

// --- trades ---

func (s *store) createTrade(userID int64, r model.CreateTradeRequest) (model.TradeWithCards, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range slices.Concat(r.OfferingCards, r.ReceivingCards) {
		if _, ok := s.card(id); !ok {
			return model.TradeWithCards{}, errs.Validation("card %d does not exist", id)
		}
	}
	t := &tradeRow{
		Trade: model.Trade{
			ID:          s.nextTrade,
			CreatorID:   userID,
			Status:      model.TradeOpen,
			Description: strings.TrimSpace(r.Description),
			CreatedAt:   s.now().UTC(),
		},
		offering:  slices.Clone(r.OfferingCards),
		receiving: slices.Clone(r.ReceivingCards),
	}
	s.nextTrade++
	s.trades = append(s.trades, t)
	return s.view(t), nil
}

func (s *store) getTrade(id int64) (model.TradeWithCards, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.trade(id)
	if t == nil {
		return model.TradeWithCards{}, errs.ErrNotFound
	}
	return s.view(t), nil
}

func (s *store) deleteTrade(userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.trade(id)
	if t == nil {
		return errs.ErrNotFound
	}
	if t.CreatorID != userID {
		return errs.ErrForbidden
	}
	s.trades = slices.DeleteFunc(s.trades, func(x *tradeRow) bool { return x.ID == id })
	return nil
}

// transition moves an open trade to status. owner selects whether only the creator or only
// another user may do so.
func (s *store) transition(userID, id int64, owner bool, to model.TradeStatus) (model.TradeWithCards, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.trade(id)
	if t == nil {
		return model.TradeWithCards{}, errs.ErrNotFound
	}
	if (t.CreatorID == userID) != owner {
		return model.TradeWithCards{}, errs.ErrForbidden
	}
	if t.Status != model.TradeOpen {
		return model.TradeWithCards{}, errs.ErrConflict
	}
	t.Status = to
	return s.view(t), nil
}

// listTrades lists all trades, or only those created by userID when it is non-zero.
func (s *store) listTrades(userID int64, p model.ListParams) model.Page[model.TradeWithCards] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []model.TradeWithCards
	for _, t := range s.trades {
		if userID != 0 && t.CreatorID != userID {
			continue
		}
		if p.Status != "" && string(t.Status) != p.Status {
			continue
		}
		v := s.view(t)
		if p.Search != "" && !tradeMatches(p.Search, v) {
			continue
		}
		hits = append(hits, v)
	}

	size := func(t model.TradeWithCards) int { return len(t.OfferingCards) + len(t.ReceivingCards) }
	switch p.Sort {
	case "oldest":
		slices.SortStableFunc(hits, func(a, b model.TradeWithCards) int { return cmp.Compare(a.ID, b.ID) })
	case "most-cards":
		slices.SortStableFunc(hits, func(a, b model.TradeWithCards) int { return cmp.Compare(size(b), size(a)) })
	case "least-cards":
		slices.SortStableFunc(hits, func(a, b model.TradeWithCards) int { return cmp.Compare(size(a), size(b)) })
	default:
		slices.SortStableFunc(hits, func(a, b model.TradeWithCards) int { return cmp.Compare(b.ID, a.ID) })
	}
	return paginate(hits, p)
}

func (s *store) trade(id int64) *tradeRow {
	for _, t := range s.trades {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (s *store) view(t *tradeRow) model.TradeWithCards {
	v := model.TradeWithCards{
		Trade:          t.Trade,
		OfferingCards:  make([]model.Card, 0, len(t.offering)),
		ReceivingCards: make([]model.Card, 0, len(t.receiving)),
	}
	if u, ok := s.users[t.CreatorID]; ok {
		v.Creator = u.User
	}
	for _, id := range t.offering {
		if c, ok := s.card(id); ok {
			v.OfferingCards = append(v.OfferingCards, c)
		}
	}
	for _, id := range t.receiving {
		if c, ok := s.card(id); ok {
			v.ReceivingCards = append(v.ReceivingCards, c)
		}
	}
	return v
}

func tradeMatches(q string, t model.TradeWithCards) bool {
	if matches(q, t.Description, t.Creator.Username) {
		return true
	}
	for _, c := range slices.Concat(t.OfferingCards, t.ReceivingCards) {
		if matches(q, c.Name) {
			return true
		}
	}
	return false
}

func matches(q string, fields ...string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func paginate[T any](all []T, p model.ListParams) model.Page[T] {
	meta := model.NewMeta(p.Page, p.RPP, len(all))
	from := min(meta.Offset(), len(all))
	to := min(from+meta.RPP, len(all))
	return model.Page[T]{Data: append([]T{}, all[from:to]...), Meta: meta}
}
