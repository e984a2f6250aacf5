package service

import (
	"context"
	"sync"

	"github.com/and161185/cardtrader/internal/model"
)

// List is the observable state of one paginated collection.
type List[T any] struct {
	Items      []T
	Pagination model.Meta
	IsLoading  bool
	Params     model.ListParams // parameters of the page currently held
}

type pageFunc[T any] func(ctx context.Context, p model.ListParams) (model.Page[T], error)

// listState guards a List and tags every fetch with a sequence number so that a response
// older than the latest issued request never overwrites fresher state.
type listState[T any] struct {
	mu  sync.RWMutex
	cur List[T]
	seq uint64
	// inflight counts requests whose response has not been applied or discarded yet.
	inflight int
}

// fetch replaces the list with the page get returns for params. params are normalized
// against the parameters of the page currently held. A stale success returns nil and
// leaves the state alone; errors are always returned.
func (l *listState[T]) fetch(ctx context.Context, params model.ListParams, get pageFunc[T]) error {
	l.mu.Lock()
	params = params.Normalize(l.cur.Params)
	l.seq++
	seq := l.seq
	l.inflight++
	l.cur.IsLoading = true
	l.mu.Unlock()

	page, err := get(ctx, params)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight--
	if l.inflight == 0 {
		l.cur.IsLoading = false
	}
	if err != nil {
		return err
	}
	if seq != l.seq {
		return nil
	}
	items := page.Data
	if items == nil {
		items = []T{}
	}
	l.cur.Items = items
	l.cur.Pagination = page.Meta
	l.cur.Params = params
	return nil
}

// refetch reloads the list with its last-known parameters.
func (l *listState[T]) refetch(ctx context.Context, get pageFunc[T]) error {
	return l.fetch(ctx, l.params(), get)
}

func (l *listState[T]) params() model.ListParams {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur.Params
}

// snapshot returns a copy whose Items can be modified freely.
func (l *listState[T]) snapshot() List[T] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := l.cur
	if l.cur.Items != nil {
		out.Items = append(make([]T, 0, len(l.cur.Items)), l.cur.Items...)
	}
	return out
}

// remove drops every item matching id and shrinks the pagination total accordingly.
func (l *listState[T]) remove(id int64, idOf func(T) int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := make([]T, 0, len(l.cur.Items))
	for _, it := range l.cur.Items {
		if idOf(it) != id {
			kept = append(kept, it)
		}
	}
	removed := len(l.cur.Items) - len(kept)
	if removed == 0 {
		return 0
	}
	l.cur.Items = kept
	p := l.cur.Pagination
	l.cur.Pagination = model.NewMeta(p.Page, p.RPP, p.Total-removed)
	return removed
}

// replace swaps every item matching the id of v for v.
func (l *listState[T]) replace(v T, idOf func(T) int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	id := idOf(v)
	for i, it := range l.cur.Items {
		if idOf(it) == id {
			l.cur.Items[i] = v
			n++
		}
	}
	return n
}
