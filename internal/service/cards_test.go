package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/cardtrader/internal/errs"
	"github.com/and161185/cardtrader/internal/model"
)

func TestCards_FetchAllPageShape(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	const total, rpp = 25, 12
	api := &fakeCardsAPI{catalog: catalog(total)}
	s := NewCardsService(api, nil)

	for page := 1; page <= 3; page++ {
		require.NoError(t, s.FetchAll(ctx, model.ListParams{Page: page, RPP: rpp}))
		got := s.All()
		want := min(rpp, total-(page-1)*rpp)
		require.Len(t, got.Items, want, "page %d", page)
		require.Equal(t, model.Meta{Page: page, RPP: rpp, Total: total, TotalPages: 3}, got.Pagination)
		require.False(t, got.IsLoading)
		require.Equal(t, int64((page-1)*rpp+1), got.Items[0].ID)
	}
}

func TestCards_FailedFetchKeepsState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeCardsAPI{catalog: catalog(30)}
	s := NewCardsService(api, nil)

	require.NoError(t, s.FetchAll(ctx, model.ListParams{Page: 1, RPP: 10}))
	before := s.All()

	api.listErr = &errs.APIError{Kind: errs.KindServer, Status: 500}
	err := s.FetchAll(ctx, model.ListParams{Page: 2, RPP: 10})
	require.ErrorIs(t, err, errs.ErrServer)

	after := s.All()
	require.Equal(t, before.Items, after.Items)
	require.Equal(t, before.Pagination, after.Pagination)
	require.Equal(t, before.Params, after.Params)
	require.False(t, after.IsLoading)
}

func TestCards_EmptySearchResult(t *testing.T) {
	t.Parallel()
	api := &fakeCardsAPI{catalog: catalog(5)}
	s := NewCardsService(api, nil)

	require.NoError(t, s.FetchAll(context.Background(), model.ListParams{Search: "dragon", Page: 1, RPP: 12}))
	got := s.All()
	require.NotNil(t, got.Items)
	require.Empty(t, got.Items)
	require.Zero(t, got.Pagination.Total)
	require.Zero(t, got.Pagination.TotalPages)
	require.Equal(t, "dragon", api.listCalls[0].Search)
}

func TestCards_FilterChangeResetsPage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeCardsAPI{catalog: catalog(60)}
	s := NewCardsService(api, nil)

	require.NoError(t, s.FetchAll(ctx, model.ListParams{Page: 3, RPP: 10}))
	require.Equal(t, 3, s.All().Pagination.Page)

	// same filters, next page
	require.NoError(t, s.FetchAll(ctx, model.ListParams{Page: 4, RPP: 10}))
	require.Equal(t, 4, api.listCalls[1].Page)

	require.NoError(t, s.FetchAll(ctx, model.ListParams{Page: 4, RPP: 10, Search: "card"}))
	require.Equal(t, 1, api.listCalls[2].Page)
	require.Equal(t, 1, s.All().Pagination.Page)

	// a query under the threshold is dropped, which is itself a filter change
	require.NoError(t, s.FetchAll(ctx, model.ListParams{Page: 2, RPP: 10, Search: "ca"}))
	require.Equal(t, model.ListParams{Page: 1, RPP: 10}, api.listCalls[3])
}

func TestCards_SearchThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeCardsAPI{catalog: []model.Card{{ID: 1, Name: "Dragonite"}, {ID: 2, Name: "Pikachu"}}}
	s := NewCardsService(api, nil)

	got, err := s.Search(ctx, " dr ")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
	require.Empty(t, api.listCalls)

	got, err = s.Search(ctx, "drag")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Dragonite", got[0].Name)
	require.Len(t, api.listCalls, 1)

	// list state is untouched by Search
	require.Nil(t, s.All().Items)
}

// "a" is issued first but answers last; its late page must not replace the page of "ab".
func TestCards_StaleResponseDiscarded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	stale := model.Page[model.Card]{Data: []model.Card{{ID: 1, Name: "stale"}}, Meta: model.NewMeta(1, 20, 1)}
	fresh := model.Page[model.Card]{Data: []model.Card{{ID: 2, Name: "fresh"}}, Meta: model.NewMeta(1, 20, 1)}
	api := newGatedCards(stale, fresh)
	s := NewCardsService(api, nil)

	errA := make(chan error, 1)
	go func() { errA <- s.FetchAll(ctx, model.ListParams{Search: "a"}) }()
	<-api.started

	errB := make(chan error, 1)
	go func() { errB <- s.FetchAll(ctx, model.ListParams{Search: "ab"}) }()
	<-api.started
	require.True(t, s.All().IsLoading)

	close(api.gates[1])
	require.NoError(t, <-errB)
	got := s.All()
	require.Equal(t, "fresh", got.Items[0].Name)
	require.True(t, got.IsLoading, "older request still in flight")

	close(api.gates[0])
	require.NoError(t, <-errA)
	got = s.All()
	require.Equal(t, "fresh", got.Items[0].Name)
	require.False(t, got.IsLoading)
}

func TestCards_StaleSearchKeepsLatestParams(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	page := func(name string) model.Page[model.Card] {
		return model.Page[model.Card]{Data: []model.Card{{ID: 1, Name: name}}, Meta: model.NewMeta(1, 20, 1)}
	}
	api := newGatedCards(page("dra"), page("drag"))
	s := NewCardsService(api, nil)

	errA := make(chan error, 1)
	go func() { errA <- s.FetchAll(ctx, model.ListParams{Search: "dra"}) }()
	require.Equal(t, "dra", (<-api.started).Search)

	errB := make(chan error, 1)
	go func() { errB <- s.FetchAll(ctx, model.ListParams{Search: "drag"}) }()
	require.Equal(t, "drag", (<-api.started).Search)

	close(api.gates[1])
	require.NoError(t, <-errB)
	close(api.gates[0])
	require.NoError(t, <-errA)

	got := s.All()
	require.Equal(t, "drag", got.Params.Search)
	require.Equal(t, "drag", got.Items[0].Name)
}

func TestCards_AddCardToUserRefetchesOnceWithPriorParams(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeCardsAPI{catalog: catalog(10)}
	for i := 1; i <= 12; i++ {
		api.userCards = append(api.userCards, model.UserCard{ID: int64(i), UserID: 1, CardID: int64(i % 10)})
	}
	s := NewCardsService(api, nil)

	prior := model.ListParams{Page: 2, RPP: 5, Category: "fire", Sort: "name"}
	require.NoError(t, s.FetchUserCards(ctx, prior))
	require.Equal(t, 1, api.userListCount())

	require.NoError(t, s.AddCardToUser(ctx, model.AddCardRequest{CardID: 5, Condition: "mint"}))

	require.Equal(t, 2, api.userListCount())
	require.Equal(t, prior, api.userListCalls[1])
	require.Equal(t, []model.AddCardRequest{{CardID: 5, Condition: model.ConditionMint}}, api.added)
	require.Equal(t, 13, s.UserCards().Pagination.Total)
}

func TestCards_AddCardToUserFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("validation makes no call", func(t *testing.T) {
		t.Parallel()
		api := &fakeCardsAPI{}
		s := NewCardsService(api, nil)
		require.ErrorIs(t, s.AddCardToUser(ctx, model.AddCardRequest{CardID: 0}), errs.ErrValidation)
		require.ErrorIs(t, s.AddCardToUser(ctx, model.AddCardRequest{CardID: 5, Condition: "shiny"}), errs.ErrValidation)
		require.Empty(t, api.added)
		require.Zero(t, api.userListCount())
	})

	t.Run("attach failure skips refetch", func(t *testing.T) {
		t.Parallel()
		api := &fakeCardsAPI{addErr: &errs.APIError{Kind: errs.KindNotFound, Status: 404}}
		s := NewCardsService(api, nil)
		require.ErrorIs(t, s.AddCardToUser(ctx, model.AddCardRequest{CardID: 5}), errs.ErrNotFound)
		require.Zero(t, api.userListCount())
	})

	t.Run("refetch failure is returned", func(t *testing.T) {
		t.Parallel()
		api := &fakeCardsAPI{userListErr: &errs.APIError{Kind: errs.KindTimeout}}
		s := NewCardsService(api, nil)
		require.ErrorIs(t, s.AddCardToUser(ctx, model.AddCardRequest{CardID: 5}), errs.ErrTimeout)
		require.Len(t, api.added, 1)
		require.Equal(t, 1, api.userListCount())
	})
}

func TestCards_Get(t *testing.T) {
	t.Parallel()
	s := NewCardsService(&fakeCardsAPI{catalog: catalog(3)}, nil)

	c, err := s.Get(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "Card 02", c.Name)

	_, err = s.Get(context.Background(), 0)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestCards_SnapshotIsACopy(t *testing.T) {
	t.Parallel()
	s := NewCardsService(&fakeCardsAPI{catalog: catalog(3)}, nil)
	require.NoError(t, s.FetchAll(context.Background(), model.ListParams{}))

	snap := s.All()
	snap.Items[0].Name = "mutated"
	require.Equal(t, "Card 01", s.All().Items[0].Name)
}

func TestCards_CanceledFetchClearsLoading(t *testing.T) {
	t.Parallel()
	api := newGatedCards(model.Page[model.Card]{})
	s := NewCardsService(api, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.FetchAll(ctx, model.ListParams{}), context.DeadlineExceeded)
	require.False(t, s.All().IsLoading)
}
