// Package app wires configuration, storage, the request pipeline and the stores together.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/cardtrader/internal/apiclient"
	"github.com/and161185/cardtrader/internal/config"
	"github.com/and161185/cardtrader/internal/migrate"
	"github.com/and161185/cardtrader/internal/model"
	"github.com/and161185/cardtrader/internal/notify"
	"github.com/and161185/cardtrader/internal/render"
	"github.com/and161185/cardtrader/internal/repository"
	"github.com/and161185/cardtrader/internal/repository/file"
	"github.com/and161185/cardtrader/internal/repository/memory"
	"github.com/and161185/cardtrader/internal/repository/postgres"
	"github.com/and161185/cardtrader/internal/service"
)

// App is a fully wired client.
type App struct {
	Config  config.Config
	Log     *zap.Logger
	Client  *apiclient.Client
	Session *service.SessionServiceImpl
	Cards   *service.CardsServiceImpl
	Trades  *service.TradesServiceImpl
	Render  *render.Sanitizer

	closers []func()
}

// New validates cfg, opens the session storage, builds the pipeline and restores the
// persisted session. Close must be called when done.
func New(ctx context.Context, cfg config.Config, log *zap.Logger, n notify.Notifier, opts ...apiclient.Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	if n == nil {
		n = notify.Nop{}
	}

	a := &App{Config: cfg, Log: log, Render: render.New()}

	storage, err := a.openStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts = append([]apiclient.Option{apiclient.WithNotifier(notify.Multi(n, notify.NewLog(log)))}, opts...)
	client, err := apiclient.New(cfg.Client(), log, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Client = client

	a.Session = service.NewSessionService(client, client, storage, log)
	client.SetCredentials(a.Session)
	a.Cards = service.NewCardsService(client, log)
	a.Trades = service.NewTradesService(client, log)

	if err := a.Session.Restore(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return a, nil
}

func (a *App) openStorage(ctx context.Context) (repository.SessionStorage, error) {
	switch a.Config.Storage {
	case config.StorageMemory:
		return memory.NewSessionStorage(), nil
	case config.StorageFile:
		return file.NewSessionStorage(a.Config.StateDir, model.SessionNamespace, []byte(a.Config.Passphrase)), nil
	case config.StoragePostgres:
		if err := migrate.Up(ctx, a.Config.DSN); err != nil {
			return nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, a.Config.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return postgres.NewSessionRepo(db, model.SessionNamespace), nil
	}
	return nil, fmt.Errorf("unknown storage %q", a.Config.Storage)
}

// PageParams applies the configured page size to p when it has none.
func (a *App) PageParams(p model.ListParams) model.ListParams {
	if p.RPP == 0 {
		p.RPP = a.Config.PageSize
	}
	if p.Page == 0 {
		p.Page = 1
	}
	return p
}

// Close waits for background logout revocations and releases storage.
func (a *App) Close() {
	if a.Session != nil {
		a.Session.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
