package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/and161185/cardtrader/internal/app"
	"github.com/and161185/cardtrader/internal/model"
)

// env is what a command runs against.
type env struct {
	app  *app.App
	out  io.Writer
	args []string
}

type command func(ctx context.Context, e *env) error

var commands = map[string]command{
	"register":     cmdRegister,
	"login":        cmdLogin,
	"logout":       cmdLogout,
	"whoami":       cmdWhoami,
	"cards":        cmdCards,
	"search":       cmdSearch,
	"card":         cmdCard,
	"my-cards":     cmdMyCards,
	"add-card":     cmdAddCard,
	"trades":       cmdTrades(false),
	"my-trades":    cmdTrades(true),
	"trade":        cmdTrade,
	"create-trade": cmdCreateTrade,
	"delete-trade": cmdDeleteTrade,
	"cancel-trade": cmdTransition("cancel"),
	"accept-trade": cmdTransition("accept"),
	"reject-trade": cmdTransition("reject"),
}

type pageView[T any] struct {
	Data []T        `json:"data"`
	Meta model.Meta `json:"meta"`
}

func (e *env) parse(fs *flag.FlagSet) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(e.args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

func need(fs *flag.FlagSet, names ...string) error {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	var missing []string
	for _, n := range names {
		if !set[n] {
			missing = append(missing, "-"+n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s needs %s", errUsage, fs.Name(), strings.Join(missing, " "))
	}
	return nil
}

// listFlags binds the pagination flags plus the named filters.
func listFlags(fs *flag.FlagSet, filters ...string) *model.ListParams {
	p := &model.ListParams{}
	fs.IntVar(&p.Page, "page", 1, "page number")
	fs.IntVar(&p.RPP, "rpp", 0, "rows per page (config page_size when 0)")
	fs.StringVar(&p.Search, "q", "", "search text")
	for _, f := range filters {
		switch f {
		case "category":
			fs.StringVar(&p.Category, "category", "", "card category")
		case "status":
			fs.StringVar(&p.Status, "status", "", "trade status")
		case "sort":
			fs.StringVar(&p.Sort, "sort", "", "sort order")
		}
	}
	return p
}

func idFlag(fs *flag.FlagSet) *int64 { return fs.Int64("id", 0, "id") }

func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad id %q", errUsage, part)
		}
		out = append(out, id)
	}
	return out, nil
}

// ---- session ----

func cmdRegister(ctx context.Context, e *env) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	u := fs.String("u", "", "username")
	em := fs.String("e", "", "email")
	p := fs.String("p", "", "password")
	if err := e.parse(fs); err != nil {
		return err
	}
	if err := need(fs, "u", "e", "p"); err != nil {
		return err
	}
	if err := e.app.Session.Register(ctx, model.Registration{Username: *u, Email: *em, Password: *p}); err != nil {
		return err
	}
	return printUser(e)
}

func cmdLogin(ctx context.Context, e *env) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	em := fs.String("e", "", "email")
	p := fs.String("p", "", "password")
	if err := e.parse(fs); err != nil {
		return err
	}
	if err := need(fs, "e", "p"); err != nil {
		return err
	}
	if err := e.app.Session.Login(ctx, model.Credentials{Email: *em, Password: *p}); err != nil {
		return err
	}
	return printUser(e)
}

func cmdLogout(ctx context.Context, e *env) error {
	if err := e.app.Session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "ok")
	return nil
}

func cmdWhoami(ctx context.Context, e *env) error {
	if err := e.app.Session.CheckAuth(ctx); err != nil {
		return err
	}
	return printUser(e)
}

func printUser(e *env) error {
	s := e.app.Session.Snapshot()
	if !s.IsAuthenticated || s.User == nil {
		return errors.New("not logged in")
	}
	printJSON(e.out, e.app.Render.User(*s.User))
	return nil
}

// ---- cards ----

func cmdCards(ctx context.Context, e *env) error {
	fs := flag.NewFlagSet("cards", flag.ContinueOnError)
	p := listFlags(fs)
	if err := e.parse(fs); err != nil {
		return err
	}
	if err := e.app.Cards.FetchAll(ctx, e.app.PageParams(*p)); err != nil {
		return err
	}
	l := e.app.Cards.All()
	printJSON(e.out, pageView[model.Card]{Data: e.app.Render.Cards(l.Items), Meta: l.Pagination})
	return nil
}

func cmdSearch(ctx context.Context, e *env) error {
	q := strings.Join(e.args, " ")
	if strings.TrimSpace(q) == "" {
		return fmt.Errorf("%w: search needs a query", errUsage)
	}
	cards, err := e.app.Cards.Search(ctx, q)
	if err != nil {
		return err
	}
	printJSON(e.out, e.app.Render.Cards(cards))
	return nil
}

func cmdCard(ctx context.Context, e *env) error {
	fs := flag.NewFlagSet("card", flag.ContinueOnError)
	id := idFlag(fs)
	if err := e.parse(fs); err != nil {
		return err
	}
	c, err := e.app.Cards.Get(ctx, *id)
	if err != nil {
		return err
	}
	printJSON(e.out, e.app.Render.Card(c))
	return nil
}

func cmdMyCards(ctx context.Context, e *env) error {
	fs := flag.NewFlagSet("my-cards", flag.ContinueOnError)
	p := listFlags(fs, "category", "sort")
	if err := e.parse(fs); err != nil {
		return err
	}
	if err := e.app.Cards.FetchUserCards(ctx, e.app.PageParams(*p)); err != nil {
		return err
	}
	l := e.app.Cards.UserCards()
	printJSON(e.out, pageView[model.UserCard]{Data: e.app.Render.UserCards(l.Items), Meta: l.Pagination})
	return nil
}

func cmdAddCard(ctx context.Context, e *env) error {
	fs := flag.NewFlagSet("add-card", flag.ContinueOnError)
	id := idFlag(fs)
	cond := fs.String("condition", "", "card condition")
	if err := e.parse(fs); err != nil {
		return err
	}
	if err := need(fs, "id"); err != nil {
		return err
	}
	err := e.app.Cards.AddCardToUser(ctx, model.AddCardRequest{CardID: *id, Condition: model.Condition(*cond)})
	if err != nil {
		return err
	}
	l := e.app.Cards.UserCards()
	printJSON(e.out, pageView[model.UserCard]{Data: e.app.Render.UserCards(l.Items), Meta: l.Pagination})
	return nil
}

// ---- trades ----

func cmdTrades(mine bool) command {
	name := "trades"
	if mine {
		name = "my-trades"
	}
	return func(ctx context.Context, e *env) error {
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		p := listFlags(fs, "status", "sort")
		if err := e.parse(fs); err != nil {
			return err
		}
		params := e.app.PageParams(*p)
		fetch, list := e.app.Trades.FetchTrades, e.app.Trades.Trades
		if mine {
			fetch, list = e.app.Trades.FetchUserTrades, e.app.Trades.UserTrades
		}
		if err := fetch(ctx, params); err != nil {
			return err
		}
		l := list()
		printJSON(e.out, pageView[model.TradeWithCards]{Data: e.app.Render.Trades(l.Items), Meta: l.Pagination})
		return nil
	}
}

func cmdTrade(ctx context.Context, e *env) error {
	fs := flag.NewFlagSet("trade", flag.ContinueOnError)
	id := idFlag(fs)
	if err := e.parse(fs); err != nil {
		return err
	}
	t, err := e.app.Trades.Get(ctx, *id)
	if err != nil {
		return err
	}
	printJSON(e.out, e.app.Render.Trade(t))
	return nil
}

func cmdCreateTrade(ctx context.Context, e *env) error {
	fs := flag.NewFlagSet("create-trade", flag.ContinueOnError)
	offer := fs.String("offer", "", "offered card ids, comma separated")
	receive := fs.String("receive", "", "requested card ids, comma separated")
	desc := fs.String("d", "", "description")
	if err := e.parse(fs); err != nil {
		return err
	}
	if err := need(fs, "offer", "receive"); err != nil {
		return err
	}
	off, err := parseIDs(*offer)
	if err != nil {
		return err
	}
	rec, err := parseIDs(*receive)
	if err != nil {
		return err
	}
	t, err := e.app.Trades.Create(ctx, model.CreateTradeRequest{OfferingCards: off, ReceivingCards: rec, Description: *desc})
	if t.ID != 0 {
		printJSON(e.out, e.app.Render.Trade(t))
	}
	return err
}

func cmdDeleteTrade(ctx context.Context, e *env) error {
	fs := flag.NewFlagSet("delete-trade", flag.ContinueOnError)
	id := idFlag(fs)
	if err := e.parse(fs); err != nil {
		return err
	}
	if err := e.app.Trades.Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "ok")
	return nil
}

func cmdTransition(action string) command {
	return func(ctx context.Context, e *env) error {
		fs := flag.NewFlagSet(action+"-trade", flag.ContinueOnError)
		id := idFlag(fs)
		if err := e.parse(fs); err != nil {
			return err
		}
		do := map[string]func(context.Context, int64) (model.TradeWithCards, error){
			"cancel": e.app.Trades.Cancel,
			"accept": e.app.Trades.Accept,
			"reject": e.app.Trades.Reject,
		}[action]
		t, err := do(ctx, *id)
		if err != nil {
			return err
		}
		printJSON(e.out, e.app.Render.Trade(t))
		return nil
	}
}
