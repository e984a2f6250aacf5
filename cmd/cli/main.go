// Command ct is a command-line client for the card trading marketplace.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/cardtrader/internal/app"
	"github.com/and161185/cardtrader/internal/config"
	"github.com/and161185/cardtrader/internal/errs"
	"github.com/and161185/cardtrader/internal/model"
	"github.com/and161185/cardtrader/internal/notify"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const commandTimeout = 2 * time.Minute

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintf(w, `ct CLI
Usage:
  ct [-config file] [-api URL] [-storage memory|file|postgres] [-state-dir dir] [-v] <cmd> [args]

Commands:
  version
  register      -u <username> -e <email> -p <password>   (logs in afterwards)
  login         -e <email> -p <password>
  logout
  whoami                                                 (verifies the stored token)
  cards         [-page N] [-rpp N] [-q text]
  search        <text>                                   (at least 3 characters)
  card          -id <id>
  my-cards      [-page N] [-rpp N] [-q text] [-category c] [-sort newest|name|rarity|condition]
  add-card      -id <card id> [-condition mint|near-mint|lightly-played|moderately-played|heavily-played|damaged]
  trades        [-page N] [-rpp N] [-q text] [-status s] [-sort newest|oldest|most-cards|least-cards]
  my-trades     [same flags as trades]
  trade         -id <id>
  create-trade  -offer 1,2 -receive 3 [-d description]
  delete-trade  -id <id>
  cancel-trade  -id <id>
  accept-trade  -id <id>
  reject-trade  -id <id>
`)
}

// main wires signals to a context and exits with run's status.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses global flags, builds the client and dispatches one command. It returns the
// process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ct", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(stderr) }
	cfgPath := fs.String("config", "", "YAML config file")
	verbose := fs.Bool("v", false, "verbose logging to stderr")
	overrides := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		usage(stderr)
		return 2
	}
	name, rest := fs.Arg(0), fs.Args()[1:]

	if name == "version" {
		fmt.Fprintf(stdout, "ct %s (%s)\n", version, buildDate)
		return 0
	}
	cmd, ok := commands[name]
	if !ok {
		usage(stderr)
		return 2
	}

	cfg, err := config.Load(*cfgPath, os.LookupEnv)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	overrides.ApplyFlags(&cfg)

	log := zap.NewNop()
	if *verbose {
		if log, err = newLogger(cfg); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	a, err := app.New(ctx, cfg, log, notify.NewWriter(stderr))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer a.Close()

	if *verbose {
		unsub := a.Session.Subscribe(func(s model.Session) {
			log.Debug("session", zap.Bool("authenticated", s.IsAuthenticated), zap.Bool("loading", s.IsLoading))
		})
		defer unsub()
	}

	if err := cmd(ctx, &env{app: a, out: stdout, args: rest}); err != nil {
		return report(stderr, err)
	}
	return 0
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// report prints err unless the pipeline already announced it, and maps it to an exit code.
func report(w io.Writer, err error) int {
	if errors.Is(err, errUsage) {
		fmt.Fprintln(w, err)
		return 2
	}
	if !errs.Announced(err) {
		fmt.Fprintln(w, "error:", err)
	}
	return 1
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
