// Command feedexctl runs one-off feedex operations against the configured
// store: a batch cycle, a user recalculation, a synthetic event, or a read.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/feedex/internal/config"
	logpkg "github.com/kailas-cloud/feedex/internal/logger"
	feedex "github.com/kailas-cloud/feedex/pkg/sdk"
)

const usage = `usage: feedexctl <command> [flags]

commands:
  batch                               run one batch cycle
  recalc  -user N [-force]            recalculate one user
  event   -name NAME -payload JSON    route one event
  taste   -user N                     print a decoded taste profile
  feed    -user N [-page P] [-per-page S]
  search  -q TERM [-user N]
  sync    -type items|users|likes|follows [-ids]

The store and tuning come from config/$ENV.yaml.
`

var errUsage = errors.New("invalid usage")

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "feedexctl: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string, out io.Writer) error {
	handler, ok := commands[cmd]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	opts := []feedex.Option{feedex.WithEnv(env), feedex.WithLogger(logger)}
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("memory driver: state is discarded when feedexctl exits")
		opts = append(opts, feedex.WithMemory())
	default:
		opts = append(opts, feedex.WithRedis(cfg.Database.Addrs[0], cfg.Database.Password))
	}

	client, err := feedex.New(ctx, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := handler(ctx, client, args)
	if err != nil {
		return err
	}
	logger.Debug("command finished", zap.String("command", cmd))
	return printJSON(out, result)
}

type command func(ctx context.Context, c *feedex.Client, args []string) (any, error)

var commands = map[string]command{
	"batch":  cmdBatch,
	"recalc": cmdRecalc,
	"event":  cmdEvent,
	"taste":  cmdTaste,
	"feed":   cmdFeed,
	"search": cmdSearch,
	"sync":   cmdSync,
}

func cmdBatch(ctx context.Context, c *feedex.Client, args []string) (any, error) {
	fs := newFlagSet("batch")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return c.RunBatch(ctx)
}

func cmdRecalc(ctx context.Context, c *feedex.Client, args []string) (any, error) {
	fs := newFlagSet("recalc")
	user := fs.Int64("user", 0, "user id")
	force := fs.Bool("force", false, "reset the profile and replay the full history")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if *user <= 0 {
		return nil, fmt.Errorf("%w: -user is required", errUsage)
	}
	return c.Recalculate(ctx, *user, *force)
}

func cmdEvent(ctx context.Context, c *feedex.Client, args []string) (any, error) {
	fs := newFlagSet("event")
	name := fs.String("name", "", "event name, e.g. user.interaction.like")
	payload := fs.String("payload", "", "JSON payload")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if *name == "" || *payload == "" {
		return nil, fmt.Errorf("%w: -name and -payload are required", errUsage)
	}
	handled, err := c.Event(ctx, *name, []byte(*payload))
	if err != nil {
		return nil, err
	}
	return map[string]any{"event": *name, "handled": handled}, nil
}

func cmdTaste(ctx context.Context, c *feedex.Client, args []string) (any, error) {
	fs := newFlagSet("taste")
	user := fs.Int64("user", 0, "user id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return c.Taste(ctx, *user)
}

func cmdFeed(ctx context.Context, c *feedex.Client, args []string) (any, error) {
	fs := newFlagSet("feed")
	user := fs.Int64("user", 0, "user id")
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("per-page", 20, "page size")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if *user <= 0 {
		return nil, fmt.Errorf("%w: -user is required", errUsage)
	}
	return c.Feed(ctx, *user, *page, *perPage)
}

func cmdSearch(ctx context.Context, c *feedex.Client, args []string) (any, error) {
	fs := newFlagSet("search")
	term := fs.String("q", "", "search term")
	user := fs.Int64("user", 0, "personalize for this user")
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("per-page", 20, "page size")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return c.Search(ctx, *term, *user, *page, *perPage)
}

func cmdSync(ctx context.Context, c *feedex.Client, args []string) (any, error) {
	fs := newFlagSet("sync")
	typ := fs.String("type", "", "items, users, likes or follows")
	ids := fs.Bool("ids", false, "print raw ids instead of the checksum")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if *ids {
		return c.IDs(ctx, feedex.SyncType(*typ))
	}
	return c.Checksum(ctx, feedex.SyncType(*typ))
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: %s: unexpected arguments %v", errUsage, fs.Name(), fs.Args())
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
