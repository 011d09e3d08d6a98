package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/vitalq/internal/analysis"
	"github.com/abhisek/vitalq/internal/assessment"
	"github.com/abhisek/vitalq/internal/catalog"
	"github.com/abhisek/vitalq/internal/config"
	"github.com/abhisek/vitalq/internal/hint"
	"github.com/abhisek/vitalq/internal/llm"
	"github.com/abhisek/vitalq/internal/lock"
	"github.com/abhisek/vitalq/internal/logging"
	"github.com/abhisek/vitalq/internal/metrics"
	"github.com/abhisek/vitalq/internal/selector"
	"github.com/abhisek/vitalq/internal/store"
)

// deps is everything a command needs to run assessments.
type deps struct {
	log        *slog.Logger
	store      *store.Store
	catalog    *catalog.Catalog
	metrics    *metrics.Metrics
	engine     *assessment.Engine
	dispatcher *analysis.Dispatcher

	closers []func() error
}

type depsOptions struct {
	// logTo overrides stderr, e.g. io.Discard while a full-screen UI owns
	// the terminal.
	logTo io.Writer
	// handoff receives completed response sets in addition to the log.
	handoff analysis.Generator
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.log.Warn("close failed", "err", err)
		}
	}
}

// openStore opens the configured database, falling back to the default
// path.
func openStore(ctx context.Context, c config.Config) (*store.Store, error) {
	path := c.DBPath
	if path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		path = p
	}
	s, err := store.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

func newLogger(c config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	if w != nil {
		return logging.NewWriter(w, level), nil
	}
	return logging.New(level), nil
}

// openDeps wires store, catalog, hint provider, locks, metrics and the
// analysis hand-off into an engine.
func openDeps(ctx context.Context, c config.Config, o depsOptions) (*deps, error) {
	log, err := newLogger(c, o.logTo)
	if err != nil {
		return nil, err
	}
	d := &deps{log: log, metrics: metrics.New()}

	cat, err := catalog.Load(c.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	d.catalog = cat

	st, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}
	d.store = st
	d.closers = append(d.closers, st.Close)

	var gen analysis.Generator = analysis.LogGenerator{Log: log}
	if o.handoff != nil {
		gen = analysis.Multi(o.handoff, gen)
	}
	d.dispatcher = analysis.NewDispatcher(st, gen, analysis.WithLogger(log))

	lockOpts := []lock.Option{lock.WithLogger(log), lock.WithTTL(c.LockTTL)}
	if c.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			d.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", c.RedisAddr, err)
		}
		d.closers = append(d.closers, client.Close)
		lockOpts = append(lockOpts, lock.WithLocker(lock.NewRedisLocker(client, c.RedisPrefix)))
		log.Info("distributed locking enabled", "redis", c.RedisAddr)
	}

	selOpts := []selector.Option{selector.WithRecent(c.HintRecent)}
	if c.HintEnabled {
		provider, err := llm.NewProvider(ctx, c.LLM, st, log)
		if err != nil {
			log.Warn("hint provider unavailable; using catalog order", "err", err)
		} else {
			selOpts = append(selOpts,
				selector.WithHintProvider(hint.New(provider, hint.DefaultConfig())),
				selector.WithTimeout(c.HintTimeout))
			log.Info("adaptive hints enabled", "provider", c.LLM.Provider, "model", provider.ModelID())
		}
	}

	d.engine = assessment.New(cat, st,
		assessment.WithLogger(log),
		assessment.WithMetrics(d.metrics),
		assessment.WithLocks(lock.NewManager(lockOpts...)),
		assessment.WithHandoffSink(d.dispatcher),
		assessment.WithSelectorOptions(selOpts...),
	)
	return d, nil
}
