package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/arxos/graphrules/internal/action"
	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/cache"
	"github.com/arxos/graphrules/internal/eval"
	"github.com/arxos/graphrules/internal/event"
	"github.com/arxos/graphrules/internal/graph"
	"github.com/arxos/graphrules/internal/grmetrics"
	"github.com/arxos/graphrules/internal/rule"
	"github.com/arxos/graphrules/internal/rulestorage"
	"github.com/arxos/graphrules/internal/translate"
	"github.com/prometheus/client_golang/prometheus"
)

func newWatchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Load stored DSL sources and keep them hot-reloading from the configured watch directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg, "watch")
			if cfg.DSL.WatchDir == "" {
				return fmt.Errorf("dsl.watch_dir is not configured")
			}

			db, err := sqlx.Connect("postgres", cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			defer db.Close()
			store := graph.NewPostgresStore(db)

			actions := action.NewRegistry()
			rules := rule.NewRegistry()
			emitter := event.NewEmitter()
			sourceStore := postgresSourceStore{store: db}

			compileCache, err := cache.New(cfg.Cache.NumCounters, cfg.Cache.MaxCost)
			if err != nil {
				return err
			}
			defer compileCache.Close()

			loader := rulestorage.NewLoader(sourceStore, log,
				func(defs []ast.ActionDef) {
					for _, d := range defs {
						actions.Register(d)
					}
				},
				func(defs []ast.RuleDef) {
					for _, d := range defs {
						if err := rules.Register(d); err != nil {
							log.Warn("duplicate rule name", "name", d.Name, "error", err)
						}
					}
				},
			).WithCache(compileCache)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := loader.LoadAll(ctx); err != nil {
				return err
			}

			metrics := grmetrics.New()
			if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
				log.Warn("metrics already registered", "error", err)
			}

			t := translate.New()
			evaluator := eval.New(t)
			executor := action.NewExecutor(actions, evaluator, emitter).WithMetrics(metrics)
			engine := rule.NewEngine(rules, executor, store, t, evaluator, log, cfg.RuleEngine.MaxCascadeDepth).WithMetrics(metrics)
			if err := emitter.Subscribe("rule-engine", engine.OnEvent); err != nil {
				return err
			}

			watcher := rulestorage.NewWatcher(cfg.DSL.WatchDir, loader, log)
			log.Info("watching for DSL changes", "dir", cfg.DSL.WatchDir)
			err = watcher.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}
