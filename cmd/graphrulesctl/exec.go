package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/arxos/graphrules/internal/action"
	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/eval"
	"github.com/arxos/graphrules/internal/event"
	"github.com/arxos/graphrules/internal/graph"
	"github.com/arxos/graphrules/internal/grlog"
	"github.com/arxos/graphrules/internal/grmetrics"
	"github.com/arxos/graphrules/internal/rule"
	"github.com/arxos/graphrules/internal/rulestorage"
	"github.com/arxos/graphrules/internal/translate"
	"github.com/prometheus/client_golang/prometheus"
)

func newExecCmd(configPath *string) *cobra.Command {
	var entityName, entityType, actionName, paramsJSON string
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run a single registered action against one entity, firing any reactive rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg, "exec")

			db, err := sqlx.Connect("postgres", cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			defer db.Close()
			store := graph.NewPostgresStore(db)

			ctx := context.Background()
			actions, rules, emitter, err := loadRuleSet(ctx, db, log)
			if err != nil {
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

			entity, err := store.GetEntityByName(ctx, entityName, entityType)
			if err != nil {
				return err
			}
			if entity == nil {
				return fmt.Errorf("entity %q of type %q not found", entityName, entityType)
			}

			var params map[string]any
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("invalid --params JSON: %w", err)
				}
			}

			result, err := executor.Execute(ctx, store, entity.EntityType, actionName, entity, params)
			if err != nil {
				return err
			}
			if !result.Success {
				fmt.Printf("precondition %q failed: %s\n", result.FailedPrecondition, result.FailureMessage)
				return nil
			}
			fmt.Printf("ok: %d properties changed\n", len(result.Changes))
			return nil
		},
	}
	cmd.Flags().StringVar(&entityName, "entity", "", "entity name")
	cmd.Flags().StringVar(&entityType, "type", "", "entity type")
	cmd.Flags().StringVar(&actionName, "action", "", "action name")
	cmd.Flags().StringVar(&paramsJSON, "params", "", "JSON object of action parameters")
	return cmd
}

// loadRuleSet reads every stored DSL document and registers its actions
// and rules into fresh registries wired to a fresh event emitter. Shared
// by the exec, batch and watch subcommands so each run reflects whatever
// was most recently uploaded.
func loadRuleSet(ctx context.Context, db *sqlx.DB, log *grlog.Logger) (*action.Registry, *rule.Registry, *event.Emitter, error) {
	actions := action.NewRegistry()
	rules := rule.NewRegistry()
	emitter := event.NewEmitter()
	sourceStore := postgresSourceStore{store: db}

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
	)
	if err := loader.LoadAll(ctx); err != nil {
		return nil, nil, nil, err
	}
	return actions, rules, emitter, nil
}
