package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/arxos/graphrules/internal/action"
	"github.com/arxos/graphrules/internal/batch"
	"github.com/arxos/graphrules/internal/batchui"
	"github.com/arxos/graphrules/internal/eval"
	"github.com/arxos/graphrules/internal/graph"
	"github.com/arxos/graphrules/internal/grmetrics"
	"github.com/arxos/graphrules/internal/rule"
	"github.com/arxos/graphrules/internal/translate"
)

// batchTaskSpec is one line of a batch job file: fire Action against the
// named entity with Params, reporting as task ID.
type batchTaskSpec struct {
	ID     string         `json:"id"`
	Entity string         `json:"entity"`
	Type   string         `json:"type"`
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

func newBatchCmd(configPath *string) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "batch <tasks.json>",
		Short: "Run a batch of actions concurrently, reporting live progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg, "batch")

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

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var specs []batchTaskSpec
			if err := json.Unmarshal(data, &specs); err != nil {
				return fmt.Errorf("invalid batch task file: %w", err)
			}

			tasks := make([]batch.Task, len(specs))
			for i, spec := range specs {
				spec := spec
				tasks[i] = batch.Task{
					ID: spec.ID,
					Run: func(taskCtx context.Context) (any, error) {
						entity, err := store.GetEntityByName(taskCtx, spec.Entity, spec.Type)
						if err != nil {
							return nil, err
						}
						if entity == nil {
							return nil, fmt.Errorf("entity %q of type %q not found", spec.Entity, spec.Type)
						}
						result, err := executor.Execute(taskCtx, store, entity.EntityType, spec.Action, entity, spec.Params)
						if err != nil {
							return nil, err
						}
						if !result.Success {
							return nil, fmt.Errorf("precondition %q failed: %s", result.FailedPrecondition, result.FailureMessage)
						}
						return result, nil
					},
				}
			}

			bx := batch.NewExecutor(cfg.Batch.Concurrency, cfg.Batch.RatePerSecond, cfg.Batch.Burst, cfg.PerTaskTimeout()).WithMetrics(metrics)

			if quiet {
				result := bx.Run(ctx, tasks, nil)
				fmt.Printf("%d/%d succeeded in %s\n", result.Succeeded, result.Total, result.Duration)
				return nil
			}

			model := batchui.NewModel(len(tasks), 30)
			program := tea.NewProgram(model)
			model.Attach(program)

			go func() {
				result := bx.Run(ctx, tasks, model.Feed)
				model.Done(result)
			}()

			_, err = program.Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress the live progress bar, print only the summary")
	return cmd
}
