package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/arxos/graphrules/internal/action"
	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/rule"
	"github.com/arxos/graphrules/internal/rulestorage"
)

func newUploadCmd(configPath *string) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "upload <file.dsl>",
		Short: "Validate and upload a DSL file, registering its actions/rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg, "upload")

			db, err := sqlx.Connect("postgres", cfg.Postgres.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			actions := action.NewRegistry()
			rules := rule.NewRegistry()
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

			if key == "" {
				key = args[0]
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ctx := context.Background()
			if err := loader.Upload(ctx, key, string(data)); err != nil {
				return err
			}
			fmt.Printf("uploaded %q: %d actions, %d rules registered\n", key, len(actions.All()), len(rules.All()))
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "storage key (defaults to the file path)")
	return cmd
}
