package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/parser"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file.dsl>",
		Short: "Parse a DSL file and report syntax errors without uploading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			defs, err := parser.Parse(string(data))
			if err != nil {
				return err
			}
			var actions, rules int
			for _, d := range defs {
				switch d.(type) {
				case ast.ActionDef:
					actions++
				case ast.RuleDef:
					rules++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "parsed %d definitions (%d actions, %d rules)\n", len(defs), actions, rules)
			return nil
		},
	}
}
