package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/DuKro90/draftcraft/internal/explain"
)

var explainDeviation bool

var explainCmd = &cobra.Command{
	Use:   "explain <calculation-id>",
	Short: "Reconstruct the explanation for a stored calculation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.Store.GetResult(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		explanation, err := explain.Build(result)
		if err != nil {
			return err
		}

		out := map[string]any{"explanation": explanation}
		if explainDeviation {
			dev, err := e.Benchmark.ExplainDeviation(cmd.Context(), result)
			if err != nil {
				return err
			}
			out["deviation"] = dev
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return eris.Wrap(err, "encode explanation")
		}
		return nil
	},
}

func init() {
	explainCmd.Flags().BoolVar(&explainDeviation, "deviation", false, "include the deviation against historical calculations")
	rootCmd.AddCommand(explainCmd)
}
