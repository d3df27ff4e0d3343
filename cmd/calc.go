package main

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/DuKro90/draftcraft/internal/engine"
	"github.com/DuKro90/draftcraft/internal/explain"
)

var (
	calcInput     string
	calcExplain   bool
	calcNoPersist bool
)

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Run a calculation from a JSON request file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(calcInput)
		if err != nil {
			return eris.Wrapf(err, "read request %s", calcInput)
		}

		var req engine.Request
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			return eris.Wrap(err, "decode request")
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.Engine.Calculate(cmd.Context(), req)
		if err != nil {
			return err
		}

		if !calcNoPersist {
			if err := e.Store.SaveResult(cmd.Context(), result); err != nil {
				return err
			}
		}

		out := map[string]any{"result": result}
		if calcExplain {
			explanation, err := explain.Build(result)
			if err != nil {
				return err
			}
			out["explanation"] = explanation
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return eris.Wrap(err, "encode result")
		}
		return nil
	},
}

func init() {
	calcCmd.Flags().StringVarP(&calcInput, "input", "i", "", "JSON request file (required)")
	calcCmd.Flags().BoolVar(&calcExplain, "explain", false, "include the calculation explanation")
	calcCmd.Flags().BoolVar(&calcNoPersist, "no-persist", false, "do not store the result")
	_ = calcCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(calcCmd)
}
