package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DuKro90/draftcraft/internal/model"
	"github.com/DuKro90/draftcraft/internal/rule"
)

var (
	ruleBusiness      string
	ruleMode          string
	ruleUnit          string
	ruleConditionFile string
	ruleGlobal        bool
	ruleDisabled      bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and maintain pauschale rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active rules resolved for a business",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		rules, err := e.Store.ListActiveRules(cmd.Context(), ruleBusiness)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rules); err != nil {
			return eris.Wrap(err, "encode rules")
		}
		return nil
	},
}

var rulesAddCmd = &cobra.Command{
	Use:   "add <kind> <amount>",
	Short: "Create a pauschale rule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := decimal.NewFromString(args[1])
		if err != nil {
			return eris.Wrapf(err, "parse amount %q", args[1])
		}

		r := model.PauschaleRule{
			BusinessID:    ruleBusiness,
			Kind:          model.RuleKind(args[0]),
			Mode:          model.RuleMode(ruleMode),
			Amount:        amount,
			Unit:          ruleUnit,
			GlobalDefault: ruleGlobal,
			Enabled:       !ruleDisabled,
		}

		if ruleConditionFile != "" {
			data, err := os.ReadFile(ruleConditionFile)
			if err != nil {
				return eris.Wrapf(err, "read condition %s", ruleConditionFile)
			}
			cond, err := rule.ParseJSON(data, ruleLimits())
			if err != nil {
				return err
			}
			r.Condition = cond
		}

		if err := r.Validate(); err != nil {
			return err
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		saved, err := e.Store.UpsertRule(cmd.Context(), r)
		if err != nil {
			return err
		}

		zap.L().Info("rule saved",
			zap.String("id", saved.ID),
			zap.String("kind", string(saved.Kind)),
			zap.String("mode", string(saved.Mode)))
		return nil
	},
}

func init() {
	rulesCmd.PersistentFlags().StringVar(&ruleBusiness, "business", "", "business id ('' targets global defaults)")
	rulesAddCmd.Flags().StringVar(&ruleMode, "mode", string(model.ModeFixed), "rule mode: fixed, per_unit, percent, conditional")
	rulesAddCmd.Flags().StringVar(&ruleUnit, "unit", "", "context field multiplied for per_unit rules")
	rulesAddCmd.Flags().StringVar(&ruleConditionFile, "condition", "", "JSON file holding the condition tree for conditional rules")
	rulesAddCmd.Flags().BoolVar(&ruleGlobal, "global", false, "mark the rule as a tier-1 global default")
	rulesAddCmd.Flags().BoolVar(&ruleDisabled, "disabled", false, "create the rule disabled")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rootCmd.AddCommand(rulesCmd)
}
