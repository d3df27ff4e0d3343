package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DuKro90/draftcraft/internal/importer"
	"github.com/DuKro90/draftcraft/internal/model"
)

var (
	factorBusiness    string
	factorImportSheet string
	factorImportSkip  int
)

var factorsCmd = &cobra.Command{
	Use:   "factors",
	Short: "Inspect and maintain the factor catalog",
}

var factorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enabled factors as resolved for a business",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		entries, err := e.Store.ListEnabledFactors(cmd.Context(), factorBusiness)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return eris.Wrap(err, "encode factors")
		}
		return nil
	},
}

var factorsSetCmd = &cobra.Command{
	Use:   "set <category> <key> <multiplier>",
	Short: "Create or replace a factor entry",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := model.FactorCategory(args[0])
		if !category.Valid() {
			return eris.Errorf("unknown factor category %q", args[0])
		}
		multiplier, err := decimal.NewFromString(args[2])
		if err != nil {
			return eris.Wrapf(err, "parse multiplier %q", args[2])
		}
		if multiplier.Sign() <= 0 {
			return eris.Errorf("multiplier %s must be positive", multiplier)
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		entry, err := e.Store.UpsertFactor(cmd.Context(), model.FactorEntry{
			Category:        category,
			Key:             args[1],
			Multiplier:      multiplier,
			OwnerBusinessID: factorBusiness,
			Enabled:         true,
		})
		if err != nil {
			return err
		}

		zap.L().Info("factor saved",
			zap.String("category", string(entry.Category)),
			zap.String("key", entry.Key),
			zap.String("tier", string(entry.Tier())))
		return nil
	},
}

var factorsDeleteCmd = &cobra.Command{
	Use:   "delete <category> <key>",
	Short: "Delete a factor entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := model.FactorCategory(args[0])
		if !category.Valid() {
			return eris.Errorf("unknown factor category %q", args[0])
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Store.DeleteFactor(cmd.Context(), factorBusiness, category, args[1]); err != nil {
			return err
		}

		zap.L().Info("factor deleted",
			zap.String("category", string(category)),
			zap.String("key", args[1]))
		return nil
	},
}

var factorsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Bulk-import a factor table from an XLSX or YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			entries []model.FactorEntry
			err     error
		)
		switch ext := strings.ToLower(filepath.Ext(args[0])); ext {
		case ".xlsx":
			entries, err = importer.ReadXLSX(args[0], factorBusiness, importer.XLSXOptions{
				SheetName: factorImportSheet,
				SkipRows:  factorImportSkip,
			})
		case ".yaml", ".yml":
			entries, err = importer.ReadYAML(args[0], factorBusiness)
		default:
			return eris.Errorf("unsupported file extension %q (want .xlsx, .yaml, or .yml)", ext)
		}
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return eris.Errorf("no factor entries found in %s", args[0])
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		imported, err := e.Store.ImportFactors(cmd.Context(), entries)
		if err != nil {
			return err
		}

		zap.L().Info("factors imported",
			zap.String("file", args[0]),
			zap.Int64("imported", imported))
		return nil
	},
}

func init() {
	factorsCmd.PersistentFlags().StringVar(&factorBusiness, "business", "", "business id ('' targets global defaults)")
	factorsImportCmd.Flags().StringVar(&factorImportSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	factorsImportCmd.Flags().IntVar(&factorImportSkip, "skip-rows", 1, "number of XLSX header rows to skip")

	factorsCmd.AddCommand(factorsListCmd)
	factorsCmd.AddCommand(factorsSetCmd)
	factorsCmd.AddCommand(factorsDeleteCmd)
	factorsCmd.AddCommand(factorsImportCmd)
	rootCmd.AddCommand(factorsCmd)
}
