// Package importer parses factor tables from XLSX and YAML files into
// entries ready for bulk import.
package importer

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/DuKro90/draftcraft/internal/model"
)

// XLSXOptions configures the XLSX parser. The expected columns are
// category, key, multiplier, with an optional fourth enabled column.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // number of header rows to skip
}

// ReadXLSX reads factor entries from an XLSX file. Every entry is assigned
// the given owner business ID; pass "" to import global defaults.
func ReadXLSX(path, businessID string, opts XLSXOptions) ([]model.FactorEntry, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var entries []model.FactorEntry
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}

		cells := rowToStrings(row)
		if len(cells) == 0 || cells[0] == "" {
			continue
		}
		if len(cells) < 3 {
			return nil, eris.Errorf("importer: row %d has %d columns, want at least 3", i+1, len(cells))
		}

		entry, err := buildEntry(cells[0], cells[1], cells[2], businessID)
		if err != nil {
			return nil, eris.Wrapf(err, "importer: row %d", i+1)
		}
		if len(cells) > 3 && cells[3] != "" {
			entry.Enabled = strings.EqualFold(cells[3], "true") || cells[3] == "1"
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// yamlFactorFile is the on-disk YAML layout: categories mapping keys to
// multipliers.
//
//	material:
//	  eiche: 1.3
//	surface:
//	  geoelt: 1.15
type yamlFactorFile struct {
	Material   map[string]string `yaml:"material"`
	Surface    map[string]string `yaml:"surface"`
	Complexity map[string]string `yaml:"complexity"`
}

// ReadYAML reads factor entries from a YAML file.
func ReadYAML(path, businessID string) ([]model.FactorEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: read yaml")
	}

	var file yamlFactorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "importer: parse yaml")
	}

	var entries []model.FactorEntry
	for category, keys := range map[model.FactorCategory]map[string]string{
		model.CategoryMaterial:   file.Material,
		model.CategorySurface:    file.Surface,
		model.CategoryComplexity: file.Complexity,
	} {
		for key, multiplier := range keys {
			entry, err := buildEntry(string(category), key, multiplier, businessID)
			if err != nil {
				return nil, eris.Wrapf(err, "importer: %s/%s", category, key)
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

func buildEntry(category, key, multiplier, businessID string) (model.FactorEntry, error) {
	cat := model.FactorCategory(strings.ToLower(strings.TrimSpace(category)))
	if !cat.Valid() {
		return model.FactorEntry{}, eris.Errorf("unknown category %q", category)
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return model.FactorEntry{}, eris.New("empty factor key")
	}

	m, err := decimal.NewFromString(strings.TrimSpace(multiplier))
	if err != nil {
		return model.FactorEntry{}, eris.Wrapf(err, "parse multiplier %q", multiplier)
	}
	if m.Sign() <= 0 {
		return model.FactorEntry{}, eris.Errorf("multiplier %s must be positive", m)
	}

	return model.FactorEntry{
		Category:        cat,
		Key:             key,
		Multiplier:      m,
		OwnerBusinessID: businessID,
		Enabled:         true,
	}, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("importer: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("importer: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
