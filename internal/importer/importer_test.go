package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/DuKro90/draftcraft/internal/model"
)

func writeXLSX(t *testing.T, rows [][]string) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Faktoren")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}

	path := filepath.Join(t.TempDir(), "factors.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	t.Parallel()

	path := writeXLSX(t, [][]string{
		{"category", "key", "multiplier", "enabled"},
		{"material", "eiche", "1.3", "true"},
		{"surface", "geoelt", "1.15", ""},
		{"complexity", "hoch", "1.5", "false"},
	})

	entries, err := ReadXLSX(path, "b-1", XLSXOptions{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, model.CategoryMaterial, entries[0].Category)
	assert.Equal(t, "eiche", entries[0].Key)
	assert.Equal(t, "1.3", entries[0].Multiplier.String())
	assert.Equal(t, "b-1", entries[0].OwnerBusinessID)
	assert.True(t, entries[0].Enabled)

	assert.True(t, entries[1].Enabled, "empty enabled column defaults to true")
	assert.False(t, entries[2].Enabled)
}

func TestReadXLSX_RejectsBadRows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rows [][]string
	}{
		{"unknown category", [][]string{{"finish", "matt", "1.1"}}},
		{"bad multiplier", [][]string{{"material", "eiche", "viel"}}},
		{"negative multiplier", [][]string{{"material", "eiche", "-1.3"}}},
		{"too few columns", [][]string{{"material", "eiche"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeXLSX(t, tt.rows)
			_, err := ReadXLSX(path, "", XLSXOptions{})
			assert.Error(t, err)
		})
	}
}

func TestReadYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "factors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
material:
  eiche: "1.3"
  buche: "1.1"
surface:
  geoelt: "1.15"
`), 0o644))

	entries, err := ReadYAML(path, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byKey := make(map[string]model.FactorEntry)
	for _, e := range entries {
		byKey[e.Key] = e
		assert.Empty(t, e.OwnerBusinessID)
		assert.True(t, e.Enabled)
	}
	assert.Equal(t, "1.3", byKey["eiche"].Multiplier.String())
	assert.Equal(t, model.CategorySurface, byKey["geoelt"].Category)
}

func TestReadYAML_BadMultiplier(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "factors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("material:\n  eiche: teuer\n"), 0o644))

	_, err := ReadYAML(path, "")
	assert.Error(t, err)
}
