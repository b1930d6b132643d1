package coa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("flattens parent first", func(t *testing.T) {
		tpl, err := Parse([]byte(`
name: tiny
accounts:
  - code: "1000"
    name: Assets
    children:
      - code: "1100"
        name: Cash
  - code: "4000"
    name: Revenue
`))
		require.NoError(t, err)
		assert.Equal(t, []Entry{
			{Code: "1000", Name: "Assets"},
			{Code: "1100", Name: "Cash", ParentCode: "1000"},
			{Code: "4000", Name: "Revenue"},
		}, tpl.Entries())
	})

	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "name: x\naccounts: []\n"},
		{"blank code", "name: x\naccounts:\n  - code: \" \"\n    name: A\n"},
		{"missing name", "name: x\naccounts:\n  - code: \"1\"\n"},
		{"duplicate code", "name: x\naccounts:\n  - code: \"1\"\n    name: A\n    children:\n      - code: \"1\"\n        name: B\n"},
		{"malformed", "accounts: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("builtin", func(t *testing.T) {
		assert.Contains(t, Builtin(), "standard")
		tpl, err := Load("standard")
		require.NoError(t, err)
		assert.Equal(t, "standard", tpl.Name)
		assert.Equal(t, "1000", tpl.Entries()[0].Code)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "chart.yaml")
		require.NoError(t, os.WriteFile(path, []byte("name: file\naccounts:\n  - code: \"9000\"\n    name: Suspense\n"), 0o600))
		tpl, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "file", tpl.Name)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
