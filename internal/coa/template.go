// Package coa loads chart-of-accounts templates. A template is a YAML tree
// of accounts; Entries flattens it parent-first so each account can be
// created after its parent.
package coa

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledgerbook/backend/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var builtin embed.FS

type Template struct {
	Name     string `yaml:"name"`
	Accounts []Node `yaml:"accounts"`
}

type Node struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Children []Node `yaml:"children,omitempty"`
}

// Entry is one account of a flattened template. ParentCode is empty for
// roots.
type Entry struct {
	Code       string
	Name       string
	ParentCode string
}

// Parse decodes and validates a template.
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode chart template: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Load resolves name as a built-in template first, then as a file path.
func Load(name string) (*Template, error) {
	if data, err := builtin.ReadFile("templates/" + name + ".yaml"); err == nil {
		return Parse(data)
	}
	data, err := os.ReadFile(filepath.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("read chart template: %w", err)
	}
	return Parse(data)
}

// Builtin lists the names of the embedded templates.
func Builtin() []string {
	files, _ := builtin.ReadDir("templates")
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, strings.TrimSuffix(f.Name(), ".yaml"))
	}
	return names
}

// Validate checks codes and names against the account limits and rejects
// duplicate codes.
func (t *Template) Validate() error {
	if len(t.Accounts) == 0 {
		return fmt.Errorf("chart template %q has no accounts", t.Name)
	}
	seen := make(map[string]bool)
	for _, e := range t.Entries() {
		switch {
		case strings.TrimSpace(e.Code) == "":
			return fmt.Errorf("chart template %q: account code is required", t.Name)
		case len(e.Code) > models.MaxAccountCodeLength:
			return fmt.Errorf("chart template %q: code %q is too long", t.Name, e.Code)
		case strings.TrimSpace(e.Name) == "":
			return fmt.Errorf("chart template %q: account %s needs a name", t.Name, e.Code)
		case len(e.Name) > models.MaxAccountNameLength:
			return fmt.Errorf("chart template %q: name of %s is too long", t.Name, e.Code)
		case seen[e.Code]:
			return fmt.Errorf("chart template %q: duplicate code %s", t.Name, e.Code)
		}
		seen[e.Code] = true
	}
	return nil
}

// Entries returns the accounts in depth-first, parent-first order.
func (t *Template) Entries() []Entry {
	var out []Entry
	var walk func(nodes []Node, parent string)
	walk = func(nodes []Node, parent string) {
		for _, n := range nodes {
			out = append(out, Entry{Code: n.Code, Name: n.Name, ParentCode: parent})
			walk(n.Children, n.Code)
		}
	}
	walk(t.Accounts, "")
	return out
}
