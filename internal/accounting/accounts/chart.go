package accounts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
)

// ChartNode is one account in a YAML chart file.
type ChartNode struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Type     Type   `yaml:"type"`
	Group    bool   `yaml:"group,omitempty"`
	Currency string `yaml:"currency,omitempty"`
}

// Chart is a YAML chart of accounts.
type Chart struct {
	Accounts []ChartNode `yaml:"accounts"`
}

//go:embed default_chart.yaml
var defaultChart []byte

// DefaultChart returns the built-in freight forwarding chart.
func DefaultChart() (Chart, error) {
	return LoadChart(bytes.NewReader(defaultChart))
}

// LoadChart parses a YAML chart and checks that every parent is declared.
func LoadChart(r io.Reader) (Chart, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var chart Chart
	if err := dec.Decode(&chart); err != nil && !errors.Is(err, io.EOF) {
		return Chart{}, fmt.Errorf("parsing chart: %w", err)
	}
	seen := make(map[string]ChartNode, len(chart.Accounts))
	for _, node := range chart.Accounts {
		if node.Code == "" || node.Name == "" {
			return Chart{}, fmt.Errorf("%w: chart entry missing code or name", shared.ErrInvalidHierarchy)
		}
		if !node.Type.Valid() {
			return Chart{}, fmt.Errorf("%w: %s has unknown type %q", shared.ErrInvalidHierarchy, node.Code, node.Type)
		}
		if _, dup := seen[node.Code]; dup {
			return Chart{}, fmt.Errorf("%w: duplicate code %s", shared.ErrInvalidHierarchy, node.Code)
		}
		seen[node.Code] = node
	}
	for _, node := range chart.Accounts {
		parent := ParentCode(node.Code)
		if parent == "" {
			continue
		}
		p, ok := seen[parent]
		if !ok {
			return Chart{}, fmt.Errorf("%w: %s has undeclared parent %s", shared.ErrInvalidHierarchy, node.Code, parent)
		}
		if !p.Group {
			return Chart{}, fmt.Errorf("%w: parent %s of %s is not a group", shared.ErrInvalidHierarchy, parent, node.Code)
		}
	}
	return chart, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrAccountNotFound)
}
