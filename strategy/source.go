// Package strategy turns screener opportunities and open positions into
// PENDING signals.
package strategy

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Opportunity is a ranked buy candidate.
type Opportunity struct {
	Symbol  string   `yaml:"symbol"`
	Price   float64  `yaml:"price"`
	Score   float64  `yaml:"score"`
	Reasons []string `yaml:"reasons,omitempty"`
}

// Source supplies buy candidates, best first.
type Source interface {
	Opportunities(ctx context.Context) ([]Opportunity, error)
}

// StaticSource returns a fixed list.
type StaticSource []Opportunity

func (s StaticSource) Opportunities(context.Context) ([]Opportunity, error) {
	return rank(append([]Opportunity(nil), s...)), nil
}

// FileSource reads candidates from a YAML file on every call, so an
// external screener can rewrite it between scans.
//
//	opportunities:
//	  - symbol: AAPL
//	    price: 100
//	    score: 80
//	    reasons: ["P/E 12", "RSI 28"]
type FileSource struct {
	Path string
}

type opportunityFile struct {
	Opportunities []Opportunity `yaml:"opportunities"`
}

func (f FileSource) Opportunities(context.Context) ([]Opportunity, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read opportunities: %w", err)
	}

	var of opportunityFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return nil, fmt.Errorf("parse opportunities %s: %w", f.Path, err)
	}
	for i, o := range of.Opportunities {
		if o.Symbol == "" {
			return nil, fmt.Errorf("opportunities %s: entry %d has no symbol", f.Path, i)
		}
	}
	return rank(of.Opportunities), nil
}

func rank(ops []Opportunity) []Opportunity {
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Score > ops[j].Score })
	return ops
}
