package category

import (
	"slices"
	"strings"

	"github.com/rickgao/botcharts/internal/model"
)

// Option is one dropdown entry.
type Option struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

// MarketOptions lists the markets that have at least one non-suspended
// symbol, in the fixed market order. Unknown markets follow, by name.
func (l *Localizer) MarketOptions(symbols []model.ActiveSymbol, lang string) []Option {
	p := l.Printer(lang)

	seen := make(map[string]struct{})
	var opts []Option
	for _, s := range symbols {
		if s.IsTradingSuspended || s.Market == "" {
			continue
		}
		if _, ok := seen[s.Market]; ok {
			continue
		}
		seen[s.Market] = struct{}{}
		opts = append(opts, Option{Text: lookup(p, marketNames, s.Market), Value: s.Market})
	}

	slices.SortStableFunc(opts, func(a, b Option) int {
		ra, rb := marketRank(a.Value), marketRank(b.Value)
		if ra != rb {
			return ra - rb
		}
		return strings.Compare(a.Text, b.Text)
	})
	return opts
}

// SubmarketOptions lists the submarkets of market, sorted by display name.
func (l *Localizer) SubmarketOptions(symbols []model.ActiveSymbol, market, lang string) []Option {
	p := l.Printer(lang)

	seen := make(map[string]struct{})
	var opts []Option
	for _, s := range symbols {
		if s.IsTradingSuspended || s.Market != market || s.Submarket == "" {
			continue
		}
		if _, ok := seen[s.Submarket]; ok {
			continue
		}
		seen[s.Submarket] = struct{}{}
		opts = append(opts, Option{Text: lookup(p, submarketNames, s.Submarket), Value: s.Submarket})
	}

	sortByText(opts)
	return opts
}

// SymbolOptions lists the symbols of submarket, sorted by display name.
func (l *Localizer) SymbolOptions(symbols []model.ActiveSymbol, submarket, lang string) []Option {
	p := l.Printer(lang)

	var opts []Option
	for _, s := range symbols {
		if s.IsTradingSuspended || s.Submarket != submarket {
			continue
		}
		opts = append(opts, Option{Text: symbolName(p, s.Symbol), Value: s.Symbol})
	}

	sortByText(opts)
	return opts
}

func marketRank(code string) int {
	if i := slices.Index(marketOrder, code); i >= 0 {
		return i
	}
	return len(marketOrder)
}

func sortByText(opts []Option) {
	slices.SortStableFunc(opts, func(a, b Option) int {
		return strings.Compare(a.Text, b.Text)
	})
}
