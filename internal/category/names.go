package category

import (
	"golang.org/x/text/message"
)

var defaultLocalizer = NewLocalizer()

// Default returns the shared Localizer.
func Default() *Localizer {
	return defaultLocalizer
}

// MarketDisplayName returns the English name of a market code, or the code
// itself when unknown.
func MarketDisplayName(code string) string {
	return defaultLocalizer.MarketDisplayName("en", code)
}

// SubmarketDisplayName returns the English name of a submarket code, or the
// code itself when unknown.
func SubmarketDisplayName(code string) string {
	return defaultLocalizer.SubmarketDisplayName("en", code)
}

// SymbolDisplayName returns the English name of a symbol.
func SymbolDisplayName(symbol string) string {
	return defaultLocalizer.SymbolDisplayName("en", symbol)
}

// MarketDisplayName returns the localised name of a market code.
func (l *Localizer) MarketDisplayName(lang, code string) string {
	return lookup(l.Printer(lang), marketNames, code)
}

// SubmarketDisplayName returns the localised name of a submarket code.
func (l *Localizer) SubmarketDisplayName(lang, code string) string {
	return lookup(l.Printer(lang), submarketNames, code)
}

// SymbolDisplayName returns the localised name of a symbol: the static
// table first, then the pattern table, then the symbol itself.
func (l *Localizer) SymbolDisplayName(lang, symbol string) string {
	return symbolName(l.Printer(lang), symbol)
}

func lookup(p *message.Printer, table map[string]string, code string) string {
	name, ok := table[code]
	if !ok {
		return code
	}
	return p.Sprintf(name)
}

func symbolName(p *message.Printer, symbol string) string {
	if name, ok := symbolNames[symbol]; ok {
		return p.Sprintf(name)
	}

	for _, sp := range symbolPatterns {
		m := sp.re.FindStringSubmatch(symbol)
		if m == nil {
			continue
		}
		args := make([]any, len(m)-1)
		for i, s := range m[1:] {
			args[i] = s
		}
		return p.Sprintf(sp.format, args...)
	}

	return symbol
}
