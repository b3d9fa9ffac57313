package category

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Supported languages. English is the fallback.
var supported = []language.Tag{
	language.English,
	language.French,
	language.Spanish,
	language.Portuguese,
	language.German,
}

// translations maps an English catalog key to its translations.
var translations = map[string]map[language.Tag]string{
	"Derived": {
		language.French: "Dérivés", language.Spanish: "Derivados",
		language.Portuguese: "Derivados", language.German: "Abgeleitete",
	},
	"Forex": {
		language.French: "Forex", language.Spanish: "Forex",
		language.Portuguese: "Forex", language.German: "Devisen",
	},
	"Stock Indices": {
		language.French: "Indices boursiers", language.Spanish: "Índices bursátiles",
		language.Portuguese: "Índices de ações", language.German: "Aktienindizes",
	},
	"Cryptocurrencies": {
		language.French: "Cryptomonnaies", language.Spanish: "Criptomonedas",
		language.Portuguese: "Criptomoedas", language.German: "Kryptowährungen",
	},
	"Commodities": {
		language.French: "Matières premières", language.Spanish: "Materias primas",
		language.Portuguese: "Commodities", language.German: "Rohstoffe",
	},
	"Stocks": {
		language.French: "Actions", language.Spanish: "Acciones",
		language.Portuguese: "Ações", language.German: "Aktien",
	},
	"Continuous Indices": {
		language.French: "Indices continus", language.Spanish: "Índices continuos",
		language.Portuguese: "Índices contínuos", language.German: "Kontinuierliche Indizes",
	},
	"Daily Reset Indices": {
		language.French: "Indices à réinitialisation quotidienne", language.Spanish: "Índices de reinicio diario",
		language.Portuguese: "Índices de reinício diário", language.German: "Täglich zurückgesetzte Indizes",
	},
	"Crash/Boom Indices": {
		language.French: "Indices Crash/Boom", language.Spanish: "Índices Crash/Boom",
		language.Portuguese: "Índices Crash/Boom", language.German: "Crash/Boom-Indizes",
	},
	"Jump Indices": {
		language.French: "Indices Jump", language.Spanish: "Índices Jump",
		language.Portuguese: "Índices Jump", language.German: "Jump-Indizes",
	},
	"Step Indices": {
		language.French: "Indices Step", language.Spanish: "Índices Step",
		language.Portuguese: "Índices Step", language.German: "Step-Indizes",
	},
	"Range Break Indices": {
		language.French: "Indices Range Break", language.Spanish: "Índices Range Break",
		language.Portuguese: "Índices Range Break", language.German: "Range-Break-Indizes",
	},
	"Major Pairs": {
		language.French: "Paires majeures", language.Spanish: "Pares mayores",
		language.Portuguese: "Pares principais", language.German: "Hauptpaare",
	},
	"Minor Pairs": {
		language.French: "Paires mineures", language.Spanish: "Pares menores",
		language.Portuguese: "Pares secundários", language.German: "Nebenpaare",
	},
	"Exotic Pairs": {
		language.French: "Paires exotiques", language.Spanish: "Pares exóticos",
		language.Portuguese: "Pares exóticos", language.German: "Exotische Paare",
	},
	"Asian indices": {
		language.French: "Indices asiatiques", language.Spanish: "Índices asiáticos",
		language.Portuguese: "Índices asiáticos", language.German: "Asiatische Indizes",
	},
	"European indices": {
		language.French: "Indices européens", language.Spanish: "Índices europeos",
		language.Portuguese: "Índices europeus", language.German: "Europäische Indizes",
	},
	"American indices": {
		language.French: "Indices américains", language.Spanish: "Índices americanos",
		language.Portuguese: "Índices americanos", language.German: "Amerikanische Indizes",
	},
	"Metals": {
		language.French: "Métaux", language.Spanish: "Metales",
		language.Portuguese: "Metais", language.German: "Metalle",
	},
	"Energy": {
		language.French: "Énergie", language.Spanish: "Energía",
		language.Portuguese: "Energia", language.German: "Energie",
	},
	"Volatility %s Index": {
		language.French: "Indice de volatilité %s", language.Spanish: "Índice de volatilidad %s",
		language.Portuguese: "Índice de volatilidade %s", language.German: "Volatilitätsindex %s",
	},
	"Volatility %s (1s) Index": {
		language.French: "Indice de volatilité %s (1s)", language.Spanish: "Índice de volatilidad %s (1s)",
		language.Portuguese: "Índice de volatilidade %s (1s)", language.German: "Volatilitätsindex %s (1s)",
	},
	"Crash %s Index": {
		language.French: "Indice Crash %s", language.Spanish: "Índice Crash %s",
		language.Portuguese: "Índice Crash %s", language.German: "Crash %s Index",
	},
	"Boom %s Index": {
		language.French: "Indice Boom %s", language.Spanish: "Índice Boom %s",
		language.Portuguese: "Índice Boom %s", language.German: "Boom %s Index",
	},
	"Jump %s Index": {
		language.French: "Indice Jump %s", language.Spanish: "Índice Jump %s",
		language.Portuguese: "Índice Jump %s", language.German: "Jump %s Index",
	},
	"Step Index": {
		language.French: "Indice Step", language.Spanish: "Índice Step",
		language.Portuguese: "Índice Step", language.German: "Step-Index",
	},
	"Bull Market Index": {
		language.French: "Indice du marché haussier", language.Spanish: "Índice de mercado alcista",
		language.Portuguese: "Índice de mercado em alta", language.German: "Bullenmarkt-Index",
	},
	"Bear Market Index": {
		language.French: "Indice du marché baissier", language.Spanish: "Índice de mercado bajista",
		language.Portuguese: "Índice de mercado em baixa", language.German: "Bärenmarkt-Index",
	},
	"Gold/USD": {
		language.French: "Or/USD", language.Spanish: "Oro/USD",
		language.Portuguese: "Ouro/USD", language.German: "Gold/USD",
	},
	"Silver/USD": {
		language.French: "Argent/USD", language.Spanish: "Plata/USD",
		language.Portuguese: "Prata/USD", language.German: "Silber/USD",
	},
}

// Localizer resolves display names for a requested language.
type Localizer struct {
	catalog *catalog.Builder
	matcher language.Matcher
}

// NewLocalizer builds the message catalog.
func NewLocalizer() *Localizer {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, byLang := range translations {
		b.SetString(language.English, key, key)
		for tag, msg := range byLang {
			b.SetString(tag, key, msg)
		}
	}

	return &Localizer{
		catalog: b,
		matcher: language.NewMatcher(supported),
	}
}

// Match returns the supported language closest to lang, which may be a
// bare code ("fr"), a region tag ("pt-BR") or an Accept-Language header.
func (l *Localizer) Match(lang string) language.Tag {
	if lang == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(lang)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, conf := l.matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Printer returns a message printer for lang.
func (l *Localizer) Printer(lang string) *message.Printer {
	return message.NewPrinter(l.Match(lang), message.Catalog(l.catalog))
}

// Languages lists the supported language codes.
func (l *Localizer) Languages() []string {
	out := make([]string, len(supported))
	for i, tag := range supported {
		out[i] = tag.String()
	}
	return out
}
