// Package format renders aggregated numbers for display. Formatters are a
// closed set selected by name; nothing is compiled from configuration text.
package format

import (
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"gridengine/internal/config"
	"gridengine/pkg/records"
)

// Kinds understood by Format. Unknown kinds render as KindNumber.
const (
	KindNumber   = "number"
	KindInteger  = "integer"
	KindPercent  = "percent"
	KindCurrency = "currency"
	KindPlain    = "plain"
)

// Options selects how one value is rendered.
type Options struct {
	Kind      string
	Locale    string
	Currency  string // ISO 4217 code, used by KindCurrency
	Precision int    // fraction digits; negative means the default
}

// ForColumn returns the options carried by a column definition.
func ForColumn(c records.Column, locale string) Options {
	return Options{Kind: c.Format, Locale: locale, Currency: c.Currency, Precision: c.Precision}
}

// ForTotals returns the footer options; currency fields switch to
// KindCurrency when the footer names a currency.
func ForTotals(cfg config.Totals, currencyField bool) Options {
	o := Options{Kind: cfg.NumberFormat, Locale: cfg.Locale, Currency: cfg.Currency, Precision: cfg.Precision}
	if currencyField && cfg.Currency != "" {
		o.Kind = KindCurrency
	}
	return o
}

// Known reports whether kind is a supported formatter name.
func Known(kind string) bool {
	switch normalizeKind(kind) {
	case KindNumber, KindInteger, KindPercent, KindCurrency, KindPlain:
		return true
	}
	return false
}

func normalizeKind(kind string) string {
	k := strings.ToLower(strings.TrimSpace(kind))
	if k == "" {
		return KindNumber
	}
	return k
}

// Format renders v according to o.
func Format(v float64, o Options) string {
	prec := o.Precision
	if prec < 0 {
		prec = config.DefaultPrecision
	}
	p := message.NewPrinter(tag(o.Locale))

	switch normalizeKind(o.Kind) {
	case KindInteger:
		return p.Sprint(number.Decimal(v, number.Scale(0)))
	case KindPercent:
		return p.Sprint(number.Percent(v, number.Scale(prec)))
	case KindPlain:
		return strconv.FormatFloat(v, 'f', prec, 64)
	case KindCurrency:
		unit, err := currency.ParseISO(strings.TrimSpace(o.Currency))
		if err != nil {
			return p.Sprint(number.Decimal(v, number.Scale(prec)))
		}
		scale, _ := currency.Standard.Rounding(unit)
		return unit.String() + " " + p.Sprint(number.Decimal(v, number.Scale(scale)))
	default:
		return p.Sprint(number.Decimal(v, number.Scale(prec)))
	}
}

// Value renders any cell value: numbers go through Format, everything else
// through records.String.
func Value(v any, o Options) string {
	if f, ok := records.Float(v); ok {
		return Format(f, o)
	}
	return records.String(v)
}

func tag(locale string) language.Tag {
	if strings.TrimSpace(locale) == "" {
		return language.English
	}
	t, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	return t
}
