// Package clean turns raw spreadsheet-export cells into usable values. The
// uploaded files arrive with currency symbols, thousands separators,
// accounting-style negatives and stray whitespace in both cells and headers;
// everything here is best-effort and total: a malformed cell becomes zero,
// never an error.
package clean

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const currencySymbols = "$€£"

// Amount converts one raw cell into a money value.
//
// Already-numeric inputs pass through untouched. Strings go through, in
// order: trim, accounting-negative rewrite ("$(1,234.56)" -> -1234.56),
// blank-dash sentinel ("$-", "$---" -> 0), currency/comma/quote stripping,
// then decimal parsing. Anything that still fails to parse resolves to zero.
func Amount(v any) decimal.Decimal {
	switch n := v.(type) {
	case decimal.Decimal:
		return n
	case float64:
		return decimal.NewFromFloat(n)
	case float32:
		return decimal.NewFromFloat32(n)
	case int:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case nil:
		return decimal.Zero
	case string:
		return amountFromString(n)
	default:
		return amountFromString(fmt.Sprint(v))
	}
}

// Units is Amount truncated to a whole count, for quantity columns that
// exporters still format as "2,500.00".
func Units(v any) int64 {
	return Amount(v).IntPart()
}

func amountFromString(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero
	}
	if isBlankDash(s) {
		return decimal.Zero
	}
	if inner, ok := accountingNegative(s); ok {
		s = "-" + inner
	}
	s = stripMarks(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// accountingNegative recognizes a currency prefix wrapping a parenthesized
// magnitude, e.g. "$(1,234.56)". Anything that does not match exactly falls
// through to generic parsing.
func accountingNegative(s string) (string, bool) {
	rest, ok := trimCurrency(s)
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '(' || rest[len(rest)-1] != ')' {
		return "", false
	}
	return strings.TrimSpace(rest[1 : len(rest)-1]), true
}

// isBlankDash reports whether the cell is a currency symbol followed only by
// dashes, the "no value" sentinel accountants leave in exported sheets.
func isBlankDash(s string) bool {
	rest, ok := trimCurrency(s)
	if !ok {
		return false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return false
	}
	for _, r := range rest {
		if r != '-' {
			return false
		}
	}
	return true
}

func trimCurrency(s string) (string, bool) {
	for _, sym := range currencySymbols {
		if strings.HasPrefix(s, string(sym)) {
			return s[len(string(sym)):], true
		}
	}
	return s, false
}

func stripMarks(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(currencySymbols, r):
			return -1
		case r == ',' || r == '"' || r == '\'':
			return -1
		case r == ' ':
			return -1
		}
		return r
	}, s)
}

// Text trims a categorical cell. Exporters pad these the same way they pad
// headers.
func Text(s string) string {
	return strings.TrimSpace(s)
}

// Header normalizes a raw column header for matching against the expected
// column table: trim, collapse internal whitespace runs, case-fold. "  Units
// Sold " and "UNITS  SOLD" both resolve to "units sold".
func Header(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
