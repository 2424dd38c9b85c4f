// Package format renders money and dates for templates and order messages.
package format

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyCode is printed after every amount in both locales.
const CurrencyCode = "BHD"

// BHD formats an amount with three fractional digits, Latin digits and no grouping.
// Example: BHD(decimal.RequireFromString("3")) => "3.000"
func BHD(amount decimal.Decimal) string {
	return amount.StringFixed(3)
}

// Price appends the currency code: "3.000 BHD".
func Price(amount decimal.Decimal) string {
	return BHD(amount) + " " + CurrencyCode
}

var arabicMonths = [...]string{
	"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو",
	"يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر",
}

// Date formats t in a locale-friendly long form.
func Date(t time.Time, lang string) string {
	if t.IsZero() {
		return ""
	}
	switch strings.ToLower(lang) {
	case "ar":
		return t.Format("2") + " " + arabicMonths[t.Month()-1] + " " + t.Format("2006")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// Hours renders an opening window such as "12:00 – 01:00".
func Hours(opens, closes string) string {
	opens, closes = strings.TrimSpace(opens), strings.TrimSpace(closes)
	if opens == "" || closes == "" {
		return ""
	}
	return opens + " – " + closes
}
