package seo

import (
	"kahramana.bh/site/internal/site"
)

// Schema is a JSON-LD object. html/template marshals it to JSON inside
// <script type="application/ld+json">.
type Schema map[string]any

// Organization describes the brand.
func Organization(brand site.Brand, lang, logoURL string) Schema {
	m := Schema{
		"@context": "https://schema.org",
		"@type":    "Organization",
		"name":     brand.Name.In(lang),
	}
	if logoURL != "" {
		m["logo"] = logoURL
	}
	if digits := site.Digits(brand.WhatsApp); digits != "" {
		m["telephone"] = "+" + digits
	}
	return m
}

// Restaurant describes one branch. Hours are emitted only when configured.
func Restaurant(brand site.Brand, b site.Branch, lang, contactDigits string) Schema {
	m := Schema{
		"@context":           "https://schema.org",
		"@type":              "Restaurant",
		"@id":                "#" + b.ID,
		"name":               brand.Name.In(lang) + " " + b.Name.In(lang),
		"servesCuisine":      "Iraqi",
		"currenciesAccepted": "BHD",
		"address": Schema{
			"@type":           "PostalAddress",
			"addressCountry":  "BH",
			"addressLocality": b.Name.In(lang),
		},
	}
	if contactDigits != "" {
		m["telephone"] = "+" + contactDigits
	}
	if b.MapsURL != "" {
		m["hasMap"] = b.MapsURL
	}
	if b.Hours.Open != "" && b.Hours.Close != "" {
		m["openingHours"] = "Mo-Su " + b.Hours.Open + "-" + b.Hours.Close
	}
	return m
}
