// Package seo builds page metadata and schema.org structured data for the site pages.
package seo

import (
	"net/url"
	"strings"
)

type OpenGraph struct {
	Title       string
	Description string
	Image       string
	Type        string
	Locale      string
}

// Alternate is one hreflang link.
type Alternate struct {
	Lang string
	URL  string
}

type Meta struct {
	Title       string
	Description string
	Canonical   string
	Alternates  []Alternate
	OG          OpenGraph
}

// NewMeta fills the page metadata for path rendered in lang. Alternates point at the same
// path with an hl override for every supported language.
func NewMeta(title, description, image, path, lang string, langs []string) Meta {
	m := Meta{
		Title:       title,
		Description: description,
		Canonical:   withLang(path, lang),
		OG: OpenGraph{
			Title:       title,
			Description: description,
			Image:       image,
			Type:        "website",
			Locale:      ogLocale(lang),
		},
	}
	for _, l := range langs {
		m.Alternates = append(m.Alternates, Alternate{Lang: l, URL: withLang(path, l)})
	}
	return m
}

func withLang(path, lang string) string {
	if path == "" {
		path = "/"
	}
	if lang == "" {
		return path
	}
	return path + "?hl=" + url.QueryEscape(lang)
}

func ogLocale(lang string) string {
	switch strings.ToLower(lang) {
	case "ar":
		return "ar_BH"
	case "en":
		return "en_US"
	default:
		return lang
	}
}
