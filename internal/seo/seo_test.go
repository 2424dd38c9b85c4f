package seo

import (
	"testing"

	"kahramana.bh/site/internal/site"
)

func TestNewMetaAlternates(t *testing.T) {
	m := NewMeta("Menu", "desc", "/assets/brand/logo.webp", "/menu", "ar", []string{"ar", "en"})
	if m.Canonical != "/menu?hl=ar" {
		t.Fatalf("unexpected canonical %q", m.Canonical)
	}
	if len(m.Alternates) != 2 || m.Alternates[1].URL != "/menu?hl=en" {
		t.Fatalf("unexpected alternates %+v", m.Alternates)
	}
	if m.OG.Locale != "ar_BH" {
		t.Fatalf("unexpected og locale %q", m.OG.Locale)
	}
}

func TestRestaurantSchema(t *testing.T) {
	catalog := site.Default()
	b, ok := catalog.Branch("riffa-hajiyat")
	if !ok {
		t.Fatal("expected default branch")
	}
	s := Restaurant(catalog.Brand(), b, "en", catalog.ContactDigits(b.ID))
	if s["@type"] != "Restaurant" {
		t.Fatalf("unexpected type %v", s["@type"])
	}
	if s["telephone"] != "+97317131413" {
		t.Fatalf("unexpected telephone %v", s["telephone"])
	}
	if s["openingHours"] != "Mo-Su 12:00-01:00" {
		t.Fatalf("unexpected hours %v", s["openingHours"])
	}
}

func TestOrganizationWithoutLogo(t *testing.T) {
	s := Organization(site.Brand{Name: site.Localized{AR: "كهرمانة"}}, "en", "")
	if s["name"] != "كهرمانة" {
		t.Fatalf("expected arabic fallback name, got %v", s["name"])
	}
	if _, ok := s["logo"]; ok {
		t.Fatal("logo should be omitted")
	}
	if _, ok := s["telephone"]; ok {
		t.Fatal("telephone should be omitted")
	}
}
