// Package site holds the restaurant's static catalog: brand contact details, branches,
// the menu and the fallback price list consulted for legacy persisted carts.
package site

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultWhatsApp is the brand number used when neither brand nor branch configure one.
	DefaultWhatsApp = "97317131413"
	// DefaultPlaceholderImage is shown for items without a thumbnail.
	DefaultPlaceholderImage = "/assets/brand/logo.webp"
)

//go:embed default.yaml
var defaultData []byte

var nonDigits = regexp.MustCompile(`\D+`)

// Localized is a bilingual text value.
type Localized struct {
	AR string `yaml:"ar"`
	EN string `yaml:"en"`
}

// In returns the text for lang, falling back to the other language when empty.
func (l Localized) In(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "en") {
		if l.EN != "" {
			return l.EN
		}
		return l.AR
	}
	if l.AR != "" {
		return l.AR
	}
	return l.EN
}

// Price is a BHD amount parsed from YAML without going through float64.
type Price struct {
	decimal.Decimal
}

// UnmarshalYAML accepts quoted or bare numeric scalars.
func (p *Price) UnmarshalYAML(node *yaml.Node) error {
	d, err := decimal.NewFromString(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("site: invalid price %q at line %d: %w", node.Value, node.Line, err)
	}
	if d.IsNegative() {
		return fmt.Errorf("site: negative price %q at line %d", node.Value, node.Line)
	}
	p.Decimal = d
	return nil
}

// Brand carries brand-wide contact details.
type Brand struct {
	Name             Localized `yaml:"name"`
	WhatsApp         string    `yaml:"whatsapp"`
	WhatsAppURL      string    `yaml:"whatsapp_url"`
	PlaceholderImage string    `yaml:"placeholder_image"`
}

// Branch is a physical restaurant location.
type Branch struct {
	ID       string    `yaml:"id"`
	Name     Localized `yaml:"name"`
	WhatsApp string    `yaml:"whatsapp"`
	Phone    string    `yaml:"phone"`
	MapsURL  string    `yaml:"maps_url"`
	Hours    Hours     `yaml:"hours"`
}

// MenuItem is a product a customer can add to the cart.
type MenuItem struct {
	ID          string    `yaml:"id"`
	Name        Localized `yaml:"name"`
	Description Localized `yaml:"description"`
	Price       Price     `yaml:"price_bhd"`
	Image       string    `yaml:"image"`
	Featured    bool      `yaml:"featured"`
}

// Category groups menu items.
type Category struct {
	ID    string     `yaml:"id"`
	Name  Localized  `yaml:"name"`
	Items []MenuItem `yaml:"items"`
}

// Data is the YAML document shape.
type Data struct {
	Brand          Brand            `yaml:"brand"`
	Branches       []Branch         `yaml:"branches"`
	Menu           []Category       `yaml:"menu"`
	FallbackPrices map[string]Price `yaml:"fallback_prices"`
}

// Catalog is the parsed, indexed site data. It is read-only after Parse.
type Catalog struct {
	data     Data
	branches map[string]int
	items    map[string]MenuItem
}

var fallbackBranches = []Branch{
	{ID: "riffa-hajiyat", Name: Localized{AR: "الرفاع (الحجيات)", EN: "Riffa (Hajiyat)"}},
	{ID: "muharraq-galali", Name: Localized{AR: "المحرق (قلالي)", EN: "Muharraq (Galali)"}},
}

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	c, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Sprintf("site: embedded data invalid: %v", err))
	}
	return c
}

// Load reads the catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("site: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse builds a Catalog from YAML.
func Parse(raw []byte) (*Catalog, error) {
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("site: parse: %w", err)
	}
	return New(data)
}

// New indexes data and fills in brand and branch defaults.
func New(data Data) (*Catalog, error) {
	if len(data.Branches) == 0 {
		data.Branches = append([]Branch(nil), fallbackBranches...)
	}
	if data.Brand.WhatsApp == "" && data.Brand.WhatsAppURL != "" {
		data.Brand.WhatsApp = strings.TrimPrefix(data.Brand.WhatsAppURL, "https://wa.me/")
	}
	data.Brand.WhatsApp = Digits(data.Brand.WhatsApp)
	if data.Brand.WhatsApp == "" {
		data.Brand.WhatsApp = DefaultWhatsApp
	}
	if data.Brand.PlaceholderImage == "" {
		data.Brand.PlaceholderImage = DefaultPlaceholderImage
	}

	c := &Catalog{
		data:     data,
		branches: make(map[string]int, len(data.Branches)),
		items:    make(map[string]MenuItem),
	}
	for i, b := range data.Branches {
		if strings.TrimSpace(b.ID) == "" {
			return nil, fmt.Errorf("site: branch %d has no id", i)
		}
		if _, dup := c.branches[b.ID]; dup {
			return nil, fmt.Errorf("site: duplicate branch id %q", b.ID)
		}
		if _, _, err := b.Hours.minutes(); err != nil && !b.Hours.empty() {
			return nil, fmt.Errorf("site: branch %q: %w", b.ID, err)
		}
		c.branches[b.ID] = i
	}
	for _, cat := range data.Menu {
		for _, item := range cat.Items {
			if strings.TrimSpace(item.ID) == "" {
				return nil, errors.New("site: menu item without id")
			}
			if _, dup := c.items[item.ID]; dup {
				return nil, fmt.Errorf("site: duplicate menu item %q", item.ID)
			}
			c.items[item.ID] = item
		}
	}
	return c, nil
}

// Brand returns the brand details.
func (c *Catalog) Brand() Brand { return c.data.Brand }

// Branches returns branches in display order.
func (c *Catalog) Branches() []Branch { return append([]Branch(nil), c.data.Branches...) }

// Branch looks up a branch by id.
func (c *Catalog) Branch(id string) (Branch, bool) {
	i, ok := c.branches[id]
	if !ok {
		return Branch{}, false
	}
	return c.data.Branches[i], true
}

// HasBranch reports whether id names a configured branch.
func (c *Catalog) HasBranch(id string) bool {
	_, ok := c.branches[id]
	return ok
}

// DefaultBranchID is the first configured branch.
func (c *Catalog) DefaultBranchID() string { return c.data.Branches[0].ID }

// Menu returns menu categories in display order.
func (c *Catalog) Menu() []Category { return c.data.Menu }

// Item looks up a menu item by id.
func (c *Catalog) Item(id string) (MenuItem, bool) {
	item, ok := c.items[id]
	return item, ok
}

// Featured returns items flagged for the home page.
func (c *Catalog) Featured() []MenuItem {
	var out []MenuItem
	for _, cat := range c.data.Menu {
		for _, item := range cat.Items {
			if item.Featured {
				out = append(out, item)
			}
		}
	}
	return out
}

// FallbackPrice returns the static price for id. It is consulted only for persisted
// records that lack a price.
func (c *Catalog) FallbackPrice(id string) (decimal.Decimal, bool) {
	p, ok := c.data.FallbackPrices[id]
	if !ok {
		return decimal.Zero, false
	}
	return p.Decimal, true
}

// PlaceholderImage is the image used when an item has none.
func (c *Catalog) PlaceholderImage() string { return c.data.Brand.PlaceholderImage }

// ContactDigits returns the WhatsApp recipient for a branch, falling back to the brand number.
func (c *Catalog) ContactDigits(branchID string) string {
	if b, ok := c.Branch(branchID); ok {
		if d := Digits(b.WhatsApp); d != "" {
			return d
		}
		if d := Digits(b.Phone); d != "" {
			return d
		}
	}
	return c.data.Brand.WhatsApp
}

// BranchLabel returns the localized branch name, or the raw id when unknown.
func (c *Catalog) BranchLabel(id, lang string) string {
	if b, ok := c.Branch(id); ok {
		if label := b.Name.In(lang); label != "" {
			return label
		}
	}
	return id
}

// Digits strips everything but ASCII digits.
func Digits(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}
