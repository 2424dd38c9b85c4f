// Package badge keeps every cart indicator on a page showing the current item count.
// Indicators are found by attribute, so any number of them, rendered by any layout,
// are reconciled in one pass.
package badge

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// IndicatorAttr marks a control as a cart indicator.
	IndicatorAttr = "data-cart-indicator"
	// CountAttr carries the numeric count on the badge element.
	CountAttr = "data-cart-count"
	// BadgeClass is the class of injected badges.
	BadgeClass = "kh-cart-badge"
	// SSEEvent is the server-sent event name whose payload replaces every badge.
	SSEEvent = "cart-badge"

	indicatorClass = "kh-cart-indicator"
	maxDisplay     = 99
)

// Aria labels used by layouts that predate the indicator attribute.
var ariaLabels = []string{"Shopping Cart", "حقيبة التسوق"}

// IndicatorSelector matches cart indicator controls.
var IndicatorSelector = func() string {
	parts := []string{"[" + IndicatorAttr + "]"}
	for _, label := range ariaLabels {
		parts = append(parts, `[aria-label="`+label+`"]`)
	}
	return strings.Join(parts, ", ")
}()

const badgeSelector = "[" + CountAttr + "], ." + BadgeClass

// OOBTarget selects every badge inside an indicator; htmx swaps each match.
const OOBTarget = "[" + IndicatorAttr + "] ." + BadgeClass

// Display renders count the way badges show it.
func Display(count int) string {
	switch {
	case count <= 0:
		return "0"
	case count > maxDisplay:
		return strconv.Itoa(maxDisplay) + "+"
	default:
		return strconv.Itoa(count)
	}
}

// Sync updates or injects the badge inside every indicator under root and returns the
// number of indicators touched. Running it again with the same count changes nothing.
func Sync(root *goquery.Selection, count int) int {
	if root == nil {
		return 0
	}
	if count < 0 {
		count = 0
	}
	indicators := root.Find(IndicatorSelector)
	if root.Is(IndicatorSelector) {
		indicators = indicators.AddSelection(root)
	}

	indicators.Each(func(_ int, ind *goquery.Selection) {
		if !ind.HasClass(indicatorClass) {
			ind.AddClass(indicatorClass)
		}
		badges := ind.Find(badgeSelector)
		if badges.Length() == 0 {
			ind.AppendHtml(Fragment(count))
			return
		}
		// Collapse duplicates left by older markup.
		badges.Slice(1, badges.Length()).Remove()
		apply(badges.First(), count)
	})
	return indicators.Length()
}

func apply(b *goquery.Selection, count int) {
	b.SetAttr(CountAttr, strconv.Itoa(count))
	b.SetText(Display(count))
	if !b.HasClass(BadgeClass) {
		b.AddClass(BadgeClass)
	}
	b.SetAttr("aria-hidden", "true")
	b.SetAttr("sse-swap", SSEEvent)
	b.SetAttr("hx-swap", "outerHTML")
	if count == 0 {
		b.SetAttr("hidden", "")
	} else {
		b.RemoveAttr("hidden")
	}
}

// Fragment renders a standalone badge for count. It is also the SSE payload that
// replaces existing badges in place.
func Fragment(count int) string { return render(count, false) }

// OOB renders the badge as an out-of-band swap for every indicator on the page. It rides
// along with cart fragment responses so the tab that mutated sees its own change.
func OOB(count int) string { return render(count, true) }

func render(count int, oob bool) string {
	if count < 0 {
		count = 0
	}
	var b strings.Builder
	b.WriteString(`<span class="` + BadgeClass + `" ` + CountAttr + `="`)
	b.WriteString(strconv.Itoa(count))
	b.WriteString(`" aria-hidden="true" sse-swap="` + SSEEvent + `" hx-swap="outerHTML"`)
	if oob {
		b.WriteString(` hx-swap-oob="outerHTML:` + OOBTarget + `"`)
	}
	if count == 0 {
		b.WriteString(` hidden`)
	}
	b.WriteString(`>`)
	b.WriteString(Display(count))
	b.WriteString(`</span>`)
	return b.String()
}
