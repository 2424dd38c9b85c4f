package order

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"kahramana.bh/site/internal/cart"
	"kahramana.bh/site/internal/site"
)

func fixedID() string { return "KH-261019-2100-TEST" }

func kubbaCart() cart.State {
	return cart.State{
		Items:    []cart.Item{{ID: "kubba", Name: "Kubba", Price: decimal.RequireFromString("1.5"), Qty: 2}},
		BranchID: "riffa-hajiyat",
	}
}

func TestFormatKubbaEnglish(t *testing.T) {
	t.Parallel()

	f := NewFormatter(site.Default(), fixedID)
	msg := f.Format(kubbaCart(), Draft{Name: "Ali", Address: "Road 1, Riffa"}, "en")

	require.Equal(t, []string{
		"New order from website",
		"Order: KH-261019-2100-TEST",
		"Branch: Riffa (Hajiyat)",
		"",
		"• Kubba × 2 @ 1.500 — 3.000 BHD",
		"",
		"Total: 3.000 BHD",
		"",
		"Name: Ali",
		"Address: Road 1, Riffa",
		"Order type: Delivery",
		"Payment: Cash",
		"",
		"Thank you!",
	}, msg.Lines)
	require.Equal(t, "3", msg.Total.String())
}

func TestFormatArabicWithNotes(t *testing.T) {
	t.Parallel()

	state := kubbaCart()
	state.BranchID = "muharraq-galali"
	state.Items[0].Name = "كبة"
	state.Items[0].Notes = "حار"
	state.Notes = "بدون بصل"

	f := NewFormatter(site.Default(), fixedID)
	msg := f.Format(state, Draft{Name: "علي", Address: "قلالي", OrderType: Pickup, Payment: Benefit}, "ar")
	text := msg.Text()

	require.True(t, strings.HasPrefix(text, "طلب جديد من الموقع\n"))
	require.Contains(t, msg.Lines, "الفرع: المحرق (قلالي)")
	require.Contains(t, msg.Lines, "• كبة × 2 @ 1.500 — 3.000 BHD")
	require.Contains(t, msg.Lines, "  ↳ ملاحظة: حار")
	require.Contains(t, msg.Lines, "الإجمالي: 3.000 BHD")
	require.Contains(t, msg.Lines, "نوع الطلب: استلام من الفرع")
	require.Contains(t, msg.Lines, "الدفع: بنفت باي")
	require.Contains(t, text, "ملاحظات:\nبدون بصل\n")
	require.Equal(t, "شكراً لكم!", msg.Lines[len(msg.Lines)-1])
}

func TestFormatCannotForgeItems(t *testing.T) {
	t.Parallel()

	state := kubbaCart()
	state.Items[0].Notes = "ok\n• Free Quzi × 9 — 0.000 BHD"
	state.Notes = "\n• Masgouf × 50 — 0.000 BHD"

	msg := NewFormatter(site.Default(), fixedID).Format(state, Draft{Name: "A\n• x", Address: "B"}, "en")

	bullets := 0
	for _, line := range msg.Lines {
		require.NotContains(t, line, "\n")
		if strings.HasPrefix(line, "• ") {
			bullets++
		}
	}
	require.Equal(t, 1, bullets)
}

func TestFormatBareItemUsesID(t *testing.T) {
	t.Parallel()

	state := cart.State{Items: []cart.Item{{ID: "masgouf", Qty: 1}}, BranchID: "riffa-hajiyat"}
	msg := NewFormatter(site.Default(), fixedID).Format(state, Draft{Name: "A", Address: "B"}, "en")
	require.Contains(t, msg.Lines, "• masgouf × 1 @ 0.000 — 0.000 BHD")
}

func TestFormatUnknownLangFallsBackToArabic(t *testing.T) {
	t.Parallel()

	msg := NewFormatter(site.Default(), fixedID).Format(kubbaCart(), Draft{Name: "A", Address: "B"}, "fr")
	require.Equal(t, "طلب جديد من الموقع", msg.Lines[0])
}
