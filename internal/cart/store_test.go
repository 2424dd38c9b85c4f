package cart

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"kahramana.bh/site/internal/site"
)

func TestLoadMalformedSlotsDegradeToEmptyCart(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"invalid json":   `{"items": [`,
		"null items":     `{"items": null}`,
		"scalar":         `42`,
		"string":         `"cart"`,
		"items not list": `{"items": {"id": "x"}}`,
		"empty":          ``,
	}
	for name, raw := range cases {
		f := newFixture(t)
		f.slot.set("c1", raw)
		state := f.store.Load(context.Background(), "c1")
		require.NotNil(t, state.Items, name)
		require.Empty(t, state.Items, name)
		require.Equal(t, "riffa-hajiyat", state.BranchID, name)
	}
}

func TestLoadLegacyBareArray(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.slot.set("c1", `[{"id":"kubba","name":"Kubba","price":1.5,"qty":2},{"id":"kubba","qty":1},{"name":"no id"}]`)

	state := f.store.Load(context.Background(), "c1")
	require.Len(t, state.Items, 1)
	require.Equal(t, 3, state.Items[0].Qty)
	require.True(t, bhd("1.5").Equal(state.Items[0].Price))
	require.Equal(t, "/assets/brand/logo.webp", state.Items[0].Image)
}

func TestLoadNormalisesQuantityAndPrice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.slot.set("c1", `{"items":[
		{"id":"quzi","name":"Quzi","qty":500},
		{"id":"dolma","name":"Dolma","price":null,"qty":"3"},
		{"id":"mystery","name":"Mystery","qty":0},
		{"id":"kubba","name":"Kubba","price":"1.250","qty":-4}
	],"branchId":"nowhere","notes":42}`)

	state := f.store.Load(context.Background(), "c1")
	require.Len(t, state.Items, 4)

	require.Equal(t, MaxItemQty, state.Items[0].Qty)
	require.True(t, bhd("6").Equal(state.Items[0].Price), "missing price falls back to catalog")

	require.Equal(t, 3, state.Items[1].Qty)
	require.True(t, bhd("2.5").Equal(state.Items[1].Price))

	require.Equal(t, 1, state.Items[2].Qty)
	require.True(t, state.Items[2].Price.IsZero(), "unknown id without price is zero")

	require.Equal(t, 1, state.Items[3].Qty)
	require.True(t, bhd("1.25").Equal(state.Items[3].Price), "persisted price wins over catalog")

	require.Equal(t, "riffa-hajiyat", state.BranchID)
	require.Empty(t, state.Notes)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.slot.set("c1", `{"items":[{"id":"kubba","name":"Kubba *hot*","price":1.5,"qty":2,"notes":"no\nonions"},{"id":"tea","qty":"7","price":"0.3"}],"branchId":"muharraq-galali","notes":"ring twice"}`)

	first := f.store.Load(ctx, "c1")
	f.store.Save(ctx, "c1", first)
	second := f.store.Load(ctx, "c1")

	require.Equal(t, first.BranchID, second.BranchID)
	require.Equal(t, first.Notes, second.Notes)
	require.Len(t, second.Items, len(first.Items))
	for i := range first.Items {
		a, b := first.Items[i], second.Items[i]
		require.Equal(t, a.ID, b.ID)
		require.Equal(t, a.Name, b.Name)
		require.Equal(t, a.Qty, b.Qty)
		require.Equal(t, a.Image, b.Image)
		require.Equal(t, a.Notes, b.Notes)
		require.True(t, a.Price.Equal(b.Price))
	}
	require.Equal(t, "Kubba hot", second.Items[0].Name)
	require.Equal(t, "no onions", second.Items[0].Notes)
}

func TestSaveSwallowsSlotErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.slot.failPut = ErrQuotaExceeded
	require.NotPanics(t, func() {
		f.store.Save(context.Background(), "c1", State{Items: []Item{{ID: "kubba", Qty: 1}}})
	})
	require.Equal(t, 1, f.slot.puts)

	f.slot.failGet = errors.New("storage disabled")
	state := f.store.Load(context.Background(), "c1")
	require.Empty(t, state.Items)
}

func TestSaveFailureLogsBoundedCartID(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	slot := newFakeSlot()
	slot.failPut = ErrQuotaExceeded
	store, err := NewStore(slot, site.Default(), zap.New(core))
	require.NoError(t, err)

	id := "c1\n" + strings.Repeat("x", 200)
	store.Save(context.Background(), id, State{Items: []Item{{ID: "kubba", Qty: 1}}})

	entries := logs.FilterMessage("cart: save failed").All()
	require.Len(t, entries, 1)
	logged := entries[0].ContextMap()["cart_id"].(string)
	require.NotContains(t, logged, "\n")
	require.Len(t, logged, 96)
	require.True(t, strings.HasPrefix(logged, "c1x"))
}

func TestStateJSONLayout(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(State{Items: []Item{{ID: "a", Name: "A", Price: bhd("1.5"), Qty: 2, Image: "a.webp"}}, BranchID: "riffa-hajiyat"})
	require.NoError(t, err)
	require.JSONEq(t, `{"items":[{"id":"a","name":"A","price":1.5,"qty":2,"image":"a.webp"}],"branchId":"riffa-hajiyat","notes":""}`, string(raw))
	require.Contains(t, string(raw), `"price":1.500`)
}
