package order

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"kahramana.bh/site/internal/cart"
	"kahramana.bh/site/internal/site"
)

type recorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recorder) Submission(_ context.Context, outcome string) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome)
	r.mu.Unlock()
}

func TestDeepLink(t *testing.T) {
	t.Parallel()

	link, err := DeepLink("+973 1713-1413", "Total: 3.000 BHD\n& more")
	require.NoError(t, err)
	require.Equal(t, "https://wa.me/97317131413?text=Total%3A%203.000%20BHD%0A%26%20more", link)

	_, err = DeepLink("n/a", "x")
	require.ErrorIs(t, err, ErrNoRecipient)
}

func TestValidateOrder(t *testing.T) {
	t.Parallel()

	catalog := site.Default()
	full := Draft{Name: "Ali", Address: "Riffa"}

	cases := []struct {
		name  string
		state cart.State
		draft Draft
		want  error
	}{
		{name: "empty cart", state: cart.State{BranchID: "riffa-hajiyat"}, draft: full, want: ErrEmptyCart},
		{name: "missing name", state: kubbaCart(), draft: Draft{Address: "x"}, want: ErrMissingName},
		{name: "whitespace name", state: kubbaCart(), draft: Draft{Name: "  ", Address: "x"}, want: ErrMissingName},
		{name: "missing address", state: kubbaCart(), draft: Draft{Name: "x"}, want: ErrMissingAddress},
		{name: "missing branch", state: cart.State{Items: kubbaCart().Items}, draft: full, want: ErrMissingBranch},
		{name: "unknown branch", state: cart.State{Items: kubbaCart().Items, BranchID: "manama"}, draft: full, want: ErrMissingBranch},
		{name: "ok", state: kubbaCart(), draft: full, want: nil},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(tc.state, tc.draft, catalog)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDispatcherPrepare(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d, err := NewDispatcher(site.Default(), NewFormatter(site.Default(), fixedID), rec, nil)
	require.NoError(t, err)

	sub, err := d.Prepare(context.Background(), kubbaCart(), Draft{Name: " Ali ", Address: "Riffa"}, "en")
	require.NoError(t, err)
	require.Equal(t, "97317131413", sub.To)
	require.True(t, strings.HasPrefix(sub.URL, "https://wa.me/97317131413?text="))

	parsed, err := url.Parse(sub.URL)
	require.NoError(t, err)
	require.Equal(t, sub.Message.Text(), parsed.Query().Get("text"))
	require.Contains(t, sub.Message.Lines, "Name: Ali")

	_, err = d.Prepare(context.Background(), cart.State{}, Draft{}, "en")
	require.True(t, errors.Is(err, ErrEmptyCart))

	require.Equal(t, []string{"ok", "empty_cart"}, rec.outcomes)
}

func TestDraftNormalize(t *testing.T) {
	t.Parallel()

	d := Draft{Name: "<b>Ali</b>\n", Address: "Road *1*", OrderType: "PICKUP", Payment: "bitcoin"}.Normalize()
	require.Equal(t, Draft{Name: "Ali", Address: "Road 1", OrderType: Pickup, Payment: Cash}, d)
	require.Equal(t, d, d.Normalize())
	require.Equal(t, Delivery, ParseOrderType(""))
}
