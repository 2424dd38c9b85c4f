package secrets

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

type stubClient struct {
	calls  []string
	values map[string]string
}

func (s *stubClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.calls = append(s.calls, req.GetName())
	value, ok := s.values[req.GetName()]
	if !ok {
		return nil, errors.New("not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (s *stubClient) Close() error { return nil }

func TestResolveSecretCachesByVersion(t *testing.T) {
	client := &stubClient{values: map[string]string{
		"projects/kahramana/secrets/session-key/versions/latest": "signing",
		"projects/other/secrets/cart-dsn/versions/3":             "dsn",
	}}
	r := NewResolver(WithDefaultProject("kahramana"), withClient(client))

	for i := 0; i < 2; i++ {
		got, err := r.ResolveSecret(context.Background(), "secret://session-key")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if got != "signing" {
			t.Fatalf("unexpected value %q", got)
		}
	}
	if len(client.calls) != 1 {
		t.Fatalf("expected cached second lookup, got %d calls", len(client.calls))
	}

	got, err := r.ResolveSecret(context.Background(), "secret://cart-dsn?version=3&project=other")
	if err != nil {
		t.Fatalf("resolve override: %v", err)
	}
	if got != "dsn" {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestResolveSecretRequiresProject(t *testing.T) {
	r := NewResolver(withClient(&stubClient{}))
	if _, err := r.ResolveSecret(context.Background(), "secret://session-key"); !errors.Is(err, ErrProjectRequired) {
		t.Fatalf("expected ErrProjectRequired, got %v", err)
	}
}

func TestParseReferenceRejectsOtherSchemes(t *testing.T) {
	for _, ref := range []string{"", "https://example.com/x", "secret://"} {
		if _, err := parseReference(ref); err == nil {
			t.Errorf("expected %q to be rejected", ref)
		}
	}
}
