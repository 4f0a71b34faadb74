package hyperliquid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" {
			http.NotFound(w, r)
			return
		}

		var request map[string]string
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		switch request["type"] {
		case "spotMeta":
			json.NewEncoder(w).Encode(spotMeta{
				Tokens: []spotToken{
					{Name: "USDC", Index: 0},
					{Name: "HYPE", Index: 150},
					{Name: "PURR", Index: 1},
				},
				Universe: []spotPair{
					{Name: "@1", Tokens: []int{1, 0}, Index: 1},
					{Name: "@107", Tokens: []int{150, 0}, Index: 107},
				},
			})
		case "allMids":
			json.NewEncoder(w).Encode(map[string]string{
				"@107": "46.584",
				"@1":   "0.21",
				"BAD":  "not-a-number",
			})
		default:
			http.Error(w, "unknown request type", http.StatusBadRequest)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestResolveToken(t *testing.T) {
	client := NewClient(newTestServer(t).URL)
	ctx := context.Background()

	token, err := client.ResolveToken(ctx, "HYPE")
	if err != nil {
		t.Fatalf("ResolveToken failed: %v", err)
	}
	if token != "@107" {
		t.Errorf("token = %q, want @107", token)
	}

	token, err = client.ResolveToken(ctx, "PURR")
	if err != nil {
		t.Fatalf("ResolveToken failed: %v", err)
	}
	if token != "@1" {
		t.Errorf("token = %q, want @1", token)
	}
}

func TestResolveTokenUnknownAsset(t *testing.T) {
	client := NewClient(newTestServer(t).URL)

	if _, err := client.ResolveToken(context.Background(), "DOGE"); !errors.Is(err, ErrUnknownAsset) {
		t.Errorf("expected ErrUnknownAsset, got %v", err)
	}
	// USDC is a known token but has no spot pair as base
	if _, err := client.ResolveToken(context.Background(), "USDC"); !errors.Is(err, ErrUnknownAsset) {
		t.Errorf("expected ErrUnknownAsset for pairless token, got %v", err)
	}
}

func TestLookupCurrentPrice(t *testing.T) {
	client := NewClient(newTestServer(t).URL)
	ctx := context.Background()

	price, err := client.LookupCurrentPrice(ctx, "@107")
	if err != nil {
		t.Fatalf("LookupCurrentPrice failed: %v", err)
	}
	if price != 46.584 {
		t.Errorf("price = %v, want 46.584", price)
	}

	if _, err := client.LookupCurrentPrice(ctx, "@999"); !errors.Is(err, ErrPriceUnavailable) {
		t.Errorf("expected ErrPriceUnavailable for missing token, got %v", err)
	}
	if _, err := client.LookupCurrentPrice(ctx, "BAD"); !errors.Is(err, ErrPriceUnavailable) {
		t.Errorf("expected ErrPriceUnavailable for unparsable price, got %v", err)
	}
}
