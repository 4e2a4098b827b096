package kalshi

import (
	"context"
	"crypto"
	"errors"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MuditaSai/weather/internal/domain"
)

func writeTestKey(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	path := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path, key
}

func TestSignerHeaders(t *testing.T) {
	path, key := writeTestKey(t)
	signer, err := NewSigner("api-key-1", path)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	headers, err := signer.Headers(1756700000000, "GET", "/trade-api/v2/portfolio/positions?cursor=abc")
	if err != nil {
		t.Fatalf("Headers: %v", err)
	}
	if headers["KALSHI-ACCESS-KEY"] != "api-key-1" {
		t.Fatalf("access key header = %q", headers["KALSHI-ACCESS-KEY"])
	}
	if headers["KALSHI-ACCESS-TIMESTAMP"] != "1756700000000" {
		t.Fatalf("timestamp header = %q", headers["KALSHI-ACCESS-TIMESTAMP"])
	}

	// 查询参数不参与签名
	msg := "1756700000000GET/trade-api/v2/portfolio/positions"
	digest := sha256.Sum256([]byte(msg))
	sig, err := base64.StdEncoding.DecodeString(headers["KALSHI-ACCESS-SIGNATURE"])
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	err = rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
}

func TestEventTicker(t *testing.T) {
	date := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.Local)
	if got := EventTicker("KXHIGHNY", date); got != "KXHIGHNY-26SEP01" {
		t.Fatalf("EventTicker = %q", got)
	}
}

func TestStatusErrorRejection(t *testing.T) {
	if !(&StatusError{Code: 400}).Rejection() {
		t.Fatal("400 should be a rejection")
	}
	if (&StatusError{Code: 503}).Rejection() {
		t.Fatal("503 is infrastructure, not a rejection")
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	path, _ := writeTestKey(t)
	signer, err := NewSigner("api-key-1", path)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	c := NewClient(srv.URL, signer)
	c.http.SetRetryCount(0)
	return c
}

func TestPlaceLimitOrder(t *testing.T) {
	var got orderRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/trade-api/v2/portfolio/orders" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("KALSHI-ACCESS-SIGNATURE") == "" {
			t.Fatal("missing signature header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(orderResponse{Order: Order{OrderID: "ord-1", Status: "resting"}})
	}))

	orderID, err := c.PlaceLimitOrder(context.Background(), "KXHIGHNY-01SEP01-B49.5", domain.SideYes, 38, 1)
	if err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}
	if orderID != "ord-1" {
		t.Fatalf("order id = %q", orderID)
	}
	if got.Action != "buy" || got.Side != "yes" || got.Type != "limit" {
		t.Fatalf("request = %+v", got)
	}
	if got.YesPrice == nil || *got.YesPrice != 38 {
		t.Fatalf("yes price = %v", got.YesPrice)
	}
	if got.ClientOrderID == "" {
		t.Fatal("client_order_id must be set")
	}
}

func TestGetPositionsFiltersAndPaginates(t *testing.T) {
	page := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page++
		w.Header().Set("Content-Type", "application/json")
		if page == 1 {
			_ = json.NewEncoder(w).Encode(positionsResponse{
				MarketPositions: []Position{
					{Ticker: "KXHIGHNY-01SEP01-B49.5", Position: 1},
					{Ticker: "KXBTC-01SEP01-T60000", Position: 3},
				},
				Cursor: "next",
			})
			return
		}
		if r.URL.Query().Get("cursor") != "next" {
			t.Fatalf("missing cursor on page 2: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(positionsResponse{
			MarketPositions: []Position{{Ticker: "KXLOWCHI-01SEP01-T40", Position: 2}},
		})
	}))

	positions, err := c.GetPositions(context.Background())
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("positions = %+v, want the two temperature tickers", positions)
	}
	if positions[0].Ticker != "KXHIGHNY-01SEP01-B49.5" || positions[1].Ticker != "KXLOWCHI-01SEP01-T40" {
		t.Fatalf("positions = %+v", positions)
	}
}

func TestClientStatusError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"insufficient_balance"}`, http.StatusBadRequest)
	}))

	_, err := c.PlaceLimitOrder(context.Background(), "KXHIGHNY-01SEP01-B49.5", domain.SideYes, 38, 1)
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("got %T %v, want StatusError", err, err)
	}
	if !serr.Rejection() {
		t.Fatalf("expected rejection, code=%d", serr.Code)
	}
}
