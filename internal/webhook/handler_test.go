package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/rupaya-pay/rupaya/internal/config"
	"github.com/rupaya-pay/rupaya/internal/ledger"
	"github.com/rupaya-pay/rupaya/internal/logging"
	"github.com/rupaya-pay/rupaya/internal/settlement"
)

func newTestApp(t *testing.T, secret string) (ledger.Ledger, *testAppHarness) {
	t.Helper()
	led := ledger.NewInMemory()
	settlements := settlement.NewService(led, nil, logging.Discard())
	cfg := config.Config{AppName: "Rupaya", WebhookSecret: secret}
	app := NewApp(cfg, logging.Discard(), settlements)
	return led, &testAppHarness{t: t, app: app, secret: secret}
}

type testAppHarness struct {
	t      *testing.T
	app    *fiber.App
	secret string
}

func (h *testAppHarness) post(path string, body []byte, signed bool) *http.Response {
	h.t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signed && h.secret != "" {
		req.Header.Set(SignatureHeader, Sign([]byte(h.secret), body))
	}
	resp, err := h.app.Test(req)
	if err != nil {
		h.t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func decodeMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var out struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out.Message
}

func seedPending(t *testing.T, led ledger.Ledger, userID string, amount int64) ledger.DepositRecord {
	t.Helper()
	ctx := context.Background()
	if err := led.EnsureAccount(ctx, userID); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	record, err := led.CreatePendingDeposit(ctx, userID, "HDFC Bank", amount)
	if err != nil {
		t.Fatalf("create pending deposit: %v", err)
	}
	return record
}

func TestBankWebhookCapture(t *testing.T) {
	led, harness := newTestApp(t, "")
	record := seedPending(t, led, "u1", 10000)

	body := []byte(fmt.Sprintf(`{"token":%q,"user_identifier":"u1","amount":"10000"}`, record.Token))
	resp := harness.post("/webhooks/bank", body, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if msg := decodeMessage(t, resp); msg != "captured" {
		t.Fatalf("expected captured, got %q", msg)
	}

	acc, _ := led.Account(context.Background(), "u1")
	if acc.Available != 10000 {
		t.Fatalf("expected balance 10000, got %d", acc.Available)
	}

	// Redelivery must not double-credit; the terminal token is a 400.
	resp = harness.post("/webhooks/bank", body, false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on redelivery, got %d", resp.StatusCode)
	}
	acc, _ = led.Account(context.Background(), "u1")
	if acc.Available != 10000 {
		t.Fatalf("redelivery changed balance: %d", acc.Available)
	}
}

func TestBankWebhookFailsClosedOnBadPayload(t *testing.T) {
	led, harness := newTestApp(t, "")
	record := seedPending(t, led, "u1", 10000)

	cases := map[string][]byte{
		"not json":       []byte(`not json`),
		"missing token":  []byte(`{"user_identifier":"u1","amount":"10000"}`),
		"missing amount": []byte(fmt.Sprintf(`{"token":%q,"user_identifier":"u1"}`, record.Token)),
		"amount word":    []byte(fmt.Sprintf(`{"token":%q,"user_identifier":"u1","amount":"lots"}`, record.Token)),
		"amount zero":    []byte(fmt.Sprintf(`{"token":%q,"user_identifier":"u1","amount":"0"}`, record.Token)),
		"negative":       []byte(fmt.Sprintf(`{"token":%q,"user_identifier":"u1","amount":"-500"}`, record.Token)),
		"extra field":    []byte(fmt.Sprintf(`{"token":%q,"user_identifier":"u1","amount":"10000","admin":true}`, record.Token)),
	}
	for name, body := range cases {
		resp := harness.post("/webhooks/bank", body, false)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}

	acc, _ := led.Account(context.Background(), "u1")
	if acc.Available != 0 {
		t.Fatalf("rejected payloads moved money: %d", acc.Available)
	}
}

func TestBankWebhookUnknownToken(t *testing.T) {
	_, harness := newTestApp(t, "")

	body := []byte(`{"token":"tok_missing","user_identifier":"u1","amount":"100"}`)
	resp := harness.post("/webhooks/bank", body, false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBankWebhookSignature(t *testing.T) {
	led, harness := newTestApp(t, "shared-secret")
	record := seedPending(t, led, "u1", 10000)
	body := []byte(fmt.Sprintf(`{"token":%q,"user_identifier":"u1","amount":"10000"}`, record.Token))

	resp := harness.post("/webhooks/bank", body, false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without signature, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/bank", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign([]byte("wrong-secret"), body))
	resp, err := harness.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad signature, got %d", resp.StatusCode)
	}

	resp = harness.post("/webhooks/bank", body, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with valid signature, got %d", resp.StatusCode)
	}
}

func TestBankWebhookFailureRoute(t *testing.T) {
	led, harness := newTestApp(t, "")
	record := seedPending(t, led, "u1", 10000)

	body := []byte(fmt.Sprintf(`{"token":%q}`, record.Token))
	resp := harness.post("/webhooks/bank/failure", body, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if msg := decodeMessage(t, resp); msg != "marked failed" {
		t.Fatalf("unexpected message %q", msg)
	}

	acc, _ := led.Account(context.Background(), "u1")
	if acc.Available != 0 {
		t.Fatalf("failure credited money: %d", acc.Available)
	}

	// A success callback after the failure settles nothing.
	success := []byte(fmt.Sprintf(`{"token":%q,"user_identifier":"u1","amount":"10000"}`, record.Token))
	resp = harness.post("/webhooks/bank", success, false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 after failure, got %d", resp.StatusCode)
	}
}
