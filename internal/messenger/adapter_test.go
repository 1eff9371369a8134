package messenger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gardenbot/internal/stats"
	"gardenbot/internal/transport"
	"gardenbot/pkg/logx"
)

func testAdapter(t *testing.T, handler http.HandlerFunc) (*Adapter, *stats.Counters) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	counters := &stats.Counters{}
	a, err := New(Config{
		AccessToken: "token-123",
		APIBase:     srv.URL,
		RatePerSec:  1000,
	}, counters, logx.Nop())
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return a, counters
}

func TestSendTextSuccess(t *testing.T) {
	var gotBody sendRequest
	a, counters := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("access_token") != "token-123" {
			t.Errorf("missing access token")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"recipient_id": "psid-9", "message_id": "mid.1",
		})
	})

	ref, err := a.SendText(context.Background(), transport.Recipient{ID: "psid-9"}, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ref.MessageID != "mid.1" || ref.RecipientID != "psid-9" {
		t.Fatalf("unexpected ref %+v", ref)
	}
	if gotBody.Recipient.ID != "psid-9" || gotBody.Message.Text != "hello" {
		t.Fatalf("unexpected request body %+v", gotBody)
	}
	if counters.MessagesSent.Load() != 1 {
		t.Fatalf("expected 1 sent, got %d", counters.MessagesSent.Load())
	}
}

func TestSendTextAPIError(t *testing.T) {
	a, counters := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid PSID","type":"OAuthException","code":100}}`))
	})

	_, err := a.SendText(context.Background(), transport.Recipient{ID: "bad"}, "hello")
	if err == nil {
		t.Fatalf("expected an error for non-2xx response")
	}
	if counters.SendFailures.Load() != 1 {
		t.Fatalf("expected 1 failure, got %d", counters.SendFailures.Load())
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Config{}, nil, logx.Nop()); err == nil {
		t.Fatalf("expected error for empty access token")
	}
}
