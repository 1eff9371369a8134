package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"gardenbot/internal/config"
	"gardenbot/internal/stats"
	"gardenbot/internal/store"
	"gardenbot/internal/transport"
	"gardenbot/pkg/logx"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []transport.Message
	err  error
}

func (f *fakeSender) SendText(ctx context.Context, to transport.Recipient, text string) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return transport.MessageRef{}, f.err
	}
	f.sent = append(f.sent, transport.Message{SenderID: to.ID, Text: text})
	return transport.MessageRef{RecipientID: to.ID, MessageID: "m1"}, nil
}

func (f *fakeSender) texts() []transport.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Message(nil), f.sent...)
}

type fakeSummary struct{ text string }

func (f fakeSummary) Summary() string { return f.text }

type erroringStore struct{ store.Store }

func (erroringStore) Add(ctx context.Context, identity string) (store.AddResult, error) {
	return 0, errors.New("disk full")
}

func newTestServer(t *testing.T, st store.Store, sender transport.Sender) *Server {
	t.Helper()
	if st == nil {
		st = store.NewMemory()
	}
	return New(config.WebhookConfig{
		Addr:        "127.0.0.1:0",
		VerifyToken: "sesame",
	}, st, sender, fakeSummary{text: "📋 Last seen stock:"}, &stats.Counters{}, logx.Nop())
}

func getVerify(t *testing.T, s *Server, params url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/webhook?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	s.handle(rec, req)
	return rec
}

func TestVerifyHandshake(t *testing.T) {
	s := newTestServer(t, nil, &fakeSender{})

	rec := getVerify(t, s, url.Values{
		"hub.mode":         {"subscribe"},
		"hub.verify_token": {"sesame"},
		"hub.challenge":    {"challenge-123"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != "challenge-123" {
		t.Fatalf("body = %q, want the echoed challenge", body)
	}
}

func TestVerifyRejectsBadToken(t *testing.T) {
	s := newTestServer(t, nil, &fakeSender{})

	rec := getVerify(t, s, url.Values{
		"hub.mode":         {"subscribe"},
		"hub.verify_token": {"wrong"},
		"hub.challenge":    {"c"},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestVerifyRejectsMissingParams(t *testing.T) {
	s := newTestServer(t, nil, &fakeSender{})

	rec := getVerify(t, s, url.Values{"hub.mode": {"subscribe"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVerifyTokenHotReload(t *testing.T) {
	s := newTestServer(t, nil, &fakeSender{})
	s.Apply(config.WebhookConfig{VerifyToken: "rotated"})

	rec := getVerify(t, s, url.Values{
		"hub.mode":         {"subscribe"},
		"hub.verify_token": {"rotated"},
		"hub.challenge":    {"c"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d after token rotation, want 200", rec.Code)
	}
}

func postEvent(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.handle(rec, req)
	s.wg.Wait()
	return rec
}

func TestEventSubscribeFlow(t *testing.T) {
	sender := &fakeSender{}
	st := store.NewMemory()
	s := newTestServer(t, st, sender)

	rec := postEvent(t, s, `{"object":"page","entry":[{"messaging":[{"sender":{"id":"u1"},"message":{"text":"subscribe"}}]}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != "EVENT_RECEIVED" {
		t.Fatalf("body = %q", body)
	}

	ids, err := st.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(ids) != 1 || ids[0] != "u1" {
		t.Fatalf("subscribers = %v, want [u1]", ids)
	}

	sent := sender.texts()
	if len(sent) != 2 {
		t.Fatalf("expected welcome plus summary, got %d messages: %v", len(sent), sent)
	}
	if !strings.Contains(sent[0].Text, "You're subscribed") {
		t.Fatalf("first reply = %q", sent[0].Text)
	}
	if !strings.Contains(sent[1].Text, "Last seen stock") {
		t.Fatalf("second reply = %q", sent[1].Text)
	}
}

func TestEventSubscribeTwice(t *testing.T) {
	sender := &fakeSender{}
	s := newTestServer(t, nil, sender)

	frame := `{"object":"page","entry":[{"messaging":[{"sender":{"id":"u1"},"message":{"text":"Subscribe "}}]}]}`
	postEvent(t, s, frame)
	postEvent(t, s, frame)

	sent := sender.texts()
	last := sent[len(sent)-1]
	if !strings.Contains(last.Text, "already subscribed") {
		t.Fatalf("repeat subscribe reply = %q", last.Text)
	}
}

func TestEventUnsubscribe(t *testing.T) {
	sender := &fakeSender{}
	st := store.NewMemory()
	if _, err := st.Add(context.Background(), "u1"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := newTestServer(t, st, sender)

	postEvent(t, s, `{"object":"page","entry":[{"messaging":[{"sender":{"id":"u1"},"message":{"text":"unsubscribe"}}]}]}`)

	ids, _ := st.ListAll(context.Background())
	if len(ids) != 0 {
		t.Fatalf("subscribers = %v, want none", ids)
	}
	sent := sender.texts()
	if len(sent) != 1 || !strings.Contains(sent[0].Text, "unsubscribed") {
		t.Fatalf("replies = %v", sent)
	}
}

func TestEventUnknownCommand(t *testing.T) {
	sender := &fakeSender{}
	s := newTestServer(t, nil, sender)

	postEvent(t, s, `{"object":"page","entry":[{"messaging":[{"sender":{"id":"u1"},"message":{"text":"gimme stock"}}]}]}`)

	sent := sender.texts()
	if len(sent) != 1 || !strings.Contains(sent[0].Text, "didn't understand") {
		t.Fatalf("replies = %v", sent)
	}
}

func TestEventStoreFailureApologizes(t *testing.T) {
	sender := &fakeSender{}
	s := newTestServer(t, erroringStore{}, sender)

	postEvent(t, s, `{"object":"page","entry":[{"messaging":[{"sender":{"id":"u1"},"message":{"text":"subscribe"}}]}]}`)

	sent := sender.texts()
	if len(sent) != 1 || !strings.Contains(sent[0].Text, "something went wrong") {
		t.Fatalf("replies = %v", sent)
	}
}

func TestEventWrongObject(t *testing.T) {
	s := newTestServer(t, nil, &fakeSender{})

	rec := postEvent(t, s, `{"object":"instagram","entry":[]}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestEventMalformedBody(t *testing.T) {
	s := newTestServer(t, nil, &fakeSender{})

	rec := postEvent(t, s, `{"object":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestEventIgnoresNonTextDeliveries(t *testing.T) {
	sender := &fakeSender{}
	s := newTestServer(t, nil, sender)

	// Delivery receipts and attachments arrive with no message text.
	postEvent(t, s, `{"object":"page","entry":[{"messaging":[{"sender":{"id":"u1"},"message":{}}]}]}`)

	if sent := sender.texts(); len(sent) != 0 {
		t.Fatalf("expected no replies, got %v", sent)
	}
}
