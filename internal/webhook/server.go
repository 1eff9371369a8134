// Package webhook serves the Messenger platform callback endpoint: the GET
// verification handshake and the POST event delivery that carries subscriber
// commands.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"gardenbot/internal/config"
	"gardenbot/internal/stats"
	"gardenbot/internal/store"
	"gardenbot/internal/transport"
	"gardenbot/pkg/logx"
)

const defaultPath = "/webhook"

// maxBodyBytes bounds a single delivery payload. Messenger batches are small;
// anything bigger is junk.
const maxBodyBytes = 1 << 20

// SummaryProvider supplies the stock overview sent to fresh subscribers.
type SummaryProvider interface {
	Summary() string
}

type Server struct {
	store    store.Store
	sender   transport.Sender
	summary  SummaryProvider
	counters *stats.Counters
	log      logx.Logger

	mu          sync.RWMutex
	verifyToken string

	srv *http.Server
	wg  sync.WaitGroup
}

func New(cfg config.WebhookConfig, st store.Store, sender transport.Sender, summary SummaryProvider, counters *stats.Counters, log logx.Logger) *Server {
	s := &Server{
		store:       st,
		sender:      sender,
		summary:     summary,
		counters:    counters,
		log:         log,
		verifyToken: cfg.VerifyToken,
	}

	path := cfg.Path
	if path == "" {
		path = defaultPath
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handle)
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	return s
}

// Apply picks up a changed verify token without restarting the listener.
func (s *Server) Apply(cfg config.WebhookConfig) {
	s.mu.Lock()
	s.verifyToken = cfg.VerifyToken
	s.mu.Unlock()
}

func (s *Server) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verifyToken
}

// Start runs the listener until ctx is cancelled. Returns the listen error,
// nil on a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("webhook listening", logx.String("addr", s.srv.Addr))
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shCtx)
		s.wg.Wait()
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleVerify(w, r)
	case http.MethodPost:
		s.handleEvent(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleVerify answers the platform's one-time subscription handshake: echo
// the challenge when mode and token check out.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "" || token == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if mode != "subscribe" || token != s.token() {
		s.log.Warn("webhook verification rejected", logx.String("mode", mode))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	s.log.Info("webhook verified")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

// eventEnvelope is the platform delivery shape. Only the fields we act on.
type eventEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		s.log.Warn("webhook payload rejected", logx.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if env.Object != "page" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	// Ack immediately; the platform retries deliveries that do not get a
	// quick 200, and command handling can be slow (store plus send).
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "EVENT_RECEIVED")

	for _, entry := range env.Entry {
		for _, msg := range entry.Messaging {
			if msg.Sender.ID == "" || msg.Message.Text == "" {
				continue
			}
			senderID, text := msg.Sender.ID, msg.Message.Text
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				s.HandleCommand(ctx, senderID, text)
			}()
		}
	}
}
