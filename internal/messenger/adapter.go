// Package messenger is the outbound Facebook Graph API adapter: one HTTP
// POST per recipient, 2xx means delivered.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"gardenbot/internal/stats"
	"gardenbot/internal/transport"
	"gardenbot/pkg/logx"
)

const defaultAPIBase = "https://graph.facebook.com/v17.0"

type Config struct {
	AccessToken string
	APIBase     string
	RatePerSec  int
	SendTimeout time.Duration
}

type Adapter struct {
	log      logx.Logger
	http     *http.Client
	counters *stats.Counters

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
}

// New builds the adapter. counters may be nil.
func New(cfg Config, counters *stats.Counters, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("messenger: access token is empty")
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	a := &Adapter{
		log:      log,
		http:     &http.Client{Timeout: timeout},
		counters: counters,
	}
	a.Apply(cfg)
	return a, nil
}

// Apply swaps config at runtime (hot reload). Token and rate take effect for
// subsequent sends; the HTTP client timeout is fixed at construction.
func (a *Adapter) Apply(cfg Config) {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	a.mu.Lock()
	a.cfg = cfg
	a.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	a.mu.Unlock()
}

type sendRequest struct {
	MessagingType string `json:"messaging_type"`
	Recipient     struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

type sendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
	Error       *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText posts one message to one recipient. Blocks on the shared rate
// limiter, so concurrent fan-out sends are smoothed to the configured rate.
func (a *Adapter) SendText(ctx context.Context, to transport.Recipient, text string) (transport.MessageRef, error) {
	if strings.TrimSpace(to.ID) == "" {
		return transport.MessageRef{}, errors.New("messenger: empty recipient id")
	}

	a.mu.Lock()
	cfg := a.cfg
	lim := a.limiter
	a.mu.Unlock()

	if lim != nil {
		if !lim.Allow() {
			if a.counters != nil {
				a.counters.RateLimitWaits.Add(1)
			}
			if err := lim.Wait(ctx); err != nil {
				return transport.MessageRef{}, err
			}
		}
	}

	var body sendRequest
	body.MessagingType = "RESPONSE"
	body.Recipient.ID = to.ID
	body.Message.Text = text

	b, err := json.Marshal(body)
	if err != nil {
		return transport.MessageRef{}, err
	}

	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = defaultAPIBase
	}
	endpoint := base + "/me/messages?access_token=" + url.QueryEscape(cfg.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return transport.MessageRef{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		if a.counters != nil {
			a.counters.SendFailures.Add(1)
		}
		return transport.MessageRef{}, fmt.Errorf("messenger: send to %s: %w", to.ID, err)
	}
	defer resp.Body.Close()

	var out sendResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode/100 != 2 {
		if a.counters != nil {
			a.counters.SendFailures.Add(1)
		}
		if out.Error != nil {
			return transport.MessageRef{}, fmt.Errorf("messenger: send to %s failed: %s (code=%d http=%d)",
				to.ID, out.Error.Message, out.Error.Code, resp.StatusCode)
		}
		return transport.MessageRef{}, fmt.Errorf("messenger: send to %s failed: http=%d", to.ID, resp.StatusCode)
	}

	if a.counters != nil {
		a.counters.MessagesSent.Add(1)
	}
	return transport.MessageRef{RecipientID: to.ID, MessageID: out.MessageID}, nil
}

// SendAlert satisfies logx.AlertSender so error-level logs can be mirrored
// to the admin recipient.
func (a *Adapter) SendAlert(ctx context.Context, recipientID, text string) error {
	_, err := a.SendText(ctx, transport.Recipient{ID: recipientID}, text)
	return err
}
