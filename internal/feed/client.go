package feed

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Dial opens a WebSocket connection to the upstream feed.
func Dial(ctx context.Context, url string) (Conn, error) {
	d := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	conn, resp, err := d.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}
