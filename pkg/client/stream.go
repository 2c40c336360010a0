package client

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/battwatt/pkg/events"
)

// Watch streams daemon events to fn until ctx is done, fn returns an error
// or the daemon closes the stream.
func (c *Client) Watch(ctx context.Context, fn func(events.Event) error) error {
	dialer := websocket.Dialer{
		NetDialContext:   c.dial,
		HandshakeTimeout: 5 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, "ws://unix/ws", nil)
	if err != nil {
		if errors.Is(err, ErrDaemonNotRunning) || errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return pkgerrors.Wrap(err, "failed to open event stream")
	}
	defer func() {
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return nil
			}
			return pkgerrors.Wrap(err, "event stream broken")
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
