package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/battwatt/pkg/events"
)

func TestClientWatch(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, name := range []string{events.Snapshot, events.ChargerConnected} {
			ev, err := events.NewEvent(name, time.Now(), map[string]int{"n": 1})
			if err != nil {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	})
	c := NewClient(serveUnix(t, mux))

	var got []string
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.Watch(ctx, func(ev events.Event) error {
		got = append(got, ev.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{events.Snapshot, events.ChargerConnected}, got)
}

func TestClientWatchStopsOnCallbackError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		ev, _ := events.NewEvent(events.Snapshot, time.Now(), nil)
		_ = conn.WriteJSON(ev)
		// Hold the connection until the client goes away.
		_, _, _ = conn.ReadMessage()
	})
	c := NewClient(serveUnix(t, mux))

	stop := errors.New("stop")
	err := c.Watch(context.Background(), func(events.Event) error { return stop })
	assert.ErrorIs(t, err, stop)
}
