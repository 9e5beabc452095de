package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relay turns the fake store's published payloads into a PubSub-like stream.
func relay(store *memStore) subscribeFunc {
	return func(ctx context.Context, _ int) (<-chan *redis.Message, func() error) {
		ch := make(chan *redis.Message)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case p := <-store.published:
					select {
					case ch <- &redis.Message{Payload: string(p)}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		return ch, func() error { return nil }
	}
}

func serveStream(t *testing.T, f *fixture) (*WSHandler, string) {
	t.Helper()
	h := newWSHandler(f.assessment, relay(f.store), zerolog.Nop(), nil)
	r := gin.New()
	r.GET("/stream", asUser(1), h.TestStream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return h, "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func dialStream(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	_, url := serveStream(t, f)
	return dial(t, url)
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev map[string]interface{}
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWSHandler_Stream(t *testing.T) {
	f := newFixture()
	_, err := f.assessment.Start(context.Background(), 1)
	require.NoError(t, err)
	// Drop events published before the client connects.
	for len(f.store.published) > 0 {
		<-f.store.published
	}

	conn := dialStream(t, f)

	ev := readEvent(t, conn)
	assert.Equal(t, "state", ev["event"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "select", "question_id": "q0", "option_index": 9}))
	ev = readEvent(t, conn)
	assert.Equal(t, "error", ev["event"])
	assert.Equal(t, "INVALID_OPTION", ev["code"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "ping"}))
	assert.Equal(t, "pong", readEvent(t, conn)["event"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "select", "question_id": "q0", "option_index": 0}))
	ev = readEvent(t, conn)
	assert.Equal(t, "state", ev["event"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "dance"}))
	assert.Equal(t, "INVALID_PAYLOAD", readEvent(t, conn)["code"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "submit"}))
	ev = readEvent(t, conn)
	assert.Equal(t, "graded", ev["event"])
	report, ok := ev["report"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 4, report["total"])
}

func TestWSHandler_NoRunningTest(t *testing.T) {
	f := newFixture()
	conn := dialStream(t, f)

	ev := readEvent(t, conn)
	assert.Equal(t, "error", ev["event"])
	assert.Equal(t, "NO_ACTIVE_SESSION", ev["code"])
}

func TestWSHandler_ShutdownClosesStreams(t *testing.T) {
	f := newFixture()
	_, err := f.assessment.Start(context.Background(), 1)
	require.NoError(t, err)

	h, url := serveStream(t, f)
	conn := dial(t, url)
	assert.Equal(t, "state", readEvent(t, conn)["event"])

	h.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, _, err = conn.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseServiceRestart), err.Error())

	// Streams opened after shutdown are turned away at once.
	late := dial(t, url)
	require.NoError(t, late.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseServiceRestart), err.Error())
}
