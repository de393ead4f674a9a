package feed

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPublishesToSubscribers(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	h := NewHub(log)

	e := echo.New()
	e.GET("/admin/feed", func(c echo.Context) error {
		c.Set("user_id", "admin-1")
		return h.Serve(c)
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/feed"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	h.Publish(WithdrawalRequested, map[string]string{"id": "w1"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, WithdrawalRequested, evt.Type)
	assert.Equal(t, "w1", evt.Data["id"])

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestNilHubDiscards(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() { h.Publish(WithdrawalResolved, nil) })
}

func TestPublishDoesNotWaitForSlowSubscriber(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	h := NewHub(log)

	// nobody drains this queue
	stuck := &client{send: make(chan []byte, 1)}
	h.register(stuck)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			h.Publish(WithdrawalRequested, i)
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a subscriber that does not read")
	}

	assert.Equal(t, 0, h.Subscribers())
	_, open := <-stuck.send
	assert.True(t, open, "queued event is still delivered before close")
	_, open = <-stuck.send
	assert.False(t, open)
}
