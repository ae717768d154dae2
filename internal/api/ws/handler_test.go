package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicolas-rabault/lelab/internal/calibration"
	"github.com/nicolas-rabault/lelab/internal/infrastructure/logging"
)

func TestStatusStream(t *testing.T) {
	gin.SetMode(gin.TestMode)

	manager := calibration.NewManager(
		func(calibration.Request) (calibration.Device, error) { return nil, nil },
		logging.NewNop(),
		calibration.Options{},
	)
	handler := NewHandler(manager, logging.NewNop(), nil)
	handler.interval = 5 * time.Millisecond

	router := gin.New()
	router.GET("/ws/status", handler.Status)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The first frame arrives immediately, then one per tick.
	for i := 0; i < 3; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var status calibration.Status
		require.NoError(t, conn.ReadJSON(&status))
		assert.Equal(t, calibration.StateIdle, status.State)
		assert.False(t, status.Active)
	}
}

func TestStatusStreamClosesCleanly(t *testing.T) {
	gin.SetMode(gin.TestMode)

	manager := calibration.NewManager(
		func(calibration.Request) (calibration.Device, error) { return nil, nil },
		logging.NewNop(),
		calibration.Options{},
	)
	handler := NewHandler(manager, logging.NewNop(), nil)
	handler.interval = 5 * time.Millisecond

	router := gin.New()
	router.GET("/ws/status", handler.Status)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	// Nothing to assert beyond the handler surviving the disconnect; give
	// its read loop a moment to observe the close.
	time.Sleep(20 * time.Millisecond)
}
