package httpapi

import (
	"context"
	"net/http"

	"github.com/coder/websocket"

	"github.com/malangee/ai-engine/internal/bridge"
)

var _ bridge.ClientConn = (*wsClientConn)(nil)

// wsClientConn adapts a learner websocket to [bridge.ClientConn].
type wsClientConn struct {
	ws *websocket.Conn
}

// acceptClient upgrades the HTTP request to a websocket.
func acceptClient(w http.ResponseWriter, r *http.Request) (*wsClientConn, error) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browser clients connect from the app origin; the app gateway
		// enforces auth before traffic reaches this service.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return nil, err
	}
	return &wsClientConn{ws: ws}, nil
}

func (c *wsClientConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	return data, err
}

func (c *wsClientConn) Write(ctx context.Context, data []byte) error {
	return c.ws.Write(ctx, websocket.MessageText, data)
}

func (c *wsClientConn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "session ended")
}

func (c *wsClientConn) CloseError(reason string) error {
	return c.ws.Close(websocket.StatusInternalError, reason)
}
