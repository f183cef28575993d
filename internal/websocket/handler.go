package websocket

import (
	"context"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/larder/internal/auth"
)

// HandleWebSocket returns an HTTP handler that upgrades authenticated
// connections to WebSocket, runs them as Hub clients in their family's room
// and asks the snapshotter for their first full snapshot.
func HandleWebSocket(hub *Hub, snap *Snapshotter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !sess.HasFamily() {
			http.Error(w, auth.ErrNoFamily.Error(), http.StatusForbidden)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // clients are native apps and LAN browsers
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		logger.Debug("websocket connected", "user_id", sess.UserID, "family_id", sess.FamilyID)
		client := NewClient(hub, conn, sess.FamilyID)
		client.Run(r.Context(), func(ctx context.Context) {
			snap.Join(ctx, client)
		})
	}
}
