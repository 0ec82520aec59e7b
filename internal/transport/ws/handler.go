package ws

import (
	"net/http"

	"nhooyr.io/websocket"

	"github.com/enigmateam/lovewidget/internal/transport/http/middleware"
)

// Handler upgrades an authenticated request into a push connection.
func Handler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // CORS is handled by the HTTP middleware
		})
		if err != nil {
			return
		}

		client := NewClient(hub, conn, userID)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
