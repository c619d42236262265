// Memo Draw
//
// Players pick a username and an avatar, then create a room or join one by
// its link. The host starts a game once at least two players are in. Players
// take turns adding to a shared drawing from memory; the player holding the
// pencil is the only one whose strokes are relayed to the rest of the room.
// A turn ends when the drawer sends their drawing or the countdown runs out.
//
// Anyone who is not drawing can accuse a player of having made an error. The
// rest of the room votes yes or no; a yes majority puts the accused on the
// loser list and out of the turn order. The game ends when every drawing has
// been made or only one player is left standing.
//
// Features:
// - One websocket per browser tab: /ws, keyed by the memodraw_session cookie
// - Host reassigned at random when the host leaves
// - Only the host may kick players or start the game
// - Disconnected players keep their seat for --player-timeout
// - Idle rooms closed after --session-timeout
// - Random 8-char room IDs via crypto/rand, with server-side collision check
// - QR code for each room link, backed by go-qrcode

package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const sessionCookieName = "memodraw_session"

func sessionCookie(r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

func newSessionCookie() *http.Cookie {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return nil
	}

	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    hex.EncodeToString(buf),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// serveRoomPage hands out the client for a room link; the client joins the
// room over the socket.
func serveRoomPage(cfg *Config, rooms *RoomService, errs chan<- error) httprouter.Handle {
	home := serveHomePage(cfg, errs)

	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !rooms.Exists(ps.ByName("roomid")) {
			http.Redirect(w, r, cfg.prefix+"/", http.StatusTemporaryRedirect)
			return
		}

		home(w, r, ps)
	}
}

// QR handler: generates a PNG QR code for the room URL using go-qrcode.
func qrHandler(cfg *Config, rooms *RoomService) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		if !rooms.Exists(roomID) {
			http.Error(w, "unknown room", http.StatusNotFound)
			return
		}

		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

// registerMemoDraw sets up routes so that:
//   - /room/:roomid     → HTML client for that room
//   - /room/:roomid/qr  → PNG QR code for the room URL
//   - /ws               → WebSocket carrying every game event
func registerMemoDraw(cfg *Config, hub *Hub, rooms *RoomService, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/room/:roomid", serveRoomPage(cfg, rooms, errs))

	mux.GET(cfg.prefix+"/room/:roomid/qr", qrHandler(cfg, rooms))

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, hub))
}
