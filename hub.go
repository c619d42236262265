/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Events exchanged over the socket.
const (
	eventSessionInfo   = "session-info"
	eventUpdateProfile = "update-profile"
	eventCreateRoom    = "create-room"
	eventJoinRoom      = "join-room"
	eventQuitRoom      = "quit-room"
	eventKickPlayer    = "kick-player"
	eventStartGame     = "start-game"
	eventNextDrawing   = "next-drawing"
	eventStartVote     = "start-vote"
	eventVote          = "vote"
	eventVoteStarted   = "vote-started"
	eventStopVote      = "stop-vote"
	eventNetworkUpdate = "network-manager-update"
	eventUpdateLobby   = "update-lobby"
	eventKicked        = "kicked"
	eventRoomClosed    = "room-closed"
	eventError         = "error"
)

// ClientMessage is what clients send: an event name and its payload.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is what the hub sends back.
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type ErrorMessage struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

type joinRoomData struct {
	RoomID string `json:"roomId"`
}

type targetData struct {
	PlayerID string `json:"playerId"`
}

type voteData struct {
	Vote YesOrNo `json:"vote"`
}

type Client struct {
	conn      *websocket.Conn
	send      chan ServerMessage
	sessionID string
	playerID  string
}

func (c *Client) ids() PlayerIdentifiers {
	return PlayerIdentifiers{PlayerID: c.playerID, SessionID: c.sessionID}
}

// graceTimer drops a disconnected session once --player-timeout passes
// without a reconnect.
type graceTimer struct {
	sessionID string
	timer     *time.Timer
}

type clientEvent struct {
	client *Client
	msg    ClientMessage
}

// Hub owns every connected client. All socket events, timer expiries and
// reaper ticks are handled on the run goroutine.
type Hub struct {
	cfg   *Config
	rooms *RoomService

	clients  map[*Client]bool
	sessions map[string]int // sessionID -> open connections

	register chan *Client
	unreg    chan *Client
	events   chan clientEvent
	turns    chan string // roomID whose turn countdown fired
	votes    chan string // roomID whose vote countdown fired
	dropped  chan *graceTimer

	turnTimers  map[string]*time.Timer
	voteTimers  map[string]*time.Timer
	graceTimers map[string]*graceTimer

	done <-chan struct{}
}

func newHub(ctx context.Context, cfg *Config, rooms *RoomService) *Hub {
	return &Hub{
		done:       ctx.Done(),
		cfg:        cfg,
		rooms:      rooms,
		clients:    make(map[*Client]bool),
		sessions:   make(map[string]int),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		events:     make(chan clientEvent),
		turns:      make(chan string),
		votes:      make(chan string),
		dropped:    make(chan *graceTimer),
		turnTimers:  make(map[string]*time.Timer),
		voteTimers:  make(map[string]*time.Timer),
		graceTimers: make(map[string]*graceTimer),
	}
}

func (h *Hub) run() {
	var reap <-chan time.Time
	if h.cfg.sessionTimeout > 0 {
		ticker := time.NewTicker(h.cfg.sessionTimeout / 2)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unreg:
			h.handleUnregister(c)

		case ev := <-h.events:
			h.handleEvent(ev.client, ev.msg)

		case roomID := <-h.turns:
			h.handleTurnExpiry(roomID)

		case roomID := <-h.votes:
			h.handleVoteExpiry(roomID)

		case g := <-h.dropped:
			h.handleDrop(g)

		case <-reap:
			h.reap()
		}
	}
}

// post delivers v to ch from a timer goroutine unless the hub has stopped.
func post[T any](h *Hub, ch chan T, v T) {
	select {
	case ch <- v:
	case <-h.done:
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.cancelGrace(c.sessionID)

	session := h.rooms.Connect(c.sessionID)
	c.playerID = session.PlayerID

	h.clients[c] = true
	h.sessions[c.sessionID]++

	logf(h.cfg, "SOCKET: Session %s connected as player %s", c.sessionID, c.playerID)

	h.sendTo(c, eventSessionInfo, session)

	// A returning session is put back in the room it was linked to.
	if lobby := h.rooms.Join(c.sessionID); lobby != nil {
		if err := h.enterRoom(c); err != nil {
			h.sendTo(c, eventError, ErrorMessage{Event: eventJoinRoom, Message: err.Error()})
		}
	}
}

func (h *Hub) handleUnregister(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)

	h.sessions[c.sessionID]--
	if h.sessions[c.sessionID] > 0 {
		return
	}
	delete(h.sessions, c.sessionID)

	h.rooms.Disconnect(c.sessionID)

	logf(h.cfg, "SOCKET: Session %s disconnected", c.sessionID)

	h.cancelGrace(c.sessionID)

	g := &graceTimer{sessionID: c.sessionID}
	g.timer = time.AfterFunc(h.cfg.playerTimeout, func() {
		post(h, h.dropped, g)
	})
	h.graceTimers[c.sessionID] = g
}

func (h *Hub) cancelGrace(sessionID string) {
	if g, ok := h.graceTimers[sessionID]; ok {
		g.timer.Stop()
		delete(h.graceTimers, sessionID)
	}
}

func (h *Hub) handleDrop(g *graceTimer) {
	// A timer that fired before being cancelled no longer speaks for the session.
	if h.graceTimers[g.sessionID] != g {
		return
	}
	delete(h.graceTimers, g.sessionID)

	sessionID := g.sessionID
	if h.sessions[sessionID] > 0 {
		return
	}

	lobby, dropped := h.rooms.Drop(sessionID)
	if !dropped {
		return
	}

	logf(h.cfg, "SOCKET: Session %s expired", sessionID)

	h.publish(lobby, eventUpdateLobby)
}

func (h *Hub) handleEvent(c *Client, msg ClientMessage) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	var err error

	switch msg.Event {
	case eventUpdateProfile:
		err = h.updateProfile(c, msg.Data)
	case eventCreateRoom:
		err = h.createRoom(c)
	case eventJoinRoom:
		err = h.joinRoom(c, msg.Data)
	case eventQuitRoom:
		h.quitRoom(c)
	case eventKickPlayer:
		err = h.kickPlayer(c, msg.Data)
	case eventStartGame:
		err = h.startGame(c)
	case eventNextDrawing:
		err = h.nextDrawing(c)
	case eventStartVote:
		err = h.startVote(c, msg.Data)
	case eventVote:
		err = h.vote(c, msg.Data)
	case eventNetworkUpdate:
		h.relayDrawing(c, msg.Data)
	default:
		// ignore unknown events
	}

	if err != nil {
		logf(h.cfg, "SOCKET: %s from %s failed: %v", msg.Event, c.playerID, err)
		h.sendTo(c, eventError, ErrorMessage{Event: msg.Event, Message: err.Error()})
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing event data")
	}
	return json.Unmarshal(data, v)
}

func (h *Hub) updateProfile(c *Client, data json.RawMessage) error {
	var profile Profile
	if err := decode(data, &profile); err != nil {
		return err
	}

	session, err := h.rooms.UpdateProfile(c.sessionID, profile)
	if err != nil {
		return err
	}

	h.sendToSession(c.sessionID, eventUpdateProfile, session)

	if session.RoomID != "" {
		if lobby, ok := h.rooms.Lobby(session.RoomID); ok {
			h.publish(lobby, eventUpdateLobby)
		}
	}

	return nil
}

func (h *Hub) requireProfile(c *Client) error {
	session, ok := h.rooms.Session(c.sessionID)
	if !ok {
		return ErrNoSession
	}
	if session.Profile.Username == "" {
		return ErrNoProfile
	}
	return nil
}

// enterRoom adds the client's player to its linked room and tells the room.
func (h *Hub) enterRoom(c *Client) error {
	lobby, err := h.rooms.ReassignHost(c.ids())
	if err != nil {
		h.rooms.Quit(c.ids())
		return err
	}

	h.publish(lobby, eventUpdateLobby)

	return nil
}

func (h *Hub) createRoom(c *Client) error {
	if err := h.requireProfile(c); err != nil {
		return err
	}

	previous, _ := h.rooms.Session(c.sessionID)

	lobby := h.rooms.Create(c.ids())
	h.refreshRoom(previous.RoomID)

	logf(h.cfg, "ROOMS: Player %s created %s", c.playerID, lobby.ID)

	return h.enterRoom(c)
}

func (h *Hub) joinRoom(c *Client, data json.RawMessage) error {
	var req joinRoomData
	if err := decode(data, &req); err != nil {
		return err
	}
	if err := h.requireProfile(c); err != nil {
		return err
	}

	// A mistyped id must not pull the player out of their current room.
	if !h.rooms.Exists(req.RoomID) {
		return ErrNoRoom
	}

	previous, _ := h.rooms.Session(c.sessionID)

	h.rooms.Link(c.ids(), req.RoomID)
	if previous.RoomID != req.RoomID {
		h.refreshRoom(previous.RoomID)
	}

	if h.rooms.Join(c.sessionID) == nil {
		h.sendToSession(c.sessionID, eventUpdateLobby, nil)
		return ErrNoRoom
	}

	return h.enterRoom(c)
}

// refreshRoom re-sends a room the session may just have been moved out of.
func (h *Hub) refreshRoom(roomID string) {
	if roomID == "" {
		return
	}
	if lobby, ok := h.rooms.Lobby(roomID); ok {
		h.publish(lobby, eventUpdateLobby)
	}
}

func (h *Hub) quitRoom(c *Client) {
	lobby := h.rooms.Quit(c.ids())

	h.sendToSession(c.sessionID, eventUpdateLobby, nil)
	h.publish(lobby, eventUpdateLobby)
}

func (h *Hub) kickPlayer(c *Client, data json.RawMessage) error {
	var req targetData
	if err := decode(data, &req); err != nil {
		return err
	}

	kickedSession, _ := h.rooms.SessionOf(req.PlayerID)

	lobby, err := h.rooms.Kick(c.ids(), req.PlayerID)
	if err != nil {
		return err
	}

	logf(h.cfg, "ROOMS: Player %s kicked %s from %s", c.playerID, req.PlayerID, lobby.ID)

	h.sendToSession(kickedSession, eventKicked, lobby.ID)
	h.publish(lobby, eventUpdateLobby)

	return nil
}

func (h *Hub) startGame(c *Client) error {
	lobby, err := h.rooms.StartGame(c.ids())
	if err != nil {
		return err
	}

	logf(h.cfg, "GAMES: Started game in %s with %d players", lobby.ID, len(lobby.Players))

	h.publish(lobby, eventUpdateLobby)

	return nil
}

func (h *Hub) nextDrawing(c *Client) error {
	lobby, err := h.rooms.NextDrawing(c.ids())
	if err != nil {
		return err
	}

	h.publish(lobby, eventUpdateLobby)

	return nil
}

func (h *Hub) startVote(c *Client, data json.RawMessage) error {
	var req targetData
	if err := decode(data, &req); err != nil {
		return err
	}

	lobby, err := h.rooms.StartVote(c.ids(), req.PlayerID)
	if err != nil {
		return err
	}

	logf(h.cfg, "GAMES: %s started a vote against %s in %s", c.playerID, req.PlayerID, lobby.ID)

	h.publish(lobby, eventVoteStarted)

	return nil
}

func (h *Hub) vote(c *Client, data json.RawMessage) error {
	var req voteData
	if err := decode(data, &req); err != nil {
		return err
	}

	lobby, complete, err := h.rooms.Vote(c.ids(), req.Vote)
	if err != nil {
		return err
	}

	if !complete {
		h.publish(lobby, eventUpdateLobby)
		return nil
	}

	stopped, err := h.rooms.StopVote(lobby.ID)
	if err != nil {
		return err
	}

	h.publish(stopped, eventStopVote)

	return nil
}

// relayDrawing forwards a drawing action from the player holding the pencil
// to everybody else in the room.
func (h *Hub) relayDrawing(c *Client, data json.RawMessage) {
	if len(data) == 0 {
		return
	}

	lobby, ok := h.rooms.CanDraw(c.ids())
	if !ok {
		return
	}

	for client := range h.clients {
		if client.sessionID == c.sessionID || !lobby.HasPlayer(client.playerID) {
			continue
		}
		h.sendTo(client, eventNetworkUpdate, data)
	}
}

func (h *Hub) handleTurnExpiry(roomID string) {
	lobby, advanced := h.rooms.Expire(roomID)
	if lobby == nil {
		h.stopTimers(roomID)
		return
	}
	if !advanced {
		h.armTimers(lobby)
		return
	}

	h.publish(lobby, eventUpdateLobby)
}

func (h *Hub) handleVoteExpiry(roomID string) {
	lobby, stopped := h.rooms.ExpireVote(roomID)
	if !stopped {
		if lobby, ok := h.rooms.Lobby(roomID); ok {
			h.armTimers(lobby)
		}
		return
	}

	h.publish(lobby, eventStopVote)
}

// armTimers points the room's turn and vote timers at the lobby's limit
// dates, or stops them when there is nothing left to count down.
func (h *Hub) armTimers(lobby *Lobby) {
	if !lobby.GameRunning() {
		h.stopTimers(lobby.ID)
		return
	}

	roomID := lobby.ID

	if t, ok := h.turnTimers[roomID]; ok {
		t.Stop()
	}
	h.turnTimers[roomID] = time.AfterFunc(time.Until(lobby.Game.LimitDate), func() {
		post(h, h.turns, roomID)
	})

	if t, ok := h.voteTimers[roomID]; ok {
		t.Stop()
		delete(h.voteTimers, roomID)
	}
	if vote := lobby.Game.PlayerErrorVote; vote != nil {
		h.voteTimers[roomID] = time.AfterFunc(time.Until(vote.LimitDate), func() {
			post(h, h.votes, roomID)
		})
	}
}

func (h *Hub) stopTimers(roomID string) {
	if t, ok := h.turnTimers[roomID]; ok {
		t.Stop()
		delete(h.turnTimers, roomID)
	}
	if t, ok := h.voteTimers[roomID]; ok {
		t.Stop()
		delete(h.voteTimers, roomID)
	}
}

func (h *Hub) reap() {
	closed := h.rooms.Reap(time.Now().Add(-h.cfg.sessionTimeout))

	for _, lobby := range closed {
		logf(h.cfg, "ROOMS: Closed idle room %s", lobby.ID)

		h.stopTimers(lobby.ID)
		for client := range h.clients {
			if lobby.HasPlayer(client.playerID) {
				h.sendTo(client, eventRoomClosed, lobby.ID)
			}
		}
	}
}

// publish sends the lobby to every connected member and keeps the room's
// timers in step with it.
func (h *Hub) publish(lobby *Lobby, event string) {
	if lobby == nil {
		return
	}

	if len(lobby.Players) == 0 {
		h.stopTimers(lobby.ID)
		return
	}

	h.armTimers(lobby)

	for client := range h.clients {
		if lobby.HasPlayer(client.playerID) {
			h.sendTo(client, event, lobby)
		}
	}
}

func (h *Hub) sendToSession(sessionID, event string, data any) {
	if sessionID == "" {
		return
	}
	for client := range h.clients {
		if client.sessionID == sessionID {
			h.sendTo(client, event, data)
		}
	}
}

// sendTo queues a message for c, dropping the client if its buffer is full.
// Clients already dropped are skipped, since their send channel is closed.
func (h *Hub) sendTo(c *Client, event string, data any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- ServerMessage{Event: event, Data: data}:
	default:
		h.handleUnregister(c)
	}
}

func (h *Hub) closeAll() {
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	for roomID := range h.turnTimers {
		h.stopTimers(roomID)
	}
	for roomID := range h.voteTimers {
		h.stopTimers(roomID)
	}
	for sessionID := range h.graceTimers {
		h.cancelGrace(sessionID)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func serveWS(cfg *Config, h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var header http.Header

		sessionID := sessionCookie(r)
		if sessionID == "" {
			cookie := newSessionCookie()
			if cookie == nil {
				http.Error(w, "unable to assign session id", http.StatusInternalServerError)
				return
			}
			sessionID = cookie.Value
			header = http.Header{"Set-Cookie": {cookie.String()}}
		}

		conn, err := upgrader.Upgrade(w, r, header)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:      conn,
			send:      make(chan ServerMessage, 32),
			sessionID: sessionID,
		}

		select {
		case h.register <- client:
		case <-h.done:
			_ = conn.Close()
			return
		}

		logf(cfg, "SOCKET: Upgraded connection from %s", realIP(r))

		go client.writePump()
		client.readPump(h)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		post(h, h.unreg, c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		post(h, h.events, clientEvent{client: c, msg: msg})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
