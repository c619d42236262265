/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

type PlayerIdentifiers struct {
	PlayerID  string
	SessionID string
}

// Lobby is a point-in-time copy of a room, safe to hand to other goroutines
// and to encode for clients.
type Lobby struct {
	ID      string   `json:"id"`
	Players []Player `json:"players"`
	HostID  string   `json:"hostId"`
	Game    *Game    `json:"game,omitempty"`
}

func (l *Lobby) HasPlayer(playerID string) bool {
	return lo.ContainsBy(l.Players, func(p Player) bool {
		return p.ID == playerID
	})
}

func (l *Lobby) GameRunning() bool {
	return l.Game != nil && l.Game.Running()
}

func snapshot(room *Room) *Lobby {
	lobby := &Lobby{
		ID:      room.ID,
		Players: slices.Clone(room.Players),
		HostID:  room.HostID,
	}
	if lobby.Players == nil {
		lobby.Players = []Player{}
	}
	if room.Game != nil {
		lobby.Game = room.Game.clone()
	}
	return lobby
}

// RoomService links sessions to rooms and runs the games inside them. Every
// operation holds the service lock for its whole read-modify-write.
type RoomService struct {
	mu       sync.Mutex
	sessions *SessionStore
	rooms    *RoomStore
	settings GameSettings
	now      func() time.Time
}

func newRoomService(settings GameSettings) *RoomService {
	s := &RoomService{
		sessions: newSessionStore(),
		rooms:    newRoomStore(),
		settings: settings,
		now:      time.Now,
	}
	s.rooms.now = func() time.Time { return s.now() }

	return s
}

func (s *RoomService) Connect(sessionID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return *s.sessions.Connect(sessionID)
}

func (s *RoomService) Session(sessionID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return Session{}, false
	}
	return *session, true
}

func (s *RoomService) SessionOf(playerID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions.SessionOf(playerID)
}

func (s *RoomService) UpdateProfile(sessionID string, profile Profile) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.UpdateProfile(sessionID, profile)
	if err != nil {
		return Session{}, err
	}

	if room, ok := s.linkedRoom(sessionID); ok && room.HasPlayer(session.PlayerID) {
		s.rooms.AddPlayer(room.ID, Player{ID: session.PlayerID, Profile: session.Profile})
	}

	return *session, nil
}

func (s *RoomService) Disconnect(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions.Disconnect(sessionID)
}

// Drop finishes a disconnect: if the session has not reconnected, its
// player quits their room and the session is forgotten.
func (s *RoomService) Drop(sessionID string) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions.Get(sessionID)
	if !ok || session.Connected {
		return nil, false
	}

	lobby := s.quit(PlayerIdentifiers{PlayerID: session.PlayerID, SessionID: sessionID})
	s.sessions.Remove(sessionID)

	return lobby, true
}

func (s *RoomService) linkedRoom(sessionID string) (*Room, bool) {
	roomID, ok := s.sessions.LinkedRoom(sessionID)
	if !ok {
		return nil, false
	}
	return s.rooms.Get(roomID)
}

func (s *RoomService) touch(room *Room) {
	room.LastActive = s.now()
}

// leave quits whatever room the session is in, keeping a session in at
// most one room.
func (s *RoomService) leave(ids PlayerIdentifiers, except string) {
	room, ok := s.linkedRoom(ids.SessionID)
	if !ok || room.ID == except {
		return
	}
	s.quit(ids)
}

// Create opens a fresh room hosted by the player and links the session to it.
func (s *RoomService) Create(ids PlayerIdentifiers) *Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.leave(ids, "")

	room := s.rooms.Create(ids.PlayerID)
	s.sessions.Link(ids.SessionID, room.ID)

	return snapshot(room)
}

// Link points the session at roomID ahead of a Join.
func (s *RoomService) Link(ids PlayerIdentifiers, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.leave(ids, roomID)
	s.sessions.Link(ids.SessionID, roomID)
}

// Join returns the room linked to the session, or nil after clearing the
// link when that room no longer exists.
func (s *RoomService) Join(sessionID string) *Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID, _ := s.sessions.LinkedRoom(sessionID)
	if !s.rooms.Exists(roomID) {
		s.sessions.Unlink(sessionID)
		return nil
	}

	s.sessions.Link(sessionID, roomID)
	room, _ := s.rooms.Get(roomID)

	return snapshot(room)
}

// ReassignHost adds the session's player to its linked room and makes them
// host if the room has none.
func (s *RoomService) ReassignHost(ids PlayerIdentifiers) (*Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions.Get(ids.SessionID)
	if !ok {
		return nil, ErrNoSession
	}

	room, ok := s.linkedRoom(ids.SessionID)
	if !ok {
		return nil, ErrNoRoom
	}

	if !room.HasPlayer(ids.PlayerID) {
		if room.Game != nil && room.Game.Running() {
			return nil, ErrGameRunning
		}
		if s.settings.MaxPlayers > 0 && len(room.Players) >= s.settings.MaxPlayers {
			return nil, ErrRoomFull
		}
	}

	room, _ = s.rooms.AddPlayer(room.ID, Player{ID: ids.PlayerID, Profile: session.Profile})
	if !room.HasHost() {
		room.AssignHost(ids.PlayerID)
	}

	return snapshot(room), nil
}

// Kick removes target from the actor's room. Only the host may kick; for
// anyone else the room is returned untouched.
func (s *RoomService) Kick(actor PlayerIdentifiers, targetID string) (*Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.linkedRoom(actor.SessionID)
	if !ok {
		return nil, ErrNoRoom
	}

	if !room.HostIs(actor.PlayerID) {
		return snapshot(room), ErrNotHost
	}

	targetSession, ok := s.sessions.SessionOf(targetID)
	if !ok || !room.HasPlayer(targetID) {
		return snapshot(room), fmt.Errorf("kick %s: %w", targetID, ErrUnknownPlayer)
	}

	return s.quit(PlayerIdentifiers{PlayerID: targetID, SessionID: targetSession}), nil
}

// Quit removes the player from their room, handing the host role to a
// random remaining player if needed. Empty rooms are destroyed.
func (s *RoomService) Quit(ids PlayerIdentifiers) *Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.quit(ids)
}

func (s *RoomService) quit(ids PlayerIdentifiers) *Lobby {
	room, ok := s.linkedRoom(ids.SessionID)
	s.sessions.Unlink(ids.SessionID)
	if !ok {
		return nil
	}

	if room.HostIs(ids.PlayerID) {
		room.AssignRandomHost()
	}

	room.Remove(ids.PlayerID)
	if room.Game != nil {
		room.Game.RemovePlayer(ids.PlayerID, s.now())
	}
	s.touch(room)

	if room.IsEmpty() {
		s.rooms.Delete(room.ID)
	}

	return snapshot(room)
}

func (s *RoomService) hostedRoom(ids PlayerIdentifiers) (*Room, error) {
	room, ok := s.linkedRoom(ids.SessionID)
	if !ok {
		return nil, ErrNoRoom
	}
	if !room.HostIs(ids.PlayerID) {
		return nil, ErrNotHost
	}
	return room, nil
}

func (s *RoomService) runningGame(ids PlayerIdentifiers) (*Room, error) {
	room, ok := s.linkedRoom(ids.SessionID)
	if !ok {
		return nil, ErrNoRoom
	}
	if room.Game == nil || !room.Game.Running() {
		return nil, ErrNoGame
	}
	s.touch(room)
	return room, nil
}

func (s *RoomService) StartGame(ids PlayerIdentifiers) (*Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.hostedRoom(ids)
	if err != nil {
		return nil, err
	}
	if room.Game != nil && room.Game.Running() {
		return nil, ErrGameRunning
	}

	game, err := NewGame(room.Players, s.settings, s.now())
	if err != nil {
		return nil, err
	}
	room.Game = game
	s.touch(room)

	return snapshot(room), nil
}

func (s *RoomService) NextDrawing(ids PlayerIdentifiers) (*Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.runningGame(ids)
	if err != nil {
		return nil, err
	}
	if err := room.Game.NextDrawing(ids.PlayerID, s.now()); err != nil {
		return nil, err
	}

	return snapshot(room), nil
}

// Expire advances the room's turn if its countdown has run out.
func (s *RoomService) Expire(roomID string) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms.Get(roomID)
	if !ok || room.Game == nil {
		return nil, false
	}
	if !room.Game.Expire(s.now()) {
		return snapshot(room), false
	}
	s.touch(room)

	return snapshot(room), true
}

// CanDraw reports whether the session's player holds the pencil, along
// with the room their strokes belong to.
func (s *RoomService) CanDraw(ids PlayerIdentifiers) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.linkedRoom(ids.SessionID)
	if !ok || room.Game == nil || !room.Game.CanDraw(ids.PlayerID) {
		return nil, false
	}
	s.touch(room)

	return snapshot(room), true
}

func (s *RoomService) StartVote(ids PlayerIdentifiers, selectedID string) (*Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.runningGame(ids)
	if err != nil {
		return nil, err
	}
	if err := room.Game.StartVote(ids.PlayerID, selectedID, s.now(), s.settings.VoteDuration); err != nil {
		return nil, err
	}

	return snapshot(room), nil
}

// Vote records a ballot and reports whether every eligible voter has now
// answered.
func (s *RoomService) Vote(ids PlayerIdentifiers, vote YesOrNo) (*Lobby, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.runningGame(ids)
	if err != nil {
		return nil, false, err
	}
	if err := room.Game.Vote(ids.PlayerID, vote); err != nil {
		return nil, false, err
	}

	return snapshot(room), room.Game.VoteComplete(), nil
}

// StopVote closes the room's vote and applies its result.
func (s *RoomService) StopVote(roomID string) (*Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, ErrNoRoom
	}
	if room.Game == nil {
		return nil, ErrNoGame
	}
	if _, _, err := room.Game.StopVote(s.now()); err != nil {
		return nil, err
	}

	return snapshot(room), nil
}

// ExpireVote stops the room's vote if its countdown has run out.
func (s *RoomService) ExpireVote(roomID string) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms.Get(roomID)
	if !ok || room.Game == nil {
		return nil, false
	}
	if _, stopped := room.Game.ExpireVote(s.now()); !stopped {
		return nil, false
	}

	return snapshot(room), true
}

func (s *RoomService) Lobby(roomID string) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, false
	}
	return snapshot(room), true
}

func (s *RoomService) Exists(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rooms.Exists(roomID)
}

// Reap closes rooms idle since before cutoff and unlinks their players.
func (s *RoomService) Reap(cutoff time.Time) []*Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()

	idle := s.rooms.Idle(cutoff)
	closed := make([]*Lobby, 0, len(idle))

	for _, room := range idle {
		for _, p := range room.Players {
			sessionID, ok := s.sessions.SessionOf(p.ID)
			if !ok {
				continue
			}
			if roomID, _ := s.sessions.LinkedRoom(sessionID); roomID == room.ID {
				s.sessions.Unlink(sessionID)
			}
		}
		s.rooms.Delete(room.ID)
		closed = append(closed, snapshot(room))
	}

	return closed
}
