/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Avatar holds the choices a player made in the avatar editor.
type Avatar struct {
	BodyType    int    `json:"bodyType" validate:"min=0,max=15"`
	BodyColor   string `json:"bodyColor" validate:"omitempty,hexcolor"`
	FaceType    int    `json:"faceType" validate:"min=0,max=15"`
	RubberColor string `json:"rubberColor" validate:"omitempty,hexcolor"`
}

type Profile struct {
	Username string `json:"username" validate:"required,min=1,max=24"`
	Avatar   Avatar `json:"avatar"`
}

func (p Profile) validate() error {
	return validate.Struct(p)
}

type Session struct {
	ID        string  `json:"sessionId"`
	PlayerID  string  `json:"playerId"`
	Profile   Profile `json:"profile"`
	RoomID    string  `json:"playerRoomId,omitempty"`
	Connected bool    `json:"-"`
}

// SessionStore is not safe for concurrent use; RoomService serializes access.
type SessionStore struct {
	sessions map[string]*Session
	players  map[string]string // playerID -> sessionID
	links    map[string]string // sessionID -> roomID
}

func newSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		players:  make(map[string]string),
		links:    make(map[string]string),
	}
}

// Connect returns the session for sessionID, creating it with a fresh
// player ID on first contact.
func (s *SessionStore) Connect(sessionID string) *Session {
	if session, ok := s.sessions[sessionID]; ok {
		session.Connected = true
		return session
	}

	session := &Session{
		ID:        sessionID,
		PlayerID:  uuid.New().String(),
		Connected: true,
	}
	s.sessions[sessionID] = session
	s.players[session.PlayerID] = sessionID

	return session
}

func (s *SessionStore) Get(sessionID string) (*Session, bool) {
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) SessionOf(playerID string) (string, bool) {
	sessionID, ok := s.players[playerID]
	return sessionID, ok
}

func (s *SessionStore) UpdateProfile(sessionID string, profile Profile) (*Session, error) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNoSession
	}

	profile.Username = strings.TrimSpace(profile.Username)
	if err := profile.validate(); err != nil {
		return nil, err
	}

	session.Profile = profile

	return session, nil
}

func (s *SessionStore) Disconnect(sessionID string) {
	if session, ok := s.sessions[sessionID]; ok {
		session.Connected = false
	}
}

func (s *SessionStore) Remove(sessionID string) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return
	}

	delete(s.players, session.PlayerID)
	delete(s.links, sessionID)
	delete(s.sessions, sessionID)
}

func (s *SessionStore) Link(sessionID, roomID string) {
	s.links[sessionID] = roomID
	if session, ok := s.sessions[sessionID]; ok {
		session.RoomID = roomID
	}
}

func (s *SessionStore) LinkedRoom(sessionID string) (string, bool) {
	roomID, ok := s.links[sessionID]
	return roomID, ok
}

func (s *SessionStore) Unlink(sessionID string) {
	delete(s.links, sessionID)
	if session, ok := s.sessions[sessionID]; ok {
		session.RoomID = ""
	}
}
