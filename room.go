/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"time"

	"github.com/samber/lo"
)

const roomIDLength = 8

type Player struct {
	ID      string  `json:"id"`
	Profile Profile `json:"profile"`
}

type Room struct {
	ID         string
	Players    []Player
	HostID     string
	Game       *Game
	CreatedAt  time.Time
	LastActive time.Time
}

func (r *Room) HasHost() bool {
	return r.HostID != ""
}

func (r *Room) HostIs(playerID string) bool {
	return r.HasHost() && r.HostID == playerID
}

func (r *Room) AssignHost(playerID string) {
	r.HostID = playerID
}

// AssignRandomHost hands the host role to a random player other than the
// current host, or clears it when nobody else is left.
func (r *Room) AssignRandomHost() {
	candidates := lo.Filter(r.Players, func(p Player, _ int) bool {
		return p.ID != r.HostID
	})
	if len(candidates) == 0 {
		r.HostID = ""
		return
	}

	r.HostID = lo.Sample(candidates).ID
}

func (r *Room) Player(playerID string) (Player, bool) {
	return lo.Find(r.Players, func(p Player) bool {
		return p.ID == playerID
	})
}

func (r *Room) HasPlayer(playerID string) bool {
	return lo.ContainsBy(r.Players, func(p Player) bool {
		return p.ID == playerID
	})
}

// Remove drops playerID from the room. The host is cleared if it was them.
func (r *Room) Remove(playerID string) *Room {
	r.Players = lo.Reject(r.Players, func(p Player, _ int) bool {
		return p.ID == playerID
	})
	if r.HostID == playerID {
		r.HostID = ""
	}

	return r
}

func (r *Room) IsEmpty() bool {
	return len(r.Players) == 0
}

// RoomStore is not safe for concurrent use; RoomService serializes access.
type RoomStore struct {
	rooms map[string]*Room
	now   func() time.Time
}

func newRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*Room),
		now:   time.Now,
	}
}

// newRoomID generates a crypto-random room ID that does not collide with
// an existing room.
func (s *RoomStore) newRoomID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, roomIDLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, roomIDLength)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		if _, exists := s.rooms[id]; !exists {
			return id
		}
	}
}

func (s *RoomStore) Create(hostID string) *Room {
	now := s.now()
	room := &Room{
		ID:         s.newRoomID(),
		HostID:     hostID,
		CreatedAt:  now,
		LastActive: now,
	}
	s.rooms[room.ID] = room

	return room
}

func (s *RoomStore) Get(roomID string) (*Room, bool) {
	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *RoomStore) Exists(roomID string) bool {
	_, ok := s.rooms[roomID]
	return ok
}

func (s *RoomStore) Delete(roomID string) {
	delete(s.rooms, roomID)
}

// AddPlayer appends player to the room, or refreshes their profile if they
// are already in it.
func (s *RoomStore) AddPlayer(roomID string, player Player) (*Room, bool) {
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}

	_, index, found := lo.FindIndexOf(room.Players, func(p Player) bool {
		return p.ID == player.ID
	})
	if found {
		room.Players[index].Profile = player.Profile
	} else {
		room.Players = append(room.Players, player)
	}
	room.LastActive = s.now()

	return room, true
}

// Idle returns the rooms that have not seen activity since cutoff.
func (s *RoomStore) Idle(cutoff time.Time) []*Room {
	return lo.Filter(lo.Values(s.rooms), func(r *Room, _ int) bool {
		return r.LastActive.Before(cutoff)
	})
}
