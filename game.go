/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"slices"
	"time"

	"github.com/samber/lo"
)

const minPlayers = 2

type GameSettings struct {
	TurnDuration      time.Duration
	VoteDuration      time.Duration
	DrawingsPerPlayer int
	MaxPlayers        int
}

// Game tracks whose turn it is to add to the shared drawing, who has been
// voted out, and the error vote in progress, if any.
type Game struct {
	Players             []Player   `json:"players"`
	CurrentPlayerIndex  int        `json:"currentPlayerIndex"`
	LimitDate           time.Time  `json:"limitDate"`
	Losers              []Player   `json:"losers"`
	PlayerErrorVote     *ErrorVote `json:"playerErrorVoteManager,omitempty"`
	HasEnded            bool       `json:"hasEnded"`
	CurrentDrawingIndex int        `json:"currentDrawingIndex"`
	NumberOfDrawings    int        `json:"currentNumberOfDrawings"`

	turnDuration time.Duration
}

func NewGame(players []Player, settings GameSettings, now time.Time) (*Game, error) {
	if len(players) < minPlayers {
		return nil, ErrNotEnoughPlayers
	}

	return &Game{
		Players:             slices.Clone(players),
		CurrentPlayerIndex:  0,
		LimitDate:           now.Add(settings.TurnDuration),
		Losers:              []Player{},
		CurrentDrawingIndex: 1,
		NumberOfDrawings:    settings.DrawingsPerPlayer * len(players),
		turnDuration:        settings.TurnDuration,
	}, nil
}

func (g *Game) Running() bool {
	return !g.HasEnded
}

func (g *Game) CurrentPlayer() Player {
	return g.Players[g.CurrentPlayerIndex]
}

// CanDraw is the draw permission: only the current player may emit strokes.
func (g *Game) CanDraw(playerID string) bool {
	return g.Running() && g.CurrentPlayer().ID == playerID
}

func (g *Game) HasLost(playerID string) bool {
	return lo.ContainsBy(g.Losers, func(p Player) bool {
		return p.ID == playerID
	})
}

func (g *Game) player(playerID string) (Player, bool) {
	return lo.Find(g.Players, func(p Player) bool {
		return p.ID == playerID
	})
}

func (g *Game) remaining() int {
	return lo.CountBy(g.Players, func(p Player) bool {
		return !g.HasLost(p.ID)
	})
}

// nextIndex returns the first player after from who has not lost.
func (g *Game) nextIndex(from int) int {
	n := len(g.Players)
	for i := 1; i <= n; i++ {
		next := (from + i) % n
		if !g.HasLost(g.Players[next].ID) {
			return next
		}
	}
	return from
}

func (g *Game) end() {
	g.HasEnded = true
	g.PlayerErrorVote = nil
}

// passTurn hands the pencil to the next player without counting a drawing.
func (g *Game) passTurn(now time.Time) {
	if g.remaining() < minPlayers {
		g.end()
		return
	}

	g.CurrentPlayerIndex = g.nextIndex(g.CurrentPlayerIndex)
	g.LimitDate = now.Add(g.turnDuration)
}

func (g *Game) advance(now time.Time) {
	g.CurrentDrawingIndex++
	if g.CurrentDrawingIndex > g.NumberOfDrawings {
		g.CurrentDrawingIndex = g.NumberOfDrawings
		g.end()
		return
	}

	g.passTurn(now)
}

// NextDrawing is the current player sending their drawing.
func (g *Game) NextDrawing(playerID string, now time.Time) error {
	if !g.Running() {
		return ErrNoGame
	}
	if !g.CanDraw(playerID) {
		return ErrNotCurrentPlayer
	}

	g.advance(now)

	return nil
}

// Expire advances the turn if the countdown has run out.
func (g *Game) Expire(now time.Time) bool {
	if !g.Running() || now.Before(g.LimitDate) {
		return false
	}

	g.advance(now)

	return true
}

func (g *Game) StartVote(nominatorID, selectedID string, now time.Time, d time.Duration) error {
	if !g.Running() {
		return ErrNoGame
	}
	if g.PlayerErrorVote != nil {
		return ErrVoteRunning
	}
	if _, ok := g.player(nominatorID); !ok {
		return ErrUnknownPlayer
	}
	if g.CurrentPlayer().ID == nominatorID {
		return ErrIsDrawing
	}
	if g.HasLost(nominatorID) {
		return ErrHasLost
	}

	selected, ok := g.player(selectedID)
	if !ok {
		return ErrUnknownPlayer
	}
	if g.HasLost(selectedID) {
		return ErrHasLost
	}

	g.PlayerErrorVote = newErrorVote(selected, nominatorID, now.Add(d))

	return nil
}

func (g *Game) Vote(voterID string, vote YesOrNo) error {
	if g.PlayerErrorVote == nil {
		return ErrNoVote
	}
	if _, ok := g.player(voterID); !ok {
		return ErrUnknownPlayer
	}
	if g.HasLost(voterID) {
		return ErrHasLost
	}

	return g.PlayerErrorVote.cast(voterID, vote)
}

// eligibleVoters are the players still in the game, minus the accused.
func (g *Game) eligibleVoters() []Player {
	return lo.Filter(g.Players, func(p Player, _ int) bool {
		return !g.HasLost(p.ID) && p.ID != g.PlayerErrorVote.SelectedPlayer.ID
	})
}

func (g *Game) VoteComplete() bool {
	if g.PlayerErrorVote == nil {
		return false
	}

	return lo.EveryBy(g.eligibleVoters(), func(p Player) bool {
		return g.PlayerErrorVote.HasVoted(p.ID)
	})
}

// StopVote closes the running vote and applies its result. A passed vote
// puts the selected player in the loser list and, if they were drawing,
// passes the turn.
func (g *Game) StopVote(now time.Time) (*ErrorVote, bool, error) {
	vote := g.PlayerErrorVote
	if vote == nil {
		return nil, false, ErrNoVote
	}
	g.PlayerErrorVote = nil

	passed := vote.Passed()
	if !passed || g.HasLost(vote.SelectedPlayer.ID) {
		return vote, passed, nil
	}

	wasDrawing := g.CurrentPlayer().ID == vote.SelectedPlayer.ID
	g.Losers = append(g.Losers, vote.SelectedPlayer)

	switch {
	case g.remaining() < minPlayers:
		g.end()
	case wasDrawing:
		g.passTurn(now)
	}

	return vote, passed, nil
}

// ExpireVote stops the running vote if its countdown has run out.
func (g *Game) ExpireVote(now time.Time) (*ErrorVote, bool) {
	if g.PlayerErrorVote == nil || now.Before(g.PlayerErrorVote.LimitDate) {
		return nil, false
	}

	vote, _, _ := g.StopVote(now)

	return vote, true
}

// RemovePlayer drops a player who left the room mid-game.
func (g *Game) RemovePlayer(playerID string, now time.Time) {
	_, index, ok := lo.FindIndexOf(g.Players, func(p Player) bool {
		return p.ID == playerID
	})
	if !ok {
		return
	}

	wasDrawing := index == g.CurrentPlayerIndex

	g.Players = slices.Delete(g.Players, index, index+1)
	g.Losers = lo.Reject(g.Losers, func(p Player, _ int) bool {
		return p.ID == playerID
	})

	if vote := g.PlayerErrorVote; vote != nil {
		if vote.SelectedPlayer.ID == playerID {
			g.PlayerErrorVote = nil
		} else {
			vote.forget(playerID)
		}
	}

	if len(g.Players) == 0 {
		g.CurrentPlayerIndex = 0
		g.end()
		return
	}

	if index < g.CurrentPlayerIndex {
		g.CurrentPlayerIndex--
	}

	if g.Running() && g.remaining() < minPlayers {
		g.CurrentPlayerIndex = min(g.CurrentPlayerIndex, len(g.Players)-1)
		g.end()
		return
	}

	if wasDrawing && g.Running() {
		// The player after the one who left now sits at index.
		g.CurrentPlayerIndex = g.nextIndex((index - 1 + len(g.Players)) % len(g.Players))
		g.LimitDate = now.Add(g.turnDuration)
		return
	}

	g.CurrentPlayerIndex = min(g.CurrentPlayerIndex, len(g.Players)-1)
}

func (g *Game) clone() *Game {
	c := *g
	c.Players = slices.Clone(g.Players)
	c.Losers = slices.Clone(g.Losers)
	if g.PlayerErrorVote != nil {
		c.PlayerErrorVote = g.PlayerErrorVote.clone()
	}
	return &c
}
