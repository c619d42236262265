package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testSettings = GameSettings{
	TurnDuration:      time.Minute,
	VoteDuration:      20 * time.Second,
	DrawingsPerPlayer: 2,
	MaxPlayers:        8,
}

func testPlayers(names ...string) []Player {
	players := make([]Player, 0, len(names))
	for _, name := range names {
		players = append(players, Player{ID: name, Profile: Profile{Username: name}})
	}
	return players
}

func newTestGame(t *testing.T, now time.Time, names ...string) *Game {
	t.Helper()

	game, err := NewGame(testPlayers(names...), testSettings, now)
	require.NoError(t, err)

	return game
}

func TestNewGame_NeedsTwoPlayers(t *testing.T) {
	_, err := NewGame(testPlayers("alice"), testSettings, time.Now())
	require.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestNewGame_StartsWithFirstPlayer(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob", "carol")

	require.Equal(t, 0, game.CurrentPlayerIndex)
	require.Equal(t, "alice", game.CurrentPlayer().ID)
	require.Equal(t, now.Add(time.Minute), game.LimitDate)
	require.Equal(t, 1, game.CurrentDrawingIndex)
	require.Equal(t, 6, game.NumberOfDrawings)
	require.Empty(t, game.Losers)
	require.True(t, game.Running())
}

func TestGame_CanDrawOnlyForCurrentPlayer(t *testing.T) {
	game := newTestGame(t, time.Now(), "alice", "bob")

	require.True(t, game.CanDraw("alice"))
	require.False(t, game.CanDraw("bob"))
	require.False(t, game.CanDraw("nobody"))
}

func TestGame_NextDrawing_OnlyCurrentPlayer(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob")

	require.ErrorIs(t, game.NextDrawing("bob", now), ErrNotCurrentPlayer)
	require.Equal(t, 0, game.CurrentPlayerIndex)

	later := now.Add(10 * time.Second)
	require.NoError(t, game.NextDrawing("alice", later))
	require.Equal(t, 1, game.CurrentPlayerIndex)
	require.Equal(t, 2, game.CurrentDrawingIndex)
	require.Equal(t, later.Add(time.Minute), game.LimitDate)
	require.True(t, game.CanDraw("bob"))
}

func TestGame_Expire_WaitsForLimitDate(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob")

	require.False(t, game.Expire(now.Add(30*time.Second)))
	require.Equal(t, "alice", game.CurrentPlayer().ID)

	require.True(t, game.Expire(now.Add(time.Minute)))
	require.Equal(t, "bob", game.CurrentPlayer().ID)
}

func TestGame_EndsWhenDrawingsRunOut(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob")

	for i := 0; i < game.NumberOfDrawings-1; i++ {
		require.NoError(t, game.NextDrawing(game.CurrentPlayer().ID, now))
		require.True(t, game.Running())
	}

	require.NoError(t, game.NextDrawing(game.CurrentPlayer().ID, now))
	require.True(t, game.HasEnded)
	require.Equal(t, game.NumberOfDrawings, game.CurrentDrawingIndex)
	require.ErrorIs(t, game.NextDrawing(game.CurrentPlayer().ID, now), ErrNoGame)
	require.False(t, game.Expire(now.Add(time.Hour)))
}

func TestGame_RotationSkipsLosers(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob", "carol")
	game.Losers = testPlayers("bob")

	require.NoError(t, game.NextDrawing("alice", now))
	require.Equal(t, "carol", game.CurrentPlayer().ID)

	require.NoError(t, game.NextDrawing("carol", now))
	require.Equal(t, "alice", game.CurrentPlayer().ID)
}

func TestGame_StartVote_Rules(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob", "carol")

	require.ErrorIs(t, game.StartVote("alice", "bob", now, time.Second), ErrIsDrawing)
	require.ErrorIs(t, game.StartVote("nobody", "alice", now, time.Second), ErrUnknownPlayer)
	require.ErrorIs(t, game.StartVote("bob", "nobody", now, time.Second), ErrUnknownPlayer)

	require.NoError(t, game.StartVote("bob", "alice", now, 20*time.Second))
	require.NotNil(t, game.PlayerErrorVote)
	require.Equal(t, "alice", game.PlayerErrorVote.SelectedPlayer.ID)
	require.Equal(t, now.Add(20*time.Second), game.PlayerErrorVote.LimitDate)

	require.ErrorIs(t, game.StartVote("carol", "alice", now, time.Second), ErrVoteRunning)
}

func TestGame_StartVote_LosersCannotNominateOrBeNominated(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob", "carol")
	game.Losers = testPlayers("carol")

	require.ErrorIs(t, game.StartVote("carol", "alice", now, time.Second), ErrHasLost)
	require.ErrorIs(t, game.StartVote("bob", "carol", now, time.Second), ErrHasLost)
}

func TestGame_Vote_Rules(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob", "carol")

	require.ErrorIs(t, game.Vote("bob", Yes), ErrNoVote)

	require.NoError(t, game.StartVote("bob", "alice", now, time.Minute))
	require.ErrorIs(t, game.Vote("alice", Yes), ErrSelfVote)
	require.ErrorIs(t, game.Vote("bob", YesOrNo("maybe")), ErrInvalidVote)
	require.ErrorIs(t, game.Vote("nobody", Yes), ErrUnknownPlayer)

	require.NoError(t, game.Vote("bob", Yes))
	require.False(t, game.VoteComplete())

	require.NoError(t, game.Vote("carol", No))
	require.True(t, game.VoteComplete())
	require.Equal(t, Tally{Yes: 1, No: 1}, game.PlayerErrorVote.Tally())
}

func TestGame_StopVote_YesMajorityLoses(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob", "carol", "dave")

	require.NoError(t, game.StartVote("bob", "carol", now, time.Minute))
	require.NoError(t, game.Vote("bob", Yes))
	require.NoError(t, game.Vote("dave", Yes))
	require.NoError(t, game.Vote("alice", No))

	vote, passed, err := game.StopVote(now)
	require.NoError(t, err)
	require.True(t, passed)
	require.Equal(t, "carol", vote.SelectedPlayer.ID)
	require.Nil(t, game.PlayerErrorVote)
	require.True(t, game.HasLost("carol"))
	require.Len(t, game.Losers, 1)
	require.Equal(t, "alice", game.CurrentPlayer().ID)
	require.True(t, game.Running())
}

func TestGame_StopVote_TieKeepsPlayer(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob", "carol")

	require.NoError(t, game.StartVote("bob", "carol", now, time.Minute))
	require.NoError(t, game.Vote("bob", Yes))
	require.NoError(t, game.Vote("alice", No))

	_, passed, err := game.StopVote(now)
	require.NoError(t, err)
	require.False(t, passed)
	require.Empty(t, game.Losers)

	_, _, err = game.StopVote(now)
	require.ErrorIs(t, err, ErrNoVote)
}

func TestGame_StopVote_DrawerLosesPassesTurn(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob", "carol")

	require.NoError(t, game.StartVote("bob", "alice", now, time.Minute))
	require.NoError(t, game.Vote("bob", Yes))
	require.NoError(t, game.Vote("carol", Yes))

	later := now.Add(5 * time.Second)
	_, passed, err := game.StopVote(later)
	require.NoError(t, err)
	require.True(t, passed)
	require.Equal(t, "bob", game.CurrentPlayer().ID)
	require.Equal(t, later.Add(time.Minute), game.LimitDate)
	require.Equal(t, 1, game.CurrentDrawingIndex)
}

func TestGame_StopVote_LastPlayerStandingEndsGame(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob")

	require.NoError(t, game.StartVote("bob", "alice", now, time.Minute))
	require.NoError(t, game.Vote("bob", Yes))
	require.True(t, game.VoteComplete())

	_, passed, err := game.StopVote(now)
	require.NoError(t, err)
	require.True(t, passed)
	require.True(t, game.HasEnded)
}

func TestGame_ExpireVote_WaitsForLimitDate(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob", "carol")

	require.NoError(t, game.StartVote("bob", "carol", now, 20*time.Second))
	require.NoError(t, game.Vote("bob", Yes))

	_, stopped := game.ExpireVote(now.Add(10 * time.Second))
	require.False(t, stopped)
	require.NotNil(t, game.PlayerErrorVote)

	vote, stopped := game.ExpireVote(now.Add(20 * time.Second))
	require.True(t, stopped)
	require.Equal(t, "carol", vote.SelectedPlayer.ID)
	require.True(t, game.HasLost("carol"))
}

func TestGame_RemovePlayer_KeepsIndexValid(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob", "carol", "dave")
	require.NoError(t, game.NextDrawing("alice", now))
	require.NoError(t, game.NextDrawing("bob", now))
	require.Equal(t, "carol", game.CurrentPlayer().ID)

	game.RemovePlayer("alice", now)
	require.Equal(t, "carol", game.CurrentPlayer().ID)
	require.Equal(t, 1, game.CurrentPlayerIndex)

	later := now.Add(time.Second)
	game.RemovePlayer("carol", later)
	require.Equal(t, "dave", game.CurrentPlayer().ID)
	require.Equal(t, later.Add(time.Minute), game.LimitDate)
	require.True(t, game.Running())
}

func TestGame_RemovePlayer_LastInOrderWrapsAround(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob", "carol")
	require.NoError(t, game.NextDrawing("alice", now))
	require.NoError(t, game.NextDrawing("bob", now))

	game.RemovePlayer("carol", now)
	require.Equal(t, "alice", game.CurrentPlayer().ID)
}

func TestGame_RemovePlayer_EndsGameBelowTwoPlayers(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob")

	game.RemovePlayer("bob", now)
	require.True(t, game.HasEnded)
	require.Equal(t, 0, game.CurrentPlayerIndex)
	require.Len(t, game.Players, 1)
}

func TestGame_RemovePlayer_CancelsVoteAgainstThem(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob", "carol")

	require.NoError(t, game.StartVote("bob", "carol", now, time.Minute))
	game.RemovePlayer("carol", now)
	require.Nil(t, game.PlayerErrorVote)
}

func TestGame_CloneIsIndependent(t *testing.T) {
	now := time.Now()
	game := newTestGame(t, now, "alice", "bob", "carol")
	require.NoError(t, game.StartVote("bob", "carol", now, time.Minute))

	c := game.clone()
	require.NoError(t, game.Vote("bob", Yes))
	game.Losers = append(game.Losers, testPlayers("alice")...)

	require.Equal(t, Tally{}, c.PlayerErrorVote.Tally())
	require.Empty(t, c.Losers)
}
