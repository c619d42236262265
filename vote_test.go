package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestErrorVote_SecondBallotReplacesFirst(t *testing.T) {
	vote := newErrorVote(Player{ID: "alice"}, "bob", time.Now())

	require.NoError(t, vote.cast("bob", Yes))
	require.NoError(t, vote.cast("bob", No))

	require.Equal(t, Tally{No: 1}, vote.Tally())
	require.False(t, vote.Passed())
}

func TestErrorVote_PassedNeedsStrictMajority(t *testing.T) {
	vote := newErrorVote(Player{ID: "alice"}, "bob", time.Now())
	require.False(t, vote.Passed())

	require.NoError(t, vote.cast("bob", Yes))
	require.True(t, vote.Passed())

	require.NoError(t, vote.cast("carol", No))
	require.False(t, vote.Passed())
}

func TestErrorVote_JSONCarriesTallyNotBallots(t *testing.T) {
	limit := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	vote := newErrorVote(Player{ID: "alice", Profile: Profile{Username: "Alice"}}, "bob", limit)
	require.NoError(t, vote.cast("carol", Yes))
	require.NoError(t, vote.cast("bob", No))

	data, err := json.Marshal(vote)
	require.NoError(t, err)

	var got struct {
		SelectedPlayer Player    `json:"selectedPlayer"`
		NominatorID    string    `json:"nominatorId"`
		LimitDate      time.Time `json:"limitDate"`
		Tally          Tally     `json:"tally"`
		Voters         []string  `json:"voters"`
	}
	require.NoError(t, json.Unmarshal(data, &got))

	require.Equal(t, "alice", got.SelectedPlayer.ID)
	require.Equal(t, "bob", got.NominatorID)
	require.True(t, limit.Equal(got.LimitDate))
	require.Equal(t, Tally{Yes: 1, No: 1}, got.Tally)
	require.Equal(t, []string{"bob", "carol"}, got.Voters)
	require.NotContains(t, string(data), `"yes":"`)
}
