/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/samber/lo"
)

type YesOrNo string

const (
	Yes YesOrNo = "yes"
	No  YesOrNo = "no"
)

func (v YesOrNo) valid() bool {
	return v == Yes || v == No
}

type Tally struct {
	Yes int `json:"yes"`
	No  int `json:"no"`
}

// ErrorVote asks the room whether SelectedPlayer made an error in their
// drawing.
type ErrorVote struct {
	SelectedPlayer Player
	NominatorID    string
	LimitDate      time.Time

	ballots map[string]YesOrNo
}

func newErrorVote(selected Player, nominatorID string, limit time.Time) *ErrorVote {
	return &ErrorVote{
		SelectedPlayer: selected,
		NominatorID:    nominatorID,
		LimitDate:      limit,
		ballots:        make(map[string]YesOrNo),
	}
}

// cast records a ballot. A second ballot from the same voter replaces the first.
func (v *ErrorVote) cast(voterID string, vote YesOrNo) error {
	if !vote.valid() {
		return ErrInvalidVote
	}
	if voterID == v.SelectedPlayer.ID {
		return ErrSelfVote
	}

	v.ballots[voterID] = vote

	return nil
}

func (v *ErrorVote) HasVoted(voterID string) bool {
	_, ok := v.ballots[voterID]
	return ok
}

func (v *ErrorVote) Tally() Tally {
	var t Tally
	for _, ballot := range v.ballots {
		switch ballot {
		case Yes:
			t.Yes++
		case No:
			t.No++
		}
	}
	return t
}

// Passed reports a strict yes majority. Ties keep the player in the game.
func (v *ErrorVote) Passed() bool {
	t := v.Tally()
	return t.Yes > t.No
}

func (v *ErrorVote) forget(voterID string) {
	delete(v.ballots, voterID)
}

func (v *ErrorVote) clone() *ErrorVote {
	c := *v
	c.ballots = maps.Clone(v.ballots)
	return &c
}

func (v *ErrorVote) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SelectedPlayer Player    `json:"selectedPlayer"`
		NominatorID    string    `json:"nominatorId"`
		LimitDate      time.Time `json:"limitDate"`
		Tally          Tally     `json:"tally"`
		Voters         []string  `json:"voters"`
	}{
		SelectedPlayer: v.SelectedPlayer,
		NominatorID:    v.NominatorID,
		LimitDate:      v.LimitDate,
		Tally:          v.Tally(),
		Voters:         v.voters(),
	})
}

func (v *ErrorVote) voters() []string {
	ids := lo.Keys(v.ballots)
	slices.Sort(ids)
	return ids
}
