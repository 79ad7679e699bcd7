package consensus

import (
	"errors"

	"arcade/internal/server/core"
)

var ErrAlreadyVoted = errors.New("already voted in this window")

type vote struct {
	direction core.Direction
	seq       int
}

// Ballot collects one directional vote per session for a single window.
// It is not safe for concurrent use, the owning room lock guards it.
type Ballot struct {
	votes map[string]vote
	seq   int
}

func NewBallot() *Ballot {
	return &Ballot{votes: make(map[string]vote)}
}

// Cast records a vote, a session may vote once per window
func (b *Ballot) Cast(sessionID string, d core.Direction) error {
	if _, ok := b.votes[sessionID]; ok {
		return ErrAlreadyVoted
	}
	b.seq++
	b.votes[sessionID] = vote{direction: d, seq: b.seq}
	return nil
}

func (b *Ballot) Len() int {
	return len(b.votes)
}

func (b *Ballot) Open() bool {
	return len(b.votes) > 0
}

// Complete reports whether every listed online session has voted
func (b *Ballot) Complete(online []string) bool {
	if len(online) == 0 {
		return false
	}
	for _, s := range online {
		if _, ok := b.votes[s]; !ok {
			return false
		}
	}
	return true
}

// Tally counts votes per direction
func (b *Ballot) Tally() map[core.Direction]int {
	counts := make(map[core.Direction]int, len(core.Directions))
	for _, v := range b.votes {
		counts[v.direction]++
	}
	return counts
}

// Resolve picks the plurality direction among those legal after current.
// Ties go to the direction whose first vote arrived earliest.
// Returns false when no legal direction received a vote.
func (b *Ballot) Resolve(current core.Direction) (core.Direction, bool) {
	type candidate struct {
		count int
		first int
	}
	candidates := make(map[core.Direction]*candidate)
	for _, v := range b.votes {
		if current != "" && !current.CanFollow(v.direction) {
			continue
		}
		c, ok := candidates[v.direction]
		if !ok {
			c = &candidate{first: v.seq}
			candidates[v.direction] = c
		}
		c.count++
		if v.seq < c.first {
			c.first = v.seq
		}
	}

	var (
		best  core.Direction
		bestC *candidate
	)
	for d, c := range candidates {
		if bestC == nil || c.count > bestC.count || (c.count == bestC.count && c.first < bestC.first) {
			best, bestC = d, c
		}
	}
	return best, bestC != nil
}

// Reset clears the ballot for the next window
func (b *Ballot) Reset() {
	clear(b.votes)
	b.seq = 0
}
