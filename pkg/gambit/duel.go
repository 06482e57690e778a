package gambit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DuelPhase is the duel state machine phase.
type DuelPhase string

const (
	DuelAllocationPending DuelPhase = "allocation_pending"
	DuelBothCommitted     DuelPhase = "both_committed"
	DuelResolved          DuelPhase = "resolved"
)

// DuelOutcome is the resolved result of a duel.
type DuelOutcome string

const (
	OutcomePending DuelOutcome = "pending"
	OutcomeSuccess DuelOutcome = "success" // attacker captured
	OutcomeFailed  DuelOutcome = "failed"  // attacker repelled
)

// DuelSide holds one side's sealed allocation. Amount is meaningless
// until Revealed is true; before that only Committed may be disclosed to
// the opponent.
type DuelSide struct {
	Committed  bool   `json:"committed"`
	Commitment string `json:"commitment,omitempty"`
	Revealed   bool   `json:"revealed"`
	Amount     int    `json:"amount"`
}

// Duel is the transient sealed-bid auction resolving one capture attempt.
type Duel struct {
	Phase          DuelPhase   `json:"phase"`
	Attacker       Color       `json:"attacker"`
	AttackerSquare Square      `json:"attacker_square"`
	DefenderSquare Square      `json:"defender_square"`
	StartedAt      time.Time   `json:"started_at"`
	Sides          [2]DuelSide `json:"sides"` // indexed by Color
	Outcome        DuelOutcome `json:"outcome"`
}

// NewDuel starts a duel in AllocationPending with cleared allocations.
func NewDuel(attacker Color, attackerSq, defenderSq Square, now time.Time) *Duel {
	return &Duel{
		Phase:          DuelAllocationPending,
		Attacker:       attacker,
		AttackerSquare: attackerSq,
		DefenderSquare: defenderSq,
		StartedAt:      now,
		Outcome:        OutcomePending,
	}
}

// Defender returns the defending side.
func (d *Duel) Defender() Color { return d.Attacker.Other() }

// HashAllocation computes the commitment hash for an allocation amount
// and nonce. Both sides commit hash(amount||nonce) before either reveals,
// so neither can condition its bid on the other's value.
func HashAllocation(amount int, nonce string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", amount, nonce)))
	return hex.EncodeToString(sum[:])
}

// Commit stores a side's commitment hash.
func (d *Duel) Commit(side Color, commitment string) error {
	if d.Phase != DuelAllocationPending {
		return rejectf("duel is not accepting commitments in phase %s", d.Phase)
	}
	if d.Sides[side].Committed {
		return ErrDuplicateCommit
	}
	d.Sides[side] = DuelSide{Committed: true, Commitment: commitment}
	if d.Sides[side.Other()].Committed {
		d.Phase = DuelBothCommitted
	}
	return nil
}

// VerifyReveal checks a side's revealed amount and nonce against its
// stored commitment. Reveals are refused until both sides have committed.
func (d *Duel) VerifyReveal(side Color, amount int, nonce string) error {
	if d.Phase == DuelAllocationPending {
		return ErrNotBothCommitted
	}
	if d.Phase != DuelBothCommitted {
		return rejectf("duel is not accepting reveals in phase %s", d.Phase)
	}
	if d.Sides[side].Revealed {
		return rejectf("side %s already revealed", side)
	}
	if HashAllocation(amount, nonce) != d.Sides[side].Commitment {
		return ErrCommitmentMismatch
	}
	return nil
}

// RecordReveal stores a validated, debited allocation and resolves the
// duel once both sides have revealed. The caller debits the pool first.
func (d *Duel) RecordReveal(side Color, amount int) {
	d.Sides[side].Revealed = true
	d.Sides[side].Amount = amount
	if d.Sides[side.Other()].Revealed {
		d.resolve()
	}
}

// ForceDefault treats a silent side as committed-and-revealed with
// amount 0, the timeout policy that keeps every duel terminating.
func (d *Duel) ForceDefault(side Color) {
	s := &d.Sides[side]
	if !s.Committed {
		s.Committed = true
		s.Commitment = ""
	}
	if !s.Revealed {
		s.Revealed = true
		s.Amount = 0
	}
	if d.Sides[0].Revealed && d.Sides[1].Revealed {
		d.resolve()
	} else if d.Sides[0].Committed && d.Sides[1].Committed {
		d.Phase = DuelBothCommitted
	}
}

// resolve applies the tie-goes-to-attacker rule.
func (d *Duel) resolve() {
	d.Phase = DuelResolved
	if d.AttackerWins() {
		d.Outcome = OutcomeSuccess
	} else {
		d.Outcome = OutcomeFailed
	}
}

// AttackerWins reports the resolution rule: attacker wins ties.
func (d *Duel) AttackerWins() bool {
	return d.Sides[d.Attacker].Amount >= d.Sides[d.Defender()].Amount
}

// Resolved reports whether both allocations are revealed and the outcome fixed.
func (d *Duel) Resolved() bool { return d.Phase == DuelResolved }
