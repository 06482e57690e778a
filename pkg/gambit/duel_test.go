package gambit

import (
	"errors"
	"testing"
	"time"
)

func newTestDuel() *Duel {
	return NewDuel(White, Sq(4, 3), Sq(3, 4), time.Unix(1700000000, 0))
}

func TestDuel_CommitRevealResolve(t *testing.T) {
	d := newTestDuel()
	if d.Defender() != Black {
		t.Fatalf("defender = %s, want black", d.Defender())
	}

	if err := d.Commit(White, HashAllocation(5, "n1")); err != nil {
		t.Fatalf("white commit: %v", err)
	}
	if d.Phase != DuelAllocationPending {
		t.Fatalf("phase after one commit = %s", d.Phase)
	}
	if err := d.Commit(Black, HashAllocation(3, "n2")); err != nil {
		t.Fatalf("black commit: %v", err)
	}
	if d.Phase != DuelBothCommitted {
		t.Fatalf("phase after both commits = %s", d.Phase)
	}

	if err := d.VerifyReveal(White, 5, "n1"); err != nil {
		t.Fatalf("white reveal: %v", err)
	}
	d.RecordReveal(White, 5)
	if d.Resolved() {
		t.Fatal("duel resolved after a single reveal")
	}
	if err := d.VerifyReveal(Black, 3, "n2"); err != nil {
		t.Fatalf("black reveal: %v", err)
	}
	d.RecordReveal(Black, 3)

	if !d.Resolved() || d.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, want success", d.Outcome)
	}
}

func TestDuel_DefenderWinsStrictly(t *testing.T) {
	d := newTestDuel()
	d.Commit(White, HashAllocation(2, "a"))
	d.Commit(Black, HashAllocation(3, "b"))
	d.RecordReveal(White, 2)
	d.RecordReveal(Black, 3)
	if d.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", d.Outcome)
	}
}

func TestDuel_TieGoesToAttacker(t *testing.T) {
	for _, amount := range []int{0, 4} {
		d := newTestDuel()
		d.Commit(White, HashAllocation(amount, "a"))
		d.Commit(Black, HashAllocation(amount, "b"))
		d.RecordReveal(White, amount)
		d.RecordReveal(Black, amount)
		if d.Outcome != OutcomeSuccess {
			t.Fatalf("tie at %d: outcome = %s, want success", amount, d.Outcome)
		}
	}
}

func TestDuel_DuplicateCommit(t *testing.T) {
	d := newTestDuel()
	if err := d.Commit(White, HashAllocation(5, "n")); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := d.Commit(White, HashAllocation(7, "m")); !errors.Is(err, ErrDuplicateCommit) {
		t.Fatalf("second commit err = %v, want ErrDuplicateCommit", err)
	}
	// The original commitment must be untouched.
	if err := d.Commit(Black, HashAllocation(1, "x")); err != nil {
		t.Fatalf("black commit: %v", err)
	}
	if err := d.VerifyReveal(White, 5, "n"); err != nil {
		t.Fatalf("reveal of original commitment: %v", err)
	}
}

func TestDuel_RevealBeforeBothCommitted(t *testing.T) {
	d := newTestDuel()
	d.Commit(White, HashAllocation(5, "n"))
	if err := d.VerifyReveal(White, 5, "n"); !errors.Is(err, ErrNotBothCommitted) {
		t.Fatalf("err = %v, want ErrNotBothCommitted", err)
	}
}

func TestDuel_RevealMismatch(t *testing.T) {
	d := newTestDuel()
	d.Commit(White, HashAllocation(5, "n"))
	d.Commit(Black, HashAllocation(3, "m"))

	cases := []struct {
		name   string
		amount int
		nonce  string
	}{
		{"wrong amount", 6, "n"},
		{"wrong nonce", 5, "other"},
	}
	for _, c := range cases {
		if err := d.VerifyReveal(White, c.amount, c.nonce); !errors.Is(err, ErrCommitmentMismatch) {
			t.Errorf("%s: err = %v, want ErrCommitmentMismatch", c.name, err)
		}
	}
	// A failed reveal attempt keeps the commitment valid.
	if err := d.VerifyReveal(White, 5, "n"); err != nil {
		t.Fatalf("correct reveal after mismatches: %v", err)
	}
}

func TestDuel_ForceDefaultBothSilent(t *testing.T) {
	d := newTestDuel()
	d.ForceDefault(White)
	d.ForceDefault(Black)
	if !d.Resolved() {
		t.Fatal("duel not resolved after defaulting both sides")
	}
	// 0 vs 0 is a tie, so the attacker captures.
	if d.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, want success", d.Outcome)
	}
}

func TestDuel_ForceDefaultOneSilent(t *testing.T) {
	d := newTestDuel()
	d.Commit(White, HashAllocation(2, "n"))
	d.ForceDefault(Black)
	if d.Phase != DuelBothCommitted {
		t.Fatalf("phase = %s, want both_committed", d.Phase)
	}
	if err := d.VerifyReveal(White, 2, "n"); err != nil {
		t.Fatalf("attacker reveal after defender default: %v", err)
	}
	d.RecordReveal(White, 2)
	if d.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, want success", d.Outcome)
	}
	if got := d.Sides[Black].Amount; got != 0 {
		t.Fatalf("defaulted amount = %d, want 0", got)
	}
}

func TestHashAllocation_Deterministic(t *testing.T) {
	a := HashAllocation(7, "nonce")
	b := HashAllocation(7, "nonce")
	if a != b {
		t.Fatal("same inputs hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("hash length %d, want 64 hex chars", len(a))
	}
	if HashAllocation(8, "nonce") == a || HashAllocation(7, "other") == a {
		t.Fatal("distinct inputs collided")
	}
}
