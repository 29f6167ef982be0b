// Package combat implements the deterministic 3-round, 4-unit combat engine
// (§4.4). It is a pure library: given the same armies and moves, every
// implementation (client or validator) must reach byte-identical outcomes.
package combat

import (
	"errors"
	"fmt"

	"github.com/manastr/validator/pkg/army"
)

// Rounds is the fixed number of combat rounds (§4.4).
const Rounds = 3

// Side identifies which player a unit/army belongs to, used only for
// deterministic tie-break ordering (challenger resolves first).
type Side int

const (
	Challenger Side = iota
	Acceptor
)

// Move is one unit's action for the round: who it targets and whether it
// invokes its ability. It mirrors event.CombatMove; callers at the wire
// layer convert between the two so this package stays free of the event
// schema's concerns.
type Move struct {
	TargetIndex int
	UseAbility  bool
}

// UnitState is the live combat state of one army position.
type UnitState struct {
	Attack    uint8
	Defense   uint8
	Health    int
	MaxHealth uint8
	Ability   army.Ability
	Alive     bool
}

// ArmyState is the 4-position combat state of one side's army.
type ArmyState [army.NumUnits]UnitState

// NewArmyState converts a derived army into its initial combat state.
func NewArmyState(a army.Army) ArmyState {
	var s ArmyState
	for i, u := range a {
		s[i] = UnitState{
			Attack:    u.Attack,
			Defense:   u.Defense,
			Health:    int(u.Health),
			MaxHealth: u.MaxHealth,
			Ability:   u.Ability,
			Alive:     true,
		}
	}
	return s
}

// AlivePositions returns the indices of living units, in ascending order.
// Round moves are supplied "one per surviving unit" in this same order.
func (s ArmyState) AlivePositions() []int {
	var out []int
	for i, u := range s {
		if u.Alive {
			out = append(out, i)
		}
	}
	return out
}

// RoundOutcome is the deterministic result of resolving one round.
type RoundOutcome struct {
	Round         int
	DamageByA     int
	DamageByB     int
	Winner        Side // meaningful only if !Draw
	Draw          bool
}

// ErrIllegalMove is returned when a move targets a dead or out-of-range unit,
// or when the move count does not match the number of surviving units.
var ErrIllegalMove = errors.New("combat: illegal move")

// expandMoves maps a "one per surviving unit" move list back onto full
// 4-position slots, leaving dead positions as nil.
func expandMoves(state ArmyState, moves []Move) ([army.NumUnits]*Move, error) {
	var out [army.NumUnits]*Move
	alive := state.AlivePositions()
	if len(moves) != len(alive) {
		return out, fmt.Errorf("%w: got %d moves, want %d (one per surviving unit)", ErrIllegalMove, len(moves), len(alive))
	}
	for i, pos := range alive {
		m := moves[i]
		out[pos] = &m
	}
	return out, nil
}

// ResolveRound resolves one round of combat deterministically, per §4.4's
// five-step procedure. movesA/movesB are "one per surviving unit" lists for
// the challenger's and acceptor's armies respectively. Returns the outcome
// and the two armies' post-round state.
func ResolveRound(round int, a, b ArmyState, movesA, movesB []Move) (RoundOutcome, ArmyState, ArmyState, error) {
	slotsA, err := expandMoves(a, movesA)
	if err != nil {
		return RoundOutcome{}, a, b, fmt.Errorf("challenger: %w", err)
	}
	slotsB, err := expandMoves(b, movesB)
	if err != nil {
		return RoundOutcome{}, a, b, fmt.Errorf("acceptor: %w", err)
	}

	if err := validateTargets(slotsA, b); err != nil {
		return RoundOutcome{}, a, b, fmt.Errorf("challenger targets: %w", err)
	}
	if err := validateTargets(slotsB, a); err != nil {
		return RoundOutcome{}, a, b, fmt.Errorf("acceptor targets: %w", err)
	}

	// Step 1: Shield abilities, marking shielded defenders for this round.
	shieldedA := shieldedMask(a, slotsA)
	shieldedB := shieldedMask(b, slotsB)

	// Step 2/3: compute raw damage off a snapshot of pre-round state, then
	// apply simultaneously. Challenger resolves first for deterministic
	// tie-breaking (§4.4), though since all damage is collected before
	// being applied, the only observable effect of the ordering is which
	// side's damage is summed first below.
	damageToB := computeDamage(a, slotsA, b, shieldedB)
	damageToA := computeDamage(b, slotsB, a, shieldedA)

	applyDamage(&a, damageToA)
	applyDamage(&b, damageToB)

	// Step 4: Heal abilities, evaluated after damage so a healer that
	// survives the round benefits, and a healer that dies from damage does
	// not heal.
	applyHeals(&a, slotsA)
	applyHeals(&b, slotsB)

	// Step 5: mark the newly dead; clear per-round flags (state is
	// recomputed fresh each round so there is nothing stateful to clear
	// beyond Health/Alive, which is exactly what we just updated).
	killNonPositive(&a)
	killNonPositive(&b)

	totalA := sum(damageToB) // damage the challenger (side A) inflicted
	totalB := sum(damageToA) // damage the acceptor (side B) inflicted

	outcome := RoundOutcome{Round: round, DamageByA: totalA, DamageByB: totalB}
	switch {
	case totalA > totalB:
		outcome.Winner = Challenger
	case totalB > totalA:
		outcome.Winner = Acceptor
	default:
		outcome.Draw = true
	}

	return outcome, a, b, nil
}

func validateTargets(slots [army.NumUnits]*Move, defender ArmyState) error {
	for _, m := range slots {
		if m == nil {
			continue
		}
		if m.TargetIndex < 0 || m.TargetIndex >= army.NumUnits {
			return fmt.Errorf("%w: target_index %d out of range", ErrIllegalMove, m.TargetIndex)
		}
		if !defender[m.TargetIndex].Alive {
			return fmt.Errorf("%w: target_index %d is a dead unit", ErrIllegalMove, m.TargetIndex)
		}
	}
	return nil
}

func shieldedMask(state ArmyState, slots [army.NumUnits]*Move) [army.NumUnits]bool {
	var out [army.NumUnits]bool
	for i, m := range slots {
		if m == nil || !state[i].Alive {
			continue
		}
		if state[i].Ability == army.AbilityShield && m.UseAbility {
			out[i] = true
		}
	}
	return out
}

// computeDamage returns, per defender position, the damage inflicted by
// attackers in attacker that targeted it, snapshotting attacker/defender
// stats before any damage is applied.
func computeDamage(attacker ArmyState, slots [army.NumUnits]*Move, defender ArmyState, shielded [army.NumUnits]bool) [army.NumUnits]int {
	var out [army.NumUnits]int
	for i, m := range slots {
		if m == nil || !attacker[i].Alive {
			continue
		}
		target := m.TargetIndex
		if shielded[target] {
			continue
		}
		raw := int(attacker[i].Attack) - int(defender[target].Defense)
		if raw < 0 {
			raw = 0
		}
		if attacker[i].Ability == army.AbilityBoost && m.UseAbility {
			raw *= 2
		}
		out[target] += raw
	}
	return out
}

func applyDamage(state *ArmyState, damage [army.NumUnits]int) {
	for i := range state {
		if !state[i].Alive {
			continue
		}
		state[i].Health -= damage[i]
	}
}

func applyHeals(state *ArmyState, slots [army.NumUnits]*Move) {
	for i, m := range slots {
		if m == nil || !state[i].Alive || state[i].Health <= 0 {
			continue
		}
		if state[i].Ability == army.AbilityHeal && m.UseAbility {
			healed := state[i].Health + int(state[i].MaxHealth)/2
			if healed > int(state[i].MaxHealth) {
				healed = int(state[i].MaxHealth)
			}
			state[i].Health = healed
		}
	}
}

func killNonPositive(state *ArmyState) {
	for i := range state {
		if state[i].Alive && state[i].Health <= 0 {
			state[i].Alive = false
			state[i].Health = 0
		}
	}
}

func sum(arr [army.NumUnits]int) int {
	total := 0
	for _, v := range arr {
		total += v
	}
	return total
}

// MatchOutcome is the final result of a 3-round match.
type MatchOutcome struct {
	Rounds []RoundOutcome
	Winner Side
	Draw   bool
}

// PlayMatch drives Rounds rounds of combat from initial armies a, b using the
// per-round move lists (indexed [0,Rounds)). Returns the full round history,
// the final army states, and the match winner per §4.4's "more rounds won,
// else more cumulative damage, else draw" rule.
func PlayMatch(a, b army.Army, movesA, movesB [][]Move) (MatchOutcome, ArmyState, ArmyState, error) {
	if len(movesA) != Rounds || len(movesB) != Rounds {
		return MatchOutcome{}, ArmyState{}, ArmyState{}, fmt.Errorf("combat: expected %d rounds of moves for each side", Rounds)
	}

	stateA := NewArmyState(a)
	stateB := NewArmyState(b)

	var outcome MatchOutcome
	cumA, cumB := 0, 0
	winsA, winsB := 0, 0

	for r := 0; r < Rounds; r++ {
		ro, nextA, nextB, err := ResolveRound(r+1, stateA, stateB, movesA[r], movesB[r])
		if err != nil {
			return MatchOutcome{}, stateA, stateB, fmt.Errorf("round %d: %w", r+1, err)
		}
		stateA, stateB = nextA, nextB
		outcome.Rounds = append(outcome.Rounds, ro)
		cumA += ro.DamageByA
		cumB += ro.DamageByB
		switch {
		case ro.Draw:
		case ro.Winner == Challenger:
			winsA++
		case ro.Winner == Acceptor:
			winsB++
		}
	}

	switch {
	case winsA > winsB:
		outcome.Winner = Challenger
	case winsB > winsA:
		outcome.Winner = Acceptor
	case cumA > cumB:
		outcome.Winner = Challenger
	case cumB > cumA:
		outcome.Winner = Acceptor
	default:
		outcome.Draw = true
	}

	return outcome, stateA, stateB, nil
}
