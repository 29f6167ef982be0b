package combat

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/manastr/validator/pkg/army"
)

type vectorArmy struct {
	Attack  uint8  `json:"attack"`
	Defense uint8  `json:"defense"`
	Health  uint8  `json:"health"`
	Ability string `json:"ability"`
}

type vectorMove struct {
	TargetIndex int  `json:"target_index"`
	UseAbility  bool `json:"use_ability"`
}

type vectorRoundOutcome struct {
	DamageByA int    `json:"damage_by_a"`
	DamageByB int    `json:"damage_by_b"`
	Winner    string `json:"winner"`
	Draw      bool   `json:"draw"`
}

type vectorWant struct {
	Draw   bool                 `json:"draw"`
	Winner string               `json:"winner"`
	Rounds []vectorRoundOutcome `json:"rounds"`
}

type vector struct {
	Name   string         `json:"name"`
	ArmyA  vectorArmy     `json:"army_a"`
	ArmyB  vectorArmy     `json:"army_b"`
	MovesA [][]vectorMove `json:"moves_a"`
	MovesB [][]vectorMove `json:"moves_b"`
	Want   vectorWant     `json:"want"`
}

func abilityFromName(name string) army.Ability {
	switch name {
	case "boost":
		return army.AbilityBoost
	case "shield":
		return army.AbilityShield
	case "heal":
		return army.AbilityHeal
	default:
		return army.AbilityNone
	}
}

func vectorToArmy(v vectorArmy) army.Army {
	var a army.Army
	for i := range a {
		a[i] = army.Unit{
			Attack:    v.Attack,
			Defense:   v.Defense,
			Health:    v.Health,
			MaxHealth: v.Health,
			Ability:   abilityFromName(v.Ability),
		}
	}
	return a
}

func vectorToMoves(rounds [][]vectorMove) [][]Move {
	out := make([][]Move, len(rounds))
	for r, round := range rounds {
		moves := make([]Move, len(round))
		for i, m := range round {
			moves[i] = Move{TargetIndex: m.TargetIndex, UseAbility: m.UseAbility}
		}
		out[r] = moves
	}
	return out
}

func sideName(s Side, draw bool) string {
	if draw {
		return ""
	}
	if s == Challenger {
		return "challenger"
	}
	return "acceptor"
}

// TestConformanceVectors pins known-good input/output pairs for PlayMatch so
// a future change to the combat engine's arithmetic cannot silently drift
// without failing a test that says exactly what the old behavior was.
func TestConformanceVectors(t *testing.T) {
	raw, err := os.ReadFile("testdata/vectors.json")
	if err != nil {
		t.Fatalf("read vectors.json: %v", err)
	}
	var vectors []vector
	if err := json.Unmarshal(raw, &vectors); err != nil {
		t.Fatalf("parse vectors.json: %v", err)
	}
	if len(vectors) == 0 {
		t.Fatal("vectors.json must contain at least one vector")
	}

	for _, v := range vectors {
		t.Run(v.Name, func(t *testing.T) {
			a := vectorToArmy(v.ArmyA)
			b := vectorToArmy(v.ArmyB)
			movesA := vectorToMoves(v.MovesA)
			movesB := vectorToMoves(v.MovesB)

			outcome, _, _, err := PlayMatch(a, b, movesA, movesB)
			if err != nil {
				t.Fatalf("PlayMatch: %v", err)
			}
			if outcome.Draw != v.Want.Draw || sideName(outcome.Winner, outcome.Draw) != v.Want.Winner {
				t.Fatalf("match outcome = {draw:%v winner:%s}, want {draw:%v winner:%s}",
					outcome.Draw, sideName(outcome.Winner, outcome.Draw), v.Want.Draw, v.Want.Winner)
			}
			if len(outcome.Rounds) != len(v.Want.Rounds) {
				t.Fatalf("got %d round outcomes, want %d", len(outcome.Rounds), len(v.Want.Rounds))
			}
			for i, ro := range outcome.Rounds {
				want := v.Want.Rounds[i]
				if ro.DamageByA != want.DamageByA || ro.DamageByB != want.DamageByB ||
					ro.Draw != want.Draw || sideName(ro.Winner, ro.Draw) != want.Winner {
					t.Fatalf("round %d = %+v (winner=%s), want damage_by_a=%d damage_by_b=%d winner=%s draw=%v",
						i+1, ro, sideName(ro.Winner, ro.Draw), want.DamageByA, want.DamageByB, want.Winner, want.Draw)
				}
			}
		})
	}
}
