package army

import (
	"math/rand"
	"testing"
)

func randomCValue(seed int64) CValue {
	r := rand.New(rand.NewSource(seed))
	var c CValue
	r.Read(c[:])
	return c
}

func TestDeriveArmyIsDeterministic(t *testing.T) {
	table := DefaultLeagueTable()
	c := randomCValue(42)

	a1, err := DeriveArmy(c, 3, table)
	if err != nil {
		t.Fatalf("DeriveArmy: %v", err)
	}
	a2, err := DeriveArmy(c, 3, table)
	if err != nil {
		t.Fatalf("DeriveArmy: %v", err)
	}
	if a1 != a2 {
		t.Fatalf("DeriveArmy is not deterministic: %+v != %+v", a1, a2)
	}
}

func TestDeriveArmyStatsAreClamped(t *testing.T) {
	table := DefaultLeagueTable()
	for seed := int64(0); seed < 200; seed++ {
		c := randomCValue(seed)
		for league := uint8(0); league < NumLeagues; league++ {
			a, err := DeriveArmy(c, league, table)
			if err != nil {
				t.Fatalf("DeriveArmy: %v", err)
			}
			for i, u := range a {
				if u.Attack < MinAttack || u.Attack > MaxAttack {
					t.Fatalf("unit %d attack %d out of [%d,%d]", i, u.Attack, MinAttack, MaxAttack)
				}
				if u.Defense < MinDefense || u.Defense > MaxDefense {
					t.Fatalf("unit %d defense %d out of [%d,%d]", i, u.Defense, MinDefense, MaxDefense)
				}
				if u.Health < MinHealth || u.Health > MaxHealth {
					t.Fatalf("unit %d health %d out of [%d,%d]", i, u.Health, MinHealth, MaxHealth)
				}
				if u.Health != u.MaxHealth {
					t.Fatalf("unit %d health %d != max_health %d at derivation time", i, u.Health, u.MaxHealth)
				}
			}
		}
	}
}

func TestDeriveArmyRejectsUnknownLeague(t *testing.T) {
	table := DefaultLeagueTable()
	if _, err := DeriveArmy(CValue{}, 16, table); err == nil {
		t.Fatal("expected error for league_id 16")
	}
}

func TestDeriveArmyDifferentCYieldsDifferentArmy(t *testing.T) {
	table := DefaultLeagueTable()
	a, err := DeriveArmy(randomCValue(1), 0, table)
	if err != nil {
		t.Fatalf("DeriveArmy: %v", err)
	}
	b, err := DeriveArmy(randomCValue(2), 0, table)
	if err != nil {
		t.Fatalf("DeriveArmy: %v", err)
	}
	if a == b {
		t.Fatal("expected different C values to (almost certainly) yield different armies")
	}
}

func TestParseLeagueTableRejectsWrongCount(t *testing.T) {
	_, err := ParseLeagueTable([]byte("leagues:\n  - {attack_bonus: 0, defense_bonus: 0, health_bonus: 0}\n"))
	if err == nil {
		t.Fatal("expected error for a league table with fewer than 16 entries")
	}
}

func TestDeriveArmiesOrderMatchesInput(t *testing.T) {
	table := DefaultLeagueTable()
	cs := []CValue{randomCValue(10), randomCValue(11)}
	armies, err := DeriveArmies(cs, 0, table)
	if err != nil {
		t.Fatalf("DeriveArmies: %v", err)
	}
	if len(armies) != 2 {
		t.Fatalf("expected 2 armies, got %d", len(armies))
	}
	solo0, _ := DeriveArmy(cs[0], 0, table)
	solo1, _ := DeriveArmy(cs[1], 0, table)
	if armies[0] != solo0 || armies[1] != solo1 {
		t.Fatal("DeriveArmies must derive each army independently and preserve order")
	}
}
