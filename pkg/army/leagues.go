package army

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// NumLeagues is the fixed number of leagues (§6.4).
const NumLeagues = 16

// LeagueModifier is the additive (attack, defense, health) bonus applied
// before clamping.
type LeagueModifier struct {
	AttackBonus  int8 `yaml:"attack_bonus"`
	DefenseBonus int8 `yaml:"defense_bonus"`
	HealthBonus  int8 `yaml:"health_bonus"`
}

// LeagueTable is the frozen, process-wide set of 16 league modifiers. It is
// immutable once loaded: every executor (client, validator, auditor) must
// agree on the same table for a given deployment.
type LeagueTable struct {
	modifiers [NumLeagues]LeagueModifier
}

// Lookup returns the modifier for leagueID, or an error if out of range.
func (t LeagueTable) Lookup(leagueID uint8) (LeagueModifier, error) {
	if int(leagueID) >= NumLeagues {
		return LeagueModifier{}, fmt.Errorf("army: league_id %d out of range [0,%d)", leagueID, NumLeagues)
	}
	return t.modifiers[leagueID], nil
}

//go:embed leagues.yaml
var defaultLeaguesYAML []byte

// DefaultLeagueTable returns the deployment's built-in league table: league 0
// is neutral, leagues 1-15 carry small ascending bonuses distributed across
// the three stats, per the "default safe set" in §6.4.
func DefaultLeagueTable() LeagueTable {
	table, err := ParseLeagueTable(defaultLeaguesYAML)
	if err != nil {
		// The embedded table is frozen at build time; a parse failure here
		// means the embedded asset itself is corrupt, which is a build-time
		// invariant violation, not a runtime condition callers can recover
		// from.
		panic(fmt.Sprintf("army: embedded league table is invalid: %v", err))
	}
	return table
}

type leaguesFile struct {
	Leagues []LeagueModifier `yaml:"leagues"`
}

// ParseLeagueTable loads a league table from YAML, requiring exactly
// NumLeagues entries so the table stays total over [0,16).
func ParseLeagueTable(raw []byte) (LeagueTable, error) {
	var f leaguesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return LeagueTable{}, fmt.Errorf("army: parse league table: %w", err)
	}
	if len(f.Leagues) != NumLeagues {
		return LeagueTable{}, fmt.Errorf("army: league table must have exactly %d entries, got %d", NumLeagues, len(f.Leagues))
	}
	var t LeagueTable
	copy(t.modifiers[:], f.Leagues)
	return t, nil
}
