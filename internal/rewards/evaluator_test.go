package rewards

import (
	"errors"
	"testing"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/gameconfig"
)

func pct(v float64) *float64 { return &v }

var (
	emptyResults    = domain.MonstersDefeated{}
	noDefeatResults = domain.MonstersDefeated{0: {Defeated: 0, Sent: 5}, 1: {Defeated: 0, Sent: 3}}
	mixedResults    = domain.MonstersDefeated{0: {Defeated: 3, Sent: 5}, 1: {Defeated: 2, Sent: 4}}
	perfectResults  = domain.MonstersDefeated{0: {Defeated: 5, Sent: 5}, 1: {Defeated: 3, Sent: 3}}
)

func additive(conds ...gameconfig.BonusCondition) gameconfig.BattleBonus {
	return gameconfig.BattleBonus{ID: 1, Name: "test bonus", Kind: gameconfig.BonusAdditive, Amount: 10, Conditions: conds}
}

func earnedFor(t *testing.T, bonus gameconfig.BattleBonus, m domain.MonstersDefeated) bool {
	t.Helper()
	defeated, sent := m.Totals()
	ok, err := IsEarned(bonus, gameconfig.ConditionEnv{
		PercentDefeated: m.PercentDefeated(),
		TotalDefeated:   defeated,
		TotalSent:       sent,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ok
}

func TestIsEarned(t *testing.T) {
	tests := []struct {
		name                            string
		bonus                           gameconfig.BattleBonus
		empty, noDefeat, mixed, perfect bool
	}{
		{"no conditions is always earned", additive(), true, true, true, true},
		{"zero percent", additive(gameconfig.BonusCondition{PercentDefeated: pct(0)}), false, true, true, true},
		{"fifty percent", additive(gameconfig.BonusCondition{PercentDefeated: pct(50)}), false, false, true, true},
		{"one hundred percent", additive(gameconfig.BonusCondition{PercentDefeated: pct(100)}), false, false, false, true},
		{"multiple conditions", additive(
			gameconfig.BonusCondition{PercentDefeated: pct(10)},
			gameconfig.BonusCondition{PercentDefeated: pct(50)}), false, false, true, true},
		{"nil percent is ignored", additive(gameconfig.BonusCondition{}), true, true, true, true},
		{"expression condition", additive(gameconfig.BonusCondition{When: "TotalSent >= 9"}), false, false, true, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := earnedFor(t, tt.bonus, emptyResults); got != tt.empty {
				t.Errorf("empty: expected %v, got %v", tt.empty, got)
			}
			if got := earnedFor(t, tt.bonus, noDefeatResults); got != tt.noDefeat {
				t.Errorf("no defeat: expected %v, got %v", tt.noDefeat, got)
			}
			if got := earnedFor(t, tt.bonus, mixedResults); got != tt.mixed {
				t.Errorf("mixed: expected %v, got %v", tt.mixed, got)
			}
			if got := earnedFor(t, tt.bonus, perfectResults); got != tt.perfect {
				t.Errorf("perfect: expected %v, got %v", tt.perfect, got)
			}
		})
	}
}

func TestAmount(t *testing.T) {
	add := gameconfig.BattleBonus{Kind: gameconfig.BonusAdditive, Amount: 10}
	if got, _ := Amount(add, 15); got != 10 {
		t.Errorf("Expected additive amount 10, got %v", got)
	}
	mul := gameconfig.BattleBonus{Kind: gameconfig.BonusMultiplicative, Amount: 1.5}
	if got, _ := Amount(mul, 10); got != 5 {
		t.Errorf("Expected multiplicative amount 5, got %v", got)
	}
	if _, err := Amount(gameconfig.BattleBonus{Kind: "BOGUS"}, 1); err == nil {
		t.Error("Expected error for unknown bonus type")
	}
}

func TestEvaluateAppliesBonusesInOrder(t *testing.T) {
	bounties := map[domain.ConfigID]float64{0: 1, 1: 2}
	double := gameconfig.BattleBonus{ID: 7, Kind: gameconfig.BonusMultiplicative, Amount: 2}
	plusTen := gameconfig.BattleBonus{ID: 8, Kind: gameconfig.BonusAdditive, Amount: 10}

	// База: 5*1 + 3*2 = 11.
	res, err := Evaluate(perfectResults, []gameconfig.BattleBonus{double, plusTen}, bounties, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reward != 32 {
		t.Errorf("Expected (11*2)+10 = 32, got %v", res.Reward)
	}

	res, err = Evaluate(perfectResults, []gameconfig.BattleBonus{plusTen, double}, bounties, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reward != 42 {
		t.Errorf("Expected (11+10)*2 = 42, got %v", res.Reward)
	}
	if len(res.Bonuses) != 2 || res.Bonuses[0] != 8 || res.Bonuses[1] != 7 {
		t.Errorf("Expected bonuses [8 7], got %v", res.Bonuses)
	}
	if res.TimeSecs != 30 {
		t.Errorf("Expected time 30, got %v", res.TimeSecs)
	}
}

func TestEvaluateSkipsUnearnedBonuses(t *testing.T) {
	bounties := map[domain.ConfigID]float64{0: 1, 1: 2}
	perfect := gameconfig.BattleBonus{ID: 3, Kind: gameconfig.BonusAdditive, Amount: 100,
		Conditions: []gameconfig.BonusCondition{{PercentDefeated: pct(100)}}}

	res, err := Evaluate(mixedResults, []gameconfig.BattleBonus{perfect}, bounties, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reward != 7 {
		t.Errorf("Expected base reward 3*1 + 2*2 = 7, got %v", res.Reward)
	}
	if len(res.Bonuses) != 0 {
		t.Errorf("Expected no bonuses, got %v", res.Bonuses)
	}
}

func TestEvaluateUnknownMonster(t *testing.T) {
	_, err := Evaluate(domain.MonstersDefeated{9: {Defeated: 1, Sent: 1}}, nil, map[domain.ConfigID]float64{}, 0)
	if !errors.Is(err, ErrUnknownBounty) {
		t.Errorf("Expected ErrUnknownBounty, got %v", err)
	}
}

func TestEvaluateWithRules(t *testing.T) {
	rules, err := gameconfig.Load("../gameconfig/testdata/game_config.yaml")
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	// 2 из 2 побеждены: база 1 + 2 = 3, Half Defense +10 = 13, Perfect Defense x1.5 = 19.5.
	res, err := EvaluateWithRules(rules, domain.MonstersDefeated{0: {Defeated: 1, Sent: 1}, 1: {Defeated: 1, Sent: 1}}, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reward != 19.5 {
		t.Errorf("Expected reward 19.5, got %v", res.Reward)
	}
	if len(res.Bonuses) != 2 {
		t.Errorf("Expected both bonuses, got %v", res.Bonuses)
	}
}
