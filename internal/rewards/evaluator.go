package rewards

import (
	"errors"
	"fmt"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/gameconfig"
)

var ErrUnknownBounty = errors.New("no bounty configured for monster")

// IsEarned проверяет условия бонуса против общей (а не по типам) доли побежденных.
// Бонус без условий засчитывается всегда.
func IsEarned(bonus gameconfig.BattleBonus, env gameconfig.ConditionEnv) (bool, error) {
	for _, cond := range bonus.Conditions {
		if cond.PercentDefeated != nil && *cond.PercentDefeated > env.PercentDefeated {
			return false, nil
		}
		ok, err := cond.Eval(env)
		if err != nil {
			return false, fmt.Errorf("bonus %d: %w", bonus.ID, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Amount - прибавка к текущей награде от заработанного бонуса.
func Amount(bonus gameconfig.BattleBonus, running float64) (float64, error) {
	switch bonus.Kind {
	case gameconfig.BonusAdditive:
		return bonus.Amount, nil
	case gameconfig.BonusMultiplicative:
		return running * (bonus.Amount - 1), nil
	}
	return 0, fmt.Errorf("bonus %d: unknown bonus type %q", bonus.ID, bonus.Kind)
}

// Evaluate считает награду: базовая сумма по баунти плюс бонусы в порядке конфигурации.
// Мультипликативные бонусы применяются к уже накопленной сумме, поэтому порядок важен.
func Evaluate(defeated domain.MonstersDefeated, bonuses []gameconfig.BattleBonus,
	bounties map[domain.ConfigID]float64, timeSecs float64) (domain.BattleResults, error) {

	reward := 0.0
	for _, id := range defeated.SortedIDs() {
		bounty, ok := bounties[id]
		if !ok {
			return domain.BattleResults{}, fmt.Errorf("%w: %d", ErrUnknownBounty, id)
		}
		reward += float64(defeated[id].Defeated) * bounty
	}

	totalDefeated, totalSent := defeated.Totals()
	earned := []domain.ConfigID{}
	for _, bonus := range bonuses {
		env := gameconfig.ConditionEnv{
			PercentDefeated: defeated.PercentDefeated(),
			TotalDefeated:   totalDefeated,
			TotalSent:       totalSent,
			Reward:          reward,
		}
		ok, err := IsEarned(bonus, env)
		if err != nil {
			return domain.BattleResults{}, err
		}
		if !ok {
			continue
		}
		add, err := Amount(bonus, reward)
		if err != nil {
			return domain.BattleResults{}, err
		}
		reward += add
		earned = append(earned, bonus.ID)
	}

	return domain.BattleResults{
		MonstersDefeated: defeated,
		Bonuses:          earned,
		Reward:           reward,
		TimeSecs:         timeSecs,
	}, nil
}

// EvaluateWithRules - то же, что Evaluate, но берет бонусы и баунти из правил игры.
func EvaluateWithRules(rules *gameconfig.Rules, defeated domain.MonstersDefeated, timeSecs float64) (domain.BattleResults, error) {
	return Evaluate(defeated, rules.Bonuses(), rules.Bounties(), timeSecs)
}
