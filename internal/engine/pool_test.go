package engine

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
)

func TestPool_MatchesComputer(t *testing.T) {
	rules := testRules(t)
	pool := NewPool(rules, NewConfig(), 3)
	defer pool.Close()

	bg := domain.EmptyBattleground(5, 4).WithTower(domain.CellPos{Row: 2, Col: 2}, arrowTower)
	waves := []domain.Wave{
		{slowMonster},
		{slowMonster, toughMonster},
		{toughMonster, slowMonster, slowMonster},
	}

	direct := NewComputer(rules, NewConfig())
	var wg sync.WaitGroup
	for _, wave := range waves {
		wg.Add(1)
		go func(wave domain.Wave) {
			defer wg.Done()
			want, err := direct.Compute(bg, wave)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			got, err := pool.Compute(context.Background(), bg, wave)
			if err != nil {
				t.Errorf("unexpected pool error: %v", err)
				return
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("wave %v: pool result differs from direct computation", wave)
			}
		}(wave)
	}
	wg.Wait()
}

func TestPool_ExplicitSeed(t *testing.T) {
	pool := NewPool(testRules(t), NewConfig(), 1)
	defer pool.Close()

	seed := int64(1234)
	f, err := pool.Submit(context.Background(), Job{
		Battleground: domain.EmptyBattleground(5, 4),
		Wave:         domain.Wave{slowMonster},
		Seed:         &seed,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Seed != seed {
		t.Errorf("Expected seed %d, got %d", seed, res.Seed)
	}
	select {
	case <-f.Done():
	default:
		t.Errorf("Expected future to be done after Wait")
	}
}

func TestPool_InputErrorPropagates(t *testing.T) {
	pool := NewPool(testRules(t), NewConfig(), 1)
	defer pool.Close()

	_, err := pool.Compute(context.Background(), domain.EmptyBattleground(5, 4), domain.Wave{})
	if !errors.Is(err, ErrEmptyWave) {
		t.Errorf("Expected ErrEmptyWave, got %v", err)
	}
}

func TestPool_CancelledJob(t *testing.T) {
	pool := NewPool(testRules(t), NewConfig(), 1)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pool.Compute(ctx, domain.EmptyBattleground(5, 4), domain.Wave{slowMonster})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestPool_SubmitAfterClose(t *testing.T) {
	pool := NewPool(testRules(t), NewConfig(), 2)
	pool.Close()
	pool.Close() // повторный Close безопасен

	_, err := pool.Submit(context.Background(), Job{Battleground: domain.EmptyBattleground(5, 4), Wave: domain.Wave{slowMonster}})
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Expected ErrPoolClosed, got %v", err)
	}
}
