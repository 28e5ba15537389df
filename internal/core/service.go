package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/engine"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/infrastructure/storage"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/replay"
	"github.com/rhofour/InfiniTDBackend-sub000/pkg/logger"
)

var (
	ErrInvalidRequest  = errors.New("invalid battle request")
	ErrAlreadyInBattle = errors.New("already in a battle")
	ErrNotInBattle     = errors.New("not in a battle")
)

// BattleComputer считает битвы. Его реализует *engine.Pool.
type BattleComputer interface {
	Compute(ctx context.Context, bg domain.Battleground, wave domain.Wave) (*engine.CalcResults, error)
}

// BattleRequest - снимок входа: поле защитника и волна атакующего на момент запроса.
type BattleRequest struct {
	Attacker     string              `json:"attacker"`
	Defender     string              `json:"defender"`
	Battleground domain.Battleground `json:"battleground"`
	Wave         domain.Wave         `json:"wave"`
}

func (r BattleRequest) Validate() error {
	if r.Attacker == "" || r.Defender == "" {
		return fmt.Errorf("%w: attacker and defender are required", ErrInvalidRequest)
	}
	return nil
}

type pairKey struct {
	attacker, defender string
}

// ResultsHandler получает результаты битвы, доигранной до конца.
type ResultsHandler func(name string, results domain.BattleResults)

// BattleService связывает расчет, кэш записанных битв и живое проигрывание.
type BattleService struct {
	mu       deadlock.Mutex
	computer BattleComputer
	coord    *replay.Coordinator
	store    *storage.BattleStore // может быть nil: только память

	cache     map[pairKey]*storage.Record
	inBattle  map[string]uint64 // имя -> номер запуска
	nextRun   uint64
	lastRes   map[string]domain.BattleResults
	onResults ResultsHandler

	log *logrus.Entry
}

func NewBattleService(computer BattleComputer, coord *replay.Coordinator, store *storage.BattleStore) *BattleService {
	return &BattleService{
		computer: computer,
		coord:    coord,
		store:    store,
		cache:    make(map[pairKey]*storage.Record),
		inBattle: make(map[string]uint64),
		lastRes:  make(map[string]domain.BattleResults),
		log:      logger.WithComponent("battles"),
	}
}

// OnResults задает обработчик результатов (экономика вне этого сервиса).
func (s *BattleService) OnResults(h ResultsHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResults = h
}

// battleName - имя записанной битвы для клиента.
func battleName(attacker string) string {
	return "vs. " + attacker
}

// cached возвращает запись, если она посчитана из того же входа.
func (s *BattleService) cached(key pairKey, seed int64) *domain.Battle {
	s.mu.Lock()
	rec, ok := s.cache[key]
	s.mu.Unlock()
	if ok && rec.Seed == seed {
		return &rec.Battle
	}

	if s.store == nil {
		return nil
	}
	rec, err := s.store.Load(key.attacker, key.defender)
	if err != nil {
		if !errors.Is(err, storage.ErrRecordNotFound) {
			s.log.WithError(err).WithFields(logrus.Fields{
				"attacker": key.attacker,
				"defender": key.defender,
			}).Warn("Failed to load battle record")
		}
		return nil
	}
	if rec.Seed != seed {
		return nil // поле или волна поменялись
	}

	s.mu.Lock()
	s.cache[key] = rec
	s.mu.Unlock()
	return &rec.Battle
}

// GetOrComputeBattle возвращает записанную битву attacker против defender,
// пересчитывая ее, если поле или волна изменились с момента записи.
func (s *BattleService) GetOrComputeBattle(ctx context.Context, req BattleRequest) (*domain.Battle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := pairKey{req.Attacker, req.Defender}
	seed := engine.Seed(req.Battleground, req.Wave)
	log := s.log.WithFields(logrus.Fields{"attacker": req.Attacker, "defender": req.Defender})

	if b := s.cached(key, seed); b != nil {
		log.Debug("Found recorded battle")
		return b, nil
	}

	log.Info("Calculating new battle")
	res, err := s.computer.Compute(ctx, req.Battleground, req.Wave)
	if err != nil {
		return nil, err
	}

	rec := &storage.Record{
		Seed:      res.Seed,
		Timestamp: time.Now().Unix(),
		Battle: domain.Battle{
			Name:         battleName(req.Attacker),
			AttackerName: req.Attacker,
			DefenderName: req.Defender,
			Events:       res.Events,
			Results:      res.Results,
		},
	}

	s.mu.Lock()
	s.cache[key] = rec
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(rec); err != nil {
			log.WithError(err).Warn("Failed to save battle record")
		}
	}
	return &rec.Battle, nil
}

// StartBattle считает (или берет из кэша) битву и запускает ее проигрывание
// под именем защитника. Пока битва идет, повторный старт запрещен.
func (s *BattleService) StartBattle(ctx context.Context, req BattleRequest) error {
	name := req.Defender
	s.mu.Lock()
	if _, busy := s.inBattle[name]; busy {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyInBattle, name)
	}
	s.nextRun++
	run := s.nextRun
	s.inBattle[name] = run
	s.mu.Unlock()

	battle, err := s.GetOrComputeBattle(ctx, req)
	if err != nil {
		// Не оставляем пользователя навсегда "в битве".
		s.clearInBattle(name, run)
		return err
	}

	err = s.coord.StartBattle(name, battle, func(results domain.BattleResults) {
		s.recordResults(name, results)
	}, func() {
		s.clearInBattle(name, run)
	})
	if err != nil {
		s.clearInBattle(name, run)
		return err
	}
	return nil
}

func (s *BattleService) recordResults(name string, results domain.BattleResults) {
	s.mu.Lock()
	s.lastRes[name] = results
	h := s.onResults
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"battle": name,
		"reward": results.Reward,
		"gpm":    results.GoldPerMinute(),
	}).Info("Battle completed")
	if h != nil {
		h(name, results)
	}
}

// clearInBattle снимает отметку, только если она от того же запуска:
// конец старой битвы не должен сбросить новую.
func (s *BattleService) clearInBattle(name string, run uint64) {
	s.mu.Lock()
	if s.inBattle[name] == run {
		delete(s.inBattle, name)
	}
	s.mu.Unlock()
}

// StopBattle прерывает идущую битву.
func (s *BattleService) StopBattle(name string) error {
	s.mu.Lock()
	if _, ok := s.inBattle[name]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotInBattle, name)
	}
	delete(s.inBattle, name)
	s.mu.Unlock()

	return s.coord.StopBattle(name)
}

func (s *BattleService) InBattle(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inBattle[name]
	return ok
}

// LastResults - результаты последней доигранной битвы name.
func (s *BattleService) LastResults(name string) (domain.BattleResults, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.lastRes[name]
	return r, ok
}

// ForgetBattles выкидывает из кэша все битвы с участием name.
func (s *BattleService) ForgetBattles(name string) {
	s.mu.Lock()
	var keys []pairKey
	for key := range s.cache {
		if key.attacker == name || key.defender == name {
			keys = append(keys, key)
			delete(s.cache, key)
		}
	}
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	for _, key := range keys {
		if err := s.store.Delete(key.attacker, key.defender); err != nil {
			s.log.WithError(err).Warn("Failed to delete battle record")
		}
	}
}

func (s *BattleService) Join(name string) []replay.Update {
	return s.coord.Join(name)
}

func (s *BattleService) Subscribe(name, id string) (<-chan replay.Update, error) {
	return s.coord.Subscribe(name, id)
}

func (s *BattleService) Unsubscribe(name, id string) {
	s.coord.Unsubscribe(name, id)
}

func (s *BattleService) Battles() []replay.BattleInfo {
	return s.coord.Battles()
}
