package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
	"github.com/rhofour/InfiniTDBackend-sub000/pkg/logger"
)

const (
	// BufferWindow - упреждение, с которым события уходят клиентам.
	BufferWindow = 100 * time.Millisecond
	// sleepSlack добавляется к сну, чтобы проснуться уже внутри окна.
	sleepSlack = 100 * time.Microsecond
)

var ErrTooManyUpdates = errors.New("battle sent more updates than it has events")

// StreamingBattle проигрывает записанную битву в реальном времени.
// Все изменения состояния и все Publish идут под mu, поэтому снимок Join
// и последующие обновления не пересекаются и не имеют дыр.
type StreamingBattle struct {
	mu     deadlock.Mutex
	sink   Sink
	buffer time.Duration

	name         string
	attackerName string
	defenderName string

	started   bool
	startTime time.Time // монотонное время LIVE-маркера
	finished  bool      // последний запуск дошел до конца

	past   []domain.Event
	future []domain.Event
	sent   int

	wake chan struct{}
	log  *logrus.Entry
}

func NewStreamingBattle(name string, sink Sink) *StreamingBattle {
	return &StreamingBattle{
		sink:   sink,
		buffer: BufferWindow,
		name:   name,
		wake:   make(chan struct{}, 1),
		log:    logger.WithComponent("replay").WithField("battle", name),
	}
}

// SetBufferWindow меняет окно упреждения. Вызывать до Start.
func (s *StreamingBattle) SetBufferWindow(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = d
}

// send публикует обновление и учитывает его. Вызывается под mu.
func (s *StreamingBattle) send(u Update) {
	s.sink.Publish(s.name, u)
	s.sent++
}

func (s *StreamingBattle) metadata(status Status) MetadataUpdate {
	return MetadataUpdate{
		Status:       status,
		Name:         s.name,
		AttackerName: s.attackerName,
		DefenderName: s.defenderName,
	}
}

func (s *StreamingBattle) liveMetadata(elapsed float64) MetadataUpdate {
	m := s.metadata(StatusLive)
	m.Time = &elapsed
	return m
}

// Start проигрывает битву и возвращается, когда все события отправлены
// или битва остановлена через Stop / отмену ctx.
// resultsCb вызывается только если битва дошла до конца.
func (s *StreamingBattle) Start(ctx context.Context, battle *domain.Battle, resultsCb func(domain.BattleResults)) error {
	if len(battle.Events) == 0 {
		return nil
	}

	s.mu.Lock()
	// Stop мог прийти раньше, чем запуск взял блокировку.
	if ctx.Err() != nil {
		s.mu.Unlock()
		s.log.Info("Battle cancelled before start")
		return nil
	}
	s.log.WithFields(logrus.Fields{
		"attacker": battle.AttackerName,
		"defender": battle.DefenderName,
		"events":   len(battle.Events),
	}).Info("Starting battle")

	// Сбрасываем сигнал от Stop, пришедший до старта.
	select {
	case <-s.wake:
	default:
	}

	s.future = append([]domain.Event(nil), battle.Events...)
	s.past = nil
	s.attackerName = battle.AttackerName
	s.defenderName = battle.DefenderName
	s.sent = 0
	s.finished = false

	// 1. Клиенты узнают о новой битве
	s.send(s.metadata(StatusPending))

	// 2. Все, что попадает в окно упреждения, уходит сразу
	bufferSecs := s.buffer.Seconds()
	n := 0
	for n < len(s.future) && s.future[n].Start() <= bufferSecs {
		s.send(EventUpdate{Event: s.future[n]})
		n++
	}
	s.past = append(s.past, s.future[:n]...)
	s.future = s.future[n:]

	// 3. Поехали
	s.startTime = time.Now()
	s.started = true
	s.send(s.liveMetadata(0))

	for len(s.future) > 0 {
		if ctx.Err() != nil {
			s.future = nil
			break
		}

		ev := s.future[0]
		timeToEvent := ev.Start() - time.Since(s.startTime).Seconds()
		if timeToEvent < 0 {
			// Отстали от собственного расписания: отправляем сразу.
			s.log.WithField("time_to_event", timeToEvent).Error("Negative time to event")
		}
		if timeToEvent > bufferSecs {
			wait := time.Duration((timeToEvent-bufferSecs)*float64(time.Second)) + sleepSlack
			s.mu.Unlock()
			s.sleep(ctx, wait)
			s.mu.Lock()
			continue
		}

		s.send(EventUpdate{Event: ev})
		s.past = append(s.past, ev)
		s.future = s.future[1:]
	}

	// Новые подписчики больше не получают прошлые события.
	s.started = false

	expected := len(battle.Events) + 2 // плюс PENDING и LIVE
	switch {
	case s.sent > expected:
		err := fmt.Errorf("%w: %d events, %d updates", ErrTooManyUpdates, len(battle.Events), s.sent)
		s.log.WithError(err).Error("Battle stream broke")
		s.mu.Unlock()
		return err
	case s.sent == expected && ctx.Err() == nil:
		s.finished = true
		s.mu.Unlock()
		if resultsCb != nil {
			resultsCb(battle.Results)
		}
		s.mu.Lock()
		s.sink.Publish(s.name, ResultsUpdate{Results: battle.Results})
		s.mu.Unlock()
		s.log.Info("Battle finished")
	default:
		s.send(s.metadata(StatusPending))
		s.mu.Unlock()
		s.log.WithField("sent", s.sent).Info("Battle stopped")
	}
	return nil
}

// sleep ждет d, отмены ctx или сигнала от Stop.
func (s *StreamingBattle) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-s.wake:
	}
}

// Stop прерывает проигрывание: подписчики получают PENDING и не получают результатов.
func (s *StreamingBattle) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = false
	s.future = nil
	s.sink.Publish(s.name, s.metadata(StatusPending))

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Join возвращает то, что должен увидеть новый подписчик.
func (s *StreamingBattle) Join() []Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joinLocked()
}

func (s *StreamingBattle) joinLocked() []Update {
	if !s.started {
		return []Update{s.metadata(StatusPending)}
	}
	out := make([]Update, 0, len(s.past)+1)
	for _, ev := range s.past {
		out = append(out, EventUpdate{Event: ev})
	}
	return append(out, s.liveMetadata(time.Since(s.startTime).Seconds()))
}

// Subscribe передает снимок Join в register, пока новые обновления придержаны.
// register должен зарегистрировать подписчика в том же Sink, не блокируясь.
func (s *StreamingBattle) Subscribe(register func(initial []Update)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	register(s.joinLocked())
}

// Status - текущая фаза для отладочных листингов.
func (s *StreamingBattle) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.started:
		return StatusLive
	case s.finished:
		return StatusFinished
	}
	return StatusPending
}

// Progress возвращает число отправленных и оставшихся событий.
func (s *StreamingBattle) Progress() (past, future int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.past), len(s.future)
}
