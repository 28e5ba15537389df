package replay

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/domain"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/network"
	"github.com/rhofour/InfiniTDBackend-sub000/pkg/logger"
)

var (
	ErrUnknownBattle     = errors.New("no battle with that name")
	ErrCoordinatorClosed = errors.New("battle coordinator is shut down")
)

// entry - все, что координатор знает об одном имени битвы.
type entry struct {
	stream *StreamingBattle
	hub    *network.Broadcaster[Update]

	// Текущий запуск, nil если битва не идет.
	cancel context.CancelFunc
	done   chan struct{}
}

// hubSink раздает обновления подписчикам одной битвы и дублирует их наблюдателю.
type hubSink struct {
	hub      *network.Broadcaster[Update]
	observer Sink
}

func (h hubSink) Publish(name string, u Update) {
	h.hub.Broadcast(u)
	if h.observer != nil {
		h.observer.Publish(name, u)
	}
}

// BattleInfo - строка отладочного листинга.
type BattleInfo struct {
	Name         string `json:"name"`
	Status       Status `json:"status"`
	Running      bool   `json:"running"`
	Subscribers  int    `json:"subscribers"`
	PastEvents   int    `json:"pastEvents"`
	FutureEvents int    `json:"futureEvents"`
}

// Coordinator держит не больше одной StreamingBattle на имя.
type Coordinator struct {
	mu       deadlock.Mutex
	battles  map[string]*entry
	closed   bool
	buffer   time.Duration
	subBuf   int
	observer Sink
	log      *logrus.Entry
}

type Option func(*Coordinator)

// WithObserver дублирует все обновления в sink (например, для записи или метрик).
func WithObserver(sink Sink) Option {
	return func(c *Coordinator) { c.observer = sink }
}

// WithBufferWindow меняет окно упреждения для новых битв.
func WithBufferWindow(d time.Duration) Option {
	return func(c *Coordinator) { c.buffer = d }
}

// WithSubscriberBuffer задает размер канала подписчика.
func WithSubscriberBuffer(n int) Option {
	return func(c *Coordinator) { c.subBuf = n }
}

func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		battles: make(map[string]*entry),
		buffer:  BufferWindow,
		subBuf:  network.DefaultBuffer,
		log:     logger.WithComponent("coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getOrCreate вызывается под c.mu.
func (c *Coordinator) getOrCreate(name string) *entry {
	if e, ok := c.battles[name]; ok {
		return e
	}
	c.log.WithField("battle", name).Debug("Making a new StreamingBattle")
	hub := network.NewBroadcaster[Update](c.subBuf)
	stream := NewStreamingBattle(name, hubSink{hub: hub, observer: c.observer})
	stream.SetBufferWindow(c.buffer)
	e := &entry{stream: stream, hub: hub}
	c.battles[name] = e
	return e
}

// StartBattle запускает проигрывание в отдельной горутине.
// Если битва с таким именем уже идет, она останавливается, и новая стартует после ее завершения.
// endCb вызывается всегда, когда запуск заканчивается, дошел он до конца или нет.
func (c *Coordinator) StartBattle(name string, battle *domain.Battle,
	resultsCb func(domain.BattleResults), endCb func()) error {

	c.mu.Lock()
	for {
		if c.closed {
			c.mu.Unlock()
			return ErrCoordinatorClosed
		}
		e := c.getOrCreate(name)
		if e.done == nil {
			break
		}
		// Вытесняем идущую битву и ждем выхода ее цикла.
		cancel, done := e.cancel, e.done
		c.mu.Unlock()
		c.log.WithField("battle", name).Info("Superseding running battle")
		cancel()
		e.stream.Stop()
		<-done
		c.mu.Lock()
	}

	e := c.battles[name]
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	c.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()

		if err := e.stream.Start(ctx, battle, resultsCb); err != nil {
			c.log.WithField("battle", name).WithError(err).Error("Battle ended abnormally")
		}
		if endCb != nil {
			endCb()
		}

		c.mu.Lock()
		if e.done == done {
			e.cancel, e.done = nil, nil
		}
		c.mu.Unlock()
	}()
	return nil
}

// StopBattle прерывает битву. Не ждет завершения цикла: об этом сообщит endCb.
func (c *Coordinator) StopBattle(name string) error {
	c.mu.Lock()
	e, ok := c.battles[name]
	var cancel context.CancelFunc
	if ok {
		cancel = e.cancel
	}
	c.mu.Unlock()

	if !ok {
		return ErrUnknownBattle
	}
	// Сначала отмена: запуск, еще не взявший блокировку, не должен начаться.
	if cancel != nil {
		cancel()
	}
	e.stream.Stop()
	return nil
}

// Wait блокируется до окончания текущего запуска битвы name (или отмены ctx).
func (c *Coordinator) Wait(ctx context.Context, name string) error {
	c.mu.Lock()
	e, ok := c.battles[name]
	var done chan struct{}
	if ok {
		done = e.done
	}
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join возвращает снимок для нового зрителя. Для неизвестной битвы - PENDING.
func (c *Coordinator) Join(name string) []Update {
	c.mu.Lock()
	e, ok := c.battles[name]
	c.mu.Unlock()

	if !ok {
		return []Update{MetadataUpdate{Status: StatusPending, Name: name}}
	}
	return e.stream.Join()
}

// Subscribe подписывает id на битву name. Первые сообщения в канале - снимок Join.
// Канал закрывается при Unsubscribe, при переполнении или при Shutdown.
func (c *Coordinator) Subscribe(name, id string) (<-chan Update, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCoordinatorClosed
	}
	e := c.getOrCreate(name)
	c.mu.Unlock()

	var ch <-chan Update
	e.stream.Subscribe(func(initial []Update) {
		ch = e.hub.Register(id, initial...)
	})
	c.log.WithFields(logrus.Fields{"battle": name, "subscriber": id}).Debug("Subscribed")
	return ch, nil
}

func (c *Coordinator) Unsubscribe(name, id string) {
	c.mu.Lock()
	e, ok := c.battles[name]
	c.mu.Unlock()

	if ok && e.hub.Unregister(id) {
		c.log.WithFields(logrus.Fields{"battle": name, "subscriber": id}).Debug("Unsubscribed")
	}
}

// Battles - отладочный листинг по алфавиту.
func (c *Coordinator) Battles() []BattleInfo {
	c.mu.Lock()
	type named struct {
		name    string
		e       *entry
		running bool
	}
	list := make([]named, 0, len(c.battles))
	for name, e := range c.battles {
		list = append(list, named{name, e, e.done != nil})
	}
	c.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].name < list[j].name })

	out := make([]BattleInfo, len(list))
	for i, b := range list {
		past, future := b.e.stream.Progress()
		out[i] = BattleInfo{
			Name:         b.name,
			Status:       b.e.stream.Status(),
			Running:      b.running,
			Subscribers:  b.e.hub.SubscriberCount(),
			PastEvents:   past,
			FutureEvents: future,
		}
	}
	return out
}

// Shutdown останавливает все битвы, ждет их циклы и отключает подписчиков.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	var running []*entry
	var dones []chan struct{}
	for _, e := range c.battles {
		if e.done != nil {
			running = append(running, e)
			dones = append(dones, e.done)
			e.cancel()
		}
	}
	c.mu.Unlock()

	for _, e := range running {
		e.stream.Stop()
	}
	for _, done := range dones {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	for _, e := range c.battles {
		e.hub.Close()
	}
	c.mu.Unlock()
	c.log.Info("Battle coordinator stopped")
	return nil
}
