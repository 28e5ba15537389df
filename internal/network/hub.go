package network

import (
	"github.com/sasha-s/go-deadlock"

	"github.com/rhofour/InfiniTDBackend-sub000/pkg/logger"
)

// DefaultBuffer - размер личного канала подписчика.
const DefaultBuffer = 256

// Broadcaster занимается только рассылкой сообщений подписчикам.
// Отправка никогда не блокирует: подписчик с переполненным каналом отключается.
type Broadcaster[T any] struct {
	mu     deadlock.RWMutex
	buffer int
	// Мапа: ID подписчика -> Личный канал
	subscribers map[string]chan T
}

func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster[T]{
		buffer:      buffer,
		subscribers: make(map[string]chan T),
	}
}

// Register создает личный канал подписчика. initial кладется в канал до любых
// последующих Broadcast. Если initial не влезает в буфер, канал расширяется.
func (b *Broadcaster[T]) Register(id string, initial ...T) <-chan T {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Если канал был, закрываем
	if old, ok := b.subscribers[id]; ok {
		close(old)
	}

	ch := make(chan T, b.buffer+len(initial))
	for _, msg := range initial {
		ch <- msg
	}
	b.subscribers[id] = ch
	return ch
}

// Unregister удаляет подписчика и закрывает его канал.
func (b *Broadcaster[T]) Unregister(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[id]
	if ok {
		close(ch)
		delete(b.subscribers, id)
	}
	return ok
}

// SendTo отправляет сообщение конкретному подписчику (Unicast).
func (b *Broadcaster[T]) SendTo(id string, msg T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[id]
	if !ok {
		return false
	}
	return b.deliver(id, ch, msg)
}

// Broadcast отправляет всем. Возвращает число подписчиков, получивших сообщение.
func (b *Broadcaster[T]) Broadcast(msg T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for id, ch := range b.subscribers {
		if b.deliver(id, ch, msg) {
			n++
		}
	}
	return n
}

// deliver вызывается под b.mu.
func (b *Broadcaster[T]) deliver(id string, ch chan T, msg T) bool {
	select {
	case ch <- msg:
		return true
	default:
		logger.WithComponent("broadcaster").WithField("subscriber", id).Warn("Subscriber too slow, dropping")
		close(ch)
		delete(b.subscribers, id)
		return false
	}
}

// HasSubscriber проверяет, подписан ли id.
func (b *Broadcaster[T]) HasSubscriber(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.subscribers[id]
	return ok
}

// SubscriberCount возвращает количество активных подписчиков.
func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close отключает всех подписчиков.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
