package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rhofour/InfiniTDBackend-sub000/internal/core"
	"github.com/rhofour/InfiniTDBackend-sub000/internal/replay"
	"github.com/rhofour/InfiniTDBackend-sub000/pkg/logger"
	"github.com/rhofour/InfiniTDBackend-sub000/pkg/utils"
)

// Настройки WebSocket
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// battleTopic - единственный тип данных, на который можно подписаться.
const battleTopic = "battle"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client - посредник между Websocket и BattleService.
// Клиент шлет "+battle/<имя>" и "-battle/<имя>", сервер отвечает кадрами "battle/<имя>:<json>".
type Client struct {
	Battles *core.BattleService
	Conn    *websocket.Conn
	Send    chan []byte
	ID      string

	mu   sync.Mutex
	subs map[string]<-chan replay.Update // активные подписки по имени битвы
	done chan struct{}
	log  *logrus.Entry
}

func NewClient(battles *core.BattleService, conn *websocket.Conn) *Client {
	id := utils.GenerateID()
	return &Client{
		Battles: battles,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		ID:      id,
		subs:    make(map[string]<-chan replay.Update),
		done:    make(chan struct{}),
		log:     logger.WithComponent("ws").WithField("client_id", id),
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		requestLog(r).WithError(err).Warn("Websocket upgrade failed")
		return
	}
	client := NewClient(s.Battles, conn)
	client.log.Info("Client connected")

	go client.writePump()
	go client.readPump()
}

// parseCommand разбирает "+battle/имя". Имя может содержать '/'.
func parseCommand(msg string) (subscribe bool, topic, name string, ok bool) {
	if len(msg) < 2 {
		return false, "", "", false
	}
	switch msg[0] {
	case '+':
		subscribe = true
	case '-':
		subscribe = false
	default:
		return false, "", "", false
	}
	topic, name, found := strings.Cut(msg[1:], "/")
	if !found || name == "" {
		return false, "", "", false
	}
	return subscribe, topic, name, true
}

func (c *Client) subscribe(name string) {
	c.mu.Lock()
	_, ok := c.subs[name]
	c.mu.Unlock()
	if ok {
		return
	}

	updates, err := c.Battles.Subscribe(name, c.ID)
	if err != nil {
		c.log.WithError(err).WithField("battle", name).Warn("Subscribe failed")
		return
	}
	c.mu.Lock()
	c.subs[name] = updates
	c.mu.Unlock()

	// Пересылаем обновления из хаба в writePump
	go c.forward(name, updates)
}

func (c *Client) forward(name string, updates <-chan replay.Update) {
	prefix := battleTopic + "/" + name + ":"
	for u := range updates {
		data, err := json.Marshal(u)
		if err != nil {
			c.log.WithError(err).Error("Failed to encode update")
			continue
		}
		select {
		case c.Send <- append([]byte(prefix), data...):
		case <-c.done:
			return
		}
	}

	// Канал закрыт: отписка, переполнение или остановка сервера
	c.mu.Lock()
	if c.subs[name] == updates {
		delete(c.subs, name)
	}
	c.mu.Unlock()
}

func (c *Client) unsubscribe(name string) {
	c.mu.Lock()
	_, ok := c.subs[name]
	delete(c.subs, name)
	c.mu.Unlock()
	if ok {
		c.Battles.Unsubscribe(name, c.ID)
	}
}

func (c *Client) unsubscribeAll() {
	c.mu.Lock()
	names := make([]string, 0, len(c.subs))
	for name := range c.subs {
		names = append(names, name)
	}
	c.mu.Unlock()

	for _, name := range names {
		c.Battles.Unsubscribe(name, c.ID)
	}
}

// readPump читает команды подписки от клиента
func (c *Client) readPump() {
	defer func() {
		close(c.done)
		c.unsubscribeAll()
		if err := c.Conn.Close(); err != nil {
			c.log.WithError(err).Debug("failed to close websocket connection")
		}
		c.log.Info("Client disconnected")
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.WithError(err).Warn("failed to set read deadline")
	}
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Errorf("WS Error: %v", err)
			}
			return
		}

		sub, topic, name, ok := parseCommand(string(msg))
		if !ok {
			c.log.WithField("message", string(msg)).Warn("Malformed stream command")
			continue
		}
		if topic != battleTopic {
			c.log.WithField("topic", topic).Warn("Unknown stream topic")
			continue
		}
		if sub {
			c.subscribe(name)
		} else {
			c.unsubscribe(name)
		}
	}
}

// writePump отправляет данные клиенту + Ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.Conn.Close(); err != nil {
			c.log.WithError(err).Debug("failed to close websocket connection in writePump")
		}
	}()

	for {
		select {
		case message := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.WithError(err).Warn("failed to set write deadline")
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.WithError(err).Debug("write message failed")
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.WithError(err).Warn("failed to set ping write deadline")
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.WithError(err).Debug("ping failed")
				return
			}

		case <-c.done:
			if err := c.Conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
				c.log.WithError(err).Debug("write close message failed")
			}
			return
		}
	}
}
