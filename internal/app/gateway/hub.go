package gateway

import (
	"errors"
	"net"
	"sync"

	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
	"github.com/sirupsen/logrus"
)

// Hub tracks the live connection of each player. A player reconnecting
// replaces (and closes) their previous connection.
type Hub struct {
	mu      sync.Mutex
	clients map[uuidstring.ID]*Client
	log     *logrus.Entry
}

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		clients: make(map[uuidstring.ID]*Client),
		log:     log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	prev, ok := h.clients[c.ID]
	h.clients[c.ID] = c
	h.mu.Unlock()

	if ok && prev != c {
		h.closeConn(prev)
	}
	h.log.WithField("player_id", c.ID).Info("registered client")
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c.ID] == c {
		delete(h.clients, c.ID)
	}
	h.mu.Unlock()

	h.closeConn(c)
	h.log.WithField("player_id", c.ID).Info("unregistered client")
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeConn(c *Client) {
	if err := c.Conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		h.log.WithError(err).WithField("player_id", c.ID).Warn("error closing websocket conn")
	}
}
