package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bkohler93/thavalon-backend/internal/shared/message"
	"github.com/bkohler93/thavalon-backend/internal/shared/response"
	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	pongWait       = 60 * time.Second
	pingInterval   = 10 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

var (
	ErrRateLimited    = errors.New("too many messages")
	ErrMalformedFrame = errors.New("malformed message")
)

type Client struct {
	Conn         *websocket.Conn
	ID           uuidstring.ID
	TransportBus *ClientTransportBus

	limiter *rate.Limiter
	// replies written by the gateway itself, e.g. rate limit notices
	replyCh chan []byte
	log     *logrus.Entry
}

func NewClient(conn *websocket.Conn, id uuidstring.ID, bus *ClientTransportBus, limiter *rate.Limiter, log *logrus.Entry) *Client {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	return &Client{
		Conn:         conn,
		ID:           id,
		TransportBus: bus,
		limiter:      limiter,
		replyCh:      make(chan []byte, 8),
		log:          log.WithField("player_id", id),
	}
}

// Run blocks until one of the pumps stops, then stops the rest.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, gCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer cancel()
		return c.PingLoop(gCtx)
	})
	eg.Go(func() error {
		defer cancel()
		return c.WritePump(gCtx)
	})
	eg.Go(func() error {
		defer cancel()
		return c.ReadPump(gCtx)
	})
	return eg.Wait()
}

// PingLoop uses WriteControl, which is safe to call alongside WritePump.
func (c *Client) PingLoop(ctx context.Context) error {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			err := c.Conn.WriteControl(websocket.PingMessage, []byte("PING"), time.Now().Add(writeWait))
			if err != nil {
				return fmt.Errorf("ws{%s} failed to send PING - %w", c.ID, err)
			}
			c.log.Trace("sent PING")
		case <-ctx.Done():
			return nil
		}
	}
}

// WritePump is the only writer of data frames on the connection. Stream
// entries are acked once they have been written to the socket.
func (c *Client) WritePump(ctx context.Context) error {
	msgCh, errCh := c.TransportBus.StartReceivingPlayerMessages(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errCh:
			if !ok {
				return nil
			}
			return fmt.Errorf("player stream failed - %w", err)
		case msg, ok := <-msgCh:
			if !ok {
				return nil
			}
			if err := c.write(msg.Payload); err != nil {
				return err
			}
			if err := c.TransportBus.AckPlayerMessage(ctx, msg.ID); err != nil {
				c.log.WithError(err).WithField("msg_id", msg.ID).Warn("failed to ack outgoing message")
			}
		case reply := <-c.replyCh:
			if err := c.write(reply); err != nil {
				return err
			}
		}
	}
}

func (c *Client) write(data []byte) error {
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write to websocket - %w", err)
	}
	return nil
}

func (c *Client) ReadPump(ctx context.Context) error {
	readChan := make(chan []byte)
	errChan := make(chan error, 1)

	go func() {
		for {
			messageType, p, err := c.Conn.ReadMessage()
			if err != nil {
				errChan <- err
				return
			}
			if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
				errChan <- fmt.Errorf("unhandled message type: %d", messageType)
				return
			}
			select {
			case readChan <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errChan:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Info("websocket closed by the client")
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("websocket unexpectedly closed")
			}
			return err

		case frame := <-readChan:
			if err := c.forward(ctx, frame); err != nil {
				if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrMalformedFrame) {
					c.reply(response.NewError(err.Error()))
					continue
				}
				return err
			}
		}
	}
}

// forward stamps the connection's player id on a client frame and hands it
// to the lobby. Whatever player_id the client sent is overwritten.
func (c *Client) forward(ctx context.Context, frame []byte) error {
	if !c.limiter.Allow() {
		c.log.Debug("dropping frame over rate limit")
		return ErrRateLimited
	}

	var env message.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.log.WithError(err).Debug("failed to unmarshal client frame")
		return ErrMalformedFrame
	}
	if env.Type == "" {
		return ErrMalformedFrame
	}
	// game ids become part of Redis keys downstream
	if env.GameID != "" {
		gameID, err := uuidstring.Parse(env.GameID.String())
		if err != nil {
			return ErrMalformedFrame
		}
		env.GameID = gameID
	}
	env.PlayerID = c.ID

	if err := c.TransportBus.SendLobbyMessage(ctx, env); err != nil {
		return fmt.Errorf("failed to forward %s message - %w", env.Type, err)
	}
	c.log.WithField("type", env.Type).Debug("forwarded message to lobby")
	return nil
}

func (c *Client) reply(r response.Response) {
	data, err := response.Encode(r)
	if err != nil {
		c.log.WithError(err).Error("failed to encode reply")
		return
	}
	select {
	case c.replyCh <- data:
	default:
		c.log.Warn("reply buffer full, dropping reply")
	}
}
