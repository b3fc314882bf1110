// Package push connects a session to the relay. Incoming snapshots are
// offered to the merge core; controller assignments go to the session.
package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fastygo/algorithm/domain"
)

const writeWait = 10 * time.Second

var ErrClosed = errors.New("push channel closed")

// SnapshotSink receives snapshots from the channel.
type SnapshotSink interface {
	Offer(game *domain.Game) bool
}

// ControllerSink receives controller assignments.
type ControllerSink interface {
	SetController(ctx context.Context, controller bool) error
}

// Client is one WebSocket connection to the relay. It never reconnects: a
// dropped channel leaves the periodic fetch as the only source.
type Client struct {
	conn       *websocket.Conn
	writeMu    sync.Mutex
	snapshots  SnapshotSink
	controller ControllerSink
	logger     *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens the channel. controller may be nil until SetControllerSink.
func Dial(ctx context.Context, url string, snapshots SnapshotSink, controller ControllerSink, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	logger.Info("push channel connected", zap.String("url", url))
	return &Client{
		conn:       conn,
		snapshots:  snapshots,
		controller: controller,
		logger:     logger,
		done:       make(chan struct{}),
	}, nil
}

func (c *Client) SetControllerSink(sink ControllerSink) {
	c.controller = sink
}

// Run reads and dispatches events until the connection drops or ctx is
// done.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.done:
		}
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			_ = c.Close()
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			c.logger.Warn("push channel lost", zap.Error(err))
			return err
		}

		ev, err := domain.DecodeEvent(payload)
		if err != nil {
			c.logger.Warn("discarding push message", zap.Error(err))
			continue
		}
		c.dispatch(ctx, ev)
	}
}

func (c *Client) dispatch(ctx context.Context, ev domain.Event) {
	switch e := ev.(type) {
	case domain.GameUpdateEvent:
		if c.snapshots == nil {
			return
		}
		if !c.snapshots.Offer(e.Game) {
			c.logger.Debug("pushed snapshot rejected", zap.Int64("updated", e.Game.Updated))
		}
	case domain.ControllerEvent:
		if c.controller == nil {
			c.logger.Warn("controller event without a session")
			return
		}
		if err := c.controller.SetController(ctx, e.Controller); err != nil {
			c.logger.Warn("failed to apply controller event", zap.Error(err))
		}
	case domain.MessageEvent:
		c.logger.Info("relay message", zap.String("text", e.Text))
	case domain.UpdateDataEvent, domain.RequestControlEvent:
		c.logger.Debug("ignoring relay-bound event", zap.String("type", string(ev.Type())))
	}
}

// RequestControl asks the relay to hand the controller role to this
// session.
func (c *Client) RequestControl(ctx context.Context) error {
	return c.send(ctx, domain.RequestControlEvent{})
}

// PublishSnapshot hands a snapshot to the relay for rebroadcast.
func (c *Client) PublishSnapshot(ctx context.Context, game *domain.Game) error {
	if !game.Valid() {
		return domain.ErrInvalidPayload
	}
	return c.send(ctx, domain.UpdateDataEvent{Game: game})
}

func (c *Client) send(ctx context.Context, ev domain.Event) error {
	payload, err := domain.EncodeEvent(ev)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
