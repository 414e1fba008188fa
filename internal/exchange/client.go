package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jasperalbers/nestgo/internal/delivery"
	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/simtime"
)

// Client is one rank's connection to the hub. It implements the
// delivery Exchanger: Exchange submits the local batch for a step and
// blocks until the hub broadcasts the merged batches for it.
//
// A client is driven by one goroutine at a time. The run loop calls
// Exchange once per step, in step order, and Close at the end.
type Client struct {
	conn  *websocket.Conn
	rank  int
	world int
	log   *slog.Logger
}

var _ delivery.Exchanger = (*Client)(nil)

// Dial connects to a hub endpoint and performs the hello handshake.
// The url uses the ws scheme, e.g. ws://127.0.0.1:7700/exchange.
func Dial(ctx context.Context, url string, rank, world int, log *slog.Logger) (*Client, error) {
	if world < 1 {
		return nil, fmt.Errorf("world size must be >= 1, got %d", world)
	}
	if rank < 0 || rank >= world {
		return nil, fmt.Errorf("rank %d out of range [0, %d)", rank, world)
	}
	if log == nil {
		log = slog.Default()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing exchange hub: %w", err)
	}

	c := &Client{conn: conn, rank: rank, world: world, log: log}
	if err := c.write(frame{Type: frameHello, Rank: rank, World: world}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	f, err := c.read(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("waiting for welcome: %w", err)
	}
	switch f.Type {
	case frameWelcome:
	case frameError:
		conn.Close()
		return nil, fmt.Errorf("hub rejected rank %d: %s", rank, f.Error)
	default:
		conn.Close()
		return nil, fmt.Errorf("expected welcome frame, got %q", f.Type)
	}

	log.Debug("connected to exchange hub", "rank", rank, "world", world)
	return c, nil
}

// Exchange implements the collective for one step. The returned batches
// are indexed by rank; within each batch the contributing rank's
// emission order is preserved exactly.
func (c *Client) Exchange(ctx context.Context, step simtime.Step, local []event.Event) ([][]event.Event, error) {
	if err := c.write(frame{Type: frameBatch, Rank: c.rank, Step: step, Events: local}); err != nil {
		return nil, fmt.Errorf("rank %d submitting step %d: %w", c.rank, step, err)
	}

	f, err := c.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("rank %d waiting for merged step %d: %w", c.rank, step, err)
	}
	switch f.Type {
	case frameMerged:
	case frameError:
		return nil, fmt.Errorf("exchange aborted: %s", f.Error)
	default:
		return nil, fmt.Errorf("rank %d: unexpected %q frame during exchange", c.rank, f.Type)
	}
	if f.Step != step {
		return nil, fmt.Errorf("rank %d: merged batches for step %d, expected %d", c.rank, f.Step, step)
	}
	if len(f.Batches) != c.world {
		return nil, fmt.Errorf("rank %d: merged frame carries %d batches, expected %d", c.rank, len(f.Batches), c.world)
	}
	return f.Batches, nil
}

// Rank returns this client's rank.
func (c *Client) Rank() int { return c.rank }

// Close performs a clean websocket close. The hub reads a clean close
// between rounds as the rank leaving at end of run.
func (c *Client) Close() error {
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// read blocks on the next frame. When the context ends the read is
// unblocked by expiring the read deadline; the connection is not usable
// afterwards.
func (c *Client) read(ctx context.Context) (frame, error) {
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return frame{}, ctx.Err()
		}
		return frame{}, err
	}
	return decodeFrame(data)
}

func (c *Client) write(f frame) error {
	data, err := encodeFrame(f)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}
