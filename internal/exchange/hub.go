package exchange

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/simtime"
)

// Hub is the gather side of the collective exchange, served by rank 0.
// It is an http.Handler; mount it on the endpoint every rank's Client
// dials.
//
// Rounds are strict lockstep. The hub gathers exactly one batch per
// rank for the current step, broadcasts the merged result and moves to
// the next step. A contribution for any other step, a second hello for
// a taken rank or a lost connection during the run are protocol errors
// that abort the run for every connected rank; a batch is never
// silently dropped.
type Hub struct {
	upgrader websocket.Upgrader
	world    int
	log      *slog.Logger

	mu       sync.Mutex
	conns    map[int]*websocket.Conn
	step     simtime.Step
	batches  map[int][]event.Event
	departed int
	failure  string
}

// NewHub creates a hub expecting world ranks.
func NewHub(world int, log *slog.Logger) (*Hub, error) {
	if world < 1 {
		return nil, fmt.Errorf("world size must be >= 1, got %d", world)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		world:   world,
		log:     log,
		conns:   make(map[int]*websocket.Conn),
		batches: make(map[int][]event.Event),
	}, nil
}

// ServeHTTP upgrades the connection, performs the hello handshake and
// consumes batch contributions until the peer disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	rank, err := h.handshake(conn)
	if err != nil {
		h.log.Warn("exchange handshake rejected", "error", err)
		// The connection is not registered, so this write has no
		// competing writer.
		h.writeFrame(conn, frame{Type: frameError, Error: err.Error()})
		conn.Close()
		return
	}
	h.log.Debug("rank connected", "rank", rank, "world", h.world)

	h.readLoop(rank, conn)
}

// handshake reads and validates the hello frame, registers the
// connection under its rank and acknowledges with a welcome frame.
func (h *Hub) handshake(conn *websocket.Conn) (int, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return 0, fmt.Errorf("reading hello: %w", err)
	}
	f, err := decodeFrame(data)
	if err != nil {
		return 0, err
	}
	if f.Type != frameHello {
		return 0, fmt.Errorf("expected hello frame, got %q", f.Type)
	}
	if f.World != h.world {
		return 0, fmt.Errorf("world size mismatch: hub expects %d, rank %d announced %d", h.world, f.Rank, f.World)
	}
	if f.Rank < 0 || f.Rank >= h.world {
		return 0, fmt.Errorf("rank %d out of range [0, %d)", f.Rank, h.world)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failure != "" {
		return 0, fmt.Errorf("exchange already failed: %s", h.failure)
	}
	if _, taken := h.conns[f.Rank]; taken {
		h.failLocked(fmt.Sprintf("second hello for rank %d", f.Rank))
		return 0, fmt.Errorf("rank %d already connected", f.Rank)
	}
	h.conns[f.Rank] = conn
	if err := h.writeFrame(conn, frame{Type: frameWelcome, Rank: f.Rank, World: h.world}); err != nil {
		delete(h.conns, f.Rank)
		return 0, fmt.Errorf("sending welcome to rank %d: %w", f.Rank, err)
	}
	return f.Rank, nil
}

// readLoop consumes one rank's contributions until its connection
// drops.
func (h *Hub) readLoop(rank int, conn *websocket.Conn) {
	clean := false
	defer func() { h.drop(rank, conn, clean) }()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			clean = websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			return
		}
		f, err := decodeFrame(data)
		if err != nil {
			h.fail(fmt.Sprintf("rank %d: %v", rank, err))
			return
		}
		if f.Type != frameBatch {
			h.fail(fmt.Sprintf("rank %d sent unexpected %q frame", rank, f.Type))
			return
		}
		if f.Rank != rank {
			h.fail(fmt.Sprintf("connection for rank %d contributed as rank %d", rank, f.Rank))
			return
		}
		if err := h.contribute(rank, f.Step, f.Events); err != nil {
			h.fail(err.Error())
			return
		}
	}
}

// contribute records one rank's batch for the current step and, once
// every rank has contributed, broadcasts the batches in ascending rank
// order and opens the next round.
func (h *Hub) contribute(rank int, step simtime.Step, events []event.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.failure != "" {
		return fmt.Errorf("exchange already failed: %s", h.failure)
	}
	if h.departed > 0 {
		return fmt.Errorf("rank %d contributed step %d after another rank left the exchange", rank, step)
	}
	if step != h.step {
		return fmt.Errorf("rank %d contributed step %d, expected step %d", rank, step, h.step)
	}
	if _, dup := h.batches[rank]; dup {
		return fmt.Errorf("rank %d contributed step %d twice", rank, step)
	}
	h.batches[rank] = events

	if len(h.batches) < h.world {
		return nil
	}

	merged := make([][]event.Event, h.world)
	for r := 0; r < h.world; r++ {
		merged[r] = h.batches[r]
	}
	out := frame{Type: frameMerged, Step: step, Batches: merged}
	for r, c := range h.conns {
		if err := h.writeFrame(c, out); err != nil {
			h.log.Warn("failed to send merged batches", "rank", r, "step", int64(step), "error", err)
		}
	}
	h.batches = make(map[int][]event.Event)
	h.step++
	return nil
}

// drop unregisters a disconnected rank. A lost connection while other
// ranks are attached aborts the run; a clean close is the rank leaving
// at end of run, unless a round is still gathering.
func (h *Hub) drop(rank int, conn *websocket.Conn, clean bool) {
	h.mu.Lock()
	registered := h.conns[rank] == conn
	if registered {
		delete(h.conns, rank)
		h.departed++
	}
	gatherStep := h.step
	gathering := len(h.batches) > 0
	remaining := len(h.conns)
	failed := h.failure != ""
	h.mu.Unlock()

	conn.Close()

	if !registered || failed || remaining == 0 {
		return
	}
	if !clean {
		h.fail(fmt.Sprintf("rank %d disconnected", rank))
	} else if gathering {
		h.fail(fmt.Sprintf("rank %d left while step %d was gathering", rank, gatherStep))
	}
}

// fail aborts the run: every connected rank is sent an error frame and
// further contributions are refused.
func (h *Hub) fail(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failLocked(msg)
}

// failLocked is fail for callers already holding mu.
func (h *Hub) failLocked(msg string) {
	if h.failure != "" {
		return
	}
	h.failure = msg
	h.log.Error("exchange failed", "error", msg)
	for _, c := range h.conns {
		h.writeFrame(c, frame{Type: frameError, Error: msg})
	}
}

// writeFrame writes one frame to a connection. Callers hold mu for
// registered connections; the lock is what keeps each connection at a
// single writer.
func (h *Hub) writeFrame(conn *websocket.Conn, f frame) error {
	data, err := encodeFrame(f)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close disconnects every rank and refuses further traffic.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failure == "" {
		h.failure = "hub closed"
	}
	for _, c := range h.conns {
		c.Close()
	}
	h.conns = make(map[int]*websocket.Conn)
	return nil
}
