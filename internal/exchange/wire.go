// Package exchange implements the collective event exchange between
// simulation processes. Rank 0 serves a websocket endpoint; every rank,
// rank 0 included over a loopback connection, contributes its batch for
// the step and blocks until the merged result comes back. The hub
// gathers exactly one batch per rank, concatenates them in ascending
// rank order and broadcasts the result, so every process routes the
// same event sequence.
package exchange

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jasperalbers/nestgo/internal/event"
	"github.com/jasperalbers/nestgo/internal/simtime"
)

// Frame types. Every websocket message is one msgpack encoded frame.
const (
	frameHello   = "hello"
	frameWelcome = "welcome"
	frameBatch   = "batch"
	frameMerged  = "merged"
	frameError   = "error"
)

// frame is the wire envelope. Which fields are meaningful depends on
// Type: hello and welcome carry Rank and World, batch carries Rank,
// Step and Events, merged carries Step and Batches, error carries
// Error.
type frame struct {
	Type    string          `msgpack:"type"`
	Rank    int             `msgpack:"rank"`
	World   int             `msgpack:"world"`
	Step    simtime.Step    `msgpack:"step"`
	Events  []event.Event   `msgpack:"events"`
	Batches [][]event.Event `msgpack:"batches"`
	Error   string          `msgpack:"error"`
}

func encodeFrame(f frame) ([]byte, error) {
	data, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", f.Type, err)
	}
	return data, nil
}

func decodeFrame(data []byte) (frame, error) {
	var f frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	return f, nil
}
