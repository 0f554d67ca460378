// Package broadcast queues UI refresh messages for dispatch to connected
// clients. The engine only produces the messages; a separate dispatcher
// drains them.
//
// Two backends exist: a Redis-backed queue for deployments with a cache,
// and a spool directory for single-node setups where the dispatcher
// tails the filesystem.
package broadcast

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// Message is the dispatcher wire model.
type Message struct {
	// Event names what changed, e.g. "bot.log.updated".
	Event string `json:"event"`

	// Data is the event payload forwarded verbatim to clients.
	Data json.RawMessage `json:"data"`
}

// Queue accepts broadcast messages for later dispatch.
type Queue interface {
	// Push places one message on the queue.
	Push(ctx context.Context, event string, data json.RawMessage) error
}

const (
	keyPrefix    = "broadcast-"
	suffixLength = 10
	base62       = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// entryName builds the unique queue entry name: a unix timestamp plus a
// random base62 suffix, so entries sort by enqueue time and never collide.
func entryName(at time.Time) string {
	return fmt.Sprintf("%d-%s", at.Unix(), randSuffix(suffixLength))
}

// spoolEntryName is the file-spool variant: fractional unix time with the
// decimal point written as an underscore, keeping sub-second ordering in
// a filesystem-safe name.
func spoolEntryName(at time.Time) string {
	return fmt.Sprintf("%d_%06d-%s", at.Unix(), at.Nanosecond()/1000, randSuffix(suffixLength))
}

func randSuffix(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(base62)))
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("langboard: failed to read random bytes: " + err.Error())
		}
		out[i] = base62[v.Int64()]
	}
	return string(out)
}
