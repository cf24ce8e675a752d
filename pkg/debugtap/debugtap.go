// Package debugtap exposes ledger internals useful for debugging and
// invariant checking without putting either on the production hot path: a
// bounded channel of RolledBack events, and a linear-in-wallets invariant
// sweep, CheckInvariants, which callers run themselves against a schema.
package debugtap

import (
	"fmt"
	"sync/atomic"

	"github.com/certen/private-currency/pkg/merkle"
	"github.com/certen/private-currency/pkg/storage"
	"github.com/certen/private-currency/pkg/txn"
)

// Capacity is the default size of the event channel between the probe and
// its consumer.
const Capacity = 16

// EventKind tags the single event variant today; kept as a type so new
// variants can be added without breaking Event's shape.
type EventKind uint8

// RolledBack is emitted once per transfer the automatic rollback sweep
// reverted, just after the block that reverted it commits.
const RolledBack EventKind = 0

// Event is one notification delivered to a Debugger.
type Event struct {
	Kind     EventKind
	Transfer *txn.Transfer
	Height   uint64
}

// Options configures a Probe.
type Options struct {
	// CheckInvariants is stored on the Probe only: OnAfterCommit does not
	// run CheckInvariants, whatever this flag holds.
	CheckInvariants bool
}

// Debugger is the consumer side: range over Events to receive notifications
// until the probe shuts down and closes the channel.
type Debugger struct {
	Events <-chan Event
}

// Probe is the producer side, held by the consensus application and driven
// from its after-commit hook.
type Probe struct {
	tx       chan Event
	shutdown atomic.Bool
	options  Options
}

// NewChannel creates a bounded event channel of the given capacity and
// returns both ends.
func NewChannel(capacity int, options Options) (*Probe, *Debugger) {
	ch := make(chan Event, capacity)
	return &Probe{tx: ch, options: options}, &Debugger{Events: ch}
}

// IsShutdown reports whether the probe has stopped sending, because its
// consumer fell behind and the channel filled up.
func (p *Probe) IsShutdown() bool {
	return p.shutdown.Load()
}

// OnAfterCommit sends one RolledBack event per hash in rolledBack, resolving
// each to its Transfer via resolve. It never blocks: if the channel is full
// it shuts down instead, mirroring a disconnected consumer.
func (p *Probe) OnAfterCommit(height uint64, rolledBack []merkle.Hash, resolve func(merkle.Hash) (*txn.Transfer, bool)) {
	if p.shutdown.Load() {
		return
	}
	for _, hash := range rolledBack {
		transfer, ok := resolve(hash)
		if !ok {
			continue
		}
		select {
		case p.tx <- Event{Kind: RolledBack, Transfer: transfer, Height: height}:
		default:
			p.shutdown.Store(true)
			close(p.tx)
			return
		}
	}
}

// CheckInvariants asserts every wallet's summary fields agree with the
// Merkle indexes they summarize, and that the past-balance cache and
// last_send_index bookkeeping are internally consistent. It panics on the
// first violation, since a violation here means a storage mutation bug, not
// a reportable runtime condition.
func CheckInvariants(schema storage.Schema) {
	var wallets []storage.Wallet
	schema.WalletsSnapshot(func(w storage.Wallet) {
		wallets = append(wallets, w)
	})

	for _, w := range wallets {
		history := schema.History(w.PublicKey)
		if history.Root() != w.HistoryHash {
			panic(fmt.Sprintf("debugtap: wallet %s history hash mismatch", w.PublicKey))
		}
		if history.Len() != w.HistoryLen {
			panic(fmt.Sprintf("debugtap: wallet %s history length mismatch", w.PublicKey))
		}

		unaccepted := schema.UnacceptedTransfers(w.PublicKey)
		if unaccepted.Root() != w.UnacceptedTransfersHash {
			panic(fmt.Sprintf("debugtap: wallet %s unaccepted transfers hash mismatch", w.PublicKey))
		}

		pastBalances := schema.PastBalances(w.PublicKey)
		for i := w.LastSendIndex; i < w.HistoryLen; i++ {
			if _, ok := pastBalances.Get(indexKey(i)); !ok {
				panic(fmt.Sprintf("debugtap: wallet %s missing past balance at index %d", w.PublicKey, i))
			}
		}
		if w.HistoryLen > 0 {
			raw, ok := pastBalances.Get(indexKey(w.HistoryLen - 1))
			if !ok {
				panic(fmt.Sprintf("debugtap: wallet %s missing current past balance", w.PublicKey))
			}
			current, err := w.Balance.Bytes()
			if err != nil {
				panic(fmt.Sprintf("debugtap: wallet %s balance encode: %v", w.PublicKey, err))
			}
			if string(raw) != string(current[:]) {
				panic(fmt.Sprintf("debugtap: wallet %s current past balance does not match balance", w.PublicKey))
			}
		}
	}
}

func indexKey(index uint64) []byte {
	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = byte(index)
		index >>= 8
	}
	return buf[:]
}
