package core

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"TradeArena/internal/event"
	"TradeArena/internal/observability"
	"TradeArena/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Core is the sequential settlement engine. Every command takes the mutex,
// validates fully, then mutates: either the whole command applies or no
// state changes. State flows one way per competition: registration →
// trading → snapshot → placement → settlement.
type Core struct {
	mu sync.Mutex

	cfg   *Config
	store *store.Store

	custody Custody
	router  Router
	oracle  Oracle
	clock   Clock

	// Bidirectional adjacency built once from cfg.AllowedPairs.
	pairGraph map[string]map[string]bool

	sequence int64

	log     zerolog.Logger
	metrics *observability.Metrics

	persistChan chan<- Output
	publishChan chan<- Output
}

// Output is one applied command: the envelope plus the asset movements it
// caused. Persist sends block (backpressure); publish sends drop on full.
type Output struct {
	Envelope  *event.Envelope
	Transfers []event.Transfer
}

// New builds a Core. The config must already be validated.
func New(
	cfg *Config,
	st *store.Store,
	custody Custody,
	router Router,
	oracle Oracle,
	clock Clock,
	log zerolog.Logger,
	metrics *observability.Metrics,
	persistChan, publishChan chan<- Output,
) *Core {
	graph := make(map[string]map[string]bool)
	for _, pair := range cfg.AllowedPairs {
		a, b := pair[0], pair[1]
		if graph[a] == nil {
			graph[a] = make(map[string]bool)
		}
		if graph[b] == nil {
			graph[b] = make(map[string]bool)
		}
		graph[a][b] = true
		graph[b][a] = true
	}

	return &Core{
		cfg:         cfg,
		store:       st,
		custody:     custody,
		router:      router,
		oracle:      oracle,
		clock:       clock,
		pairGraph:   graph,
		log:         log,
		metrics:     metrics,
		persistChan: persistChan,
		publishChan: publishChan,
	}
}

// SetSequence restores the event sequence after a warm restart.
func (c *Core) SetSequence(seq int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequence = seq
}

// Sequence returns the next event sequence to be assigned.
func (c *Core) Sequence() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sequence
}

// StateSnapshot captures the store state under the command mutex, paired
// with the sequence of the last applied event. Sequence -1 means no event
// has been applied yet.
func (c *Core) StateSnapshot() (int64, *store.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sequence - 1, c.store.Snapshot()
}

// allowedPair reports whether two assets are adjacent in the pair graph.
func (c *Core) allowedPair(a, b string) bool {
	return c.pairGraph[a][b]
}

// emit assigns a sequence, builds the envelope and forwards the output.
// Called with the mutex held, after all mutation succeeded.
func (c *Core) emit(t event.Type, competitionID uint64, caller string, now time.Time, payload interface{}, transfers []event.Transfer) {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payload structs are plain data; a marshal failure is a bug.
		panic(fmt.Sprintf("FATAL: marshal %s payload: %v", t, err))
	}

	seq := c.sequence
	c.sequence++

	for i := range transfers {
		transfers[i].TransferID = uuid.New()
		transfers[i].Sequence = seq
		transfers[i].CompetitionID = competitionID
		transfers[i].Timestamp = now.UnixMicro()
	}

	out := Output{
		Envelope: &event.Envelope{
			Sequence:      seq,
			EventID:       uuid.New(),
			Type:          t,
			CompetitionID: competitionID,
			Caller:        caller,
			Timestamp:     now,
			Payload:       data,
		},
		Transfers: transfers,
	}

	// Persistence blocks: the core stalls until the worker drains, so no
	// applied command is ever lost.
	c.persistChan <- out

	// Publishing drops on full: downstream consumers can replay from the
	// event log.
	select {
	case c.publishChan <- out:
	default:
		if c.metrics != nil {
			c.metrics.PublishDrops.Inc()
		}
	}

	if c.metrics != nil {
		c.metrics.CommandsApplied.WithLabelValues(t.String()).Inc()
		c.metrics.CoreSequence.Set(float64(c.sequence))
	}

	c.log.Info().
		Int64("sequence", seq).
		Str("event", t.String()).
		Uint64("competition", competitionID).
		Str("caller", caller).
		Msg("command applied")
}

// reject records a refused command.
func (c *Core) reject(op string, err error) error {
	if c.metrics != nil {
		kind := "external"
		if k, ok := ErrorKind(err); ok {
			kind = k.String()
		}
		c.metrics.CommandsRejected.WithLabelValues(op, kind).Inc()
	}
	return err
}

// transfer is a convenience constructor for audit rows; emit fills in the
// id, sequence, competition and timestamp.
func transfer(asset, from, to string, amount *big.Int, kind event.TransferKind) event.Transfer {
	return event.Transfer{
		Asset:  asset,
		From:   from,
		To:     to,
		Amount: amount.String(),
		Kind:   kind,
	}
}

// Ledger party labels used in transfer audit rows.
const (
	partyCustody = "custody"
	partyPool    = "pool"
)
