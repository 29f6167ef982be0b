// Package validator implements the per-match state machine described in
// §3.4/§4.5: a pure set of handlers (applyChallenge, applyAcceptance, ...)
// plus a Dispatcher that demultiplexes the relay's event stream into one
// serial actor per match id, matching the teacher's task-per-unit-of-work
// concurrency idiom (pkg/consensus, pkg/batch).
package validator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/manastr/validator/pkg/army"
	"github.com/manastr/validator/pkg/auditstore"
	"github.com/manastr/validator/pkg/event"
	"github.com/manastr/validator/pkg/metrics"
	"github.com/manastr/validator/pkg/mint"
	"github.com/manastr/validator/pkg/relay"
)

// inboxCapacity bounds the per-match event queue. A single match never
// carries more than a few dozen protocol events (one per KIND per round),
// so this is a practical stand-in for the "unbounded channel" of the design
// notes rather than a real limit any live match could hit.
const inboxCapacity = 256

// Dispatcher routes relay-delivered events to one serial per-match actor
// each, performs mint RPC/settlement, republishes KIND 31006, and reports
// metrics. It never validates anything itself; every rule lives in the pure
// apply* handlers and in settle().
type Dispatcher struct {
	mint    mint.Client
	relay   *relay.Client
	metrics *metrics.Registry
	league  army.LeagueTable
	signer  *btcec.PrivateKey

	winnerShareBP int64
	idleTimeout   time.Duration

	audit  *auditstore.Store
	logger *log.Logger

	mu      sync.Mutex
	actors  map[string]*matchActor
}

type matchActor struct {
	inbox  chan *event.Event
	record *MatchRecord
	touch  time.Time
}

// NewDispatcher wires a Dispatcher from its collaborators. audit may be nil
// (audit persistence is optional, §9 "Global validator configuration").
func NewDispatcher(mintClient mint.Client, relayClient *relay.Client, metricsReg *metrics.Registry, league army.LeagueTable, signer *btcec.PrivateKey, winnerShareBP int64, idleTimeout time.Duration, audit *auditstore.Store) *Dispatcher {
	return &Dispatcher{
		mint:          mintClient,
		relay:         relayClient,
		metrics:       metricsReg,
		league:        league,
		signer:        signer,
		winnerShareBP: winnerShareBP,
		idleTimeout:   idleTimeout,
		audit:         audit,
		logger:        log.New(log.Writer(), "[dispatcher] ", log.LstdFlags),
		actors:        make(map[string]*matchActor),
	}
}

// Run subscribes to every protocol kind the validator consumes (31000-31005)
// and processes events until ctx is cancelled. It never returns an error on
// its own account; relay disconnects are handled transparently inside
// pkg/relay's reconnect loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	kinds := []int{
		int(event.KindMatchChallenge),
		int(event.KindMatchAcceptance),
		int(event.KindTokenReveal),
		int(event.KindMoveCommitment),
		int(event.KindMoveReveal),
		int(event.KindMatchResult),
	}
	events, err := d.relay.Subscribe(ctx, kinds)
	if err != nil {
		return fmt.Errorf("dispatcher: subscribe: %w", err)
	}

	var idleTicker *time.Ticker
	if d.idleTimeout > 0 {
		idleTicker = time.NewTicker(d.idleTimeout / 4)
		defer idleTicker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			d.route(ctx, ev)
		case <-tickerChan(idleTicker):
			d.reapIdle()
		}
	}
}

func tickerChan(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// route finds or creates the actor for ev's match id and hands it the event
// for serial processing. A full inbox (should never happen at the scale of
// one match) drops the event rather than blocking the whole dispatcher.
func (d *Dispatcher) route(ctx context.Context, ev event.Event) {
	e := ev
	var matchID string
	if e.Kind == event.KindMatchChallenge {
		matchID = e.ID
	} else {
		matchID = e.MatchID()
	}
	if matchID == "" {
		d.logger.Printf("dropping event with no resolvable match id (kind=%d)", e.Kind)
		return
	}

	d.mu.Lock()
	actor, ok := d.actors[matchID]
	if !ok {
		if e.Kind != event.KindMatchChallenge {
			d.mu.Unlock()
			d.logger.Printf("dropping event for unknown match %s (kind=%d)", matchID, e.Kind)
			return
		}
		actor = &matchActor{inbox: make(chan *event.Event, inboxCapacity), touch: time.Now()}
		d.actors[matchID] = actor
		go d.runActor(ctx, matchID, actor)
	}
	actor.touch = time.Now()
	d.mu.Unlock()

	select {
	case actor.inbox <- &e:
	default:
		d.logger.Printf("dropping event for match %s: inbox full", matchID)
	}
}

func (d *Dispatcher) runActor(ctx context.Context, matchID string, actor *matchActor) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-actor.inbox:
			if !ok {
				return
			}
			d.handle(ctx, matchID, actor, ev)
			if actor.record != nil && actor.record.Phase.Terminal() {
				return
			}
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, matchID string, actor *matchActor, ev *event.Event) {
	var err error

	if ev.Kind == event.KindMatchChallenge {
		if actor.record != nil {
			d.logger.Printf("match %s: duplicate challenge ignored", matchID)
			return
		}
		actor.record, err = applyChallenge(ev)
		if err != nil {
			d.logger.Printf("match %s: malformed challenge dropped: %v", matchID, err)
			d.removeActor(matchID)
			return
		}
		d.observePhase(actor.record.Phase)
		d.recordAudit(ctx, actor.record)
		return
	}

	rec := actor.record
	if rec == nil {
		return
	}

	refs := refSet{Mint: d.mint, League: d.league}
	switch ev.Kind {
	case event.KindMatchAcceptance:
		err = applyAcceptance(rec, ev)
	case event.KindTokenReveal:
		err = applyTokenReveal(ctx, rec, ev, refs)
	case event.KindMoveCommitment:
		err = applyMoveCommitment(rec, ev)
	case event.KindMoveReveal:
		err = applyMoveReveal(rec, ev)
	case event.KindMatchResult:
		err = applyMatchResult(rec, ev)
	default:
		d.logger.Printf("match %s: unexpected kind %d, dropped", matchID, ev.Kind)
		return
	}

	if err != nil {
		if Fatal(err) {
			rec.Phase = Invalidated
			rec.InvalidationReason = err.Error()
			d.metrics.InvalidationReasons.WithLabelValues(invalidationCategory(err)).Inc()
			d.logger.Printf("match %s: INVALIDATED: %v", matchID, err)
			d.observePhase(rec.Phase)
			d.recordAudit(ctx, rec)
		} else {
			d.logger.Printf("match %s: dropped event: %v", matchID, err)
		}
		return
	}

	d.observePhase(rec.Phase)
	d.recordAudit(ctx, rec)

	if rec.Phase == ResultSubmitted && ev.Kind == event.KindMatchResult {
		d.trySettle(ctx, matchID, rec)
	}
}

func (d *Dispatcher) trySettle(ctx context.Context, matchID string, rec *MatchRecord) {
	econ := economy{Mint: d.mint, WinnerShareBP: d.winnerShareBP, Signer: d.signer}
	lootEvent, err := settle(ctx, rec, econ, nowUnix())
	if err != nil {
		if Fatal(err) {
			rec.Phase = Invalidated
			rec.InvalidationReason = err.Error()
			d.metrics.InvalidationReasons.WithLabelValues(invalidationCategory(err)).Inc()
		}
		d.logger.Printf("match %s: settlement deferred: %v", matchID, err)
		return
	}
	if lootEvent == nil {
		return
	}
	if err := d.relay.Publish(ctx, *lootEvent); err != nil {
		d.logger.Printf("match %s: failed to publish loot distribution: %v", matchID, err)
		return
	}
	d.metrics.LootIssued.WithLabelValues(string(mint.CurrencyLoot)).Add(float64(lootTotal(rec)))
	d.observePhase(rec.Phase)
	d.recordAudit(ctx, rec)
	d.logger.Printf("match %s: COMPLETED, winner=%s draw=%v", matchID, rec.Winner, rec.Draw)
}

func lootTotal(rec *MatchRecord) int64 {
	var total int64
	for _, proofs := range rec.LootIssued {
		for _, p := range proofs {
			total += p.Amount
		}
	}
	return total
}

func (d *Dispatcher) observePhase(p Phase) {
	if d.metrics == nil {
		return
	}
	d.metrics.MatchesByPhase.WithLabelValues(p.String()).Inc()
}

func (d *Dispatcher) recordAudit(ctx context.Context, rec *MatchRecord) {
	if d.audit == nil {
		return
	}
	if err := d.audit.RecordTransition(ctx, rec.MatchID, rec.Phase.String(), rec); err != nil {
		d.logger.Printf("match %s: audit write failed: %v", rec.MatchID, err)
	}
}

func (d *Dispatcher) reapIdle() {
	if d.idleTimeout <= 0 {
		return
	}
	cutoff := time.Now().Add(-d.idleTimeout)
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, actor := range d.actors {
		if actor.record != nil && actor.record.Phase.Terminal() {
			delete(d.actors, id)
			continue
		}
		if actor.touch.Before(cutoff) {
			d.logger.Printf("match %s: abandoned after idle timeout, dropping (no KIND 31006, no burn)", id)
			close(actor.inbox)
			delete(d.actors, id)
		}
	}
}

func (d *Dispatcher) removeActor(matchID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.actors, matchID)
}

// invalidationCategory names the sentinel behind a fatal error, for the
// match_invalidations_total metric's "reason" label.
func invalidationCategory(err error) string {
	switch {
	case errors.Is(err, ErrCommitmentFailure):
		return "commitment_failure"
	case errors.Is(err, ErrTokenFailure):
		return "token_failure"
	case errors.Is(err, ErrLogicFailure):
		return "logic_failure"
	default:
		return "unknown"
	}
}
