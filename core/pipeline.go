package core

// pipeline.go – the generic event pipeline shared by the Lock, Burn, and
// Governance streams, which differ only in their decode/call-build logic.
// One Pipeline instance per stream; each owns its cursor and processed-mark
// rows exclusively.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	submitMaxAttempts = 3
	submitRetryDelay  = 2 * time.Second
)

// Decoder turns a RawEvent into an EventRecord for this stream.
type Decoder func(RawEvent) (EventRecord, error)

// CallBuilder ABI-encodes the destination call for a decoded event. A
// builder may return (nil, ErrUnknownSelector) to signal the event should
// be logged-and-skipped rather than retried (governance's unknown-selector
// case).
type CallBuilder func(EventRecord) (destination common.Address, data []byte, err error)

// Pipeline drives recovery and live subscription for one stream: Lock,
// Burn, or Governance.
type Pipeline struct {
	Stream StreamID
	Kind   EventKind

	Source          ChainClient
	SourceAddress   common.Address
	SourceSignature string

	Destination ChainClient

	Decode      Decoder
	BuildCall   CallBuilder

	Store           DurableStore
	ConfirmationDepth uint64

	log *logrus.Entry
}

// NewPipeline wires a generic pipeline instance. The three concrete
// constructors (lock_pipeline.go, burn_pipeline.go, governance_pipeline.go)
// call this with their stream-specific Decode/BuildCall.
func NewPipeline(stream StreamID, kind EventKind, source ChainClient, sourceAddr common.Address, signature string, dest ChainClient, decode Decoder, build CallBuilder, store DurableStore, depth uint64, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		Stream:            stream,
		Kind:              kind,
		Source:            source,
		SourceAddress:     sourceAddr,
		SourceSignature:   signature,
		Destination:       dest,
		Decode:            decode,
		BuildCall:         build,
		Store:             store,
		ConfirmationDepth: depth,
		log:               log.WithField("component", "pipeline").WithField("stream", string(stream)),
	}
}

// Recover scans from the persisted cursor to the current head, processes
// every event in ascending order, then advances the cursor past the whole
// range, including events deferred for confirmation depth; later passes
// start after the new cursor and do not rescan them. A durability failure on any event aborts the scan
// immediately, without advancing the cursor past the unmarked event, since
// the store is the only thing the dedup and cursor invariants rest on.
func (p *Pipeline) Recover(ctx context.Context) error {
	cursor, err := p.Store.GetCursor(p.Stream)
	if err != nil {
		return &DurabilityError{Op: "recover:getCursor", Err: err}
	}
	head, err := p.Source.HeadBlock(ctx)
	if err != nil {
		return err
	}
	if cursor >= head {
		p.log.WithField("cursor", cursor).WithField("head", head).Debug("recovery: nothing to scan")
		return nil
	}

	events, err := p.Source.QueryEvents(ctx, p.SourceAddress, p.SourceSignature, cursor+1, head)
	if err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{"from": cursor + 1, "to": head, "count": len(events)}).Info("recovery: scanning range")

	for _, raw := range events {
		if err := p.process(ctx, raw, head); err != nil {
			var durErr *DurabilityError
			if errors.As(err, &durErr) {
				return err
			}
			p.log.WithError(err).Warn("recovery: event processing failed, will be re-observed on a later pass")
		}
	}

	if err := p.Store.SetCursor(p.Stream, head); err != nil {
		return &DurabilityError{Op: "recover:setCursor", Err: err}
	}
	return nil
}

// StartLive subscribes to new events and drives each through the
// confirmation gate in polling mode, then through the same processing
// critical section as recovery. It blocks until ctx is cancelled or a
// durability failure forces the subscription to stop, whichever comes
// first.
func (p *Pipeline) StartLive(ctx context.Context) error {
	p.log.Info("starting live subscription")

	liveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var fatalErr error
	subErr := p.Source.Subscribe(liveCtx, p.SourceAddress, p.SourceSignature, func(raw RawEvent) {
		if err := PollUntilConfirmed(liveCtx, p.Source, raw.BlockNumber, p.ConfirmationDepth); err != nil {
			if liveCtx.Err() == nil {
				p.log.WithError(err).Warn("live: confirmation wait failed")
			}
			return
		}
		head, err := p.Source.HeadBlock(liveCtx)
		if err != nil {
			p.log.WithError(err).Warn("live: could not read head at confirmation")
			return
		}
		if err := p.process(liveCtx, raw, head); err != nil {
			var durErr *DurabilityError
			if errors.As(err, &durErr) {
				p.log.WithError(err).Error("durability failure, stopping live subscription")
				fatalErr = err
				cancel()
				return
			}
			p.log.WithError(err).Warn("live: event processing failed")
		}
	})
	if fatalErr != nil {
		return fatalErr
	}
	return subErr
}

// process is the per-event critical section: decode, check confirmation,
// check dedup, then drive the submission retry loop.
func (p *Pipeline) process(ctx context.Context, raw RawEvent, headAtCheck uint64) error {
	event, err := p.Decode(raw)
	if err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	if headAtCheck < event.BlockNumber || headAtCheck-event.BlockNumber < p.ConfirmationDepth {
		p.log.WithField("nonce", event.Nonce).Debug("not yet confirmed")
		return nil
	}

	done, err := p.Store.IsProcessed(p.Stream, event.Nonce, p.Kind)
	if err != nil {
		return &DurabilityError{Op: "process:isProcessed", Err: err}
	}
	if done {
		p.log.WithField("nonce", event.Nonce).Debug("already processed")
		return nil
	}

	destination, data, err := p.BuildCall(event)
	if err != nil {
		if err == ErrUnknownSelector {
			p.log.WithField("nonce", event.Nonce).Warn("unknown governance selector, skipping")
			// Write the mark so this proposal is never revisited, and
			// advance past it like a successful submission.
			if merr := p.Store.MarkProcessed(p.Stream, event.Nonce, p.Kind, ""); merr != nil {
				return &DurabilityError{Op: "process:markSkipped", Err: merr}
			}
			if serr := p.Store.SetCursor(p.Stream, event.BlockNumber); serr != nil {
				return &DurabilityError{Op: "process:setCursorSkipped", Err: serr}
			}
			return nil
		}
		return fmt.Errorf("build destination call: %w", err)
	}

	return p.submitWithRetry(ctx, event, destination, data)
}

func (p *Pipeline) submitWithRetry(ctx context.Context, event EventRecord, destination common.Address, data []byte) error {
	attemptID := uuid.NewString()
	var lastErr error

	for attempt := 1; attempt <= submitMaxAttempts; attempt++ {
		txHash, err := p.Destination.SubmitTx(ctx, destination, data)
		if err == nil {
			if merr := p.Store.MarkProcessed(p.Stream, event.Nonce, p.Kind, txHash.Hex()); merr != nil {
				return &DurabilityError{Op: "process:markProcessed", Err: merr}
			}
			if serr := p.Store.SetCursor(p.Stream, event.BlockNumber); serr != nil {
				return &DurabilityError{Op: "process:setCursor", Err: serr}
			}
			p.log.WithFields(logrus.Fields{"nonce": event.Nonce, "tx": txHash.Hex(), "attempt": attempt, "attemptId": attemptID}).Info("submission confirmed")
			return nil
		}

		lastErr = err
		if classifyRevert(err) == RevertNonceAlreadyProcessed {
			// Benign revert: treat as success for dedup
			// purposes, but the local mark uses an empty tx hash since we
			// never learned the real one.
			if merr := p.Store.MarkProcessed(p.Stream, event.Nonce, p.Kind, ""); merr != nil {
				return &DurabilityError{Op: "process:markBenign", Err: merr}
			}
			if serr := p.Store.SetCursor(p.Stream, event.BlockNumber); serr != nil {
				return &DurabilityError{Op: "process:setCursorBenign", Err: serr}
			}
			p.log.WithField("nonce", event.Nonce).Info("destination already processed nonce, treating as success")
			return nil
		}

		if kind := classifyRevert(err); kind == RevertAccessControl {
			p.log.WithFields(logrus.Fields{"nonce": event.Nonce, "err": err}).Error("access-control revert, operator intervention required")
			return err // not marked processed
		}

		p.log.WithFields(logrus.Fields{"nonce": event.Nonce, "attempt": attempt, "err": err}).Warn("submission attempt failed")

		if attempt < submitMaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(submitRetryDelay):
			}
			continue
		}

		// Final attempt failed. ZeroAmount is a protocol violation we never
		// want to retry forever; mark it so it stops resurfacing. Anything
		// else (Unknown/TransientRpc surfaced through) is left unmarked so
		// the event remains eligible for retry on the next recovery pass.
		if classifyRevert(err) == RevertZeroAmount {
			p.log.WithField("nonce", event.Nonce).Error("zero-amount revert, marking to stop infinite retry")
			if merr := p.Store.MarkProcessed(p.Stream, event.Nonce, p.Kind, ""); merr != nil {
				return &DurabilityError{Op: "process:markZeroAmount", Err: merr}
			}
			return nil
		}
		p.log.WithFields(logrus.Fields{"nonce": event.Nonce, "err": err}).Error("submission abandoned after max attempts")
	}
	return lastErr
}
