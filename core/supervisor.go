package core

// supervisor.go – configures and owns the three pipelines, drives the
// strict recovery-then-live startup order, runs the heartbeat, and
// coordinates graceful shutdown.

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// heartbeatInterval is the operator-facing liveness tick.
const heartbeatInterval = 30 * time.Second

// Supervisor owns the durable store, both chain clients, and the three
// pipelines for the process lifetime.
type Supervisor struct {
	ChainA ChainClient
	ChainB ChainClient
	Store  DurableStore

	Lock       *Pipeline
	Burn       *Pipeline
	Governance *Pipeline

	log *logrus.Entry
}

// NewSupervisor assembles a Supervisor from already-constructed
// dependencies. Startup wiring (dialing clients, loading deployments,
// opening the store) lives in cmd/relayer, keeping process bootstrap out
// of core.
func NewSupervisor(chainA, chainB ChainClient, store DurableStore, lock, burn, governance *Pipeline, log *logrus.Logger) *Supervisor {
	return &Supervisor{
		ChainA:     chainA,
		ChainB:     chainB,
		Store:      store,
		Lock:       lock,
		Burn:       burn,
		Governance: governance,
		log:        log.WithField("component", "supervisor"),
	}
}

// RecoverAll runs every pipeline's recovery pass to completion, strictly
// before any live subscription starts.
func (s *Supervisor) RecoverAll(ctx context.Context) error {
	for _, p := range []*Pipeline{s.Lock, s.Burn, s.Governance} {
		s.log.WithField("stream", string(p.Stream)).Info("recovery starting")
		if err := p.Recover(ctx); err != nil {
			return err
		}
		s.log.WithField("stream", string(p.Stream)).Info("recovery complete")
	}
	return nil
}

// Run drives the full supervisor lifecycle: recovery for all streams, then
// live subscriptions and the heartbeat, until ctx is cancelled. A durability
// failure surfacing from any pipeline's live subscription stops every other
// pipeline and the heartbeat and is returned to the caller, since the
// dedup/cursor invariants cannot be maintained without a working store.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.RecoverAll(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var fatalErr error

	pipelines := []*Pipeline{s.Lock, s.Burn, s.Governance}
	for _, p := range pipelines {
		wg.Add(1)
		go func(p *Pipeline) {
			defer wg.Done()
			err := p.StartLive(runCtx)
			if err == nil || runCtx.Err() != nil {
				return
			}
			var durErr *DurabilityError
			if errors.As(err, &durErr) {
				s.log.WithField("stream", string(p.Stream)).WithError(err).Error("durability failure, shutting down supervisor")
				mu.Lock()
				if fatalErr == nil {
					fatalErr = err
				}
				mu.Unlock()
				cancel()
				return
			}
			s.log.WithField("stream", string(p.Stream)).WithError(err).Error("live subscription exited unexpectedly")
		}(p)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.heartbeat(runCtx)
	}()

	<-runCtx.Done()
	wg.Wait()
	return fatalErr
}

// heartbeat logs each chain's head block and every stream's lag every
// heartbeatInterval. A query failure must never terminate the supervisor.
func (s *Supervisor) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logHeartbeat(ctx)
		}
	}
}

func (s *Supervisor) logHeartbeat(ctx context.Context) {
	headA, errA := s.ChainA.HeadBlock(ctx)
	headB, errB := s.ChainB.HeadBlock(ctx)
	fields := logrus.Fields{}
	if errA == nil {
		fields["chainA_head"] = headA
	} else {
		fields["chainA_err"] = errA.Error()
	}
	if errB == nil {
		fields["chainB_head"] = headB
	} else {
		fields["chainB_err"] = errB.Error()
	}
	for _, p := range []*Pipeline{s.Lock, s.Burn, s.Governance} {
		cursor, err := s.Store.GetCursor(p.Stream)
		if err != nil {
			continue
		}
		head := headA
		if p.Source == s.ChainB {
			head = headB
		}
		if head >= cursor {
			fields[string(p.Stream)+"_lag"] = head - cursor
		}
	}
	s.log.WithFields(fields).Info("heartbeat")
}

// Shutdown closes the durable store. Callers should cancel the context
// passed to Run before calling Shutdown so live subscriptions have already
// stopped.
func (s *Supervisor) Shutdown() error {
	s.log.Info("shutting down")
	return s.Store.Close()
}
