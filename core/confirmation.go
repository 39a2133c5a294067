package core

// confirmation.go – the confirmation gate. A pure function of (event block,
// current head, depth), plus the two release modes built on top of it:
// polling for live-subscription events, and batch deferral for recovery
// scans.

import (
	"context"
	"time"
)

// pollInterval is the live-mode re-check cadence.
const pollInterval = 1 * time.Second

// IsConfirmed reports whether an event observed at block eventBlock is
// buried at least depth blocks under head.
func IsConfirmed(eventBlock, head uint64, depth uint64) bool {
	if head < eventBlock {
		return false
	}
	return head-eventBlock >= depth
}

// PollUntilConfirmed blocks, re-reading the source chain's head every
// pollInterval, until the event at eventBlock is confirmed or ctx is
// cancelled. There is no upper bound on total wait time; callers own
// cancellation.
func PollUntilConfirmed(ctx context.Context, client ChainClient, eventBlock uint64, depth uint64) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		head, err := client.HeadBlock(ctx)
		if err == nil && IsConfirmed(eventBlock, head, depth) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// DeferredInBatch partitions events observed in a recovery scan against a
// head captured at the start of that scan: ready events meet the
// confirmation depth, deferred events do not and are left for a later
// recovery pass or the live subscription to pick up.
func DeferredInBatch(events []RawEvent, headAtScanStart uint64, depth uint64, blockOf func(RawEvent) uint64) (ready, deferred []RawEvent) {
	for _, e := range events {
		if IsConfirmed(blockOf(e), headAtScanStart, depth) {
			ready = append(ready, e)
		} else {
			deferred = append(deferred, e)
		}
	}
	return ready, deferred
}
