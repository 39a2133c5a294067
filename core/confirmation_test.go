package core_test

import (
	"context"
	"testing"
	"time"

	. "github.com/synnergy-network/crosschain-relayer/core"
)

func TestIsConfirmed_Boundary(t *testing.T) {
	cases := []struct {
		name       string
		eventBlock uint64
		head       uint64
		depth      uint64
		want       bool
	}{
		{"exactly at depth", 50, 53, 3, true},
		{"one short of depth", 50, 52, 3, false},
		{"far past depth", 50, 100, 3, true},
		{"head behind event", 50, 49, 3, false},
		{"zero depth always confirmed at head", 50, 50, 0, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := IsConfirmed(c.eventBlock, c.head, c.depth)
			if got != c.want {
				t.Fatalf("IsConfirmed(%d, %d, %d) = %v, want %v", c.eventBlock, c.head, c.depth, got, c.want)
			}
		})
	}
}

func TestDeferredInBatch_Partitions(t *testing.T) {
	events := []RawEvent{
		{BlockNumber: 50},
		{BlockNumber: 52},
		{BlockNumber: 47},
	}
	ready, deferred := DeferredInBatch(events, 53, 3, func(e RawEvent) uint64 { return e.BlockNumber })
	if len(ready) != 2 {
		t.Fatalf("expected 2 ready events, got %d", len(ready))
	}
	if len(deferred) != 1 || deferred[0].BlockNumber != 52 {
		t.Fatalf("expected block 52 deferred, got %+v", deferred)
	}
}

func TestPollUntilConfirmed_ReturnsOnceConfirmed(t *testing.T) {
	client := &fakeChainClient{head: 46}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- PollUntilConfirmed(ctx, client, 45, 3) }()

	time.Sleep(50 * time.Millisecond)
	client.mu.Lock()
	client.head = 48
	client.mu.Unlock()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error once confirmed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PollUntilConfirmed did not return once the event became confirmed")
	}
}

func TestPollUntilConfirmed_RespectsCancellation(t *testing.T) {
	client := &fakeChainClient{head: 0}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := PollUntilConfirmed(ctx, client, 1000, 3)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
