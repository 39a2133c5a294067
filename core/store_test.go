package core_test

import (
	"math/big"
	"testing"

	"github.com/sirupsen/logrus"

	. "github.com/synnergy-network/crosschain-relayer/core"
	"github.com/synnergy-network/crosschain-relayer/internal/testutil"
)

func openTestStore(t *testing.T) DurableStore {
	t.Helper()
	sandbox, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	t.Cleanup(func() { _ = sandbox.Cleanup() })

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	store, err := OpenStore(sandbox.Path("relayer.db"), log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// I1: marking the same (stream, nonce, kind) twice is a no-op, not an error.
func TestStore_MarkProcessedIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	nonce := big.NewInt(42)

	if err := store.MarkProcessed(StreamChainALock, nonce, EventLocked, "0xabc"); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := store.MarkProcessed(StreamChainALock, nonce, EventLocked, "0xabc"); err != nil {
		t.Fatalf("second mark: %v", err)
	}

	done, err := store.IsProcessed(StreamChainALock, nonce, EventLocked)
	if err != nil || !done {
		t.Fatalf("expected processed, got done=%v err=%v", done, err)
	}

	marks, err := store.ListProcessed(StreamChainALock)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(marks) != 1 {
		t.Fatalf("expected exactly 1 row after duplicate marks, got %d", len(marks))
	}
}

// Distinct streams or kinds for the same nonce are independent rows: a Lock
// nonce and a Burn nonce never collide.
func TestStore_DedupKeyIsPerStreamAndKind(t *testing.T) {
	store := openTestStore(t)
	nonce := big.NewInt(7)

	if err := store.MarkProcessed(StreamChainALock, nonce, EventLocked, ""); err != nil {
		t.Fatalf("mark lock: %v", err)
	}
	done, err := store.IsProcessed(StreamChainBBurn, nonce, EventBurned)
	if err != nil {
		t.Fatalf("isProcessed: %v", err)
	}
	if done {
		t.Fatal("a Lock mark must not be visible to the Burn stream under the same nonce")
	}
}

func TestStore_CursorRoundTripsAndMonotonic(t *testing.T) {
	store := openTestStore(t)

	cursor, err := store.GetCursor(StreamChainALock)
	if err != nil || cursor != 0 {
		t.Fatalf("expected zero-value cursor for unseen stream, got %d err=%v", cursor, err)
	}

	if err := store.SetCursor(StreamChainALock, 100); err != nil {
		t.Fatalf("set cursor: %v", err)
	}
	cursor, err = store.GetCursor(StreamChainALock)
	if err != nil || cursor != 100 {
		t.Fatalf("expected cursor 100, got %d err=%v", cursor, err)
	}

	if err := store.SetCursor(StreamChainALock, 50); err == nil {
		t.Fatal("expected cursor regression to be rejected (I2)")
	}
	cursor, _ = store.GetCursor(StreamChainALock)
	if cursor != 100 {
		t.Fatalf("cursor must be unchanged after a rejected regression, got %d", cursor)
	}
}

func TestStore_ListProcessedOrdersByInsertion(t *testing.T) {
	store := openTestStore(t)

	for i := int64(1); i <= 3; i++ {
		if err := store.MarkProcessed(StreamChainALock, big.NewInt(i), EventLocked, ""); err != nil {
			t.Fatalf("mark %d: %v", i, err)
		}
	}

	marks, err := store.ListProcessed(StreamChainALock)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(marks) != 3 {
		t.Fatalf("expected 3 marks, got %d", len(marks))
	}
	for i, m := range marks {
		want := big.NewInt(int64(i + 1))
		if m.Nonce.Cmp(want) != 0 {
			t.Fatalf("mark %d: expected nonce %s, got %s", i, want, m.Nonce)
		}
	}
}
