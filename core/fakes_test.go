package core_test

// fakes_test.go – hand-rolled in-memory fakes for the store and chain
// client, built by hand rather than reaching for a mocking framework.

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	. "github.com/synnergy-network/crosschain-relayer/core"
)

// fakeStore is an in-memory DurableStore for pipeline tests.
type fakeStore struct {
	mu        sync.Mutex
	processed map[string]ProcessedMark
	cursors   map[StreamID]uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		processed: make(map[string]ProcessedMark),
		cursors:   make(map[StreamID]uint64),
	}
}

func (s *fakeStore) key(stream StreamID, nonce *big.Int, kind EventKind) string {
	return string(stream) + "|" + nonce.String() + "|" + string(kind)
}

func (s *fakeStore) IsProcessed(stream StreamID, nonce *big.Int, kind EventKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[s.key(stream, nonce, kind)]
	return ok, nil
}

func (s *fakeStore) MarkProcessed(stream StreamID, nonce *big.Int, kind EventKind, destTxHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(stream, nonce, kind)
	if _, ok := s.processed[k]; ok {
		return nil // insert-if-absent semantics
	}
	s.processed[k] = ProcessedMark{Stream: stream, Nonce: nonce, Kind: kind, DestTxHash: destTxHash}
	return nil
}

func (s *fakeStore) GetCursor(stream StreamID) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[stream], nil
}

func (s *fakeStore) SetCursor(stream StreamID, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if block < s.cursors[stream] {
		return nil
	}
	s.cursors[stream] = block
	return nil
}

func (s *fakeStore) ListProcessed(stream StreamID) ([]ProcessedMark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ProcessedMark
	for _, m := range s.processed {
		if m.Stream == stream {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) Close() error { return nil }

// failingStore wraps a fakeStore and fails MarkProcessed once FailAfter marks
// have already succeeded, to exercise DurabilityError propagation.
type failingStore struct {
	*fakeStore
	FailAfter int
	marks     int
}

func (s *failingStore) MarkProcessed(stream StreamID, nonce *big.Int, kind EventKind, destTxHash string) error {
	s.marks++
	if s.marks > s.FailAfter {
		return errors.New("fake disk full")
	}
	return s.fakeStore.MarkProcessed(stream, nonce, kind, destTxHash)
}

// fakeChainClient is an in-memory ChainClient. As a source it serves
// QueryEvents/Subscribe from a fixed event list; as a destination it
// records submitted calls and can be scripted to fail N times before
// succeeding, or to return a specific classified error every time.
type fakeChainClient struct {
	mu sync.Mutex

	head   uint64
	events []RawEvent

	submitted  []submittedCall
	failTimes  int // SubmitTx fails this many times before succeeding
	failErr    error
	submitCalls int
}

type submittedCall struct {
	destination common.Address
	data        []byte
}

func (c *fakeChainClient) HeadBlock(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, nil
}

func (c *fakeChainClient) QueryEvents(ctx context.Context, address common.Address, signature string, fromBlock, toBlock uint64) ([]RawEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []RawEvent
	for _, e := range c.events {
		if e.BlockNumber >= fromBlock && e.BlockNumber <= toBlock {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *fakeChainClient) Subscribe(ctx context.Context, address common.Address, signature string, handler func(RawEvent)) error {
	c.mu.Lock()
	events := append([]RawEvent(nil), c.events...)
	c.mu.Unlock()
	for _, e := range events {
		handler(e)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *fakeChainClient) SubmitTx(ctx context.Context, destination common.Address, data []byte) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitCalls++
	c.submitted = append(c.submitted, submittedCall{destination: destination, data: data})
	if c.submitCalls <= c.failTimes {
		return common.Hash{}, c.failErr
	}
	return common.BigToHash(big.NewInt(int64(c.submitCalls))), nil
}

func (c *fakeChainClient) WaitReady(ctx context.Context, maxRetries int, interval time.Duration) error {
	return nil
}

// lockedRawEvent builds a well-formed Locked(user, amount, nonce) log.
func lockedRawEvent(block uint64, user common.Address, amount, nonce int64) RawEvent {
	data := make([]byte, 64)
	copy(data[0:32], common.LeftPadBytes(big.NewInt(amount).Bytes(), 32))
	copy(data[32:64], common.LeftPadBytes(big.NewInt(nonce).Bytes(), 32))
	return RawEvent{
		BlockNumber: block,
		Topics: []common.Hash{
			{}, // topic0: event signature hash, unused by decodeLocked
			common.BytesToHash(common.LeftPadBytes(user.Bytes(), 32)),
		},
		Data: data,
	}
}

// proposalPassedRawEvent builds a well-formed ProposalPassed(proposalId,
// bytes) log: proposalId indexed, data ABI-encoded as dynamic bytes.
func proposalPassedRawEvent(t *testing.T, block uint64, proposalID *big.Int, calldata []byte) RawEvent {
	t.Helper()
	bytesType, err := abi.NewType("bytes", "", nil)
	if err != nil {
		t.Fatalf("abi.NewType: %v", err)
	}
	packed, err := abi.Arguments{{Type: bytesType}}.Pack(calldata)
	if err != nil {
		t.Fatalf("pack ProposalPassed data: %v", err)
	}
	return RawEvent{
		BlockNumber: block,
		Topics: []common.Hash{
			{}, // topic0: event signature hash, unused by decodeProposalPassed
			common.BigToHash(proposalID),
		},
		Data: packed,
	}
}
