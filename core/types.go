// Package core implements the cross-chain relayer: the durable state store,
// chain clients, confirmation gate, event pipelines, and supervisor that
// together relay Lock/Burn/Governance events between Chain A and Chain B.
package core

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind identifies the class of source event a stream observes.
type EventKind string

const (
	EventLocked          EventKind = "Locked"
	EventBurned          EventKind = "Burned"
	EventProposalPassed  EventKind = "ProposalPassed"
)

// StreamID names one of the three fixed event streams.
type StreamID string

const (
	StreamChainALock       StreamID = "chainA_lock"
	StreamChainBBurn       StreamID = "chainB_burn"
	StreamChainBGovernance StreamID = "chainB_governance"
)

// RawEvent is what a ChainClient hands back from QueryEvents/Subscribe:
// the on-chain log plus enough context to decode it without a second RPC
// round trip.
type RawEvent struct {
	BlockNumber uint64
	LogIndex    uint
	TxHash      common.Hash
	Topics      []common.Hash
	Data        []byte
}

// EventRecord is the decoded, immutable representation of an observed
// source event. Once constructed it is never mutated.
type EventRecord struct {
	Stream      StreamID
	Kind        EventKind
	Nonce       *big.Int
	BlockNumber uint64
	TxHash      common.Hash

	// Payload fields; only the ones relevant to Kind are populated.
	User        common.Address
	Amount      *big.Int
	ProposalID  *big.Int
	CallData    []byte
}

// ProcessedMark records that (Stream, Nonce, Kind) has been durably acted
// upon. Inserted exactly once; never updated or deleted in normal operation.
type ProcessedMark struct {
	Stream      StreamID
	Nonce       *big.Int
	Kind        EventKind
	DestTxHash  string
	CreatedAt   time.Time
}

// dedupKey renders the composite (stream, nonce, kind) key used by the
// processed_events table's primary key.
func dedupKey(stream StreamID, nonce *big.Int, kind EventKind) (string, string, string) {
	return string(stream), nonce.String(), string(kind)
}
