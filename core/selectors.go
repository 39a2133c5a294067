package core

// selectors.go – governance dispatch table. The pauseBridge() selector is
// computed from the canonical signature at init time rather than trusted as
// a literal, so a future signature change cannot silently drift from the
// dispatch table.

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
)

// Selector4 is a 4-byte ABI function selector.
type Selector4 [4]byte

func computeSelector(signature string) Selector4 {
	var sel Selector4
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

// PauseBridgeSignature is the canonical Solidity signature governance
// dispatches to for the only currently-defined emergency action.
const PauseBridgeSignature = "pauseBridge()"

// PauseBridgeSelector is computed, not hard-coded. Its expected literal
// value, 0x7dd0480f, is pinned by a regression test for operator reference.
var PauseBridgeSelector = computeSelector(PauseBridgeSignature)

// GovernanceCall is one entry in the selector dispatch table: a function
// name to invoke on the destination governance-emergency contract with no
// arguments.
type GovernanceCall struct {
	Name string
}

// governanceDispatch maps a 4-byte selector (decoded from a
// ProposalPassed event's calldata) to the destination call it authorizes.
// Any selector absent from this table is logged and discarded, never
// treated as an error.
var governanceDispatch = map[Selector4]GovernanceCall{
	PauseBridgeSelector: {Name: "pauseBridge"},
}

// LookupGovernanceCall resolves calldata's leading 4-byte selector against
// the dispatch table.
func LookupGovernanceCall(calldata []byte) (GovernanceCall, bool) {
	if len(calldata) < 4 {
		return GovernanceCall{}, false
	}
	var sel Selector4
	copy(sel[:], calldata[:4])
	call, ok := governanceDispatch[sel]
	return call, ok
}

// String renders a selector as 0x-prefixed hex.
func (s Selector4) String() string {
	return "0x" + hex.EncodeToString(s[:])
}
