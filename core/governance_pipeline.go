package core

// governance_pipeline.go – Governance → Emergency Action stream. Chain B
// `ProposalPassed(uint256 indexed proposalId, bytes data)` dispatches, via
// the selector table in selectors.go, to a zero-argument call on Chain A's
// governance-emergency contract. Unknown selectors are logged and skipped,
// not retried.

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

const proposalPassedEventSignature = "ProposalPassed(uint256,bytes)"

var pauseBridgeABI abi.ABI

func init() {
	var err error
	pauseBridgeABI, err = abi.JSON(strings.NewReader(`[{"type":"function","name":"pauseBridge","inputs":[]}]`))
	if err != nil {
		panic(fmt.Sprintf("invalid pauseBridge ABI: %v", err))
	}
}

// decodeProposalPassed parses a ProposalPassed log: `proposalId` is
// indexed, `data` is ABI-encoded dynamic bytes in the log body whose first
// 4 bytes (once unpacked) are the destination selector.
func decodeProposalPassed(raw RawEvent) (EventRecord, error) {
	if len(raw.Topics) < 2 {
		return EventRecord{}, fmt.Errorf("ProposalPassed log missing indexed proposalId topic")
	}
	proposalID := new(big.Int).SetBytes(raw.Topics[1].Bytes())

	args := abi.Arguments{{Type: mustType("bytes")}}
	unpacked, err := args.Unpack(raw.Data)
	if err != nil || len(unpacked) != 1 {
		return EventRecord{}, fmt.Errorf("unpack ProposalPassed data: %w", err)
	}
	data, ok := unpacked[0].([]byte)
	if !ok {
		return EventRecord{}, fmt.Errorf("ProposalPassed data field is not bytes")
	}

	return EventRecord{
		Stream:      StreamChainBGovernance,
		Kind:        EventProposalPassed,
		Nonce:       proposalID,
		BlockNumber: raw.BlockNumber,
		TxHash:      raw.TxHash,
		ProposalID:  proposalID,
		CallData:    data,
	}, nil
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("invalid abi type %q: %v", t, err))
	}
	return typ
}

// buildGovernanceCall dispatches a decoded ProposalPassed event's selector
// against the governance table. An unrecognized selector returns
// ErrUnknownSelector, which the pipeline treats as log-and-skip rather than
// an error to retry.
func buildGovernanceCall(governanceEmergencyAddress common.Address) CallBuilder {
	return func(event EventRecord) (common.Address, []byte, error) {
		call, ok := LookupGovernanceCall(event.CallData)
		if !ok {
			return common.Address{}, nil, ErrUnknownSelector
		}
		switch call.Name {
		case "pauseBridge":
			data, err := packCall(pauseBridgeABI, "pauseBridge")
			if err != nil {
				return common.Address{}, nil, fmt.Errorf("pack pauseBridge: %w", err)
			}
			return governanceEmergencyAddress, data, nil
		default:
			return common.Address{}, nil, ErrUnknownSelector
		}
	}
}

// NewGovernancePipeline wires the Governance→Emergency-Action pipeline:
// observes ProposalPassed on Chain B, dispatches to Chain A.
func NewGovernancePipeline(chainB, chainA ChainClient, governanceAddress, emergencyAddress common.Address, store DurableStore, depth uint64, log *logrus.Logger) *Pipeline {
	return NewPipeline(
		StreamChainBGovernance,
		EventProposalPassed,
		chainB,
		governanceAddress,
		proposalPassedEventSignature,
		chainA,
		decodeProposalPassed,
		buildGovernanceCall(emergencyAddress),
		store,
		depth,
		log,
	)
}
