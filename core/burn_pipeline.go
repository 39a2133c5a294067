package core

// burn_pipeline.go – Burn → Unlock stream. Chain B
// `Burned(address indexed user, uint256 amount, uint256 nonce)` triggers
// Chain A `unlock(address user, uint256 amount, uint256 nonce)`.

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

const burnedEventSignature = "Burned(address,uint256,uint256)"

var unlockABI abi.ABI

func init() {
	var err error
	unlockABI, err = abi.JSON(strings.NewReader(`[{"type":"function","name":"unlock","inputs":[{"name":"user","type":"address"},{"name":"amount","type":"uint256"},{"name":"nonce","type":"uint256"}]}]`))
	if err != nil {
		panic(fmt.Sprintf("invalid unlock ABI: %v", err))
	}
}

// decodeBurned mirrors decodeLocked: `user` indexed, amount/nonce in Data.
func decodeBurned(raw RawEvent) (EventRecord, error) {
	if len(raw.Topics) < 2 {
		return EventRecord{}, fmt.Errorf("Burned log missing indexed user topic")
	}
	if len(raw.Data) < 64 {
		return EventRecord{}, fmt.Errorf("Burned log data too short")
	}
	user := common.BytesToAddress(raw.Topics[1].Bytes())
	amount := new(big.Int).SetBytes(raw.Data[0:32])
	nonce := new(big.Int).SetBytes(raw.Data[32:64])
	return EventRecord{
		Stream:      StreamChainBBurn,
		Kind:        EventBurned,
		Nonce:       nonce,
		BlockNumber: raw.BlockNumber,
		TxHash:      raw.TxHash,
		User:        user,
		Amount:      amount,
	}, nil
}

func buildUnlock(chainAVaultAddress common.Address) CallBuilder {
	return func(event EventRecord) (common.Address, []byte, error) {
		data, err := packCall(unlockABI, "unlock", event.User, event.Amount, event.Nonce)
		if err != nil {
			return common.Address{}, nil, fmt.Errorf("pack unlock: %w", err)
		}
		return chainAVaultAddress, data, nil
	}
}

// NewBurnPipeline wires the Burn→Unlock pipeline: observes Burned on
// Chain B, submits unlock on Chain A.
func NewBurnPipeline(chainB, chainA ChainClient, burnAddress, vaultAddress common.Address, store DurableStore, depth uint64, log *logrus.Logger) *Pipeline {
	return NewPipeline(
		StreamChainBBurn,
		EventBurned,
		chainB,
		burnAddress,
		burnedEventSignature,
		chainA,
		decodeBurned,
		buildUnlock(vaultAddress),
		store,
		depth,
		log,
	)
}
