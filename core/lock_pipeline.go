package core

// lock_pipeline.go – Lock → Mint stream. Chain A
// `Locked(address indexed user, uint256 amount, uint256 nonce)` triggers
// Chain B `mintWrapped(address user, uint256 amount, uint256 nonce)`.

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

const lockedEventSignature = "Locked(address,uint256,uint256)"

var mintWrappedABI abi.ABI

func init() {
	var err error
	mintWrappedABI, err = abi.JSON(strings.NewReader(`[{"type":"function","name":"mintWrapped","inputs":[{"name":"user","type":"address"},{"name":"amount","type":"uint256"},{"name":"nonce","type":"uint256"}]}]`))
	if err != nil {
		panic(fmt.Sprintf("invalid mintWrapped ABI: %v", err))
	}
}

// decodeLocked parses a Locked log: `user` is indexed (topics[1]),
// `amount`/`nonce` are ABI-encoded in Data.
func decodeLocked(raw RawEvent) (EventRecord, error) {
	if len(raw.Topics) < 2 {
		return EventRecord{}, fmt.Errorf("Locked log missing indexed user topic")
	}
	if len(raw.Data) < 64 {
		return EventRecord{}, fmt.Errorf("Locked log data too short")
	}
	user := common.BytesToAddress(raw.Topics[1].Bytes())
	amount := new(big.Int).SetBytes(raw.Data[0:32])
	nonce := new(big.Int).SetBytes(raw.Data[32:64])
	return EventRecord{
		Stream:      StreamChainALock,
		Kind:        EventLocked,
		Nonce:       nonce,
		BlockNumber: raw.BlockNumber,
		TxHash:      raw.TxHash,
		User:        user,
		Amount:      amount,
	}, nil
}

func buildMintWrapped(chainBMintAddress common.Address) CallBuilder {
	return func(event EventRecord) (common.Address, []byte, error) {
		data, err := packCall(mintWrappedABI, "mintWrapped", event.User, event.Amount, event.Nonce)
		if err != nil {
			return common.Address{}, nil, fmt.Errorf("pack mintWrapped: %w", err)
		}
		return chainBMintAddress, data, nil
	}
}

// NewLockPipeline wires the Lock→Mint pipeline: observes Locked on Chain A,
// submits mintWrapped on Chain B.
func NewLockPipeline(chainA, chainB ChainClient, lockAddress, mintAddress common.Address, store DurableStore, depth uint64, log *logrus.Logger) *Pipeline {
	return NewPipeline(
		StreamChainALock,
		EventLocked,
		chainA,
		lockAddress,
		lockedEventSignature,
		chainB,
		decodeLocked,
		buildMintWrapped(mintAddress),
		store,
		depth,
		log,
	)
}
