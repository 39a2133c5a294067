// Package config loads the relayer's configuration from the environment,
// following the same EnvOrDefault pattern as pkg/utils rather than the
// YAML-plus-viper loader the wider Synnergy node uses for its
// network/consensus/VM settings — this relayer's configuration surface is
// env-var only.
package config

import (
	"math/big"

	"github.com/synnergy-network/crosschain-relayer/pkg/utils"
)

// Config holds the relayer's full runtime configuration.
type Config struct {
	ChainARPCURL       string
	ChainBRPCURL       string
	ConfirmationDepth  uint64
	DBPath             string
	DeployerPrivateKey string
	DeploymentsPath    string
}

// Default EIP-155 chain ids for the reference local devnets. A relayer
// needs a chain id to build a signer even though the RPC endpoint alone
// doesn't carry one, so these are supplied with an environment override.
const (
	DefaultChainAID = 1337
	DefaultChainBID = 1338
)

// Load reads the configuration from the environment, applying defaults
// suitable for a local two-chain devnet.
func Load() Config {
	return Config{
		ChainARPCURL:       utils.EnvOrDefault("CHAIN_A_RPC_URL", "http://localhost:8545"),
		ChainBRPCURL:       utils.EnvOrDefault("CHAIN_B_RPC_URL", "http://localhost:9545"),
		ConfirmationDepth:  utils.EnvOrDefaultUint64("CONFIRMATION_DEPTH", 3),
		DBPath:             utils.EnvOrDefault("DB_PATH", "./relayer/data/relayer.db"),
		DeployerPrivateKey: utils.EnvOrDefault("DEPLOYER_PRIVATE_KEY", testDeployerKey),
		DeploymentsPath:    utils.EnvOrDefault("DEPLOYMENTS_PATH", "./deployments"),
	}
}

// ChainAChainID returns Chain A's EIP-155 chain id, overridable via
// CHAIN_A_CHAIN_ID.
func (c Config) ChainAChainID() *big.Int {
	return big.NewInt(int64(utils.EnvOrDefaultInt("CHAIN_A_CHAIN_ID", DefaultChainAID)))
}

// ChainBChainID returns Chain B's EIP-155 chain id, overridable via
// CHAIN_B_CHAIN_ID.
func (c Config) ChainBChainID() *big.Int {
	return big.NewInt(int64(utils.EnvOrDefaultInt("CHAIN_B_CHAIN_ID", DefaultChainBID)))
}

// testDeployerKey is a well-known local-devnet test private key, never
// used with real funds.
const testDeployerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
