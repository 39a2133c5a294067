// Command relayer runs the cross-chain relayer core: it observes Lock,
// Burn, and Governance events and submits the corresponding destination
// transactions.
package main

import (
	"context"
	"crypto/ecdsa"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/synnergy-network/crosschain-relayer/core"
	"github.com/synnergy-network/crosschain-relayer/pkg/config"
)

func main() {
	// Optional .env bootstrap; a missing file is not an error, since config
	// is read from the environment directly and a .env file is just
	// operator convenience.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	root := &cobra.Command{Use: "relayer"}
	root.AddCommand(runCmd(log))
	root.AddCommand(recoverOnlyCmd(log))

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("fatal")
		os.Exit(1)
	}
}

func runCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "start the relayer: recovery for all streams, then live subscriptions and heartbeat",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sup, err := bootstrap(ctx, log)
			if err != nil {
				return err
			}
			defer sup.Shutdown()

			return sup.Run(ctx)
		},
	}
}

func recoverOnlyCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "recover-only",
		Short: "run a single recovery pass for every stream and exit, without starting live subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			sup, err := bootstrap(ctx, log)
			if err != nil {
				return err
			}
			defer sup.Shutdown()

			return sup.RecoverAll(ctx)
		},
	}
}

// bootstrap resolves configuration, waits for both chain clients to be
// ready, loads deployment addresses, opens the durable store, and wires
// the three pipelines into a Supervisor.
func bootstrap(ctx context.Context, log *logrus.Logger) (*core.Supervisor, error) {
	cfg := config.Load()

	key, err := parsePrivateKey(cfg.DeployerPrivateKey)
	if err != nil {
		return nil, &core.StartupError{Op: "parseKey", Err: err}
	}

	chainA, err := core.NewEthChainClient(ctx, "chainA", cfg.ChainARPCURL, key, cfg.ChainAChainID(), log)
	if err != nil {
		return nil, err
	}
	chainB, err := core.NewEthChainClient(ctx, "chainB", cfg.ChainBRPCURL, key, cfg.ChainBChainID(), log)
	if err != nil {
		return nil, err
	}

	if err := chainA.WaitReady(ctx, 30, 2*time.Second); err != nil {
		return nil, err
	}
	if err := chainB.WaitReady(ctx, 30, 2*time.Second); err != nil {
		return nil, err
	}

	depA, depB, err := core.LoadDeployments(ctx, cfg.DeploymentsPath, log)
	if err != nil {
		return nil, err
	}

	store, err := core.OpenStore(cfg.DBPath, log)
	if err != nil {
		return nil, err
	}

	lock := core.NewLockPipeline(chainA, chainB, depA.LockContract, depB.MintContract, store, cfg.ConfirmationDepth, log)
	burn := core.NewBurnPipeline(chainB, chainA, depB.MintContract, depA.VaultContract, store, cfg.ConfirmationDepth, log)
	gov := core.NewGovernancePipeline(chainB, chainA, depB.GovernanceContract, depA.GovernanceEmergencyContract, store, cfg.ConfirmationDepth, log)

	return core.NewSupervisor(chainA, chainB, store, lock, burn, gov, log), nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	return crypto.HexToECDSA(hexKey)
}
