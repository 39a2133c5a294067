package core

// deployments.go – deployment-address file loader. Consumed once at
// startup, never re-read during operation. Polls for the files to appear
// for up to deploymentsWaitBound, the ceiling on how long the supervisor
// waits during startup.

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// deploymentsWaitBound is the operator-facing ceiling on how long the
// supervisor waits for deployment files to appear before failing startup.
const deploymentsWaitBound = 2 * time.Minute

const deploymentsPollInterval = 2 * time.Second

// ChainADeployment is the address mapping for chainA.json.
type ChainADeployment struct {
	LockContract     common.Address `json:"lock_contract"`
	VaultContract    common.Address `json:"vault_contract"`
	GovernanceEmergencyContract common.Address `json:"governance_emergency_contract"`
}

// ChainBDeployment is the address mapping for chainB.json.
type ChainBDeployment struct {
	MintContract       common.Address `json:"mint_contract"`
	GovernanceContract common.Address `json:"governance_contract"`
}

// LoadDeployments waits (bounded) for chainA.json and chainB.json to exist
// under dir, then parses them.
func LoadDeployments(ctx context.Context, dir string, log *logrus.Logger) (ChainADeployment, ChainBDeployment, error) {
	lg := log.WithField("component", "deployments")

	var a ChainADeployment
	var b ChainBDeployment

	aPath := filepath.Join(dir, "chainA.json")
	bPath := filepath.Join(dir, "chainB.json")

	deadline := time.Now().Add(deploymentsWaitBound)
	if err := waitAndLoad(ctx, aPath, &a, deadline, lg); err != nil {
		return a, b, err
	}
	if err := waitAndLoad(ctx, bPath, &b, deadline, lg); err != nil {
		return a, b, err
	}
	return a, b, nil
}

func waitAndLoad(ctx context.Context, path string, out interface{}, deadline time.Time, log *logrus.Entry) error {
	for {
		data, err := os.ReadFile(path)
		if err == nil {
			if jerr := json.Unmarshal(data, out); jerr != nil {
				return &StartupError{Op: "loadDeployments", Err: fmt.Errorf("parse %s: %w", path, jerr)}
			}
			log.WithField("path", path).Info("loaded deployment addresses")
			return nil
		}
		if !os.IsNotExist(err) {
			return &StartupError{Op: "loadDeployments", Err: fmt.Errorf("read %s: %w", path, err)}
		}
		if time.Now().After(deadline) {
			return &StartupError{Op: "loadDeployments", Err: fmt.Errorf("%s did not appear within %s", path, deploymentsWaitBound)}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(deploymentsPollInterval):
		}
	}
}
