package lockup

import (
	"time"

	"github.com/code-payments/token-distributor/pkg/config"
	"github.com/code-payments/token-distributor/pkg/config/env"
	"github.com/code-payments/token-distributor/pkg/config/memory"
	"github.com/code-payments/token-distributor/pkg/config/wrapper"
	"github.com/code-payments/token-distributor/pkg/solana/tokendistributor"
)

const (
	envConfigPrefix = "LOCKUP_"

	ProgramIDConfigEnvName = "TOKEN_DISTRIBUTOR_PROGRAM_ID"
	defaultProgramID       = tokendistributor.DefaultProgramAddress

	PropagationDelayConfigEnvName = envConfigPrefix + "PROPAGATION_DELAY"
	defaultPropagationDelay       = time.Second

	ReadCommitmentConfigEnvName = envConfigPrefix + "READ_COMMITMENT"
	defaultReadCommitment       = "finalized"

	SkipPreflightConfigEnvName = envConfigPrefix + "SKIP_PREFLIGHT"
	defaultSkipPreflight       = false

	ConfirmationTimeoutConfigEnvName = envConfigPrefix + "CONFIRMATION_TIMEOUT"
	defaultConfirmationTimeout       = 90 * time.Second

	ConfirmationPollIntervalConfigEnvName = envConfigPrefix + "CONFIRMATION_POLL_INTERVAL"
	defaultConfirmationPollInterval       = time.Second

	RPCRateLimitConfigEnvName = envConfigPrefix + "RPC_RATE_LIMIT"
	defaultRPCRateLimit       = 0
)

type conf struct {
	programID                config.String
	propagationDelay         config.Duration
	readCommitment           config.String
	skipPreflight            config.Bool
	confirmationTimeout      config.Duration
	confirmationPollInterval config.Duration
	rpcRateLimit             config.Float64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			programID:                env.NewStringConfig(ProgramIDConfigEnvName, defaultProgramID),
			propagationDelay:         env.NewDurationConfig(PropagationDelayConfigEnvName, defaultPropagationDelay),
			readCommitment:           env.NewStringConfig(ReadCommitmentConfigEnvName, defaultReadCommitment),
			skipPreflight:            env.NewBoolConfig(SkipPreflightConfigEnvName, defaultSkipPreflight),
			confirmationTimeout:      env.NewDurationConfig(ConfirmationTimeoutConfigEnvName, defaultConfirmationTimeout),
			confirmationPollInterval: env.NewDurationConfig(ConfirmationPollIntervalConfigEnvName, defaultConfirmationPollInterval),
			rpcRateLimit:             env.NewFloat64Config(RPCRateLimitConfigEnvName, defaultRPCRateLimit),
		}
	}
}

type testOverrides struct {
	programID                string
	propagationDelay         time.Duration
	confirmationTimeout      time.Duration
	confirmationPollInterval time.Duration
	skipPreflight            bool
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		programID := overrides.programID
		if programID == "" {
			programID = defaultProgramID
		}

		return &conf{
			programID:                wrapper.NewStringConfig(memory.NewConfig(programID), defaultProgramID),
			propagationDelay:         wrapper.NewDurationConfig(memory.NewConfig(overrides.propagationDelay), defaultPropagationDelay),
			readCommitment:           wrapper.NewStringConfig(memory.NewConfig(defaultReadCommitment), defaultReadCommitment),
			skipPreflight:            wrapper.NewBoolConfig(memory.NewConfig(overrides.skipPreflight), defaultSkipPreflight),
			confirmationTimeout:      wrapper.NewDurationConfig(memory.NewConfig(overrides.confirmationTimeout), defaultConfirmationTimeout),
			confirmationPollInterval: wrapper.NewDurationConfig(memory.NewConfig(overrides.confirmationPollInterval), defaultConfirmationPollInterval),
			rpcRateLimit:             wrapper.NewFloat64Config(memory.NewConfig(float64(defaultRPCRateLimit)), defaultRPCRateLimit),
		}
	}
}
