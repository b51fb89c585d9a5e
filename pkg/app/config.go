package app

import (
	"time"

	"github.com/spf13/viper"
)

// BaseConfig contains the configuration shared by every command.
type BaseConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	AppName string `mapstructure:"app_name"`

	// SolanaRPCEndpoint is either a JSON-RPC URL or one of the cluster monikers
	// localnet, devnet, testnet and mainnet-beta.
	SolanaRPCEndpoint string `mapstructure:"solana_rpc_endpoint"`

	// Keypair is a URL to a Solana CLI keypair file. If no scheme is
	// specified, file is used.
	Keypair string `mapstructure:"keypair"`

	// Timeout bounds a single command, including waiting for finality.
	Timeout time.Duration `mapstructure:"timeout"`

	// Metrics configuration across many providers
	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`
}

var defaultConfig = BaseConfig{
	LogLevel:  "info",
	LogFormat: "text",

	AppName: "token-distributor",

	SolanaRPCEndpoint: "devnet",

	Keypair: "~/.config/solana/id.json",

	Timeout: 3 * time.Minute,
}

func newViper() *viper.Viper {
	v := viper.New()

	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("log_format", "LOG_FORMAT")

	_ = v.BindEnv("app_name", "APP_NAME")

	_ = v.BindEnv("solana_rpc_endpoint", "SOLANA_RPC_ENDPOINT")
	_ = v.BindEnv("keypair", "KEYPAIR")
	_ = v.BindEnv("timeout", "COMMAND_TIMEOUT")

	_ = v.BindEnv("new_relic_license_key", "NEW_RELIC_LICENSE_KEY")

	return v
}
