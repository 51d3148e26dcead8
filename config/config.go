// Package config loads the node's configuration via spf13/viper, the
// way the teacher's node config does: a YAML file at $HOME/.paychan
// overridable per field, with sane defaults when a field is absent.
package config

/*
 * Dual-licensed under Apache-2.0 and MIT.
 *
 * You can get a copy of the Apache License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * You can also get a copy of the MIT License at
 *
 * http://opensource.org/licenses/MIT
 */

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultPath                     = ".paychan"
	defaultListenAddr               = ":8424"
	defaultSettlementPeriod         = uint64(2880) // ~12 hours at 15s blocks
	defaultDefaultDepositMultiplier = int64(10)
	defaultGatewayTimeout           = 30 * time.Second
	defaultLogLevel                 = "INFO"
)

// Config is the node's full runtime configuration (spec §6's
// Configuration surface, plus the ambient fields a runnable daemon
// needs: chain connectivity, key material and HTTP listen address).
type Config struct {
	// Path is the node's datastore root; Engine's per-store paths nest
	// under it unless DatabaseFile overrides the location outright.
	Path string `mapstructure:"PAYCHAN_PATH"`

	// Engine selects the storage backend: "memory" or "badger".
	Engine string `mapstructure:"PAYCHAN_ENGINE"`

	// DatabaseFile overrides Engine's default per-store path, when set.
	DatabaseFile string `mapstructure:"PAYCHAN_DATABASE_FILE"`

	// MinimumChannelAmount floors fresh channel deposits.
	MinimumChannelAmount string `mapstructure:"PAYCHAN_MINIMUM_CHANNEL_AMOUNT"`

	// SettlementPeriod is the number of blocks startSettling waits
	// before settle is valid.
	SettlementPeriod uint64 `mapstructure:"PAYCHAN_SETTLEMENT_PERIOD"`

	// DefaultDepositMultiplier scales a buy's price into a fresh
	// channel's deposit when none is usable yet.
	DefaultDepositMultiplier int64 `mapstructure:"PAYCHAN_DEPOSIT_MULTIPLIER"`

	// ChainRPCURL is the Ethereum-compatible JSON-RPC endpoint the
	// Contract Adapter dials.
	ChainRPCURL string `mapstructure:"PAYCHAN_CHAIN_RPC_URL"`

	// ChainID is the chain the channel contract is deployed on.
	ChainID int64 `mapstructure:"PAYCHAN_CHAIN_ID"`

	// ContractAddress is the deployed channel contract's address.
	ContractAddress string `mapstructure:"PAYCHAN_CONTRACT_ADDRESS"`

	// PrivateKeyFile holds the node's hex-encoded secp256k1 signing key.
	PrivateKeyFile string `mapstructure:"PAYCHAN_PRIVATE_KEY_FILE"`

	// ListenAddr is the gateway's HTTP listen address.
	ListenAddr string `mapstructure:"PAYCHAN_LISTEN_ADDR"`

	// LogLevel is applied to every component logger at startup.
	LogLevel string `mapstructure:"PAYCHAN_LOG_LEVEL"`

	// GatewayTimeout is a timeout for outbound HTTP calls to a gateway.
	// Nothing in this module reads it: client.New takes its own
	// *http.Client and the CLI commands make no gateway calls.
	GatewayTimeout time.Duration `mapstructure:"PAYCHAN_GATEWAY_TIMEOUT"`
}

// NewConfig loads configuration from configFile, or from
// $HOME/.paychan/config.yaml if configFile is empty, filling in
// defaults for anything left unset.
//
// @input - config file path, may be empty.
//
// @output - configuration, error.
func NewConfig(configFile string) (Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/" + defaultPath)
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	path := viper.GetString("PAYCHAN_PATH")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, err
		}
		path = filepath.Join(home, defaultPath)
	}

	engine := viper.GetString("PAYCHAN_ENGINE")
	if engine == "" {
		engine = "badger"
	}

	minimum := viper.GetString("PAYCHAN_MINIMUM_CHANNEL_AMOUNT")
	if minimum == "" {
		minimum = "0"
	}

	settlementPeriod := uint64(viper.GetInt64("PAYCHAN_SETTLEMENT_PERIOD"))
	if settlementPeriod == 0 {
		settlementPeriod = defaultSettlementPeriod
	}

	multiplier := viper.GetInt64("PAYCHAN_DEPOSIT_MULTIPLIER")
	if multiplier == 0 {
		multiplier = defaultDefaultDepositMultiplier
	}

	listenAddr := viper.GetString("PAYCHAN_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}

	logLevel := viper.GetString("PAYCHAN_LOG_LEVEL")
	if logLevel == "" {
		logLevel = defaultLogLevel
	}

	gatewayTimeout := viper.GetDuration("PAYCHAN_GATEWAY_TIMEOUT")
	if gatewayTimeout == 0 {
		gatewayTimeout = defaultGatewayTimeout
	}

	return Config{
		Path:                     path,
		Engine:                   engine,
		DatabaseFile:             viper.GetString("PAYCHAN_DATABASE_FILE"),
		MinimumChannelAmount:     minimum,
		SettlementPeriod:         settlementPeriod,
		DefaultDepositMultiplier: multiplier,
		ChainRPCURL:              viper.GetString("PAYCHAN_CHAIN_RPC_URL"),
		ChainID:                  viper.GetInt64("PAYCHAN_CHAIN_ID"),
		ContractAddress:          viper.GetString("PAYCHAN_CONTRACT_ADDRESS"),
		PrivateKeyFile:           viper.GetString("PAYCHAN_PRIVATE_KEY_FILE"),
		ListenAddr:               listenAddr,
		LogLevel:                 logLevel,
		GatewayTimeout:           gatewayTimeout,
	}, nil
}
