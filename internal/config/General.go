package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/liquidvault/internal/utils"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// ConfigName selects the versioned parameter set in vault_parameters.
	ConfigName string

	// VaultAddress is the identity of the vault ledger itself (custody account, share token spender).
	VaultAddress common.Address
	// QueueAddress is the identity of the withdrawal queue.
	QueueAddress common.Address
	// CoordinatorAddress is the identity of the fulfillment coordinator.
	CoordinatorAddress common.Address
	// OwnerAddress owns the vault and queue registries.
	OwnerAddress common.Address
	// FeeReceiverAddress receives instant-withdrawal fees.
	FeeReceiverAddress common.Address
	// PenaltyFeeReceiverAddress receives queued-withdrawal penalty fees.
	PenaltyFeeReceiverAddress common.Address
	// RemoteVenueAddress is the off-ledger venue dispatched capital is invested in.
	RemoteVenueAddress common.Address

	// OperatorAddresses are granted every operator role at bootstrap.
	OperatorAddresses []common.Address
	// GenesisBalances are raw asset amounts minted at bootstrap.
	GenesisBalances map[common.Address]sdkmath.Int

	// MonitorInterval is the time between monitor cycles.
	MonitorInterval time.Duration

	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string
	// LogFormat is "console" or "json".
	LogFormat string
	// LogFile, when set, receives a copy of every log line.
	LogFile string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Addresses are required; the rest fall back to defaults.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	ConfigName = getEnvOrDefault("VAULT_CONFIG_NAME", "default")
	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	LogFormat = getEnvOrDefault("LOG_FORMAT", "console")
	LogFile = os.Getenv("LOG_FILE")

	addresses := []struct {
		key string
		dst *common.Address
	}{
		{"VAULT_ADDRESS", &VaultAddress},
		{"QUEUE_ADDRESS", &QueueAddress},
		{"COORDINATOR_ADDRESS", &CoordinatorAddress},
		{"OWNER_ADDRESS", &OwnerAddress},
		{"FEE_RECEIVER_ADDRESS", &FeeReceiverAddress},
		{"PENALTY_FEE_RECEIVER_ADDRESS", &PenaltyFeeReceiverAddress},
		{"REMOTE_VENUE_ADDRESS", &RemoteVenueAddress},
	}
	for _, a := range addresses {
		v, err := getEnvAsAddress(a.key)
		if err != nil {
			return err
		}
		*a.dst = v
	}

	var err error
	OperatorAddresses, err = getEnvAsAddressList("OPERATOR_ADDRESSES")
	if err != nil {
		return err
	}
	GenesisBalances, err = getEnvAsBalances("GENESIS_BALANCES")
	if err != nil {
		return err
	}

	MonitorInterval, err = getEnvAsDuration("MONITOR_INTERVAL", time.Minute)
	if err != nil {
		return err
	}

	if err := loadParameterConfig(); err != nil {
		return err
	}

	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("ConfigName", ConfigName).
		Str("Vault", VaultAddress.Hex()).
		Str("Queue", QueueAddress.Hex()).
		Str("Coordinator", CoordinatorAddress.Hex()).
		Dur("MonitorInterval", MonitorInterval).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsAddress retrieves a required, non-zero hex address.
func getEnvAsAddress(key string) (common.Address, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return common.Address{}, err
	}
	valueStr = strings.TrimSpace(valueStr)
	if !common.IsHexAddress(valueStr) {
		return common.Address{}, errors.New("environment variable " + key + " must be a hex address, got: " + valueStr)
	}
	addr := common.HexToAddress(valueStr)
	if addr == (common.Address{}) {
		return common.Address{}, errors.New("environment variable " + key + " must not be the zero address")
	}
	return addr, nil
}

// getEnvAsAddressList parses an optional comma-separated list of addresses.
func getEnvAsAddressList(key string) ([]common.Address, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return nil, nil
	}
	var out []common.Address
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.TrimSpace(part)
		if !common.IsHexAddress(part) {
			return nil, errors.New("environment variable " + key + " contains an invalid address: " + part)
		}
		out = append(out, common.HexToAddress(part))
	}
	return out, nil
}

// getEnvAsBalances parses an optional list such as "0xabc...=1000000,0xdef...=5" of raw base-unit amounts.
func getEnvAsBalances(key string) (map[common.Address]sdkmath.Int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return nil, nil
	}
	out := make(map[common.Address]sdkmath.Int)
	for _, part := range strings.Split(valueStr, ",") {
		addrStr, amountStr, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !common.IsHexAddress(addrStr) {
			return nil, errors.New("environment variable " + key + " entries must be address=amount, got: " + part)
		}
		amount, err := utils.ParseAmount(amountStr)
		if err != nil {
			return nil, errors.New("environment variable " + key + " has an invalid amount: " + err.Error())
		}
		addr := common.HexToAddress(addrStr)
		if prev, dup := out[addr]; dup {
			amount = amount.Add(prev)
		}
		out[addr] = amount
	}
	return out, nil
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDuration parses an optional duration such as "30s".
func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return 0, errors.New("environment variable " + key + " must be a positive duration, got: " + valueStr)
	}
	return value, nil
}
