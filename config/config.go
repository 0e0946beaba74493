package config

import (
	"math/big"
	"os"
	"strings"
)

// Config holds the chain and payment settings the admission flow depends on.
// It is built once at startup and passed by reference; nothing reads the
// environment after Load returns.
type Config struct {
	// Chain RPC
	RPCURL string

	// USDC token contract on Base mainnet
	TokenAddress string

	// Collector wallet all membership payments must be sent to
	CollectorAddress string

	// Prices in raw USDC units (6 decimals)
	SignupAmount  *big.Int
	PerPostAmount *big.Int

	// Display values stored on the member row
	SignupAmountDisplay string
	PaymentCurrency     string
}

// Defaults match the production deployment on Base mainnet.
const (
	defaultRPCURL           = "https://mainnet.base.org"
	defaultTokenAddress     = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	defaultCollectorAddress = "0x615e3faa99dd7de64812128a953215a09509f16a"
)

// Load builds a Config from environment variables, falling back to the
// production defaults.
func Load() *Config {
	return &Config{
		RPCURL:              strings.TrimSuffix(getEnvOrDefault("BASE_RPC_URL", defaultRPCURL), "/"),
		TokenAddress:        getEnvOrDefault("USDC_TOKEN_ADDRESS", defaultTokenAddress),
		CollectorAddress:    getEnvOrDefault("PAYMENT_COLLECTOR_ADDRESS", defaultCollectorAddress),
		SignupAmount:        getEnvBigInt("SIGNUP_USDC_AMOUNT", 2_000_000),
		PerPostAmount:       getEnvBigInt("POST_USDC_AMOUNT", 100_000),
		SignupAmountDisplay: getEnvOrDefault("SIGNUP_AMOUNT_DISPLAY", "2.00"),
		PaymentCurrency:     getEnvOrDefault("PAYMENT_CURRENCY", "USDC"),
	}
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBigInt(key string, defaultValue int64) *big.Int {
	if value := os.Getenv(key); value != "" {
		if n, ok := new(big.Int).SetString(value, 10); ok && n.Sign() >= 0 {
			return n
		}
	}
	return big.NewInt(defaultValue)
}
