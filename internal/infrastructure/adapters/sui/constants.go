package sui

import "time"

const (
	// Full node JSON-RPC endpoints
	MainnetURL  = "https://fullnode.mainnet.sui.io:443"
	TestnetURL  = "https://fullnode.testnet.sui.io:443"
	DevnetURL   = "https://fullnode.devnet.sui.io:443"
	LocalnetURL = "http://127.0.0.1:9000"

	// Rate limiting (public full nodes throttle aggressively)
	DefaultRequestsPerSecond = 20

	defaultTimeout = 60 * time.Second

	// JSON-RPC methods consumed by the service
	MethodGetObject      = "sui_getObject"
	MethodGetCoins       = "suix_getCoins"
	MethodQueryEvents    = "suix_queryEvents"
	MethodMoveCall       = "unsafe_moveCall"
	MethodExecuteTxBlock = "sui_executeTransactionBlock"

	// Execution request types
	WaitForLocalExecution = "WaitForLocalExecution"
	WaitForEffectsCert    = "WaitForEffectsCert"

	// Effects statuses
	StatusSuccess = "success"
	StatusFailure = "failure"

	// JSON-RPC error codes
	codeInvalidParams = -32602
	codeServerError   = -32000
)

// NetworkURLs maps network names to their public full node.
var NetworkURLs = map[string]string{
	"mainnet":  MainnetURL,
	"testnet":  TestnetURL,
	"devnet":   DevnetURL,
	"localnet": LocalnetURL,
}

// URLForNetwork returns the full node URL for a network name, or "" if unknown.
func URLForNetwork(network string) string {
	return NetworkURLs[network]
}
