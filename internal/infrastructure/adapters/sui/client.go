package sui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/suiflow/suiflow_service/pkg/metrics"
)

// Config represents Sui full node client configuration
type Config struct {
	RPCURL            string
	Network           string // "mainnet", "testnet", "devnet" or "localnet"
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client is a Sui JSON-RPC client. Every method performs exactly one round
// trip; nothing is retried here.
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	logger         *zap.Logger
	nextID         atomic.Uint64
}

// NewClient creates a new Sui JSON-RPC client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if config.RPCURL == "" {
		config.RPCURL = URLForNetwork(config.Network)
		if config.RPCURL == "" {
			config.RPCURL = TestnetURL
		}
	}
	config.RPCURL = strings.TrimRight(config.RPCURL, "/")

	cbSettings := gobreaker.Settings{
		Name:        "SuiRPC",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsApplicationError(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Sui RPC circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		rateLimiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:         logger,
	}
}

// URL returns the full node endpoint in use.
func (c *Client) URL() string {
	return c.config.RPCURL
}

// GetObject fetches an object by id. Missing objects are reported as
// CauseObjectNotFound rather than an empty response.
func (c *Client) GetObject(ctx context.Context, objectID string, opts ObjectOptions) (*ObjectResponse, error) {
	var resp ObjectResponse
	if err := c.Call(ctx, MethodGetObject, []interface{}{objectID, opts}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &Error{
			Method:  MethodGetObject,
			Cause:   CauseObjectNotFound,
			Message: fmt.Sprintf("object %s: %s", objectID, resp.Error.Code),
		}
	}
	return &resp, nil
}

// GetCoins returns one page of coins of coinType owned by owner, in the
// order the node reports them.
func (c *Client) GetCoins(ctx context.Context, owner, coinType string, cursor *string, limit int) (*CoinPage, error) {
	params := []interface{}{owner, coinType, cursor}
	if limit > 0 {
		params = append(params, limit)
	}
	var page CoinPage
	if err := c.Call(ctx, MethodGetCoins, params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// QueryEvents returns one page of events matching filter.
func (c *Client) QueryEvents(ctx context.Context, filter EventFilter, cursor *EventCursor, limit int, descending bool) (*EventPage, error) {
	var page EventPage
	if err := c.Call(ctx, MethodQueryEvents, []interface{}{filter, cursor, limit, descending}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// MoveCall asks the node to build an unsigned transaction for a Move call.
func (c *Client) MoveCall(ctx context.Context, req MoveCallRequest) (*TransactionBytes, error) {
	typeArgs := req.TypeArguments
	if typeArgs == nil {
		typeArgs = []string{}
	}
	params := []interface{}{
		req.Signer,
		req.PackageID,
		req.Module,
		req.Function,
		typeArgs,
		req.Arguments,
		req.Gas,
		strconv.FormatUint(req.GasBudget, 10),
	}
	var tx TransactionBytes
	if err := c.Call(ctx, MethodMoveCall, params, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// ExecuteTransactionBlock submits signed transaction bytes and, with
// WaitForLocalExecution, blocks until the node reports the execution result.
func (c *Client) ExecuteTransactionBlock(ctx context.Context, txBytes string, signatures []string, opts TransactionBlockResponseOptions, requestType string) (*TransactionBlockResponse, error) {
	var resp TransactionBlockResponse
	params := []interface{}{txBytes, signatures, opts, requestType}
	if err := c.Call(ctx, MethodExecuteTxBlock, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Call performs a single JSON-RPC call and decodes the result into out.
func (c *Client) Call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return &Error{Method: method, Cause: CauseTransport, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	start := time.Now()
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doCall(ctx, method, params, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &Error{Method: method, Cause: CauseCircuitOpen, Err: err}
	}

	result := "ok"
	if err != nil {
		result = CauseOf(err).String()
		c.logger.Debug("Sui RPC call failed",
			zap.String("method", method),
			zap.String("cause", result),
			zap.Error(err))
	}
	metrics.RecordRPC(method, result, time.Since(start))
	return err
}

func (c *Client) doCall(ctx context.Context, method string, params []interface{}, out interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(RPCRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.RPCURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &Error{Method: method, Cause: CauseTransport, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Method: method, Cause: CauseTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &Error{Method: method, Cause: CauseRateLimited, StatusCode: resp.StatusCode, Message: "rate limited by node"}
	case resp.StatusCode >= 500:
		return &Error{Method: method, Cause: CauseServer, StatusCode: resp.StatusCode, Message: fmt.Sprintf("server error: status %d", resp.StatusCode)}
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return &Error{Method: method, Cause: CauseServer, StatusCode: resp.StatusCode, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	if rpcResp.Error != nil {
		return &Error{
			Method:     method,
			Cause:      classify(method, rpcResp.Error),
			Code:       rpcResp.Error.Code,
			StatusCode: resp.StatusCode,
			Message:    rpcResp.Error.Message,
			Data:       rpcResp.Error.Data,
		}
	}

	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return &Error{Method: method, Cause: CauseServer, Err: fmt.Errorf("unmarshal result: %w", err)}
		}
	}
	return nil
}
