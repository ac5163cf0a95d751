package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"mindvault/internal/bootstrap/config"
	"mindvault/internal/domain/review"
	"mindvault/internal/errs"
	"mindvault/internal/ports"
)

// RPCLedger talks JSON-RPC to the settlement node. Every failure mode a
// retry could fix (network errors, timeouts, 5xx) maps to the transient
// error class; a missing signer configuration does too, so operators can
// bring the signer online without losing queued work.
type RPCLedger struct {
	url      string
	signer   string
	token    string
	treasury string
	client   *http.Client
	nextID   atomic.Int64
}

var _ ports.Ledger = (*RPCLedger)(nil)

func NewRPCLedger(cfg config.LedgerConfig) *RPCLedger {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RPCLedger{
		url:      cfg.RPCURL,
		signer:   cfg.SignerKey,
		token:    cfg.TokenAddress,
		treasury: cfg.TreasuryAddress,
		client:   &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (l *RPCLedger) Notarize(ctx context.Context, contentHash string, certificateID string) (string, error) {
	var out struct {
		TxHash string `json:"tx_hash"`
	}
	err := l.call(ctx, "mv_notarize", map[string]any{
		"token":          l.token,
		"content_hash":   contentHash,
		"certificate_id": certificateID,
	}, &out)
	if err != nil {
		return "", errs.Wrap(err, "notarize on ledger")
	}
	return out.TxHash, nil
}

func (l *RPCLedger) Transfer(ctx context.Context, recipient string, amount int64) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("%w: transfer recipient is empty", review.ErrValidation)
	}
	if amount <= 0 {
		return "", fmt.Errorf("%w: transfer amount must be positive", review.ErrValidation)
	}
	var out struct {
		TxHash string `json:"tx_hash"`
	}
	err := l.call(ctx, "mv_transfer", map[string]any{
		"token":     l.token,
		"from":      l.treasury,
		"recipient": recipient,
		"amount":    amount,
	}, &out)
	if err != nil {
		return "", errs.Wrap(err, "transfer on ledger")
	}
	return out.TxHash, nil
}

func (l *RPCLedger) TreasuryBalance(ctx context.Context) (int64, error) {
	var out struct {
		Balance int64 `json:"balance"`
	}
	err := l.call(ctx, "mv_balance", map[string]any{
		"token":   l.token,
		"account": l.treasury,
	}, &out)
	if err != nil {
		return 0, errs.Wrap(err, "read treasury balance")
	}
	return out.Balance, nil
}

func (l *RPCLedger) call(ctx context.Context, method string, params map[string]any, result any) error {
	if l.url == "" || l.signer == "" {
		return fmt.Errorf("%w: ledger rpc url or signer key not configured", review.ErrTransientDependency)
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      l.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errs.Wrap(err, "encode rpc request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(err, "build rpc request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.signer)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ledger rpc %s: %v", review.ErrTransientDependency, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: ledger rpc %s returned %d", review.ErrTransientDependency, method, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger rpc %s returned %d", method, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read ledger rpc response: %v", review.ErrTransientDependency, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return errs.Wrap(err, "decode rpc envelope")
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("ledger rpc %s failed: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return errs.Wrap(err, "decode rpc result")
		}
	}
	return nil
}
