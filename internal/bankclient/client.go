// Package bankclient implements the remote-ledger contract over the ledger
// service's HTTP API, for deployments where the transfer coordinator runs in a
// separate process from the accounts it moves money between.
package bankclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"moneymover/internal/domain"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type operationRequest struct {
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Withdraw(ctx context.Context, account string, amount int64, idempotencyKey string) (string, error) {
	id, err := c.operation(ctx, account, "withdraw", amount, idempotencyKey)
	if err != nil {
		return "", fmt.Errorf("Withdraw: %w", err)
	}
	return id, nil
}

func (c *Client) Deposit(ctx context.Context, account string, amount int64, idempotencyKey string) (string, error) {
	id, err := c.operation(ctx, account, "deposit", amount, idempotencyKey)
	if err != nil {
		return "", fmt.Errorf("Deposit: %w", err)
	}
	return id, nil
}

func (c *Client) Balance(ctx context.Context, account string) (int64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/accounts/%s/balance", c.baseURL, url.PathEscape(account))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("Balance: %w", err)
	}

	var data struct {
		Balance int64 `json:"balance"`
	}
	if err := c.do(req, &data); err != nil {
		return 0, fmt.Errorf("Balance: %w", err)
	}
	return data.Balance, nil
}

func (c *Client) operation(ctx context.Context, account, op string, amount int64, idempotencyKey string) (string, error) {
	body, err := json.Marshal(operationRequest{Amount: amount, IdempotencyKey: idempotencyKey})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/api/v1/accounts/%s/%s", c.baseURL, url.PathEscape(account), op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var data struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := c.do(req, &data); err != nil {
		return "", err
	}
	return data.TransactionID, nil
}

// do executes the request and classifies the outcome. Transport failures, 5xx
// responses and unreadable bodies are transient; business failures are mapped
// back onto the domain sentinel errors by their wire code.
func (c *Client) do(req *http.Request, data any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Transient(err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return domain.Transient(fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err))
	}

	if env.Success {
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(env.Data, data); err != nil {
			return domain.Transient(fmt.Errorf("decode data: %w", err))
		}
		return nil
	}

	if env.Error == nil {
		return domain.Transient(fmt.Errorf("unexpected response: status %d", resp.StatusCode))
	}
	if err := errorForCode(env.Error.Code); err != nil {
		return fmt.Errorf("%s: %w", env.Error.Message, err)
	}
	// Unrecognized codes fall into the transient bucket: the contract names
	// every terminal failure kind, so anything else is treated as recoverable.
	return domain.Transient(fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message))
}

func errorForCode(code string) error {
	switch code {
	case "ACCOUNT_NOT_FOUND":
		return domain.ErrNotFound
	case "INSUFFICIENT_FUNDS":
		return domain.ErrInsufficientFunds
	case "ACCOUNT_UNAVAILABLE":
		return domain.ErrUnavailable
	case "INVALID_AMOUNT":
		return domain.ErrInvalidAmount
	case "INVALID_NAME":
		return domain.ErrInvalidName
	default:
		return nil
	}
}
