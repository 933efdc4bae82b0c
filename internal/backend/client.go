// Package backend is the client for the portal's data/service API. The
// API computes claimable rewards and tracks the position registry; its
// internals are out of scope here.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"liquidityPortal/internal/model"
)

// Client talks to the backend service API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a backend client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WalletPositions returns live on-chain-derived position records for a
// wallet address.
func (c *Client) WalletPositions(ctx context.Context, address string) ([]model.WalletPosition, error) {
	var out []model.WalletPosition
	err := c.getJSON(ctx, fmt.Sprintf("/positions/wallet/%s", address), &out)
	return out, err
}

// UserPositions returns registry-tracked positions with eligibility
// metadata.
func (c *Client) UserPositions(ctx context.Context, userID string) ([]model.RegistryPosition, error) {
	var out []model.RegistryPosition
	err := c.getJSON(ctx, fmt.Sprintf("/positions/user/%s", userID), &out)
	return out, err
}

// CleanupBurned removes a burned position's registry record. The endpoint
// is idempotent; a 404 means the record is already gone and is not an
// error.
func (c *Client) CleanupBurned(ctx context.Context, tokenID uint64) error {
	url := fmt.Sprintf("%s/positions/cleanup-burned/%d", c.baseURL, tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("build cleanup request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cleanup burned %d: %w", tokenID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("cleanup burned %d: status %d", tokenID, resp.StatusCode)
	}
	return nil
}

// Claimability returns the user's current total claimable amount in
// reward-token units.
func (c *Client) Claimability(ctx context.Context, address string) (decimal.Decimal, error) {
	var out struct {
		TotalClaimable decimal.Decimal `json:"totalClaimable"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/rewards/claimability/%s", address), &out); err != nil {
		return decimal.Zero, err
	}
	return out.TotalClaimable, nil
}

// GenerateClaimSignature asks the backend to attest the user's reward
// balance. The backend assigns the next unused nonce; the returned amount
// must be submitted on-chain verbatim.
func (c *Client) GenerateClaimSignature(ctx context.Context, userAddress string) (model.ClaimRecord, error) {
	body, err := json.Marshal(map[string]string{"userAddress": userAddress})
	if err != nil {
		return model.ClaimRecord{}, fmt.Errorf("marshal claim request: %w", err)
	}

	url := c.baseURL + "/rewards/generate-claim-signature"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return model.ClaimRecord{}, fmt.Errorf("build claim request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.ClaimRecord{}, fmt.Errorf("generate claim signature: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return model.ClaimRecord{}, fmt.Errorf("generate claim signature: status %d", resp.StatusCode)
	}

	var payload struct {
		Signature          string      `json:"signature"`
		Nonce              uint64      `json:"nonce"`
		TotalRewardBalance json.Number `json:"totalRewardBalance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return model.ClaimRecord{}, fmt.Errorf("decode claim signature: %w", err)
	}

	amount, ok := new(big.Int).SetString(payload.TotalRewardBalance.String(), 10)
	if !ok {
		return model.ClaimRecord{}, fmt.Errorf("invalid reward balance: %s", payload.TotalRewardBalance)
	}

	signature, err := hexutil.Decode(payload.Signature)
	if err != nil {
		return model.ClaimRecord{}, fmt.Errorf("decode signature: %w", err)
	}

	return model.ClaimRecord{
		UserAddress:  userAddress,
		SignedAmount: amount,
		Nonce:        payload.Nonce,
		Signature:    signature,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("get %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
