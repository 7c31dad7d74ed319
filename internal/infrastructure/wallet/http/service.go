package httpwallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rafflepool/rafflepool/internal/core/ports"
)

type transferDTO struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

type creditDTO struct {
	Amount uint64 `json:"amount"`
}

type balanceDTO struct {
	Balance uint64 `json:"balance"`
}

// service talks to a remote custody wallet daemon holding the pool account.
type service struct {
	baseUrl string
	client  *http.Client
}

func NewService(baseUrl string) (ports.WalletService, error) {
	if len(baseUrl) <= 0 {
		return nil, fmt.Errorf("missing wallet url")
	}

	return &service{
		baseUrl: strings.TrimSuffix(baseUrl, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (s *service) Credit(ctx context.Context, amount uint64) error {
	body, err := json.Marshal(creditDTO{Amount: amount})
	if err != nil {
		return err
	}
	return s.post(ctx, "/v1/credits", body)
}

func (s *service) Transfer(ctx context.Context, recipient string, amount uint64) error {
	body, err := json.Marshal(transferDTO{Recipient: recipient, Amount: amount})
	if err != nil {
		return err
	}
	return s.post(ctx, "/v1/transfers", body)
}

func (s *service) Balance(ctx context.Context) (uint64, error) {
	url := fmt.Sprintf("%s/v1/balance", s.baseUrl)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach wallet: %w", err)
	}
	// nolint
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("wallet refused request: %d %s", resp.StatusCode, string(buf))
	}

	var out balanceDTO
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode wallet response: %w", err)
	}
	return out.Balance, nil
}

func (s *service) Close() {}

func (s *service) post(ctx context.Context, path string, body []byte) error {
	url := fmt.Sprintf("%s%s", s.baseUrl, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach wallet: %w", err)
	}
	// nolint
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("wallet refused request: %d %s", resp.StatusCode, string(buf))
	}
	return nil
}
