package httporacle

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

type requestDTO struct {
	Confirmations  uint32 `json:"confirmations"`
	NumValues      uint32 `json:"numValues"`
	ResourceBudget uint64 `json:"resourceBudget"`
	RequestClass   string `json:"requestClass"`
}

type responseDTO struct {
	RequestId string `json:"requestId"`
}

// service issues randomness requests against a remote oracle over HTTP.
// Fulfillments are relayed back by the oracle through the daemon's public
// callback endpoint, not through this adapter, so its fulfillments channel
// stays empty.
type service struct {
	baseUrl      string
	client       *http.Client
	fulfillments chan ports.RandomnessFulfillment
}

func NewService(baseUrl string) (ports.RandomnessOracle, error) {
	if len(baseUrl) <= 0 {
		return nil, fmt.Errorf("missing oracle url")
	}

	return &service{
		baseUrl:      strings.TrimSuffix(baseUrl, "/"),
		client:       &http.Client{Timeout: 15 * time.Second},
		fulfillments: make(chan ports.RandomnessFulfillment),
	}, nil
}

func (s *service) Request(
	ctx context.Context, params ports.RandomnessParams,
) (string, error) {
	body, err := json.Marshal(requestDTO{
		Confirmations:  params.Confirmations,
		NumValues:      params.NumValues,
		ResourceBudget: params.ResourceBudget,
		RequestClass:   params.RequestClass,
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1/requests", s.baseUrl)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach oracle: %w", err)
	}
	// nolint
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("oracle refused request: %d %s", resp.StatusCode, string(buf))
	}

	var out responseDTO
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode oracle response: %w", err)
	}
	if len(out.RequestId) <= 0 {
		return "", fmt.Errorf("oracle returned no request id")
	}

	return out.RequestId, nil
}

func (s *service) Fulfillments() <-chan ports.RandomnessFulfillment {
	return s.fulfillments
}

func (s *service) Close() {
	close(s.fulfillments)
}
