package oracles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/venturelab/accelerator_backend/config"
)

type oracleClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
}

func newOracleClient() (*oracleClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("ORACLE_API_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("ORACLE_API_BASE_URL is empty")
	}
	apiKey := strings.TrimSpace(os.Getenv("ORACLE_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("ORACLE_API_KEY is empty")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("ORACLE_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}

	return &oracleClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: config.OracleTimeout()},
	}, nil
}

func (c *oracleClient) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("oracle api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return json.Unmarshal(respBody, out)
}

// HTTPScoringOracle talks to the scoring service over REST.
type HTTPScoringOracle struct {
	client *oracleClient
}

func NewHTTPScoringOracle() (*HTTPScoringOracle, error) {
	client, err := newOracleClient()
	if err != nil {
		return nil, err
	}
	return &HTTPScoringOracle{client: client}, nil
}

func (o *HTTPScoringOracle) ScoreDeliverable(ctx context.Context, req ScoreRequest) (*ScoreResult, error) {
	var result ScoreResult
	if err := o.client.postJSON(ctx, "/v1/score", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HTTPRankingOracle talks to the ranking service over REST.
type HTTPRankingOracle struct {
	client *oracleClient
}

func NewHTTPRankingOracle() (*HTTPRankingOracle, error) {
	client, err := newOracleClient()
	if err != nil {
		return nil, err
	}
	return &HTTPRankingOracle{client: client}, nil
}

type rankingResponse struct {
	Results []RankedCandidate `json:"results"`
}

func (o *HTTPRankingOracle) RankCandidates(ctx context.Context, req RankingRequest) ([]RankedCandidate, error) {
	var parsed rankingResponse
	if err := o.client.postJSON(ctx, "/v1/rank", req, &parsed); err != nil {
		return nil, err
	}
	return parsed.Results, nil
}
