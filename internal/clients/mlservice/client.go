package mlservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cinematch/cinematch-backend/internal/apierr"
	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/utils"
)

// Client talks to the external ML service, which hosts both the trainer
// and the scorer. Training uses 5x the base timeout, dataset rebuild 2x,
// bulk collection 3x; status probes use short fixed timeouts.
type Client interface {
	TrainModel(ctx context.Context) (*TrainResult, error)
	TrainingStatus(ctx context.Context) (map[string]interface{}, error)
	RebuildDataset(ctx context.Context) (map[string]interface{}, error)
	Cleanup(ctx context.Context) (map[string]interface{}, error)
	Status(ctx context.Context) (map[string]interface{}, error)
	RecommendForUser(ctx context.Context, userID uuid.UUID) (*RecommendResponse, error)
	RecommendColdStart(ctx context.Context, userID uuid.UUID, preferredGenres []string) (*RecommendResponse, error)
	CollectBulk(ctx context.Context, usernames []string) (map[string]interface{}, error)
	IsHealthy(ctx context.Context) bool
}

type TrainResult struct {
	ModelVersion string                 `json:"model_version"`
	Raw          map[string]interface{} `json:"-"`
}

type ScoredMovie struct {
	MovieID     uuid.UUID
	Score       float64
	Explanation *string
}

// RecommendResponse preserves the scorer's order; the service assigns
// ranks from positions in Recommendations.
type RecommendResponse struct {
	Recommendations []ScoredMovie
	Algorithm       string
	ModelVersion    string
}

type client struct {
	log         *logger.Logger
	baseURL     string
	httpClient  *http.Client
	baseTimeout time.Duration
}

const (
	statusProbeTimeout = 10 * time.Second
	healthProbeTimeout = 5 * time.Second
	cleanupTimeout     = 30 * time.Second
)

func NewClient(log *logger.Logger) Client {
	baseURL := utils.GetEnv("ML_SERVICE_URL", "http://localhost:8000", log)
	timeoutMs := utils.GetEnvAsInt("ML_SERVICE_TIMEOUT_MS", 30000, log)

	return &client{
		log:         log.With("client", "MLServiceClient"),
		baseURL:     baseURL,
		httpClient:  &http.Client{},
		baseTimeout: time.Duration(timeoutMs) * time.Millisecond,
	}
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("ml service http %d: %s", e.StatusCode, e.Body)
}

func (c *client) do(ctx context.Context, method, path string, body interface{}, timeout time.Duration) (map[string]interface{}, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, apierr.ExternalService(fmt.Errorf("encode request: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, apierr.ExternalService(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.ExternalService(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, apierr.ExternalService(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apierr.ExternalService(&httpError{StatusCode: resp.StatusCode, Body: string(raw)})
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, apierr.ExternalService(fmt.Errorf("decode response: %w", err))
	}
	return decoded, nil
}

func (c *client) TrainModel(ctx context.Context) (*TrainResult, error) {
	c.log.Info("Triggering model training")
	resp, err := c.do(ctx, http.MethodPost, "/model/train", nil, c.baseTimeout*5)
	if err != nil {
		return nil, err
	}
	result := &TrainResult{Raw: resp}
	if v, ok := resp["model_version"].(string); ok {
		result.ModelVersion = v
	}
	return result, nil
}

func (c *client) TrainingStatus(ctx context.Context) (map[string]interface{}, error) {
	return c.do(ctx, http.MethodGet, "/model/status", nil, statusProbeTimeout)
}

func (c *client) RebuildDataset(ctx context.Context) (map[string]interface{}, error) {
	c.log.Info("Triggering dataset rebuild")
	return c.do(ctx, http.MethodPost, "/dataset/rebuild", nil, c.baseTimeout*2)
}

func (c *client) Cleanup(ctx context.Context) (map[string]interface{}, error) {
	return c.do(ctx, http.MethodPost, "/cleanup", nil, cleanupTimeout)
}

func (c *client) Status(ctx context.Context) (map[string]interface{}, error) {
	return c.do(ctx, http.MethodGet, "/status", nil, statusProbeTimeout)
}

func (c *client) RecommendForUser(ctx context.Context, userID uuid.UUID) (*RecommendResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/recommend/user/%s", userID), nil, c.baseTimeout)
	if err != nil {
		return nil, err
	}
	return parseRecommendResponse(resp)
}

func (c *client) RecommendColdStart(ctx context.Context, userID uuid.UUID, preferredGenres []string) (*RecommendResponse, error) {
	if preferredGenres == nil {
		preferredGenres = []string{}
	}
	body := map[string]interface{}{
		"user_id":          userID.String(),
		"preferred_genres": preferredGenres,
	}
	resp, err := c.do(ctx, http.MethodPost, "/recommend/cold-start", body, c.baseTimeout)
	if err != nil {
		return nil, err
	}
	return parseRecommendResponse(resp)
}

func (c *client) CollectBulk(ctx context.Context, usernames []string) (map[string]interface{}, error) {
	body := map[string]interface{}{
		"usernames": usernames,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	return c.do(ctx, http.MethodPost, "/data/collect/bulk", body, c.baseTimeout*3)
}

// IsHealthy never raises: health probing must not destabilize a caller.
func (c *client) IsHealthy(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, "/status", nil, healthProbeTimeout)
	if err != nil {
		c.log.Warn("ML service health check failed", "error", err)
		return false
	}
	status, _ := resp["status"].(string)
	return status == "healthy" || status == "ok"
}

func parseRecommendResponse(resp map[string]interface{}) (*RecommendResponse, error) {
	rawRecs, ok := resp["recommendations"].([]interface{})
	if !ok {
		return nil, apierr.Validation("scorer response missing recommendations list")
	}

	out := &RecommendResponse{}
	if v, ok := resp["algorithm"].(string); ok {
		out.Algorithm = v
	}
	if v, ok := resp["model_version"].(string); ok {
		out.ModelVersion = v
	}
	if out.ModelVersion == "" {
		return nil, apierr.Validation("scorer response missing model_version")
	}

	for i, raw := range rawRecs {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			return nil, apierr.Validation("scorer entry %d is not an object", i)
		}
		movieStr, ok := entry["movie_id"].(string)
		if !ok {
			return nil, apierr.Validation("scorer entry %d missing movie_id", i)
		}
		movieID, err := uuid.Parse(movieStr)
		if err != nil {
			return nil, apierr.Validation("scorer entry %d has invalid movie_id: %v", i, err)
		}
		score, ok := entry["score"].(float64)
		if !ok {
			return nil, apierr.Validation("scorer entry %d missing score", i)
		}
		scored := ScoredMovie{MovieID: movieID, Score: score}
		if expl, ok := entry["explanation"].(string); ok {
			scored.Explanation = &expl
		}
		out.Recommendations = append(out.Recommendations, scored)
	}
	return out, nil
}
