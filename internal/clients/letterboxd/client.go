package letterboxd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cinematch/cinematch-backend/internal/apierr"
	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/utils"
)

// Client talks to the Letterboxd scraper service. The scraped payloads are
// opaque to the core beyond being handed to the sync service; this client
// only shapes the wire contract.
type Client interface {
	ScrapeUser(ctx context.Context, username string, opts ScrapeOptions) (*ScrapeResponse, error)
	GetProfile(ctx context.Context, username string) (*Profile, error)
	ValidateUser(ctx context.Context, username string) bool
	IsHealthy(ctx context.Context) bool
	Enabled() bool
}

type ScrapeOptions struct {
	IncludeRatings   bool
	IncludeWatchlist bool
	RatingLimit      int
}

func DefaultScrapeOptions() ScrapeOptions {
	return ScrapeOptions{IncludeRatings: true, IncludeWatchlist: true, RatingLimit: 100}
}

type Profile struct {
	Username     string  `json:"username"`
	DisplayName  *string `json:"display_name"`
	Bio          *string `json:"bio"`
	Location     *string `json:"location"`
	FilmsWatched *int    `json:"films_watched"`
	Followers    *int    `json:"followers"`
	Following    *int    `json:"following"`
}

type FilmRating struct {
	FilmTitle   string   `json:"film_title"`
	FilmYear    *int     `json:"film_year"`
	FilmSlug    string   `json:"film_slug"`
	Rating      *float64 `json:"rating"`
	WatchedDate *string  `json:"watched_date"`
	Review      *string  `json:"review"`
}

type WatchlistFilm struct {
	FilmTitle string   `json:"film_title"`
	FilmYear  *int     `json:"film_year"`
	FilmSlug  string   `json:"film_slug"`
	Directors []string `json:"directors"`
	Genres    []string `json:"genres"`
}

type ScrapeResponse struct {
	Username            string          `json:"username"`
	Profile             Profile         `json:"profile"`
	Ratings             []FilmRating    `json:"ratings"`
	Watchlist           []WatchlistFilm `json:"watchlist"`
	TotalRatings        int             `json:"total_ratings"`
	TotalWatchlistItems int             `json:"total_watchlist_items"`
	Success             bool            `json:"success"`
	ErrorMessage        *string         `json:"error_message"`
}

type client struct {
	log        *logger.Logger
	baseURL    string
	enabled    bool
	httpClient *http.Client
	timeout    time.Duration
}

const healthProbeTimeout = 5 * time.Second

func NewClient(log *logger.Logger) Client {
	baseURL := utils.GetEnv("LETTERBOXD_SCRAPER_URL", "http://localhost:8001", log)
	timeoutMs := utils.GetEnvAsInt("LETTERBOXD_SCRAPER_TIMEOUT_MS", 60000, log)
	enabled := utils.GetEnv("LETTERBOXD_SCRAPER_ENABLED", "true", log) == "true"

	return &client{
		log:        log.With("client", "LetterboxdClient"),
		baseURL:    baseURL,
		enabled:    enabled,
		httpClient: &http.Client{},
		timeout:    time.Duration(timeoutMs) * time.Millisecond,
	}
}

func (c *client) Enabled() bool {
	return c.enabled
}

func (c *client) do(ctx context.Context, method, path string, body interface{}, timeout time.Duration, out interface{}) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return apierr.ExternalService(fmt.Errorf("encode request: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, &buf)
	if err != nil {
		return apierr.ExternalService(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierr.ExternalService(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return apierr.ExternalService(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierr.ExternalService(fmt.Errorf("scraper http %d: %s", resp.StatusCode, string(raw)))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return apierr.ExternalService(fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

func (c *client) ScrapeUser(ctx context.Context, username string, opts ScrapeOptions) (*ScrapeResponse, error) {
	if !c.enabled {
		return nil, apierr.ExternalService(fmt.Errorf("letterboxd scraper is disabled"))
	}

	body := map[string]interface{}{
		"username":          username,
		"include_ratings":   opts.IncludeRatings,
		"include_watchlist": opts.IncludeWatchlist,
		"rating_limit":      opts.RatingLimit,
	}

	c.log.Info("Scraping Letterboxd data", "username", username)

	var out ScrapeResponse
	if err := c.do(ctx, http.MethodPost, "/api/scrape/user", body, c.timeout, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		msg := "unknown error"
		if out.ErrorMessage != nil {
			msg = *out.ErrorMessage
		}
		return nil, apierr.ExternalService(fmt.Errorf("scraping failed: %s", msg))
	}
	return &out, nil
}

func (c *client) GetProfile(ctx context.Context, username string) (*Profile, error) {
	if !c.enabled {
		return nil, apierr.ExternalService(fmt.Errorf("letterboxd scraper is disabled"))
	}

	var out Profile
	if err := c.do(ctx, http.MethodGet, "/api/user/"+username+"/profile", nil, c.timeout, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateUser and IsHealthy are probes: failures degrade to false rather
// than raising.
func (c *client) ValidateUser(ctx context.Context, username string) bool {
	if !c.enabled {
		return false
	}

	var out struct {
		Exists bool `json:"exists"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/user/"+username+"/validate", nil, c.timeout, &out); err != nil {
		c.log.Warn("Letterboxd user validation failed", "username", username, "error", err)
		return false
	}
	return out.Exists
}

func (c *client) IsHealthy(ctx context.Context) bool {
	if !c.enabled {
		return false
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, healthProbeTimeout, &out); err != nil {
		c.log.Warn("Letterboxd scraper health check failed", "error", err)
		return false
	}
	return out.Status == "healthy"
}
