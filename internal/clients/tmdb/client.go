package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cinematch/cinematch-backend/internal/apierr"
	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/utils"
)

// Client talks to the TMDb API for catalog metadata. Without an API key
// the client is disabled and enrichment is skipped everywhere.
type Client interface {
	SearchMovie(ctx context.Context, title string, year int) (int64, error)
	GetMovieDetails(ctx context.Context, tmdbID int64) (*MovieDetails, error)
	Enabled() bool
}

// MovieDetails carries the subset of TMDb metadata the catalog stores.
type MovieDetails struct {
	TmdbID         int64
	Overview       string
	RuntimeMinutes int
	PosterURL      string
	Genres         []string
	Director       string
	Actors         []string
}

const (
	posterBaseURL  = "https://image.tmdb.org/t/p/w500"
	castLimit      = 5
	requestTimeout = 10 * time.Second
)

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) Client {
	baseURL := utils.GetEnv("TMDB_API_URL", "https://api.themoviedb.org/3", log)
	apiKey := utils.GetEnv("TMDB_API_KEY", "", log)

	return &client{
		log:        log.With("client", "TMDbClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

func (c *client) Enabled() bool {
	return c.apiKey != ""
}

func (c *client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	query.Set("api_key", c.apiKey)
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return apierr.ExternalService(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierr.ExternalService(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return apierr.ExternalService(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierr.ExternalService(fmt.Errorf("tmdb http %d: %s", resp.StatusCode, string(raw)))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apierr.ExternalService(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// SearchMovie resolves a title and release year to a TMDb id, taking the
// first search result as the original catalog did.
func (c *client) SearchMovie(ctx context.Context, title string, year int) (int64, error) {
	if !c.Enabled() {
		return 0, apierr.ExternalService(fmt.Errorf("tmdb client is disabled"))
	}

	query := url.Values{}
	query.Set("query", title)
	if year > 0 {
		query.Set("year", fmt.Sprintf("%d", year))
	}

	var out struct {
		Results []struct {
			ID int64 `json:"id"`
		} `json:"results"`
	}
	if err := c.get(ctx, "/search/movie", query, &out); err != nil {
		return 0, err
	}
	if len(out.Results) == 0 {
		return 0, apierr.NotFound("no tmdb match for %q (%d)", title, year)
	}
	return out.Results[0].ID, nil
}

func (c *client) GetMovieDetails(ctx context.Context, tmdbID int64) (*MovieDetails, error) {
	if !c.Enabled() {
		return nil, apierr.ExternalService(fmt.Errorf("tmdb client is disabled"))
	}

	query := url.Values{}
	query.Set("append_to_response", "credits")

	var out struct {
		ID         int64  `json:"id"`
		Overview   string `json:"overview"`
		Runtime    int    `json:"runtime"`
		PosterPath string `json:"poster_path"`
		Genres     []struct {
			Name string `json:"name"`
		} `json:"genres"`
		Credits struct {
			Crew []struct {
				Job  string `json:"job"`
				Name string `json:"name"`
			} `json:"crew"`
			Cast []struct {
				Name string `json:"name"`
			} `json:"cast"`
		} `json:"credits"`
	}
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", tmdbID), query, &out); err != nil {
		return nil, err
	}

	details := &MovieDetails{
		TmdbID:         out.ID,
		Overview:       out.Overview,
		RuntimeMinutes: out.Runtime,
	}
	if out.PosterPath != "" {
		details.PosterURL = posterBaseURL + out.PosterPath
	}
	for _, g := range out.Genres {
		details.Genres = append(details.Genres, g.Name)
	}
	for _, member := range out.Credits.Crew {
		if member.Job == "Director" {
			details.Director = member.Name
			break
		}
	}
	for i, member := range out.Credits.Cast {
		if i >= castLimit {
			break
		}
		details.Actors = append(details.Actors, member.Name)
	}
	return details, nil
}
