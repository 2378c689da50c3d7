package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"resource-tracker/internal/config"
	"resource-tracker/internal/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const (
	minQueryLength = 3
	userAgent      = "wayne-security-tools/1.0"
)

// Error carries the HTTP status the proxy should answer with.
type Error struct {
	StatusCode int
	Message    string
	Upstream   bool // StatusCode mirrors the upstream response
}

func (e *Error) Error() string { return e.Message }

// Suggestion is the first photo returned for a query, with attribution links.
type Suggestion struct {
	ImageURL         string `json:"image_url"`
	AuthorName       string `json:"author_name"`
	AuthorURL        string `json:"author_url"`
	PhotoURL         string `json:"photo_url"`
	UnsplashURL      string `json:"unsplash_url"`
	DownloadLocation string `json:"download_location"`
}

// Client proxies Unsplash photo search. Results are cached per normalized
// query with a freshness window and least-recently-used eviction.
type Client struct {
	accessKey string
	baseURL   string
	utm       string
	http      *http.Client
	cache     *expirable.LRU[string, Suggestion]
	log       *zap.Logger
}

func NewClient(cfg config.UnsplashConfig, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		accessKey: cfg.AccessKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		utm:       fmt.Sprintf("utm_source=%s&utm_medium=referral&utm_campaign=api-credit", cfg.AppName),
		http:      &http.Client{Timeout: timeout},
		cache:     expirable.NewLRU[string, Suggestion](cfg.CacheSize, nil, cfg.CacheTTL),
		log:       log,
	}
}

// Configured reports whether an access key is present.
func (c *Client) Configured() bool { return c.accessKey != "" }

// NormalizeQuery lowercases q and collapses whitespace runs.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Suggest returns the first landscape photo matching q.
func (c *Client) Suggest(ctx context.Context, q string) (Suggestion, error) {
	if !c.Configured() {
		return Suggestion{}, &Error{StatusCode: http.StatusServiceUnavailable, Message: "UNSPLASH_ACCESS_KEY is not configured on the server"}
	}
	query := NormalizeQuery(q)
	if utf8.RuneCountInString(query) < minQueryLength {
		return Suggestion{}, &Error{StatusCode: http.StatusBadRequest, Message: "search term too short"}
	}

	if s, ok := c.cache.Get(query); ok {
		metrics.ImageCacheLookups.WithLabelValues("hit").Inc()
		return s, nil
	}
	metrics.ImageCacheLookups.WithLabelValues("miss").Inc()

	req, err := c.newRequest(ctx, c.baseURL+"/search/photos")
	if err != nil {
		return Suggestion{}, err
	}
	params := req.URL.Query()
	params.Set("query", query)
	params.Set("per_page", "1")
	params.Set("orientation", "landscape")
	req.URL.RawQuery = params.Encode()

	var body searchResponse
	if err := c.do(req, &body); err != nil {
		return Suggestion{}, err
	}
	if len(body.Results) == 0 {
		return Suggestion{}, &Error{StatusCode: http.StatusNotFound, Message: "no image found for this term"}
	}

	photo := body.Results[0]
	s := Suggestion{
		ImageURL:         photo.URLs.Regular,
		AuthorName:       photo.User.Name,
		AuthorURL:        c.addUTM(photo.User.Links.HTML),
		PhotoURL:         c.addUTM(photo.Links.HTML),
		UnsplashURL:      "https://unsplash.com/?" + c.utm,
		DownloadLocation: photo.Links.DownloadLocation,
	}
	c.cache.Add(query, s)
	return s, nil
}

// TrackDownload notifies Unsplash that a suggested photo was used. Only
// locations on the API host are followed.
func (c *Client) TrackDownload(ctx context.Context, downloadLocation string) error {
	if !c.Configured() {
		return &Error{StatusCode: http.StatusServiceUnavailable, Message: "UNSPLASH_ACCESS_KEY is not configured on the server"}
	}
	loc := strings.TrimSpace(downloadLocation)
	if loc == "" {
		return &Error{StatusCode: http.StatusBadRequest, Message: "download_location is required"}
	}
	if !strings.HasPrefix(loc, c.baseURL+"/") {
		return &Error{StatusCode: http.StatusBadRequest, Message: "invalid download_location"}
	}

	req, err := c.newRequest(ctx, loc)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{StatusCode: http.StatusBadRequest, Message: "invalid upstream url"}
	}
	req.Header.Set("Accept-Version", "v1")
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ImageUpstreamLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		c.log.Warn("unsplash request failed", zap.String("path", req.URL.Path), zap.Error(err))
		return &Error{StatusCode: http.StatusInternalServerError, Message: "error communicating with Unsplash"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("unsplash returned an error", zap.String("path", req.URL.Path), zap.Int("status", resp.StatusCode))
		return &Error{StatusCode: resp.StatusCode, Message: "Unsplash request failed", Upstream: true}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Warn("unsplash response not decodable", zap.Error(err))
		return &Error{StatusCode: http.StatusInternalServerError, Message: "error communicating with Unsplash"}
	}
	return nil
}

func (c *Client) addUTM(url string) string {
	if url == "" {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + c.utm
}

type searchResponse struct {
	Results []struct {
		URLs struct {
			Regular string `json:"regular"`
		} `json:"urls"`
		User struct {
			Name  string `json:"name"`
			Links struct {
				HTML string `json:"html"`
			} `json:"links"`
		} `json:"user"`
		Links struct {
			HTML             string `json:"html"`
			DownloadLocation string `json:"download_location"`
		} `json:"links"`
	} `json:"results"`
}
