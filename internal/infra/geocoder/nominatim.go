// Package geocoder は地名から座標を解決するHTTPクライアントを提供する。
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jinford/storymap/internal/core/agent"
	"github.com/jinford/storymap/internal/core/viz"
)

const (
	// DefaultBaseURL はNominatim公開インスタンスのURL
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultTimeout は1回の検索リクエストのタイムアウト
	DefaultTimeout = 10 * time.Second

	// DefaultCacheTTL は解決結果をキャッシュする期間
	DefaultCacheTTL = 24 * time.Hour

	// userAgent はNominatimの利用規約で要求される識別子
	userAgent = "storymap/1.0"
)

// cachedResult は見つからなかった結果もキャッシュするための包み
type cachedResult struct {
	coords viz.Coordinates
	found  bool
}

// NominatimClient はNominatim互換のジオコーディングAPIクライアント。
// 同じ地名への問い合わせはTTL付きキャッシュで吸収する。
type NominatimClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *gocache.Cache
}

type clientOptions struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	cacheTTL   time.Duration
	httpClient *http.Client
}

// ClientOption は NominatimClient のオプション設定
type ClientOption func(*clientOptions)

// WithBaseURL はAPIのベースURLを上書きする
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithAPIKey はAPIキーを設定する（セルフホストや商用互換API向け）
func WithAPIKey(apiKey string) ClientOption {
	return func(o *clientOptions) {
		o.apiKey = apiKey
	}
}

// WithTimeout はリクエストのタイムアウトを上書きする
func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

// WithCacheTTL はキャッシュの有効期間を上書きする
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.cacheTTL = ttl
	}
}

// WithHTTPClient はHTTPクライアントを差し替える
func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// NewNominatimClient は新しい NominatimClient を作成する
func NewNominatimClient(opts ...ClientOption) *NominatimClient {
	options := clientOptions{
		baseURL:  DefaultBaseURL,
		timeout:  DefaultTimeout,
		cacheTTL: DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(&options)
	}

	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.timeout}
	}

	return &NominatimClient{
		baseURL:    options.baseURL,
		apiKey:     options.apiKey,
		httpClient: httpClient,
		cache:      gocache.New(options.cacheTTL, options.cacheTTL),
	}
}

// Coordinates は地名から座標を解決する。
// 候補が複数ある場合は先頭の候補を採用する。
func (c *NominatimClient) Coordinates(ctx context.Context, name string) (viz.Coordinates, bool, error) {
	if cached, ok := c.cache.Get(name); ok {
		result := cached.(cachedResult)
		return result.coords, result.found, nil
	}

	coords, found, err := c.lookup(ctx, name)
	if err != nil {
		return viz.Coordinates{}, false, err
	}

	c.cache.Set(name, cachedResult{coords: coords, found: found}, gocache.DefaultExpiration)
	return coords, found, nil
}

func (c *NominatimClient) lookup(ctx context.Context, name string) (viz.Coordinates, bool, error) {
	query := url.Values{}
	query.Set("q", name)
	query.Set("format", "json")
	query.Set("limit", "1")
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+query.Encode(), nil)
	if err != nil {
		return viz.Coordinates{}, false, fmt.Errorf("failed to build geocoding request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return viz.Coordinates{}, false, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return viz.Coordinates{}, false, fmt.Errorf("geocoding request failed with status %d", resp.StatusCode)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return viz.Coordinates{}, false, fmt.Errorf("failed to decode geocoding response: %w", err)
	}

	if len(results) == 0 {
		return viz.Coordinates{}, false, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return viz.Coordinates{}, false, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return viz.Coordinates{}, false, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}

	return viz.Coordinates{Lon: lon, Lat: lat}, true, nil
}

// インターフェース実装の確認
var _ agent.Geocoder = (*NominatimClient)(nil)
