// Package openfoodfacts provides a client for the Open Food Facts product
// API.
package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nutriplan/nutriplan/internal/medical"
	"github.com/nutriplan/nutriplan/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the Open Food Facts API.
	DefaultBaseURL = "https://world.openfoodfacts.org/api/v0"

	// ProviderName identifies this provider.
	ProviderName = "openfoodfacts"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Open Food Facts client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use. If nil, a default resilient
	// client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration
}

// Client is an Open Food Facts API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new Open Food Facts client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

type productResponse struct {
	Product *productData `json:"product"`
}

type productData struct {
	Nutriments nutrimentsData `json:"nutriments"`
}

type nutrimentsData struct {
	EnergyKcal100G    float64 `json:"energy-kcal_100g"`
	Proteins100G      float64 `json:"proteins_100g"`
	Carbohydrates100G float64 `json:"carbohydrates_100g"`
	Fat100G           float64 `json:"fat_100g"`
	Fiber100G         float64 `json:"fiber_100g"`
	Sodium100G        float64 `json:"sodium_100g"`
}

// LookupFood retrieves per-100g nutriments for a product.
func (c *Client) LookupFood(ctx context.Context, foodName string) (*medical.NutritionFacts, error) {
	endpoint := fmt.Sprintf("%s/product/%s.json", c.baseURL, url.PathEscape(foodName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch product: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", medical.ErrFoodNotFound, foodName)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from product endpoint", resp.StatusCode)
	}

	var result productResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode product response: %w", err)
	}
	if result.Product == nil {
		return nil, fmt.Errorf("%w: %s", medical.ErrFoodNotFound, foodName)
	}

	n := result.Product.Nutriments
	return &medical.NutritionFacts{
		Calories:      n.EnergyKcal100G,
		ProteinG:      n.Proteins100G,
		CarbohydrateG: n.Carbohydrates100G,
		FatG:          n.Fat100G,
		FiberG:        n.Fiber100G,
		SodiumG:       n.Sodium100G,
	}, nil
}
