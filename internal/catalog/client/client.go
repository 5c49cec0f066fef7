package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mobix/storefront/internal/catalog/domain"
	"github.com/mobix/storefront/pkg/format"
)

// Client talks to the upstream device API. Payload mapping lives here so
// the rest of the module only ever sees domain products.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a product API client with tracing on the transport
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// apiProduct is the upstream record shape.
type apiProduct struct {
	ID                string   `json:"id"`
	Brand             string   `json:"brand"`
	Model             string   `json:"model"`
	Price             string   `json:"price"`
	ImgURL            string   `json:"imgUrl"`
	OS                string   `json:"os"`
	DisplayResolution string   `json:"displayResolution"`
	DisplaySize       string   `json:"displaySize"`
	CPU               string   `json:"cpu"`
	Chipset           string   `json:"chipset"`
	RAM               string   `json:"ram"`
	InternalMemory    []string `json:"internalMemory"`
	Battery           string   `json:"battery"`
	PrimaryCamera     jsonList `json:"primaryCamera"`
	SecondaryCamera   jsonList `json:"secondaryCmera"`
	Options           *struct {
		Colors   []domain.Option `json:"colors"`
		Storages []domain.Option `json:"storages"`
	} `json:"options"`
}

// jsonList tolerates upstream fields that are sometimes a string and
// sometimes an array of strings.
type jsonList []string

func (l *jsonList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = jsonList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = jsonList(many)
	return nil
}

func (l jsonList) join(sep string) string {
	return strings.Join(l, sep)
}

// toDomain maps an upstream record into a catalog product. The upstream
// feed has no category field; anything that looks like a tablet by model
// name is classified as one, the rest are smartphones.
func (p apiProduct) toDomain() domain.Product {
	model := strings.ToLower(p.Model)
	category := domain.CategorySmartphones
	if strings.Contains(model, "tab") || strings.Contains(model, "ipad") {
		category = domain.CategoryTablets
	}

	price, _ := strconv.ParseFloat(p.Price, 64)

	// Upstream brand casing is inconsistent; normalize for display.
	product := domain.Product{
		ID:       p.ID,
		Name:     p.Model,
		Brand:    format.Capitalize(p.Brand),
		Price:    price,
		Image:    p.ImgURL,
		Images:   []string{p.ImgURL},
		Category: category,
		Stock:    domain.StockIn,
		Specs: domain.Specs{
			Screen:    joinNonEmpty(" - ", p.DisplayResolution, p.DisplaySize),
			Processor: joinNonEmpty(" - ", p.CPU, p.Chipset),
			RAM:       p.RAM,
			Storage:   strings.Join(p.InternalMemory, ", "),
			Battery:   p.Battery,
			Camera:    joinNonEmpty(" / ", p.PrimaryCamera.join(", "), p.SecondaryCamera.join(", ")),
		},
		Description: fmt.Sprintf("Brand: %s, Model: %s, OS: %s", p.Brand, p.Model, orDefault(p.OS, "N/A")),
	}

	if p.Options != nil {
		product.Options = &domain.Options{
			Colors:   p.Options.Colors,
			Storages: p.Options.Storages,
		}
	}
	return product
}

// ListProducts fetches the full catalog
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var records []apiProduct
	if err := c.getJSON(ctx, c.baseURL+"/product", &records); err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(records))
	for _, record := range records {
		products = append(products, record.toDomain())
	}
	return products, nil
}

// GetProduct fetches a single product by ID. An unknown ID returns
// (nil, nil).
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/product/"+id, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("product request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product request returned status %d", resp.StatusCode)
	}

	var record apiProduct
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode product: %w", err)
	}
	product := record.toDomain()
	return &product, nil
}

// AddToCartRequest identifies the variant being added remotely.
type AddToCartRequest struct {
	ID          string `json:"id"`
	ColorCode   int    `json:"colorCode"`
	StorageCode int    `json:"storageCode"`
}

type addToCartResponse struct {
	Count int `json:"count"`
}

// AddToCart registers the add with the session server and returns the
// authoritative session count. The upstream occasionally wraps the
// response in a one-element array; both shapes are accepted.
func (c *Client) AddToCart(ctx context.Context, item AddToCartRequest) (int, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cart", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("add to cart request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("add to cart returned status %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return 0, fmt.Errorf("failed to decode add to cart response: %w", err)
	}

	var single addToCartResponse
	if err := json.Unmarshal(raw, &single); err == nil && len(raw) > 0 && raw[0] == '{' {
		return single.Count, nil
	}
	var many []addToCartResponse
	if err := json.Unmarshal(raw, &many); err != nil || len(many) == 0 {
		return 0, fmt.Errorf("unexpected add to cart response shape")
	}
	return many[0].Count, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
