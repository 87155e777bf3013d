package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orderdesk/backoffice/internal/convert"
	"github.com/orderdesk/backoffice/pkg/models"
)

// Client talks to the remote commerce API and returns canonical orders; the
// wire-to-canonical mapping is delegated to the convert package.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL, token string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// ListOrders fetches the full order list. Elements that fail to decode are
// replaced with placeholders rather than failing the batch.
func (c *Client) ListOrders(ctx context.Context) ([]models.Order, error) {
	c.logger.Info("Fetching orders from commerce API")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orders", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to commerce API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp)
	}

	var list models.WireOrderList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode commerce API response: %w", err)
	}

	orders := convert.Orders(list.Data, c.logger)
	c.logger.WithField("count", len(orders)).Info("Retrieved orders from commerce API")
	return orders, nil
}

// CreateOrder submits a draft and returns the canonical order the server
// created.
func (c *Client) CreateOrder(ctx context.Context, draft models.OrderDraft) (models.Order, error) {
	c.logger.WithField("items_count", len(draft.Items)).Info("Creating order in commerce API")

	order, err := c.sendOrder(ctx, http.MethodPost, c.baseURL+"/orders", draft)
	if err != nil {
		return models.Order{}, err
	}

	c.logger.WithField("order_id", order.ID).Info("Order created in commerce API")
	return order, nil
}

// UpdateOrder applies a partial patch and returns the server's canonical
// record.
func (c *Client) UpdateOrder(ctx context.Context, orderID string, patch map[string]any) (models.Order, error) {
	c.logger.WithField("order_id", orderID).Info("Updating order in commerce API")

	order, err := c.sendOrder(ctx, http.MethodPut, c.baseURL+"/orders/"+orderID, patch)
	if err != nil {
		return models.Order{}, err
	}

	c.logger.WithField("order_id", orderID).Info("Order updated in commerce API")
	return order, nil
}

// DeleteOrder removes an order upstream.
func (c *Client) DeleteOrder(ctx context.Context, orderID string) error {
	c.logger.WithField("order_id", orderID).Info("Deleting order in commerce API")

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/orders/"+orderID, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to commerce API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(resp)
	}

	c.logger.WithField("order_id", orderID).Info("Order deleted in commerce API")
	return nil
}

func (c *Client) sendOrder(ctx context.Context, method, url string, payload any) (models.Order, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to send request to commerce API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return models.Order{}, c.errorFromResponse(resp)
	}

	var wire models.WireOrder
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return models.Order{}, fmt.Errorf("failed to decode commerce API response: %w", err)
	}

	return convert.Order(wire), nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	message := ""
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		message = envelope.Message
	} else if len(body) > 0 {
		message = string(body)
	}

	return &APIError{StatusCode: resp.StatusCode, Message: message}
}
