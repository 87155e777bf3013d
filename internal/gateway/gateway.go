package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/orderdesk/backoffice/internal/circuitbreaker"
	"github.com/orderdesk/backoffice/internal/commerce"
	"github.com/orderdesk/backoffice/internal/events"
	"github.com/orderdesk/backoffice/internal/fallback"
	"github.com/orderdesk/backoffice/internal/reconcile"
	"github.com/orderdesk/backoffice/internal/store"
	"github.com/orderdesk/backoffice/pkg/models"
)

// DefaultCreateTimeout bounds how long a remote create may take before the
// gateway gives up and creates the order locally.
const DefaultCreateTimeout = 5 * time.Second

// EventPublisher is satisfied by events.Producer. A nil publisher disables
// event publishing.
type EventPublisher interface {
	PublishOrderEvent(topic string, event events.OrderEvent) error
}

// Gateway routes order mutations either to the remote commerce API or, for
// fallback/demo orders, to the in-memory store only. Refresh drives the
// store's load state machine and owns the failure classification.
type Gateway struct {
	client        *commerce.Client
	store         *store.Store
	logger        *logrus.Logger
	breaker       *circuitbreaker.CircuitBreaker
	publisher     EventPublisher
	createTimeout time.Duration
}

func New(client *commerce.Client, st *store.Store, logger *logrus.Logger) *Gateway {
	return &Gateway{
		client:        client,
		store:         st,
		logger:        logger,
		createTimeout: DefaultCreateTimeout,
	}
}

// SetBreaker guards remote calls with a circuit breaker. Optional.
func (g *Gateway) SetBreaker(cb *circuitbreaker.CircuitBreaker) {
	g.breaker = cb
}

// SetPublisher enables Kafka event publishing for mutations. Optional.
func (g *Gateway) SetPublisher(p EventPublisher) {
	g.publisher = p
}

// SetCreateTimeout overrides the remote-create deadline.
func (g *Gateway) SetCreateTimeout(d time.Duration) {
	if d > 0 {
		g.createTimeout = d
	}
}

// Refresh re-fetches the full list and settles the store. Auth failures leave
// the store untouched and surface; an unreachable upstream (including an open
// breaker) degrades to demo data and is not treated as an error; anything
// else is surfaced with the store marked failed.
func (g *Gateway) Refresh(ctx context.Context) error {
	g.store.BeginLoading()

	var orders []models.Order
	err := g.guard(func() error {
		var listErr error
		orders, listErr = g.client.ListOrders(ctx)
		return listErr
	})

	if err == nil {
		g.store.ReplaceAll(orders, false)
		return nil
	}

	if commerce.IsAuthError(err) {
		g.logger.WithError(err).Warn("Commerce API requires authentication")
		g.store.RequireAuth(err)
		return err
	}

	if commerce.IsNotFoundError(err) || errors.Is(err, circuitbreaker.ErrOpen) {
		g.logger.WithError(err).Warn("Commerce API unavailable, switching to demo data")
		g.store.ReplaceAll(fallback.Generate(), true)
		return nil
	}

	g.logger.WithError(err).Error("Failed to refresh orders")
	g.store.Fail(err)
	return err
}

type createResult struct {
	order models.Order
	err   error
}

// Create attempts a remote create bounded by the create timeout. On timeout
// or any remote failure it degrades to a locally numbered order, so creation
// never fails outward. The remote request is cancelled when the timer wins so
// a late server-side create cannot race the local fallback.
func (g *Gateway) Create(ctx context.Context, draft models.OrderDraft) models.Order {
	remoteCtx, cancelRemote := context.WithCancel(ctx)
	defer cancelRemote()

	results := make(chan createResult, 1)
	go func() {
		var order models.Order
		err := g.guard(func() error {
			var createErr error
			order, createErr = g.client.CreateOrder(remoteCtx, draft)
			return createErr
		})
		results <- createResult{order: order, err: err}
	}()

	timer := time.NewTimer(g.createTimeout)
	defer timer.Stop()

	select {
	case res := <-results:
		if res.err == nil {
			g.store.Upsert(res.order)
			g.publishOrder(events.OrderCreatedTopic, res.order)
			return res.order
		}
		g.logger.WithError(res.err).Warn("Remote create failed, creating order locally")
	case <-timer.C:
		g.logger.WithField("timeout", g.createTimeout.String()).Warn("Remote create timed out, creating order locally")
	}

	order := localOrder(draft)
	g.store.Upsert(order)
	g.publishOrder(events.OrderCreatedTopic, order)

	g.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	}).Info("Order created locally")

	return order
}

// Update patches one order. Fallback orders are mutated in the store only and
// never reach the remote API; real orders go upstream and the store entry is
// replaced with the server's response. On remote failure the local entry is
// left untouched and the error propagates.
func (g *Gateway) Update(ctx context.Context, orderID string, patch map[string]any) (models.Order, error) {
	if strings.HasPrefix(orderID, models.FallbackIDPrefix) {
		order, err := g.store.ApplyPatch(orderID, patch)
		if err != nil {
			return models.Order{}, err
		}
		g.logger.WithField("order_id", orderID).Info("Demo order updated locally")
		g.publishOrder(events.OrderUpdatedTopic, order)
		return order, nil
	}

	var updated models.Order
	err := g.guard(func() error {
		var updateErr error
		updated, updateErr = g.client.UpdateOrder(ctx, orderID, patch)
		return updateErr
	})
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to update order %s: %w", orderID, err)
	}

	g.store.Upsert(updated)
	g.publishOrder(events.OrderUpdatedTopic, updated)
	return updated, nil
}

// Delete removes one order, with the same fallback/remote branching as
// Update.
func (g *Gateway) Delete(ctx context.Context, orderID string) error {
	if strings.HasPrefix(orderID, models.FallbackIDPrefix) {
		if err := g.store.Remove(orderID); err != nil {
			return err
		}
		g.logger.WithField("order_id", orderID).Info("Demo order deleted locally")
		g.publishDelete(orderID, true)
		return nil
	}

	err := g.guard(func() error {
		return g.client.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete order %s: %w", orderID, err)
	}

	if err := g.store.Remove(orderID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	g.publishDelete(orderID, false)
	return nil
}

// Reconcile compares the local store against a fresh remote list and reports
// drift. The store is not modified.
func (g *Gateway) Reconcile(ctx context.Context) (*reconcile.Report, error) {
	var remote []models.Order
	err := g.guard(func() error {
		var listErr error
		remote, listErr = g.client.ListOrders(ctx)
		return listErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote orders for reconciliation: %w", err)
	}

	return reconcile.Compare(g.store.Snapshot(), remote), nil
}

func (g *Gateway) guard(fn func() error) error {
	if g.breaker == nil {
		return fn()
	}
	return g.breaker.Execute(fn)
}

func (g *Gateway) publishOrder(topic string, order models.Order) {
	if g.publisher == nil {
		return
	}
	event := events.OrderEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Total:       order.Total,
		Status:      order.Status,
		Demo:        order.IsFallback(),
		Order:       &order,
	}
	if err := g.publisher.PublishOrderEvent(topic, event); err != nil {
		// publishing is best effort, the mutation already succeeded
		g.logger.WithError(err).Error("Failed to publish order event")
	}
}

func (g *Gateway) publishDelete(orderID string, demo bool) {
	if g.publisher == nil {
		return
	}
	event := events.OrderEvent{OrderID: orderID, Demo: demo}
	if err := g.publisher.PublishOrderEvent(events.OrderDeletedTopic, event); err != nil {
		g.logger.WithError(err).Error("Failed to publish order event")
	}
}

// localOrder synthesizes the degraded-mode order: timestamp id, ORD-prefixed
// number, zero tax and shipping, pending status.
func localOrder(draft models.OrderDraft) models.Order {
	now := time.Now()
	id := strconv.FormatInt(now.UnixMilli(), 10)

	items := make([]models.OrderItem, 0, len(draft.Items))
	for _, item := range draft.Items {
		items = append(items, models.OrderItem{
			ID:          uuid.New().String(),
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.TotalPrice,
			Image:       item.Image,
			Category:    item.Category,
		})
	}

	total := draft.Subtotal - draft.Discount
	if total < 0 {
		total = 0
	}

	return models.Order{
		ID:              id,
		OrderNumber:     "ORD-" + id,
		Customer:        draft.Customer,
		Items:           items,
		Subtotal:        draft.Subtotal,
		Discount:        draft.Discount,
		Total:           total,
		Status:          models.StatusPending,
		PaymentStatus:   models.PaymentPending,
		PaymentMethod:   draft.PaymentMethod,
		OrderDate:       now,
		ShippingAddress: draft.ShippingAddress,
		BillingAddress:  draft.BillingAddress,
		Notes:           draft.Notes,
		CreatedAt:       now,
	}
}
