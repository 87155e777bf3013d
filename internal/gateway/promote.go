package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orderdesk/backoffice/internal/events"
	"github.com/orderdesk/backoffice/pkg/models"
)

type PromotionError struct {
	OrderID string `json:"orderId"`
	Error   string `json:"error"`
}

type PromotionResult struct {
	Attempted      int              `json:"attempted"`
	Promoted       int              `json:"promoted"`
	Failed         int              `json:"failed"`
	Errors         []PromotionError `json:"errors"`
	ProcessingTime time.Duration    `json:"processingTime"`
}

// PromoteDemoOrders pushes locally held fallback orders upstream once the
// commerce API is reachable again. Each success swaps the demo entry for the
// server's canonical record; failures are reported per order and the demo
// entry is kept. Concurrency is bounded with a semaphore.
func (g *Gateway) PromoteDemoOrders(ctx context.Context, concurrency int) *PromotionResult {
	if concurrency <= 0 {
		concurrency = 3
	}

	start := time.Now()

	var demo []models.Order
	for _, o := range g.store.Snapshot() {
		if o.IsFallback() {
			demo = append(demo, o)
		}
	}

	result := &PromotionResult{
		Attempted: len(demo),
		Errors:    []PromotionError{},
	}
	if len(demo) == 0 {
		g.logger.Info("No demo orders to promote")
		result.ProcessingTime = time.Since(start)
		return result
	}

	g.logger.WithFields(logrus.Fields{
		"count":       len(demo),
		"concurrency": concurrency,
	}).Info("Promoting demo orders to commerce API")

	var wg sync.WaitGroup
	var mu sync.Mutex
	semaphore := make(chan struct{}, concurrency)

	for _, order := range demo {
		wg.Add(1)
		go func(o models.Order) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			select {
			case <-ctx.Done():
				mu.Lock()
				result.Failed++
				result.Errors = append(result.Errors, PromotionError{OrderID: o.ID, Error: ctx.Err().Error()})
				mu.Unlock()
				return
			default:
			}

			var created models.Order
			err := g.guard(func() error {
				var createErr error
				created, createErr = g.client.CreateOrder(ctx, draftFrom(o))
				return createErr
			})

			if err != nil {
				g.logger.WithError(err).WithField("order_id", o.ID).Error("Failed to promote demo order")
				mu.Lock()
				result.Failed++
				result.Errors = append(result.Errors, PromotionError{OrderID: o.ID, Error: err.Error()})
				mu.Unlock()
				return
			}

			g.store.Remove(o.ID)
			g.store.Upsert(created)
			g.publishOrder(events.OrderCreatedTopic, created)

			mu.Lock()
			result.Promoted++
			mu.Unlock()

			g.logger.WithFields(logrus.Fields{
				"demo_id":  o.ID,
				"order_id": created.ID,
			}).Info("Demo order promoted")
		}(order)
	}

	wg.Wait()
	result.ProcessingTime = time.Since(start)

	g.logger.WithFields(logrus.Fields{
		"promoted": result.Promoted,
		"failed":   result.Failed,
		"duration": result.ProcessingTime.String(),
	}).Info("Demo order promotion completed")

	return result
}

func draftFrom(o models.Order) models.OrderDraft {
	items := make([]models.DraftItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, models.DraftItem{
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
	return models.OrderDraft{
		Customer:        o.Customer,
		Items:           items,
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		PaymentMethod:   o.PaymentMethod,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		Notes:           o.Notes,
	}
}
