package fallback

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/orderdesk/backoffice/pkg/models"
)

// Count is the fixed size of the demo data set served when the commerce API
// is unreachable.
const Count = 15

var firstNames = []string{"Emma", "Liam", "Olivia", "Noah", "Ava", "Ethan", "Sophia", "Mason", "Isabella", "Lucas"}
var lastNames = []string{"Johnson", "Smith", "Brown", "Garcia", "Miller", "Davis", "Martinez", "Wilson", "Anderson", "Taylor"}
var products = []struct {
	name     string
	sku      string
	category string
	price    float64
}{
	{"Wireless Headphones", "SKU-WH-100", "Electronics", 89.99},
	{"Ceramic Mug Set", "SKU-CM-204", "Home & Kitchen", 24.50},
	{"Running Shoes", "SKU-RS-310", "Footwear", 119.00},
	{"Leather Wallet", "SKU-LW-412", "Accessories", 45.00},
	{"Desk Lamp", "SKU-DL-518", "Home & Kitchen", 34.95},
	{"Yoga Mat", "SKU-YM-623", "Sports", 29.99},
	{"Bluetooth Speaker", "SKU-BS-731", "Electronics", 59.99},
	{"Cotton T-Shirt", "SKU-CT-845", "Apparel", 18.00},
}
var paymentMethods = []string{"Credit Card", "PayPal", "Bank Transfer", "Apple Pay"}
var cities = []struct {
	city, state, zip string
}{
	{"Springfield", "IL", "62701"},
	{"Portland", "OR", "97201"},
	{"Austin", "TX", "73301"},
	{"Denver", "CO", "80201"},
	{"Raleigh", "NC", "27601"},
}

// Generate produces the demo order set: fixed size, randomized content, every
// id carrying the fallback prefix so the mutation gateway keeps these orders
// local. Used only after a not-found-class failure from the list endpoint,
// never for a genuine empty result.
func Generate() []models.Order {
	orders := make([]models.Order, 0, Count)
	now := time.Now()

	for i := 0; i < Count; i++ {
		first := firstNames[rand.Intn(len(firstNames))]
		last := lastNames[rand.Intn(len(lastNames))]

		itemCount := rand.Intn(3) + 1
		items := make([]models.OrderItem, 0, itemCount)
		var subtotal float64
		for j := 0; j < itemCount; j++ {
			p := products[rand.Intn(len(products))]
			qty := rand.Intn(3) + 1
			line := p.price * float64(qty)
			subtotal += line
			items = append(items, models.OrderItem{
				ID:          uuid.New().String(),
				ProductID:   uuid.New().String(),
				ProductName: p.name,
				SKU:         p.sku,
				Quantity:    qty,
				UnitPrice:   p.price,
				TotalPrice:  line,
				Category:    p.category,
			})
		}

		tax := round2(subtotal * 0.08)
		shipping := 9.95
		if subtotal > 100 {
			shipping = 0
		}
		total := round2(subtotal + tax + shipping)

		loc := cities[rand.Intn(len(cities))]
		addr := models.Address{
			Street:  fmt.Sprintf("%d Market Street", rand.Intn(900)+100),
			City:    loc.city,
			State:   loc.state,
			ZipCode: loc.zip,
			Country: "US",
		}

		orderDate := now.AddDate(0, 0, -rand.Intn(30))
		status := models.OrderStatuses[rand.Intn(len(models.OrderStatuses))]
		payment := models.PaymentStatuses[rand.Intn(len(models.PaymentStatuses))]

		order := models.Order{
			ID:          fmt.Sprintf("%s%d", models.FallbackIDPrefix, i+1),
			OrderNumber: fmt.Sprintf("ORD-%04d", 2000+i),
			Customer: models.Customer{
				ID:        uuid.New().String(),
				FirstName: first,
				LastName:  last,
				Email:     fmt.Sprintf("%s.%s@example.com", lower(first), lower(last)),
			},
			Items:           items,
			Subtotal:        round2(subtotal),
			Tax:             tax,
			Shipping:        shipping,
			Total:           total,
			Status:          status,
			PaymentStatus:   payment,
			PaymentMethod:   paymentMethods[rand.Intn(len(paymentMethods))],
			OrderDate:       orderDate,
			ShippingAddress: addr,
			BillingAddress:  addr,
			CreatedAt:       orderDate,
		}

		if status == models.StatusShipped || status == models.StatusDelivered {
			shipped := orderDate.AddDate(0, 0, 1)
			order.ShippedDate = &shipped
			order.TrackingNumber = fmt.Sprintf("TRK%09d", rand.Intn(1_000_000_000))
		}
		if status == models.StatusDelivered {
			delivered := orderDate.AddDate(0, 0, 3)
			order.DeliveredDate = &delivered
		}

		orders = append(orders, order)
	}

	return orders
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func lower(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
