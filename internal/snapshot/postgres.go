package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/orderdesk/backoffice/pkg/models"
)

// Store persists order snapshots in Postgres so the back office can serve its
// last known state across restarts while the commerce API is down. The full
// record is kept as a JSONB payload; the indexed columns exist for ad-hoc
// queries, the payload is the source of truth on load.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

func Open(dsn string, logger *logrus.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	for i := 0; i < 30; i++ {
		if err = db.Ping(); err == nil {
			logger.Info("Snapshot database connection established")
			break
		}
		logger.Info("Waiting for snapshot database...")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot database not reachable: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS order_snapshots (
			id VARCHAR(255) PRIMARY KEY,
			order_number VARCHAR(255) NOT NULL,
			status VARCHAR(50) NOT NULL,
			payment_status VARCHAR(50) NOT NULL,
			total DECIMAL(10,2) NOT NULL,
			demo BOOLEAN NOT NULL DEFAULT FALSE,
			payload JSONB NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_snapshots_status ON order_snapshots(status)`,
		`CREATE INDEX IF NOT EXISTS idx_order_snapshots_order_number ON order_snapshots(order_number)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// Save upserts one order snapshot.
func (s *Store) Save(order models.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order %s: %w", order.ID, err)
	}

	query := `
		INSERT INTO order_snapshots (id, order_number, status, payment_status, total, demo, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			order_number = EXCLUDED.order_number,
			status = EXCLUDED.status,
			payment_status = EXCLUDED.payment_status,
			total = EXCLUDED.total,
			demo = EXCLUDED.demo,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.Exec(query, order.ID, order.OrderNumber, order.Status,
		order.PaymentStatus, order.Total, order.IsFallback(), string(payload), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save order snapshot %s: %w", order.ID, err)
	}
	return nil
}

// SaveAll replaces the whole snapshot set in one transaction.
func (s *Store) SaveAll(orders []models.Order) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM order_snapshots`); err != nil {
		return err
	}

	query := `
		INSERT INTO order_snapshots (id, order_number, status, payment_status, total, demo, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	now := time.Now()
	for _, order := range orders {
		payload, err := json.Marshal(order)
		if err != nil {
			return fmt.Errorf("failed to marshal order %s: %w", order.ID, err)
		}
		if _, err := tx.Exec(query, order.ID, order.OrderNumber, order.Status,
			order.PaymentStatus, order.Total, order.IsFallback(), string(payload), now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) Delete(orderID string) error {
	_, err := s.db.Exec(`DELETE FROM order_snapshots WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order snapshot %s: %w", orderID, err)
	}
	return nil
}

// LoadAll returns every persisted order, newest first.
func (s *Store) LoadAll() ([]models.Order, error) {
	rows, err := s.db.Query(`SELECT payload FROM order_snapshots ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to load order snapshots: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var order models.Order
		if err := json.Unmarshal(payload, &order); err != nil {
			s.logger.WithError(err).Warn("Skipping unreadable order snapshot")
			continue
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
