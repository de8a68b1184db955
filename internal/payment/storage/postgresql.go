package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"ms-booking/internal/config"
	"ms-booking/internal/errs"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB creates a payment store on an existing connection.
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) (*PostgreSQLStore, error) {
	store := &PostgreSQLStore{db: db, log: log}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize payment tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize payment tables: %w", err)
	}

	return store, nil
}

func NewPostgreSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgreSQLStore, error) {
	log.LogDatabase("CONNECT", "payments", fmt.Sprintf("Connecting to PostgreSQL at %s:%s", cfg.Host, cfg.Port))

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{db: db, log: log}

	if err := store.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "payments", "PostgreSQL connection established and tables initialized")
	return store, nil
}

func (s *PostgreSQLStore) initTables() error {
	paymentsQuery := `
    CREATE TABLE IF NOT EXISTS payments (
        payment_id VARCHAR(64) PRIMARY KEY,
        booking_id VARCHAR(64) NOT NULL,
        gateway VARCHAR(32) NOT NULL,
        gateway_order_id VARCHAR(128) NOT NULL UNIQUE,
        amount_minor BIGINT NOT NULL,
        currency VARCHAR(8) NOT NULL,
        status VARCHAR(16) NOT NULL,
        raw_metadata JSONB,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMP
    );
    `

	if _, err := s.db.Exec(paymentsQuery); err != nil {
		return fmt.Errorf("failed to create payments table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_payments_booking_id ON payments(booking_id);",
		"CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);",
		// One open payment attempt per booking at a time.
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_open_booking ON payments(booking_id) WHERE status IN ('created', 'pending');",
	}

	for _, indexQuery := range indexes {
		if _, err := s.db.Exec(indexQuery); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

const paymentColumns = "payment_id, booking_id, gateway, gateway_order_id, amount_minor, currency, status, raw_metadata, created_at, updated_at"

func (s *PostgreSQLStore) scanPayment(row *sql.Row) (*models.Payment, error) {
	payment := &models.Payment{}
	var raw []byte
	var updatedAt sql.NullTime
	err := row.Scan(
		&payment.PaymentID, &payment.BookingID, &payment.Gateway, &payment.GatewayOrderID,
		&payment.AmountMinor, &payment.Currency, &payment.Status, &raw, &payment.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	payment.RawMetadata = raw
	if updatedAt.Valid {
		payment.UpdatedAt = updatedAt.Time
	}
	return payment, nil
}

func (s *PostgreSQLStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	s.log.LogDatabase("INSERT", "payments", fmt.Sprintf("Saving payment %s for booking %s", payment.PaymentID, payment.BookingID))

	query := `
    INSERT INTO payments (` + paymentColumns + `)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `

	_, err := s.db.ExecContext(ctx, query,
		payment.PaymentID, payment.BookingID, payment.Gateway, payment.GatewayOrderID,
		payment.AmountMinor, payment.Currency, payment.Status, []byte(payment.RawMetadata),
		payment.CreatedAt, sql.NullTime{Time: payment.UpdatedAt, Valid: !payment.UpdatedAt.IsZero()},
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save payment %s: %s", payment.PaymentID, err.Error()))
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	query := "SELECT " + paymentColumns + " FROM payments WHERE payment_id = $1"
	payment, err := s.scanPayment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.NotFound("payment %s not found", id)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

func (s *PostgreSQLStore) GetPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	query := "SELECT " + paymentColumns + " FROM payments WHERE gateway_order_id = $1"
	payment, err := s.scanPayment(s.db.QueryRowContext(ctx, query, gatewayOrderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.NotFound("payment for gateway order %s not found", gatewayOrderID)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

func (s *PostgreSQLStore) GetOpenPaymentByBooking(ctx context.Context, bookingID string) (*models.Payment, error) {
	query := "SELECT " + paymentColumns + ` FROM payments
    WHERE booking_id = $1 AND status IN ('created', 'pending')
    ORDER BY created_at DESC LIMIT 1`
	payment, err := s.scanPayment(s.db.QueryRowContext(ctx, query, bookingID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.NotFound("no open payment for booking %s", bookingID)
		}
		return nil, fmt.Errorf("failed to get open payment: %w", err)
	}
	return payment, nil
}

func (s *PostgreSQLStore) ListPayments(ctx context.Context, bookingID string, limit, offset int) ([]*models.Payment, error) {
	query := "SELECT " + paymentColumns + ` FROM payments
    WHERE booking_id = $1
    ORDER BY created_at DESC
    LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, bookingID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment := &models.Payment{}
		var raw []byte
		var updatedAt sql.NullTime
		err := rows.Scan(
			&payment.PaymentID, &payment.BookingID, &payment.Gateway, &payment.GatewayOrderID,
			&payment.AmountMinor, &payment.Currency, &payment.Status, &raw, &payment.CreatedAt, &updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payment.RawMetadata = raw
		if updatedAt.Valid {
			payment.UpdatedAt = updatedAt.Time
		}
		payments = append(payments, payment)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return payments, nil
}

func (s *PostgreSQLStore) ResolvePayment(ctx context.Context, gatewayOrderID string, status models.PaymentStatus, raw json.RawMessage) (bool, error) {
	query := `
    UPDATE payments SET status = $1, raw_metadata = $2, updated_at = $3
    WHERE gateway_order_id = $4 AND status IN ('created', 'pending')
    `

	res, err := s.db.ExecContext(ctx, query, status, []byte(raw), time.Now().UTC(), gatewayOrderID)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to resolve payment %s: %s", gatewayOrderID, err.Error()))
		return false, fmt.Errorf("failed to resolve payment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	applied := rows > 0
	if applied {
		s.log.LogDatabase("UPDATE", "payments", fmt.Sprintf("Payment %s resolved to %s", gatewayOrderID, status))
	}
	return applied, nil
}

func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}

func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}
