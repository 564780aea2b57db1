package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type PostgresOrderRepository struct {
	db *sqlx.DB
}

func NewPostgresOrderRepository(db *sqlx.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

func (r *PostgresOrderRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db.DB, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

type orderRow struct {
	ID                 uuid.UUID  `db:"id"`
	OrderNumber        string     `db:"order_number"`
	CheckoutID         uuid.UUID  `db:"checkout_id"`
	UserID             string     `db:"user_id"`
	Items              string     `db:"items"`
	Subtotal           int64      `db:"subtotal"`
	TaxAmount          int64      `db:"tax_amount"`
	ShippingAmount     int64      `db:"shipping_amount"`
	DiscountAmount     int64      `db:"discount_amount"`
	TotalPrice         int64      `db:"total_price"`
	Currency           string     `db:"currency"`
	PromoCode          string     `db:"promo_code"`
	ShippingAddress    string     `db:"shipping_address"`
	BillingAddress     string     `db:"billing_address"`
	CustomerName       string     `db:"customer_name"`
	CustomerEmail      string     `db:"customer_email"`
	ShippingMethodID   string     `db:"shipping_method_id"`
	ShippingMethodName string     `db:"shipping_method_name"`
	TrackingNumber     string     `db:"shipping_tracking_number"`
	EstimatedDelivery  *time.Time `db:"estimated_delivery_date"`
	OrderNotes         string     `db:"order_notes"`
	InternalNotes      string     `db:"internal_notes"`
	PaymentReference   string     `db:"payment_reference"`
	PaymentStatus      string     `db:"payment_status"`
	Status             string     `db:"status"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
	ShippedAt          *time.Time `db:"shipped_at"`
	DeliveredAt        *time.Time `db:"delivered_at"`
}

const orderColumns = `id, order_number, checkout_id, user_id, items, subtotal, tax_amount, shipping_amount,
	discount_amount, total_price, currency, promo_code, shipping_address, billing_address, customer_name,
	customer_email, shipping_method_id, shipping_method_name, shipping_tracking_number, estimated_delivery_date,
	order_notes, internal_notes, payment_reference, payment_status, status, created_at, updated_at, shipped_at,
	delivered_at`

func toRow(o *domain.Order) (*orderRow, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shipping address: %w", err)
	}
	billing, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal billing address: %w", err)
	}

	return &orderRow{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		CheckoutID:         o.CheckoutID,
		UserID:             o.UserID,
		Items:              string(items),
		Subtotal:           o.Subtotal.Int64(),
		TaxAmount:          o.TaxAmount.Int64(),
		ShippingAmount:     o.ShippingAmount.Int64(),
		DiscountAmount:     o.DiscountAmount.Int64(),
		TotalPrice:         o.TotalPrice.Int64(),
		Currency:           o.Currency,
		PromoCode:          o.PromoCode,
		ShippingAddress:    string(shipping),
		BillingAddress:     string(billing),
		CustomerName:       o.ShippingAddress.FullName(),
		CustomerEmail:      strings.ToLower(o.ShippingAddress.Email),
		ShippingMethodID:   o.ShippingMethodID,
		ShippingMethodName: o.ShippingMethodName,
		TrackingNumber:     o.TrackingNumber,
		EstimatedDelivery:  o.EstimatedDelivery,
		OrderNotes:         o.OrderNotes,
		InternalNotes:      o.InternalNotes,
		PaymentReference:   o.PaymentReference,
		PaymentStatus:      string(o.PaymentStatus),
		Status:             string(o.Status),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		ShippedAt:          o.ShippedAt,
		DeliveredAt:        o.DeliveredAt,
	}, nil
}

func (row *orderRow) toDomain() (*domain.Order, error) {
	o := &domain.Order{
		ID:                 row.ID,
		OrderNumber:        row.OrderNumber,
		CheckoutID:         row.CheckoutID,
		UserID:             row.UserID,
		Subtotal:           domain.Money(row.Subtotal),
		TaxAmount:          domain.Money(row.TaxAmount),
		ShippingAmount:     domain.Money(row.ShippingAmount),
		DiscountAmount:     domain.Money(row.DiscountAmount),
		TotalPrice:         domain.Money(row.TotalPrice),
		Currency:           row.Currency,
		PromoCode:          row.PromoCode,
		ShippingMethodID:   row.ShippingMethodID,
		ShippingMethodName: row.ShippingMethodName,
		TrackingNumber:     row.TrackingNumber,
		EstimatedDelivery:  row.EstimatedDelivery,
		OrderNotes:         row.OrderNotes,
		InternalNotes:      row.InternalNotes,
		PaymentReference:   row.PaymentReference,
		PaymentStatus:      domain.PaymentStatus(row.PaymentStatus),
		Status:             domain.OrderStatus(row.Status),
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
		ShippedAt:          row.ShippedAt,
		DeliveredAt:        row.DeliveredAt,
	}
	if err := json.Unmarshal([]byte(row.Items), &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal([]byte(row.ShippingAddress), &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal([]byte(row.BillingAddress), &o.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}
	return o, nil
}

// CreateOrder inserts the order with its first history row and an order.placed outbox event.
// A second order for the same checkout or payment reference yields ErrDuplicateCheckout.
func (r *PostgresOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt

	row, err := toRow(order)
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `INSERT INTO orders (` + orderColumns + `)
			VALUES (:id, :order_number, :checkout_id, :user_id, :items, :subtotal, :tax_amount, :shipping_amount,
				:discount_amount, :total_price, :currency, :promo_code, :shipping_address, :billing_address,
				:customer_name, :customer_email, :shipping_method_id, :shipping_method_name,
				:shipping_tracking_number, :estimated_delivery_date, :order_notes, :internal_notes,
				:payment_reference, :payment_status, :status, :created_at, :updated_at, :shipped_at, :delivered_at)`

		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return mapInsertError(err)
		}

		change := domain.StatusChange{
			OrderNumber: order.OrderNumber,
			To:          order.Status,
			ChangedBy:   "system",
			Reason:      "order placed",
			CreatedAt:   order.CreatedAt,
		}
		if err := insertHistory(ctx, tx, change); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, order.ID.String(), placedEvent(order))
	})
}

func mapInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case "orders_order_number_key":
			return ErrDuplicateNumber
		default:
			return ErrDuplicateCheckout
		}
	}
	return fmt.Errorf("insert order: %w", err)
}

func (r *PostgresOrderRepository) getOne(ctx context.Context, where string, arg any) (*domain.Order, error) {
	var row orderRow
	err := r.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return row.toDomain()
}

func (r *PostgresOrderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *PostgresOrderRepository) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return r.getOne(ctx, `order_number = $1`, number)
}

func (r *PostgresOrderRepository) GetOrderByCheckoutID(ctx context.Context, checkoutID uuid.UUID) (*domain.Order, error) {
	return r.getOne(ctx, `checkout_id = $1`, checkoutID)
}

func (r *PostgresOrderRepository) GetOrderByPaymentReference(ctx context.Context, ref string) (*domain.Order, error) {
	return r.getOne(ctx, `payment_reference = $1`, ref)
}

func (r *PostgresOrderRepository) selectMany(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	orders := make([]*domain.Order, 0, len(rows))
	for i := range rows {
		o, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *PostgresOrderRepository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	return r.selectMany(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *PostgresOrderRepository) ListOrdersByEmail(ctx context.Context, email string) ([]*domain.Order, error) {
	return r.selectMany(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE LOWER(customer_email) = LOWER($1) ORDER BY created_at DESC`, email)
}

func (r *PostgresOrderRepository) ListOrders(ctx context.Context, f OrderFilter) ([]*domain.Order, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if !f.From.IsZero() {
		add("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < ?", f.To)
	}
	if f.Customer != "" {
		add("(customer_email ILIKE ? OR customer_name ILIKE ? OR user_id ILIKE ?)", "%"+f.Customer+"%")
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, max(f.Offset, 0))
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.selectMany(ctx, query, args...)
}

// CompareAndSetStatus applies change only while the order is still in change.From.
// A lost race or a stale caller gets *domain.InvalidTransitionError naming the actual status.
// A non-empty change.TrackingNumber replaces the stored tracking number.
func (r *PostgresOrderRepository) CompareAndSetStatus(ctx context.Context, change domain.StatusChange, at time.Time) (*domain.Order, error) {
	var updated *domain.Order
	change.CreatedAt = at

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `UPDATE orders SET
				status = $3::text,
				updated_at = $4,
				shipped_at = CASE WHEN $3::text = 'shipped' THEN $4 ELSE shipped_at END,
				delivered_at = CASE WHEN $3::text = 'delivered' THEN $4 ELSE delivered_at END,
				shipping_tracking_number = CASE WHEN $5::text <> '' THEN $5::text ELSE shipping_tracking_number END
			WHERE order_number = $1 AND status = $2
			RETURNING ` + orderColumns

		var row orderRow
		err := tx.GetContext(ctx, &row, query,
			change.OrderNumber, string(change.From), string(change.To), at, change.TrackingNumber)
		if errors.Is(err, sql.ErrNoRows) {
			var current string
			errCur := tx.GetContext(ctx, &current, `SELECT status FROM orders WHERE order_number = $1`, change.OrderNumber)
			if errors.Is(errCur, sql.ErrNoRows) {
				return ErrOrderNotFound
			}
			if errCur != nil {
				return fmt.Errorf("query current status: %w", errCur)
			}
			return &domain.InvalidTransitionError{From: domain.OrderStatus(current), To: change.To}
		}
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		o, err := row.toDomain()
		if err != nil {
			return err
		}
		if err := insertHistory(ctx, tx, change); err != nil {
			return err
		}
		if err := insertOutbox(ctx, tx, o.ID.String(), statusChangedEvent(o, change)); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateInternalNotes replaces the staff notes of an order. The status is left alone.
func (r *PostgresOrderRepository) UpdateInternalNotes(ctx context.Context, number, notes string, at time.Time) (*domain.Order, error) {
	var row orderRow
	err := r.db.GetContext(ctx, &row,
		`UPDATE orders SET internal_notes = $2, updated_at = $3 WHERE order_number = $1 RETURNING `+orderColumns,
		number, notes, at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update internal notes: %w", err)
	}
	return row.toDomain()
}

func (r *PostgresOrderRepository) StatusHistory(ctx context.Context, number string) ([]domain.StatusChange, error) {
	var history []domain.StatusChange
	err := r.db.SelectContext(ctx, &history,
		`SELECT order_number, from_status, to_status, changed_by, change_reason, tracking_number, created_at
		 FROM order_status_history WHERE order_number = $1 ORDER BY id`, number)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	return history, nil
}

func (r *PostgresOrderRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	var events []*OutboxEvent
	err := r.db.SelectContext(ctx, &events,
		`SELECT id, aggregate_id, event_type, payload, created_at
		 FROM order_outbox WHERE processed_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	return events, nil
}

func (r *PostgresOrderRepository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE order_outbox SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event %d: %w", id, err)
	}
	return nil
}

func (r *PostgresOrderRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresOrderRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresOrderRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, c domain.StatusChange) error {
	_, err := tx.NamedExecContext(ctx,
		`INSERT INTO order_status_history (order_number, from_status, to_status, changed_by, change_reason, tracking_number, created_at)
		 VALUES (:order_number, :from_status, :to_status, :changed_by, :change_reason, :tracking_number, :created_at)`, c)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func insertOutbox(ctx context.Context, tx *sqlx.Tx, aggregateID string, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_outbox (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		aggregateID, event.EventType, string(payload))
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
