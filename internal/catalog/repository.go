package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	_ "modernc.org/sqlite"
)

var ErrProductNotFound = fmt.Errorf("%w: product not found", domain.ErrValidation)

// Repository is the SQLite-backed product catalog.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// in-memory databases live per connection
	db.SetMaxOpenConns(1)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

const productColumns = `id, name, description, sku, category, price_cents, image_url, available, created_at`

func (r *Repository) GetAllProducts(ctx context.Context) ([]*Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SetAvailability marks a product as purchasable or not.
func (r *Repository) SetAvailability(ctx context.Context, id int64, available bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE products SET available = ? WHERE id = ?`, available, id)
	if err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) SetPrice(ctx context.Context, id int64, price domain.Money) error {
	res, err := r.db.ExecContext(ctx, `UPDATE products SET price_cents = ? WHERE id = ?`, int64(price), id)
	if err != nil {
		return fmt.Errorf("failed to update price: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (*Product, error) {
	p := &Product{}
	var price int64
	err := s.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.SKU,
		&p.Category,
		&price,
		&p.ImageURL,
		&p.Available,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	p.Price = domain.Money(price)
	return p, nil
}
