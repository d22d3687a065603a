package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)

	CreateTransaction(ctx context.Context, t Transaction) (Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, patch TransactionPatch) (Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) (Transaction, error)
	ListExpensesBetween(ctx context.Context, userID int64, from, to time.Time) ([]Expense, error)

	CreateCategory(ctx context.Context, c Category) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)

	Now(ctx context.Context) (time.Time, error)
}

// a pgx pool allows the app to reuse and efficiently manage a set of connections to the database,
// rather than opening and closing a new connection for every query.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}

// Migrate applies schema.sql. Every statement in it is idempotent.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const userColumns = `id, name, email, phone_contact, type, password`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.Id, &u.Name, &u.Email, &u.PhoneContact, &u.Type, &u.PasswordHash)
	return u, err
}

func (p *PostgresStore) CreateUser(ctx context.Context, u User) (User, error) {
	query := `
        INSERT INTO users (name, email, phone_contact, type, password)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING ` + userColumns

	created, err := scanUser(p.pool.QueryRow(ctx, query, u.Name, u.Email, u.PhoneContact, u.Type, u.PasswordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, fmt.Errorf("create user %q: %w", u.Email, ErrDuplicateEmail)
		}
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return created, nil
}

func (p *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(p.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("user %q: %w", email, ErrNotFound)
		}
		return User{}, fmt.Errorf("failed to fetch user: %w", err)
	}
	return user, nil
}

const transactionColumns = `id, date, user_id, category_id, location_id, amount`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t    Transaction
		date time.Time
	)
	if err := row.Scan(&t.Id, &date, &t.UserId, &t.CategoryId, &t.LocationId, &t.Amount); err != nil {
		return Transaction{}, err
	}
	t.Date = NewDate(date)
	return t, nil
}

func (p *PostgresStore) CreateTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	query := `
        INSERT INTO transactions (date, user_id, category_id, location_id, amount)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING ` + transactionColumns

	created, err := scanTransaction(p.pool.QueryRow(ctx, query, t.Date.Time, t.UserId, t.CategoryId, t.LocationId, t.Amount))
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to create transaction: %w", err)
	}
	return created, nil
}

func (p *PostgresStore) UpdateTransaction(ctx context.Context, id int64, patch TransactionPatch) (Transaction, error) {
	query := `
        UPDATE transactions
        SET amount = COALESCE($1, amount),
            category_id = COALESCE($2, category_id),
            date = COALESCE($3, date)
        WHERE id = $4
        RETURNING ` + transactionColumns

	var date *time.Time
	if patch.Date != nil {
		date = &patch.Date.Time
	}

	updated, err := scanTransaction(p.pool.QueryRow(ctx, query, patch.Amount, patch.CategoryId, date, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
		}
		return Transaction{}, fmt.Errorf("failed to update transaction %d: %w", id, err)
	}
	return updated, nil
}

func (p *PostgresStore) DeleteTransaction(ctx context.Context, id int64) (Transaction, error) {
	query := `DELETE FROM transactions WHERE id = $1 RETURNING ` + transactionColumns

	deleted, err := scanTransaction(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
		}
		return Transaction{}, fmt.Errorf("failed to delete transaction %d: %w", id, err)
	}
	return deleted, nil
}

// ListExpensesBetween returns the user's transactions dated in [from, to),
// joined with their category.
func (p *PostgresStore) ListExpensesBetween(ctx context.Context, userID int64, from, to time.Time) ([]Expense, error) {
	query := `
        SELECT t.id, t.date, t.user_id, c.category_type_id, t.category_id, c.name, t.amount
        FROM transactions t
        JOIN categories c ON t.category_id = c.id
        WHERE t.user_id = $1
          AND t.date >= $2
          AND t.date < $3
        ORDER BY t.date, t.id;
    `

	rows, err := p.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses for user %d: %w", userID, err)
	}
	defer rows.Close()

	expenses := []Expense{}
	for rows.Next() {
		var (
			e    Expense
			date time.Time
		)
		err := rows.Scan(&e.Id, &date, &e.UserId, &e.CategoryTypeId, &e.CategoryId, &e.Name, &e.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.Date = NewDate(date)
		expenses = append(expenses, e)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return expenses, nil
}

func (p *PostgresStore) CreateCategory(ctx context.Context, c Category) (Category, error) {
	query := `
        INSERT INTO categories (name, category_type_id)
        VALUES ($1, $2)
        RETURNING id, name, category_type_id;
    `

	var created Category
	err := p.pool.QueryRow(ctx, query, c.Name, c.CategoryTypeId).Scan(&created.Id, &created.Name, &created.CategoryTypeId)
	if err != nil {
		return Category{}, fmt.Errorf("failed to create category: %w", err)
	}
	return created, nil
}

func (p *PostgresStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, category_type_id FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.Id, &c.Name, &c.CategoryTypeId); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return categories, nil
}

func (p *PostgresStore) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := p.pool.QueryRow(ctx, `SELECT NOW()`).Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("failed to query current time: %w", err)
	}
	return now, nil
}
