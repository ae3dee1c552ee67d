package db

import (
	"context"
	"fmt"

	"cardroom/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return nil
}

// CreateUser inserts a new user with a starting balance
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string, balance int64) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO users (username, password_hash, balance) VALUES ($1, $2, $3) RETURNING id, username, password_hash, balance, created_at",
		username, passwordHash, balance).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Balance, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash, balance, created_at FROM users WHERE username = $1",
		username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Balance, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// LoadUsers retrieves every user. Called once at startup to seed the ledger.
func (db *DB) LoadUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, username, password_hash, balance, created_at FROM users ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Balance, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// SaveUserBalance writes a user's balance. The ledger calls this inside
// every mutation, before the mutation is considered committed.
func (db *DB) SaveUserBalance(ctx context.Context, userID, balance int64) error {
	tag, err := db.Pool.Exec(ctx, "UPDATE users SET balance = $1 WHERE id = $2", balance, userID)
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}

// SaveGiveaway upserts a giveaway, entrants included.
func (db *DB) SaveGiveaway(ctx context.Context, g *models.Giveaway) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO giveaways (id, host_id, amount, entrant_ids, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET entrant_ids = $4, status = $5
	`, g.ID, g.HostID, g.Amount, g.EntrantIDs, g.Status, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save giveaway: %w", err)
	}
	return nil
}

// LoadOpenGiveaways retrieves still-open giveaways in queue order. Called
// once at startup to restore the scheduler queue.
func (db *DB) LoadOpenGiveaways(ctx context.Context) ([]*models.Giveaway, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT g.id, g.host_id, u.username, g.amount, g.entrant_ids, g.status, g.created_at
		FROM giveaways g JOIN users u ON g.host_id = u.id
		WHERE g.status = 'open'
		ORDER BY g.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load giveaways: %w", err)
	}
	defer rows.Close()

	var giveaways []*models.Giveaway
	for rows.Next() {
		g := &models.Giveaway{}
		if err := rows.Scan(&g.ID, &g.HostID, &g.HostName, &g.Amount, &g.EntrantIDs, &g.Status, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan giveaway: %w", err)
		}
		giveaways = append(giveaways, g)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return giveaways, nil
}
