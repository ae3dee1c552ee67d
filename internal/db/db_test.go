package db

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"cardroom/internal/models"
)

var testDB *DB

func TestMain(m *testing.M) {
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		// No database available; the suite is integration-only.
		fmt.Fprintln(os.Stderr, "DATABASE_URL not set, skipping db tests")
		os.Exit(0)
	}

	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Apply migration if not already applied
	migration, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to read migration: %v\n", err)
		os.Exit(1)
	}
	_, err = pool.Exec(context.Background(), string(migration))
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		fmt.Fprintf(os.Stderr, "Unable to apply migration: %v\n", err)
		os.Exit(1)
	}

	testDB = &DB{Pool: pool}
	_, err = pool.Exec(context.Background(), "TRUNCATE TABLE users, giveaways RESTART IDENTITY CASCADE")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to truncate tables: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func TestDB_CreateUserAndLoad(t *testing.T) {
	testDB.Pool.Exec(context.Background(), "TRUNCATE TABLE users, giveaways RESTART IDENTITY CASCADE")

	user, err := testDB.CreateUser(context.Background(), "alice", "hash", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Balance != 100 {
		t.Errorf("expected balance 100, got %d", user.Balance)
	}

	// Duplicate usernames are rejected by the unique constraint
	if _, err := testDB.CreateUser(context.Background(), "alice", "hash", 100); err == nil {
		t.Errorf("expected error for duplicate username, got nil")
	}

	users, err := testDB.LoadUsers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 1 || users[0].Username != "alice" {
		t.Errorf("expected one user alice, got %+v", users)
	}
}

func TestDB_SaveUserBalance(t *testing.T) {
	testDB.Pool.Exec(context.Background(), "TRUNCATE TABLE users, giveaways RESTART IDENTITY CASCADE")
	testDB.Pool.Exec(context.Background(), "INSERT INTO users (username, password_hash, balance) VALUES ('alice', 'hash', 100)")

	if err := testDB.SaveUserBalance(context.Background(), 1, 70); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var balance int64
	err := testDB.Pool.QueryRow(context.Background(), "SELECT balance FROM users WHERE id=1").Scan(&balance)
	if err != nil || balance != 70 {
		t.Errorf("balance not stored: err=%v, balance=%d", err, balance)
	}

	if err := testDB.SaveUserBalance(context.Background(), 999, 70); err == nil {
		t.Errorf("expected error for unknown user, got nil")
	}
}

func TestDB_GiveawayRoundTrip(t *testing.T) {
	testDB.Pool.Exec(context.Background(), "TRUNCATE TABLE users, giveaways RESTART IDENTITY CASCADE")
	testDB.Pool.Exec(context.Background(), "INSERT INTO users (username, password_hash, balance) VALUES ('alice', 'hash', 100), ('bob', 'hash', 100)")

	open, err := testDB.LoadOpenGiveaways(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected empty table, got %d giveaways", len(open))
	}

	g := &models.Giveaway{ID: 1, HostID: 1, Amount: 25, EntrantIDs: []int64{}, Status: models.GiveawayOpen}
	if err := testDB.SaveGiveaway(context.Background(), g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Upsert with entrants
	g.EntrantIDs = []int64{2}
	if err := testDB.SaveGiveaway(context.Background(), g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	open, err = testDB.LoadOpenGiveaways(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open giveaway, got %d", len(open))
	}
	if open[0].HostName != "alice" || len(open[0].EntrantIDs) != 1 || open[0].EntrantIDs[0] != 2 {
		t.Errorf("round trip mismatch: %+v", open[0])
	}

	// Closed giveaways are not restored
	g.Status = models.GiveawayClosed
	if err := testDB.SaveGiveaway(context.Background(), g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	open, err = testDB.LoadOpenGiveaways(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("expected closed giveaway to be excluded, got %d", len(open))
	}
}
