/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the rental ledger (rental.LedgerStore), the movie catalog
  (catalog.Store) and renter lookups (catalog.Availability) in a single
  SQLite database.

INTERFACES IMPLEMENTED:
  rental.LedgerStore:   Scoped transactions + session reads
  rental.Auditable:     Invariant scans
  catalog.Store:        Title search and credits
  catalog.Availability: Current renters

KEY TABLES:
  plans:      Subscription plans (reference data)
  customers:  Customers and their current plan
  rentals:    Open and closed rentals (never deleted)
  movies, directors, movie_directors, actors, casts: Catalog

INDEXES:
  - idx_rentals_open_movie: UNIQUE on movie_id WHERE status = 'open'.
    Second line of defence for "one open rental per movie".
  - idx_rentals_customer_status: open-rental counts (hot path)

ISOLATION:
  SQLite transactions are serializable. The DSN sets _txlock=immediate so
  BEGIN takes the write lock up front; two concurrent Rent transactions
  queue on the lock instead of both reading "no renter" and racing to write.
  The pool is limited to one connection, so ":memory:" databases are shared
  by every caller and WithTx never interleaves with another writer.

USAGE:
  store, err := sqlite.New("./videostore.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  core := rental.NewCore(store)

SEE ALSO:
  - rental/store.go: Interface definitions
  - catalog.go: Catalog queries
  - seed.go: Reference-data writes and Reset
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/videostore/rental"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection. Used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Subscription plans
	CREATE TABLE IF NOT EXISTS plans (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		max_rentals INTEGER NOT NULL CHECK (max_rentals > 0),
		price TEXT NOT NULL
	);

	-- Customers
	CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY,
		login TEXT NOT NULL UNIQUE,
		password_hash BLOB NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		plan_id INTEGER NOT NULL REFERENCES plans(id)
	);

	-- Catalog
	CREATE TABLE IF NOT EXISTS movies (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		year INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_movies_name
		ON movies(name);

	CREATE TABLE IF NOT EXISTS directors (
		id INTEGER PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS movie_directors (
		movie_id INTEGER NOT NULL REFERENCES movies(id),
		director_id INTEGER NOT NULL REFERENCES directors(id),
		PRIMARY KEY (movie_id, director_id)
	);

	CREATE TABLE IF NOT EXISTS actors (
		id INTEGER PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS casts (
		movie_id INTEGER NOT NULL REFERENCES movies(id),
		actor_id INTEGER NOT NULL REFERENCES actors(id),
		role TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (movie_id, actor_id, role)
	);

	-- Rentals (closed, never deleted)
	CREATE TABLE IF NOT EXISTS rentals (
		id TEXT PRIMARY KEY,
		movie_id INTEGER NOT NULL REFERENCES movies(id),
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		status TEXT NOT NULL CHECK (status IN ('open', 'closed')),
		created_at TEXT NOT NULL,
		closed_at TEXT
	);

	-- CRITICAL: at most one open rental per movie
	CREATE UNIQUE INDEX IF NOT EXISTS idx_rentals_open_movie
		ON rentals(movie_id) WHERE status = 'open';

	CREATE INDEX IF NOT EXISTS idx_rentals_customer_status
		ON rentals(customer_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (rental.LedgerStore.WithTx)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(rental.LedgerTx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	return nil
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SubscriptionID(ctx context.Context, customerID rental.CustomerID) (rental.PlanID, error) {
	var planID rental.PlanID
	err := ts.tx.QueryRowContext(ctx,
		"SELECT plan_id FROM customers WHERE id = ?", customerID,
	).Scan(&planID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("customer %d: %w", customerID, rental.ErrCustomerNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read subscription: %w", classify(err))
	}
	return planID, nil
}

func (ts *txStore) MaxRentals(ctx context.Context, planID rental.PlanID) (int, bool, error) {
	var limit int
	err := ts.tx.QueryRowContext(ctx,
		"SELECT max_rentals FROM plans WHERE id = ?", planID,
	).Scan(&limit)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read plan: %w", classify(err))
	}
	return limit, true, nil
}

func (ts *txStore) OpenRentalCount(ctx context.Context, customerID rental.CustomerID) (int, error) {
	var count int
	err := ts.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rentals WHERE customer_id = ? AND status = 'open'", customerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rentals: %w", classify(err))
	}
	return count, nil
}

func (ts *txStore) Renter(ctx context.Context, movieID rental.MovieID) (rental.CustomerID, error) {
	var customerID rental.CustomerID
	err := ts.tx.QueryRowContext(ctx,
		"SELECT customer_id FROM rentals WHERE movie_id = ? AND status = 'open'", movieID,
	).Scan(&customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return rental.NoCustomer, nil
	}
	if err != nil {
		return rental.NoCustomer, fmt.Errorf("failed to read renter: %w", classify(err))
	}
	return customerID, nil
}

func (ts *txStore) OpenRentalMovieIDs(ctx context.Context, customerID rental.CustomerID) ([]rental.MovieID, error) {
	rows, err := ts.tx.QueryContext(ctx,
		"SELECT movie_id FROM rentals WHERE customer_id = ? AND status = 'open' ORDER BY movie_id",
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rentals: %w", classify(err))
	}
	defer rows.Close()

	var ids []rental.MovieID
	for rows.Next() {
		var id rental.MovieID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan rental: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (ts *txStore) InsertRental(ctx context.Context, r rental.Rental) error {
	_, err := ts.tx.ExecContext(ctx, `
		INSERT INTO rentals (id, movie_id, customer_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.MovieID, r.CustomerID, r.Status, r.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isOpenRentalConflict(err) {
			return rental.ErrMovieAlreadyRented
		}
		return fmt.Errorf("failed to insert rental: %w", classify(err))
	}
	return nil
}

func (ts *txStore) CloseRental(ctx context.Context, movieID rental.MovieID, customerID rental.CustomerID) error {
	res, err := ts.tx.ExecContext(ctx, `
		UPDATE rentals SET status = 'closed', closed_at = ?
		WHERE movie_id = ? AND customer_id = ? AND status = 'open'
	`, time.Now().UTC().Format(time.RFC3339Nano), movieID, customerID)
	if err != nil {
		return fmt.Errorf("failed to close rental: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("failed to close rental: %d rows matched", n)
	}
	return nil
}

func (ts *txStore) UpdateSubscription(ctx context.Context, customerID rental.CustomerID, planID rental.PlanID) error {
	res, err := ts.tx.ExecContext(ctx,
		"UPDATE customers SET plan_id = ? WHERE id = ?", planID, customerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("customer %d: %w", customerID, rental.ErrCustomerNotFound)
	}
	return nil
}

func (ts *txStore) IsValidMovie(ctx context.Context, movieID rental.MovieID) (bool, error) {
	var exists bool
	err := ts.tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM movies WHERE id = ?)", movieID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check movie: %w", classify(err))
	}
	return exists, nil
}

// =============================================================================
// SESSION READS (auto-commit)
// =============================================================================

func (s *Store) CustomerByLogin(ctx context.Context, login string) (rental.Customer, []byte, error) {
	var (
		c    rental.Customer
		hash []byte
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, login, password_hash, first_name, last_name, plan_id FROM customers WHERE login = ?",
		login,
	).Scan(&c.ID, &c.Login, &hash, &c.FirstName, &c.LastName, &c.PlanID)
	if errors.Is(err, sql.ErrNoRows) {
		return rental.Customer{}, nil, rental.ErrCustomerNotFound
	}
	if err != nil {
		return rental.Customer{}, nil, fmt.Errorf("failed to read customer: %w", err)
	}
	return c, hash, nil
}

func (s *Store) Customer(ctx context.Context, id rental.CustomerID) (rental.Customer, error) {
	var c rental.Customer
	err := s.db.QueryRowContext(ctx,
		"SELECT id, login, first_name, last_name, plan_id FROM customers WHERE id = ?", id,
	).Scan(&c.ID, &c.Login, &c.FirstName, &c.LastName, &c.PlanID)
	if errors.Is(err, sql.ErrNoRows) {
		return rental.Customer{}, fmt.Errorf("customer %d: %w", id, rental.ErrCustomerNotFound)
	}
	if err != nil {
		return rental.Customer{}, fmt.Errorf("failed to read customer: %w", err)
	}
	return c, nil
}

func (s *Store) Plan(ctx context.Context, id rental.PlanID) (rental.Plan, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, max_rentals, price FROM plans WHERE id = ?", id,
	)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rental.Plan{}, fmt.Errorf("plan %d: %w", id, rental.ErrPlanNotFound)
	}
	return p, err
}

func (s *Store) Plans(ctx context.Context) ([]rental.Plan, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, max_rentals, price FROM plans ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []rental.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *Store) OpenRentals(ctx context.Context, customerID rental.CustomerID) ([]rental.Rental, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, movie_id, customer_id, status, created_at
		FROM rentals
		WHERE customer_id = ? AND status = 'open'
		ORDER BY created_at ASC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rentals: %w", err)
	}
	defer rows.Close()

	var rentals []rental.Rental
	for rows.Next() {
		var (
			r         rental.Rental
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.MovieID, &r.CustomerID, &r.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan rental: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		rentals = append(rentals, r)
	}
	return rentals, rows.Err()
}

// =============================================================================
// AUDIT (rental.Auditable)
// =============================================================================

// FindViolations scans for double rentals and customers over capacity.
func (s *Store) FindViolations(ctx context.Context) ([]rental.Violation, error) {
	var violations []rental.Violation

	rows, err := s.db.QueryContext(ctx, `
		SELECT movie_id, COUNT(*)
		FROM rentals
		WHERE status = 'open'
		GROUP BY movie_id
		HAVING COUNT(*) > 1
		ORDER BY movie_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan double rentals: %w", err)
	}
	for rows.Next() {
		v := rental.Violation{Kind: rental.ViolationDoubleRental, Limit: 1}
		if err := rows.Scan(&v.MovieID, &v.Count); err != nil {
			rows.Close()
			return nil, err
		}
		violations = append(violations, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT c.id, COUNT(r.id), p.max_rentals
		FROM customers c
		JOIN plans p ON p.id = c.plan_id
		JOIN rentals r ON r.customer_id = c.id AND r.status = 'open'
		GROUP BY c.id, p.max_rentals
		HAVING COUNT(r.id) > p.max_rentals
		ORDER BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan capacity: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		v := rental.Violation{Kind: rental.ViolationOverCapacity}
		if err := rows.Scan(&v.CustomerID, &v.Count, &v.Limit); err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (rental.Plan, error) {
	var (
		p     rental.Plan
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.MaxRentals, &price); err != nil {
		return p, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return p, fmt.Errorf("plan %d: bad price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return p, nil
}

// classify maps lock contention to rental.ErrSerializationConflict.
func classify(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return errors.Join(rental.ErrSerializationConflict, err)
	}
	return err
}

func isOpenRentalConflict(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(sqliteErr.Error(), "rentals.movie_id")
}
