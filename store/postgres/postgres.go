/*
Package postgres provides a PostgreSQL-backed implementation of the storage interfaces.

PURPOSE:
  Same contract as store/sqlite for deployments with many concurrent
  sessions. Schema lives in embedded goose migrations (migrations/).

ISOLATION:
  WithTx runs every transaction at SERIALIZABLE. PostgreSQL may abort one of
  two conflicting transactions with SQLSTATE 40001 (or 40P01 on deadlock);
  both map to rental.ErrSerializationConflict so callers can re-run via
  rental.Retry. A unique violation on idx_rentals_open_movie maps to
  rental.ErrMovieAlreadyRented.

USAGE:
  pool, err := postgres.Connect(ctx, cfg)
  if err != nil {
      return err
  }
  if err := postgres.Migrate(ctx, pool, cfg, log); err != nil {
      return err
  }
  store := postgres.New(pool)
  defer store.Close()

SEE ALSO:
  - store/sqlite: Embedded single-file backend
  - rental/store.go: Interface definitions
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/videostore/rental"
)

const openRentalIndex = "idx_rentals_open_movie"

// Store implements all storage interfaces using a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the connection. Used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// =============================================================================
// TRANSACTIONAL STORE (rental.LedgerStore.WithTx)
// =============================================================================

// WithTx executes fn in a SERIALIZABLE transaction.
func (s *Store) WithTx(ctx context.Context, fn func(rental.LedgerTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	return nil
}

type txStore struct {
	tx pgx.Tx
}

func (ts *txStore) SubscriptionID(ctx context.Context, customerID rental.CustomerID) (rental.PlanID, error) {
	var planID rental.PlanID
	err := ts.tx.QueryRow(ctx,
		"SELECT plan_id FROM customers WHERE id = $1", customerID,
	).Scan(&planID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("customer %d: %w", customerID, rental.ErrCustomerNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read subscription: %w", classify(err))
	}
	return planID, nil
}

func (ts *txStore) MaxRentals(ctx context.Context, planID rental.PlanID) (int, bool, error) {
	var limit int
	err := ts.tx.QueryRow(ctx,
		"SELECT max_rentals FROM plans WHERE id = $1", planID,
	).Scan(&limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read plan: %w", classify(err))
	}
	return limit, true, nil
}

func (ts *txStore) OpenRentalCount(ctx context.Context, customerID rental.CustomerID) (int, error) {
	var count int
	err := ts.tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM rentals WHERE customer_id = $1 AND status = 'open'", customerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rentals: %w", classify(err))
	}
	return count, nil
}

func (ts *txStore) Renter(ctx context.Context, movieID rental.MovieID) (rental.CustomerID, error) {
	var customerID rental.CustomerID
	err := ts.tx.QueryRow(ctx,
		"SELECT customer_id FROM rentals WHERE movie_id = $1 AND status = 'open'", movieID,
	).Scan(&customerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return rental.NoCustomer, nil
	}
	if err != nil {
		return rental.NoCustomer, fmt.Errorf("failed to read renter: %w", classify(err))
	}
	return customerID, nil
}

func (ts *txStore) OpenRentalMovieIDs(ctx context.Context, customerID rental.CustomerID) ([]rental.MovieID, error) {
	rows, err := ts.tx.Query(ctx,
		"SELECT movie_id FROM rentals WHERE customer_id = $1 AND status = 'open' ORDER BY movie_id",
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rentals: %w", classify(err))
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[rental.MovieID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan rentals: %w", classify(err))
	}
	return ids, nil
}

func (ts *txStore) InsertRental(ctx context.Context, r rental.Rental) error {
	_, err := ts.tx.Exec(ctx, `
		INSERT INTO rentals (id, movie_id, customer_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.ID, r.MovieID, r.CustomerID, string(r.Status), r.CreatedAt)
	if err != nil {
		if isOpenRentalConflict(err) {
			return rental.ErrMovieAlreadyRented
		}
		return fmt.Errorf("failed to insert rental: %w", classify(err))
	}
	return nil
}

func (ts *txStore) CloseRental(ctx context.Context, movieID rental.MovieID, customerID rental.CustomerID) error {
	tag, err := ts.tx.Exec(ctx, `
		UPDATE rentals SET status = 'closed', closed_at = $1
		WHERE movie_id = $2 AND customer_id = $3 AND status = 'open'
	`, time.Now().UTC(), movieID, customerID)
	if err != nil {
		return fmt.Errorf("failed to close rental: %w", classify(err))
	}
	if n := tag.RowsAffected(); n != 1 {
		return fmt.Errorf("failed to close rental: %d rows matched", n)
	}
	return nil
}

func (ts *txStore) UpdateSubscription(ctx context.Context, customerID rental.CustomerID, planID rental.PlanID) error {
	tag, err := ts.tx.Exec(ctx,
		"UPDATE customers SET plan_id = $1 WHERE id = $2", planID, customerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", customerID, rental.ErrCustomerNotFound)
	}
	return nil
}

func (ts *txStore) IsValidMovie(ctx context.Context, movieID rental.MovieID) (bool, error) {
	var exists bool
	err := ts.tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM movies WHERE id = $1)", movieID,
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
	err := s.pool.QueryRow(ctx,
		"SELECT id, login, password_hash, first_name, last_name, plan_id FROM customers WHERE login = $1",
		login,
	).Scan(&c.ID, &c.Login, &hash, &c.FirstName, &c.LastName, &c.PlanID)
	if errors.Is(err, pgx.ErrNoRows) {
		return rental.Customer{}, nil, rental.ErrCustomerNotFound
	}
	if err != nil {
		return rental.Customer{}, nil, fmt.Errorf("failed to read customer: %w", err)
	}
	return c, hash, nil
}

func (s *Store) Customer(ctx context.Context, id rental.CustomerID) (rental.Customer, error) {
	var c rental.Customer
	err := s.pool.QueryRow(ctx,
		"SELECT id, login, first_name, last_name, plan_id FROM customers WHERE id = $1", id,
	).Scan(&c.ID, &c.Login, &c.FirstName, &c.LastName, &c.PlanID)
	if errors.Is(err, pgx.ErrNoRows) {
		return rental.Customer{}, fmt.Errorf("customer %d: %w", id, rental.ErrCustomerNotFound)
	}
	if err != nil {
		return rental.Customer{}, fmt.Errorf("failed to read customer: %w", err)
	}
	return c, nil
}

func (s *Store) Plan(ctx context.Context, id rental.PlanID) (rental.Plan, error) {
	p, err := scanPlan(s.pool.QueryRow(ctx,
		"SELECT id, name, max_rentals, price::text FROM plans WHERE id = $1", id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return rental.Plan{}, fmt.Errorf("plan %d: %w", id, rental.ErrPlanNotFound)
	}
	return p, err
}

func (s *Store) Plans(ctx context.Context) ([]rental.Plan, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, max_rentals, price::text FROM plans ORDER BY id")
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
	rows, err := s.pool.Query(ctx, `
		SELECT id, movie_id, customer_id, status, created_at
		FROM rentals
		WHERE customer_id = $1 AND status = 'open'
		ORDER BY created_at ASC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rentals: %w", err)
	}
	defer rows.Close()

	var rentals []rental.Rental
	for rows.Next() {
		var (
			r      rental.Rental
			status string
		)
		if err := rows.Scan(&r.ID, &r.MovieID, &r.CustomerID, &status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rental: %w", err)
		}
		r.Status = rental.RentalStatus(status)
		r.CreatedAt = r.CreatedAt.UTC()
		rentals = append(rentals, r)
	}
	return rentals, rows.Err()
}

// =============================================================================
// AUDIT (rental.Auditable)
// =============================================================================

// FindViolations scans for double rentals and customers over capacity.
func (s *Store) FindViolations(ctx context.Context) ([]rental.Violation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT 'double_rental', movie_id, 0, COUNT(*), 1
		FROM rentals
		WHERE status = 'open'
		GROUP BY movie_id
		HAVING COUNT(*) > 1
		UNION ALL
		SELECT 'over_capacity', 0, c.id, COUNT(r.id), p.max_rentals
		FROM customers c
		JOIN plans p ON p.id = c.plan_id
		JOIN rentals r ON r.customer_id = c.id AND r.status = 'open'
		GROUP BY c.id, p.max_rentals
		HAVING COUNT(r.id) > p.max_rentals
		ORDER BY 1, 2, 3
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan violations: %w", err)
	}
	defer rows.Close()

	var violations []rental.Violation
	for rows.Next() {
		var (
			v    rental.Violation
			kind string
		)
		if err := rows.Scan(&kind, &v.MovieID, &v.CustomerID, &v.Count, &v.Limit); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		v.Kind = rental.ViolationKind(kind)
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func scanPlan(row pgx.Row) (rental.Plan, error) {
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

// classify maps serialization failures and deadlocks to
// rental.ErrSerializationConflict.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return errors.Join(rental.ErrSerializationConflict, err)
	}
	return err
}

func isOpenRentalConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == openRentalIndex
}
