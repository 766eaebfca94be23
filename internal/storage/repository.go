package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"gearwatch/internal/config"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrBadToken indicates a continuation token this store did not issue.
	ErrBadToken = errors.New("storage: malformed continuation token")
)

const (
	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Repository provides access to the url_records source table and the
// price_history sink table. Table names come from configuration; they are
// validated as identifiers before interpolation.
type Repository struct {
	pool     *pgxpool.Pool
	pageSize int

	scanPageSQL     string
	upsertSQL       string
	listRecentSQL   string
	listBetweenSQL  string
	listForSQL      string
	countHistorySQL string
}

// NewRepository wires a pgx pool into a Repository.
func NewRepository(pool *pgxpool.Pool, cfg config.DatabaseConfig) *Repository {
	pageSize := cfg.ScanPageSize
	if pageSize <= 0 {
		pageSize = 200
	}

	return &Repository{
		pool:     pool,
		pageSize: pageSize,
		scanPageSQL: fmt.Sprintf(`SELECT id, seller, url, sku, attrs
    FROM %s
    WHERE id > $1
    ORDER BY id
    LIMIT $2;`, cfg.SourceTable),
		upsertSQL: fmt.Sprintf(`INSERT INTO %s (
        seller,
        url,
        sku,
        price,
        observed_at,
        status,
        error,
        attrs
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (seller, url, observed_at) DO UPDATE
    SET
        sku    = EXCLUDED.sku,
        price  = EXCLUDED.price,
        status = EXCLUDED.status,
        error  = EXCLUDED.error,
        attrs  = EXCLUDED.attrs;`, cfg.HistoryTable),
		listRecentSQL: fmt.Sprintf(`SELECT seller, url, sku, price::text, observed_at, status, error, attrs
    FROM %s
    ORDER BY observed_at DESC
    LIMIT $1;`, cfg.HistoryTable),
		listBetweenSQL: fmt.Sprintf(`SELECT seller, url, sku, price::text, observed_at, status, error, attrs
    FROM %s
    WHERE observed_at >= $1
      AND observed_at < $2
    ORDER BY observed_at;`, cfg.HistoryTable),
		listForSQL: fmt.Sprintf(`SELECT seller, url, sku, price::text, observed_at, status, error, attrs
    FROM %s
    WHERE seller = $1
      AND url = $2
      AND observed_at >= $3
      AND observed_at < $4
    ORDER BY observed_at;`, cfg.HistoryTable),
		countHistorySQL: fmt.Sprintf(`SELECT COUNT(*) FROM %s;`, cfg.HistoryTable),
	}
}

// Close releases the underlying pool resources.
func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

func (r *Repository) getPool() (*pgxpool.Pool, error) {
	if r == nil || r.pool == nil {
		return nil, ErrNotConfigured
	}
	return r.pool, nil
}

// ScanPage returns one page of URL records starting after the given
// continuation token. An empty token starts the scan; an empty next token
// signals the final page.
func (r *Repository) ScanPage(ctx context.Context, token string) ([]URLRecord, string, error) {
	pool, err := r.getPool()
	if err != nil {
		return nil, "", err
	}

	after := int64(0)
	if token != "" {
		after, err = strconv.ParseInt(token, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %q", ErrBadToken, token)
		}
	}

	rows, queryErr := pool.Query(ctx, r.scanPageSQL, after, r.pageSize)
	if queryErr != nil {
		return nil, "", fmt.Errorf("scan url records: %w", queryErr)
	}
	defer rows.Close()

	records := make([]URLRecord, 0, r.pageSize)
	for rows.Next() {
		var (
			rec      URLRecord
			attrsRaw []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Seller, &rec.URL, &rec.SKU, &attrsRaw); err != nil {
			return nil, "", err
		}
		if len(attrsRaw) > 0 {
			if err := json.Unmarshal(attrsRaw, &rec.Attrs); err != nil {
				return nil, "", fmt.Errorf("decode url record attrs: %w", err)
			}
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, "", rows.Err()
	}

	next := ""
	if len(records) == r.pageSize {
		next = strconv.FormatInt(records[len(records)-1].ID, 10)
	}
	return records, next, nil
}

// UpsertObservation writes one observation, overwriting any previous write
// for the same (seller, url, observed_at) key.
func (r *Repository) UpsertObservation(ctx context.Context, obs PriceObservation) error {
	pool, err := r.getPool()
	if err != nil {
		return err
	}

	var price interface{}
	if obs.Price != nil {
		price = obs.Price.StringFixed(2)
	}

	var errMsg interface{}
	if obs.Error != nil {
		errMsg = *obs.Error
	}

	var attrsRaw []byte
	if len(obs.Attrs) > 0 {
		attrsRaw, err = json.Marshal(obs.Attrs)
		if err != nil {
			return fmt.Errorf("encode observation attrs: %w", err)
		}
	}

	_, execErr := pool.Exec(ctx, r.upsertSQL,
		obs.Seller,
		obs.URL,
		obs.SKU,
		price,
		obs.ObservedAt,
		obs.Status,
		errMsg,
		attrsRaw,
	)
	if execErr != nil {
		return fmt.Errorf("upsert observation: %w", execErr)
	}
	return nil
}

// ListRecentObservations lists the most recent observations.
func (r *Repository) ListRecentObservations(ctx context.Context, limit int) ([]PriceObservation, error) {
	pool, err := r.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, r.listRecentSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent observations: %w", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows, limit)
}

// ListObservationsBetween lists observations within a time window.
func (r *Repository) ListObservationsBetween(ctx context.Context, from, to time.Time) ([]PriceObservation, error) {
	pool, err := r.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, r.listBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list observations between: %w", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows, 0)
}

// ListObservationsFor lists the history of a single (seller, url) pair.
func (r *Repository) ListObservationsFor(ctx context.Context, seller, url string, from, to time.Time) ([]PriceObservation, error) {
	pool, err := r.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, r.listForSQL, seller, url, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list observations for %s %s: %w", seller, url, queryErr)
	}
	defer rows.Close()

	return collectObservations(rows, 0)
}

// CountObservations counts stored observations.
func (r *Repository) CountObservations(ctx context.Context) (int64, error) {
	pool, err := r.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, r.countHistorySQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count observations: %w", scanErr)
	}
	return count, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := r.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func collectObservations(rows pgx.Rows, hint int) ([]PriceObservation, error) {
	observations := make([]PriceObservation, 0, hint)
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return observations, nil
}

func scanObservation(rows pgx.Rows) (PriceObservation, error) {
	var (
		obs      PriceObservation
		priceStr sql.NullString
		errMsg   sql.NullString
		attrsRaw []byte
	)

	if err := rows.Scan(
		&obs.Seller,
		&obs.URL,
		&obs.SKU,
		&priceStr,
		&obs.ObservedAt,
		&obs.Status,
		&errMsg,
		&attrsRaw,
	); err != nil {
		return PriceObservation{}, err
	}

	if priceStr.Valid {
		price, err := decimal.NewFromString(priceStr.String)
		if err != nil {
			return PriceObservation{}, fmt.Errorf("parse stored price: %w", err)
		}
		obs.Price = &price
	}
	if errMsg.Valid {
		msg := errMsg.String
		obs.Error = &msg
	}
	if len(attrsRaw) > 0 {
		if err := json.Unmarshal(attrsRaw, &obs.Attrs); err != nil {
			return PriceObservation{}, fmt.Errorf("decode observation attrs: %w", err)
		}
	}

	return obs, nil
}

var _ AdvisoryLocker = (*Repository)(nil)
