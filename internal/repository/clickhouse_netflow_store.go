package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"NetflowWatch/internal/domain/models"
	domrepo "NetflowWatch/internal/domain/repository"
	applogger "NetflowWatch/pkg/logger"
)

// NetflowSchema returns the idempotent DDL for the netflow tables in database.
func NetflowSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.token_transfers (
			hash String,
			block_number UInt64,
			ts DateTime,
			from_addr String,
			to_addr String,
			value Float64,
			exchange LowCardinality(String)
		) ENGINE = ReplacingMergeTree ORDER BY (exchange, ts, hash, from_addr, to_addr)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.netflow_daily (
			date Date,
			exchange LowCardinality(String),
			inflow Float64,
			outflow Float64,
			netflow Float64,
			roll_mean Nullable(Float64),
			roll_std Nullable(Float64),
			zscore Nullable(Float64),
			updated_at DateTime
		) ENGINE = ReplacingMergeTree(updated_at) ORDER BY (exchange, date)`, database),
	}
}

// ClickHouseNetflowStore implements NetflowStore for ClickHouse.
type ClickHouseNetflowStore struct {
	db        *sql.DB
	database  string
	chunkSize int
	l         *applogger.Logger
}

// NewClickHouseNetflowStore creates the store; tables live in database.
func NewClickHouseNetflowStore(db *sql.DB, database string) *ClickHouseNetflowStore {
	return &ClickHouseNetflowStore{db: db, database: database, chunkSize: 2000}
}

var _ domrepo.NetflowStore = (*ClickHouseNetflowStore)(nil)

// SetLogger injects a structured logger.
func (s *ClickHouseNetflowStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseNetflowStore) table(name string) string { return s.database + "." + name }

func (s *ClickHouseNetflowStore) Init(ctx context.Context) error {
	for _, stmt := range NetflowSchema(s.database) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// StoreTransfers inserts transfers with multi-row VALUES in chunks.
func (s *ClickHouseNetflowStore) StoreTransfers(ctx context.Context, ts []models.TransferRecord) error {
	q := "INSERT INTO " + s.table("token_transfers") + " (hash, block_number, ts, from_addr, to_addr, value, exchange) VALUES "
	return s.insertChunks(ctx, q, len(ts), 7, func(i int) []interface{} {
		t := ts[i]
		return []interface{}{
			t.Hash,
			t.BlockNumber,
			time.Unix(t.Timestamp, 0).UTC(),
			models.NormalizeAddress(t.From),
			models.NormalizeAddress(t.To),
			t.Value,
			models.NormalizeLabel(t.Exchange),
		}
	})
}

// StoreDaily upserts daily rows; the total series is stored with an empty exchange.
func (s *ClickHouseNetflowStore) StoreDaily(ctx context.Context, rows []models.DailyNetflowRow) error {
	now := time.Now().UTC()
	q := "INSERT INTO " + s.table("netflow_daily") + " (date, exchange, inflow, outflow, netflow, roll_mean, roll_std, zscore, updated_at) VALUES "
	return s.insertChunks(ctx, q, len(rows), 9, func(i int) []interface{} {
		r := rows[i]
		return []interface{}{r.Date, r.Exchange, r.Inflow, r.Outflow, r.Netflow, r.RollMean, r.RollStd, r.ZScore, now}
	})
}

func (s *ClickHouseNetflowStore) insertChunks(ctx context.Context, prefix string, n, cols int, args func(i int) []interface{}) error {
	if n == 0 {
		return nil
	}
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"
	for start := 0; start < n; start += s.chunkSize {
		end := min(start+s.chunkSize, n)
		values := make([]string, 0, end-start)
		flat := make([]interface{}, 0, (end-start)*cols)
		for i := start; i < end; i++ {
			values = append(values, placeholder)
			flat = append(flat, args(i)...)
		}
		if _, err := s.db.ExecContext(ctx, prefix+strings.Join(values, ","), flat...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse insert error", applogger.Int("rows", end-start), applogger.Error(err))
			}
			return fmt.Errorf("insert: %w", err)
		}
	}
	return nil
}

// QueryTransfers returns transfers with from <= ts < to ordered by time.
func (s *ClickHouseNetflowStore) QueryTransfers(ctx context.Context, from, to time.Time) ([]models.TransferRecord, error) {
	q := fmt.Sprintf(`
        SELECT hash, block_number, ts, from_addr, to_addr, value, exchange
        FROM %s FINAL
        WHERE ts >= ? AND ts < ?
        ORDER BY ts ASC, exchange ASC`, s.table("token_transfers"))
	rows, err := s.db.QueryContext(ctx, q, from.UTC(), to.UTC())
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse query_transfers error", applogger.Error(err))
		}
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	out := make([]models.TransferRecord, 0, 1024)
	for rows.Next() {
		var t models.TransferRecord
		var ts time.Time
		if err := rows.Scan(&t.Hash, &t.BlockNumber, &ts, &t.From, &t.To, &t.Value, &t.Exchange); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		t.Timestamp = ts.Unix()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *ClickHouseNetflowStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseNetflowStore) Close() error {
	return nil // pool is owned by pkg/clickhouse.Client
}
