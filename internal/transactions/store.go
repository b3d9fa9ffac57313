package transactions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/botcharts/internal/metrics"
	"github.com/rickgao/botcharts/internal/model"
)

// List limits.
const (
	DefaultLimit = 500
	MaxLimit     = 5000
)

// ListOptions filters List.
type ListOptions struct {
	UserID  string
	RunID   string
	Limit   int   // 1..MaxLimit; 0 means DefaultLimit
	SinceID int64 // only rows with id > SinceID
}

// Store persists transactions and their analysis results.
type Store interface {
	Upsert(ctx context.Context, txs []model.Transaction) ([]int64, error)
	List(ctx context.Context, opts ListOptions) ([]model.Transaction, error)
	SaveAnalysis(ctx context.Context, tx model.Transaction, res model.AnalysisResult) (model.AnalysisResult, error)
	LatestAnalysis(ctx context.Context, userID, contractID string) (model.AnalysisResult, error)
	ChartImage(ctx context.Context, userID, contractID string) (string, error)
}

// DB is the part of *pgxpool.Pool the store uses.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore is the Postgres Store.
type PGStore struct {
	db      DB
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPGStore creates a Postgres store.
func NewPGStore(db DB, m *metrics.Metrics, logger *slog.Logger) *PGStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{db: db, metrics: m, logger: logger}
}

const upsertSQL = `
	INSERT INTO transactions (
		user_id, contract_id, run_id, buy_price, payout, profit, currency,
		contract_type, shortcode, date_start, date_expiry, entry_tick, exit_tick,
		strategy_intent, behavioral_summary, chart_image_b64
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (user_id, contract_id) DO UPDATE SET
		run_id             = CASE WHEN EXCLUDED.run_id = '' THEN transactions.run_id ELSE EXCLUDED.run_id END,
		buy_price          = EXCLUDED.buy_price,
		payout             = EXCLUDED.payout,
		profit             = EXCLUDED.profit,
		currency           = EXCLUDED.currency,
		contract_type      = EXCLUDED.contract_type,
		shortcode          = EXCLUDED.shortcode,
		date_start         = EXCLUDED.date_start,
		date_expiry        = EXCLUDED.date_expiry,
		entry_tick         = EXCLUDED.entry_tick,
		exit_tick          = EXCLUDED.exit_tick,
		strategy_intent    = COALESCE(EXCLUDED.strategy_intent, transactions.strategy_intent),
		behavioral_summary = COALESCE(EXCLUDED.behavioral_summary, transactions.behavioral_summary),
		chart_image_b64    = COALESCE(EXCLUDED.chart_image_b64, transactions.chart_image_b64),
		updated_at         = now()
	RETURNING id`

const selectColumns = `id, user_id, contract_id, run_id, buy_price, payout, profit, currency,
	contract_type, shortcode, date_start, date_expiry, entry_tick, exit_tick,
	strategy_intent, behavioral_summary, created_at, updated_at`

// Upsert writes txs in one batch and returns their row ids in order.
func (s *PGStore) Upsert(ctx context.Context, txs []model.Transaction) ([]int64, error) {
	if len(txs) == 0 {
		return nil, nil
	}
	start := time.Now()

	batch := &pgx.Batch{}
	for _, tx := range txs {
		batch.Queue(upsertSQL, upsertArgs(tx)...)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	ids := make([]int64, 0, len(txs))
	for _, tx := range txs {
		var id int64
		if err := results.QueryRow().Scan(&id); err != nil {
			err = fmt.Errorf("upsert contract %s: %w", tx.ContractID, err)
			s.metrics.ObserveTransactions(0, err)
			return nil, err
		}
		ids = append(ids, id)
	}

	s.metrics.ObserveTransactions(len(ids), nil)
	s.logger.Debug("upserted transactions",
		"count", len(ids),
		"duration", time.Since(start),
	)
	return ids, nil
}

// List returns a user's transactions, newest first.
func (s *PGStore) List(ctx context.Context, opts ListOptions) ([]model.Transaction, error) {
	if opts.UserID == "" {
		return nil, ErrMissingUser
	}
	query, args := buildListQuery(opts)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var (
			tx               model.Transaction
			intent, behavior []byte
		)
		if err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.ContractID, &tx.RunID, &tx.BuyPrice, &tx.Payout,
			&tx.Profit, &tx.Currency, &tx.ContractType, &tx.Shortcode, &tx.DateStart,
			&tx.DateExpiry, &tx.EntryTick, &tx.ExitTick, &intent, &behavior,
			&tx.CreatedAt, &tx.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if len(intent) > 0 {
			tx.StrategyIntent = json.RawMessage(intent)
		}
		if len(behavior) > 0 {
			tx.BehavioralSummary = json.RawMessage(behavior)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// NormalizeLimit clamps a requested page size.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

func buildListQuery(opts ListOptions) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectColumns)
	sb.WriteString(" FROM transactions WHERE user_id = $1")

	args := []any{opts.UserID}
	if opts.RunID != "" {
		args = append(args, opts.RunID)
		fmt.Fprintf(&sb, " AND run_id = $%d", len(args))
	}
	if opts.SinceID > 0 {
		args = append(args, opts.SinceID)
		fmt.Fprintf(&sb, " AND id > $%d", len(args))
	}

	args = append(args, NormalizeLimit(opts.Limit))
	fmt.Fprintf(&sb, " ORDER BY id DESC LIMIT $%d", len(args))

	return sb.String(), args
}

func upsertArgs(tx model.Transaction) []any {
	return []any{
		tx.UserID, tx.ContractID, tx.RunID, tx.BuyPrice, tx.Payout, tx.Profit,
		tx.Currency, tx.ContractType, tx.Shortcode, tx.DateStart, tx.DateExpiry,
		tx.EntryTick, tx.ExitTick,
		jsonArg(tx.StrategyIntent), jsonArg(tx.BehavioralSummary),
		textArg(tx.ChartImage),
	}
}

// jsonArg maps an absent document to SQL NULL so COALESCE keeps the old one.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return string(raw)
}

func textArg(s string) any {
	if s == "" {
		return nil
	}
	return s
}
