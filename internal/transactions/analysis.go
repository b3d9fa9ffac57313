package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/botcharts/internal/model"
)

// ErrNotFound is returned when a contract has no row or no analysis.
var ErrNotFound = errors.New("not found")

// saveAnalysisSQL upserts the transaction and links a new analysis row to
// it in one statement.
const saveAnalysisSQL = `
	WITH tx AS (` + upsertSQL + `)
	INSERT INTO analysis_results (
		transaction_id, trade_analysis, key_factors, win_loss_assessment,
		trade_explanation, learning_points, explanation_file
	)
	SELECT id, $17, $18, $19, $20, $21, $22 FROM tx
	RETURNING id, transaction_id, created_at`

const latestAnalysisSQL = `
	SELECT a.id, a.transaction_id, a.trade_analysis, a.key_factors,
		a.win_loss_assessment, a.trade_explanation, a.learning_points,
		a.explanation_file, a.created_at
	FROM analysis_results a
	JOIN transactions t ON t.id = a.transaction_id
	WHERE t.user_id = $1 AND t.contract_id = $2
	ORDER BY a.created_at DESC, a.id DESC
	LIMIT 1`

const chartImageSQL = `
	SELECT COALESCE(chart_image_b64, '')
	FROM transactions
	WHERE user_id = $1 AND contract_id = $2`

// SaveAnalysis records tx (upserting it like Upsert) and a new analysis
// result for it. The returned result carries its id, transaction id and
// creation time.
func (s *PGStore) SaveAnalysis(ctx context.Context, tx model.Transaction, res model.AnalysisResult) (model.AnalysisResult, error) {
	switch {
	case tx.UserID == "":
		return res, ErrMissingUser
	case tx.ContractID == "":
		return res, ErrMissingContract
	}

	factors, err := listArg(res.KeyFactors)
	if err != nil {
		return res, fmt.Errorf("key factors: %w", err)
	}
	points, err := listArg(res.LearningPoints)
	if err != nil {
		return res, fmt.Errorf("learning points: %w", err)
	}

	args := append(upsertArgs(tx),
		res.TradeAnalysis, factors, res.WinLossAssessment,
		res.TradeExplanation, points, res.ExplanationFile,
	)
	if err := s.db.QueryRow(ctx, saveAnalysisSQL, args...).Scan(&res.ID, &res.TransactionID, &res.CreatedAt); err != nil {
		err = fmt.Errorf("save analysis for contract %s: %w", tx.ContractID, err)
		s.metrics.ObserveTransactions(0, err)
		return res, err
	}

	s.metrics.ObserveTransactions(1, nil)
	s.logger.Debug("saved analysis",
		"user_id", tx.UserID,
		"contract_id", tx.ContractID,
		"analysis_id", res.ID,
	)
	return res, nil
}

// LatestAnalysis returns the most recent analysis of a user's contract.
func (s *PGStore) LatestAnalysis(ctx context.Context, userID, contractID string) (model.AnalysisResult, error) {
	var (
		res             model.AnalysisResult
		factors, points []byte
		created         time.Time
	)
	err := s.db.QueryRow(ctx, latestAnalysisSQL, userID, contractID).Scan(
		&res.ID, &res.TransactionID, &res.TradeAnalysis, &factors,
		&res.WinLossAssessment, &res.TradeExplanation, &points,
		&res.ExplanationFile, &created,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return res, ErrNotFound
	}
	if err != nil {
		return res, fmt.Errorf("latest analysis: %w", err)
	}
	res.CreatedAt = created

	if res.KeyFactors, err = decodeList(factors); err != nil {
		return res, fmt.Errorf("key factors: %w", err)
	}
	if res.LearningPoints, err = decodeList(points); err != nil {
		return res, fmt.Errorf("learning points: %w", err)
	}
	return res, nil
}

// ChartImage returns the stored chart screenshot of a contract, or "" if
// the contract has none.
func (s *PGStore) ChartImage(ctx context.Context, userID, contractID string) (string, error) {
	var img string
	err := s.db.QueryRow(ctx, chartImageSQL, userID, contractID).Scan(&img)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("chart image: %w", err)
	}
	return img, nil
}

// listArg encodes a string list for a JSONB column; nil becomes [].
func listArg(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
