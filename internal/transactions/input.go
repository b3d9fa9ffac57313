package transactions

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/botcharts/internal/model"
)

// Errors
var (
	ErrMissingUser     = errors.New("loginid or user_id is required")
	ErrMissingContract = errors.New("contract_id is required")
	ErrEmpty           = errors.New("no transactions in request")
	ErrBadChartImage   = errors.New("chart_image_b64 is not valid base64")
)

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// input is a transaction as posted by the frontend.
type input struct {
	model.Transaction
	LoginID    string     `json:"loginid"`
	ContractID flexString `json:"contract_id"`
	DateStart  flexString `json:"date_start"`
	DateExpiry flexString `json:"date_expiry"`
	EntryTick  flexString `json:"entry_tick"`
	ExitTick   flexString `json:"exit_tick"`
}

func (in input) transaction() (model.Transaction, error) {
	tx := in.Transaction
	tx.ID = 0
	tx.ContractID = strings.TrimSpace(string(in.ContractID))
	tx.DateStart = string(in.DateStart)
	tx.DateExpiry = string(in.DateExpiry)
	tx.EntryTick = string(in.EntryTick)
	tx.ExitTick = string(in.ExitTick)

	if tx.UserID == "" {
		tx.UserID = in.LoginID
	}
	tx.UserID = strings.TrimSpace(tx.UserID)

	switch {
	case tx.UserID == "":
		return tx, ErrMissingUser
	case tx.ContractID == "":
		return tx, ErrMissingContract
	}
	return tx, nil
}

// Decode parses a request body holding one transaction or a list of them.
func Decode(body []byte) ([]model.Transaction, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrEmpty
	}

	var inputs []input
	if body[0] == '[' {
		if err := json.Unmarshal(body, &inputs); err != nil {
			return nil, fmt.Errorf("decode transactions: %w", err)
		}
	} else {
		var one input
		if err := json.Unmarshal(body, &one); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		inputs = []input{one}
	}
	if len(inputs) == 0 {
		return nil, ErrEmpty
	}

	out := make([]model.Transaction, 0, len(inputs))
	for i, in := range inputs {
		tx, err := in.transaction()
		if err != nil {
			if len(inputs) > 1 {
				return nil, fmt.Errorf("transaction %d: %w", i, err)
			}
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// analysisInput is a reviewed trade: the contract with its context plus
// the analyst and tutor outputs.
type analysisInput struct {
	Contract          input           `json:"contract"`
	StrategyIntent    json.RawMessage `json:"strategy_intent"`
	BehavioralSummary json.RawMessage `json:"behavioral_summary"`
	Analyst           struct {
		TradeAnalysis     string   `json:"trade_analysis"`
		KeyFactors        []string `json:"key_factors"`
		WinLossAssessment string   `json:"win_loss_assessment"`
	} `json:"analyst"`
	Tutor struct {
		Explanation    string   `json:"explanation"`
		LearningPoints []string `json:"learning_points"`
	} `json:"tutor"`
	ExplanationFile string `json:"explanation_file"`
	ChartImage      string `json:"chart_image_b64"`
}

// DecodeAnalysis parses a reviewed trade for loginID. The run id comes from
// behavioral_summary.run_id when the contract does not carry one.
func DecodeAnalysis(body []byte, loginID string) (model.Transaction, model.AnalysisResult, error) {
	var in analysisInput
	if err := json.Unmarshal(bytes.TrimSpace(body), &in); err != nil {
		return model.Transaction{}, model.AnalysisResult{}, fmt.Errorf("decode analysis: %w", err)
	}

	in.Contract.UserID = ""
	in.Contract.LoginID = loginID
	tx, err := in.Contract.transaction()
	if err != nil {
		return model.Transaction{}, model.AnalysisResult{}, err
	}
	if len(in.StrategyIntent) > 0 {
		tx.StrategyIntent = in.StrategyIntent
	}
	if len(in.BehavioralSummary) > 0 {
		tx.BehavioralSummary = in.BehavioralSummary
		if tx.RunID == "" {
			var summary struct {
				RunID string `json:"run_id"`
			}
			if err := json.Unmarshal(in.BehavioralSummary, &summary); err == nil {
				tx.RunID = summary.RunID
			}
		}
	}

	if in.ChartImage != "" {
		if _, err := base64.StdEncoding.DecodeString(in.ChartImage); err != nil {
			return model.Transaction{}, model.AnalysisResult{}, ErrBadChartImage
		}
		tx.ChartImage = in.ChartImage
	}

	res := model.AnalysisResult{
		TradeAnalysis:     in.Analyst.TradeAnalysis,
		KeyFactors:        in.Analyst.KeyFactors,
		WinLossAssessment: in.Analyst.WinLossAssessment,
		TradeExplanation:  in.Tutor.Explanation,
		LearningPoints:    in.Tutor.LearningPoints,
		ExplanationFile:   in.ExplanationFile,
	}
	return tx, res, nil
}
