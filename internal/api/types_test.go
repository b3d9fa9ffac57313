package api

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseResponse_Subscription(t *testing.T) {
	data := []byte(`{"msg_type":"tick","req_id":7,"subscription":{"id":"abc-123"},"tick":{"symbol":"R_100","epoch":1705321845,"quote":1234.56,"pip_size":2}}`)

	resp, err := ParseResponse(data)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if resp.MsgType != MsgTick {
		t.Errorf("MsgType = %q, want %q", resp.MsgType, MsgTick)
	}
	if resp.ReqID != 7 {
		t.Errorf("ReqID = %d, want 7", resp.ReqID)
	}
	if resp.SubscriptionID() != "abc-123" {
		t.Errorf("SubscriptionID() = %q, want %q", resp.SubscriptionID(), "abc-123")
	}

	tick, err := Decode[TickResponse](resp)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if tick.Tick.Quote != 1234.56 || tick.Tick.Symbol != "R_100" {
		t.Errorf("Tick = %+v, want quote 1234.56 on R_100", tick.Tick)
	}
}

func TestParseResponse_Error(t *testing.T) {
	data := []byte(`{"msg_type":"ticks_history","req_id":3,"error":{"code":"InvalidSymbol","message":"Symbol FOO invalid."}}`)

	resp, err := ParseResponse(data)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected error object")
	}
	if resp.Error.Code != "InvalidSymbol" {
		t.Errorf("Error.Code = %q, want %q", resp.Error.Code, "InvalidSymbol")
	}
	if resp.SubscriptionID() != "" {
		t.Errorf("SubscriptionID() = %q, want empty", resp.SubscriptionID())
	}
}

func TestParseResponse_Invalid(t *testing.T) {
	if _, err := ParseResponse([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestTicksHistory(t *testing.T) {
	t.Run("ticks", func(t *testing.T) {
		req := TicksHistory(TicksHistoryParams{Symbol: "R_100", Count: 1000, AdjustStartTime: true})

		if req["ticks_history"] != "R_100" {
			t.Errorf("ticks_history = %v, want R_100", req["ticks_history"])
		}
		if req["style"] != "ticks" {
			t.Errorf("style = %v, want ticks", req["style"])
		}
		if req["end"] != "latest" {
			t.Errorf("end = %v, want latest", req["end"])
		}
		if _, ok := req["granularity"]; ok {
			t.Error("granularity should be omitted for ticks")
		}
		if req["adjust_start_time"] != 1 {
			t.Errorf("adjust_start_time = %v, want 1", req["adjust_start_time"])
		}
		if _, ok := req["subscribe"]; ok {
			t.Error("subscribe should be omitted")
		}
	})

	t.Run("candles with start", func(t *testing.T) {
		req := TicksHistory(TicksHistoryParams{Symbol: "frxEURUSD", Granularity: 60, Start: 1705320000, Subscribe: true})

		if req["style"] != "candles" {
			t.Errorf("style = %v, want candles", req["style"])
		}
		if req["granularity"] != 60 {
			t.Errorf("granularity = %v, want 60", req["granularity"])
		}
		if req["start"] != int64(1705320000) {
			t.Errorf("start = %v, want 1705320000", req["start"])
		}
		if _, ok := req["count"]; ok {
			t.Error("count should be omitted when zero")
		}
		if req["subscribe"] != 1 {
			t.Errorf("subscribe = %v, want 1", req["subscribe"])
		}
	})
}

func TestRequestName(t *testing.T) {
	tests := []struct {
		req  Request
		want string
	}{
		{TicksHistory(TicksHistoryParams{Symbol: "R_50"}), "ticks_history"},
		{ActiveSymbols("brief", "basic"), "active_symbols"},
		{TradingTimes(time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC)), "trading_times"},
		{Forget("abc"), "forget"},
		{ForgetAll("ticks"), "forget_all"},
		{Request{"foo": 1}, "unknown"},
	}

	for _, tt := range tests {
		if got := tt.req.Name(); got != tt.want {
			t.Errorf("Name() = %q, want %q", got, tt.want)
		}
	}
}

func TestTradingTimesDate(t *testing.T) {
	req := TradingTimes(time.Date(2024, 1, 15, 23, 0, 0, 0, time.FixedZone("X", -5*3600)))
	if req["trading_times"] != "2024-01-16" {
		t.Errorf("trading_times = %v, want 2024-01-16 (UTC date)", req["trading_times"])
	}
}

func TestRequestClone(t *testing.T) {
	orig := ServerTime()
	clone := orig.Clone()
	clone["req_id"] = 1

	if _, ok := orig["req_id"]; ok {
		t.Error("Clone should not share the underlying map")
	}
}

func TestToFieldError(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		wantField string
		wantMsg   string
	}{
		{
			name:      "known code",
			err:       &Error{Code: "InvalidSymbol", Message: "Symbol FOO invalid."},
			wantField: "symbol",
			wantMsg:   "This symbol is not available.",
		},
		{
			name:      "stake by content",
			err:       &Error{Code: "ContractBuyValidationError", Message: "Please enter a stake amount that's at least 0.35."},
			wantField: "amount",
			wantMsg:   "Please enter a stake amount that's at least 0.35.",
		},
		{
			name:      "duration by content",
			err:       &Error{Code: "OfferingsValidationError", Message: "Trading is not offered for this duration."},
			wantField: "duration",
			wantMsg:   "Trading is not offered for this duration.",
		},
		{
			name:      "explicit field detail",
			err:       &Error{Code: "InputValidationFailed", Message: "Input validation failed: barrier", Details: map[string]any{"field": "barrier"}},
			wantField: "barrier",
			wantMsg:   "Input validation failed: barrier",
		},
		{
			name:      "invalid to buy",
			err:       &Error{Code: "InvalidtoBuy", Message: "Contract's stake amount is more than the maximum purchase price."},
			wantField: "",
			wantMsg:   "This contract cannot be purchased with the chosen parameters.",
		},
		{
			name:      "buy validation without server text",
			err:       &Error{Code: "ContractBuyValidationError", Field: "duration"},
			wantField: "duration",
			wantMsg:   "Please check the contract parameters and try again.",
		},
		{
			name:      "top-level field wins over content",
			err:       &Error{Code: "ContractBuyValidationError", Message: "Stake is below the minimum.", Field: "amount"},
			wantField: "amount",
			wantMsg:   "Stake is below the minimum.",
		},
		{
			name:      "unattributed",
			err:       &Error{Code: "Unknown", Message: "Something happened."},
			wantField: "",
			wantMsg:   "Something happened.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToFieldError(tt.err)
			if got.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", got.Field, tt.wantField)
			}
			if got.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMsg)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		code   string
		want   string
		wantOK bool
	}{
		{"InvalidSymbol", "This symbol is not available.", true},
		{"MarketIsClosed", "This market is presently closed.", true},
		{"InvalidtoBuy", "This contract cannot be purchased with the chosen parameters.", true},
		{"ContractBuyValidationError", "Please check the contract parameters and try again.", true},
		{"RateLimit", "You have reached the rate limit of requests per second. Please try later.", true},
		{"SomethingNew", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, ok := ErrorMessage(tt.code)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ErrorMessage(%q) = %q, %v; want %q, %v", tt.code, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestErrorFieldDecoded(t *testing.T) {
	resp, err := ParseResponse([]byte(`{"msg_type":"buy","error":{"code":"ContractBuyValidationError","message":"Invalid barrier.","field":"barrier"}}`))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if resp.Error == nil || resp.Error.Field != "barrier" {
		t.Fatalf("Error = %+v, want field barrier", resp.Error)
	}
}

func TestAsError(t *testing.T) {
	wrapped := fmt.Errorf("send: %w", &Error{Code: "RateLimit", Message: "slow down"})

	apiErr, ok := AsError(wrapped)
	if !ok {
		t.Fatal("expected AsError to find *Error")
	}
	if !apiErr.IsRetryable() {
		t.Error("RateLimit should be retryable")
	}

	if _, ok := AsError(errors.New("plain")); ok {
		t.Error("plain error should not match")
	}
}
