package chart

import (
	"github.com/rickgao/botcharts/internal/api"
	"github.com/rickgao/botcharts/internal/model"
)

// TicksToQuotes converts a tick history. Extra prices or times without a
// partner are ignored.
func TicksToQuotes(h api.History) []model.Quote {
	n := min(len(h.Prices), len(h.Times))
	quotes := make([]model.Quote, n)
	for i := 0; i < n; i++ {
		quotes[i] = model.NewTickQuote(h.Times[i], h.Prices[i])
	}
	return quotes
}

// CandlesToQuotes converts historical candles.
func CandlesToQuotes(candles []api.Candle) []model.Quote {
	quotes := make([]model.Quote, len(candles))
	for i, c := range candles {
		quotes[i] = model.NewCandleQuote(c.Epoch, c.Open, c.High, c.Low, c.Close)
	}
	return quotes
}

// TickToQuote converts a streamed tick.
func TickToQuote(t api.Tick) model.Quote {
	return model.NewTickQuote(t.Epoch, t.Quote)
}

// OHLCToQuote converts a streamed candle. The quote is dated at the candle
// open so updates replace the current bar.
func OHLCToQuote(o api.OHLC) model.Quote {
	epoch := o.OpenTime
	if epoch <= 0 {
		epoch = o.Epoch
	}
	return model.NewCandleQuote(epoch,
		api.ParseFloatString(o.Open),
		api.ParseFloatString(o.High),
		api.ParseFloatString(o.Low),
		api.ParseFloatString(o.Close),
	)
}

// responseToQuotes converts a ticks_history response or stream push.
// Unknown message types give ok=false.
func responseToQuotes(resp *api.Response) ([]model.Quote, bool) {
	switch resp.MsgType {
	case api.MsgHistory:
		p, err := api.Decode[api.HistoryResponse](resp)
		if err != nil {
			return nil, false
		}
		return TicksToQuotes(p.History), true
	case api.MsgCandles:
		p, err := api.Decode[api.CandlesResponse](resp)
		if err != nil {
			return nil, false
		}
		return CandlesToQuotes(p.Candles), true
	case api.MsgTick:
		p, err := api.Decode[api.TickResponse](resp)
		if err != nil {
			return nil, false
		}
		return []model.Quote{TickToQuote(p.Tick)}, true
	case api.MsgOHLC:
		p, err := api.Decode[api.OHLCResponse](resp)
		if err != nil {
			return nil, false
		}
		return []model.Quote{OHLCToQuote(p.OHLC)}, true
	}
	return nil, false
}
