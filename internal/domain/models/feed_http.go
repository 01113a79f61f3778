package models

// Requests and responses for the feed HTTP endpoints. Defined in domain for
// consistency and reuse.

type HistoryRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	Market   string `query:"market" json:"market" default:"crypto" validate:"oneof=crypto stocks"`
	Interval string `query:"interval" json:"interval" default:"1m"`
	Days     int    `query:"days" json:"days" default:"1" validate:"gte=1,lte=365"`
	Provider string `query:"provider" json:"provider"`
	Style    string `query:"style" json:"style" default:"raw" validate:"oneof=raw heikin_ashi"`
}

type HistoryResponse struct {
	Symbol string   `json:"symbol"`
	Count  int      `json:"count"`
	Source string   `json:"source"`
	OHLC   []Candle `json:"ohlc"`
}

type IndicatorsRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	Market   string `query:"market" json:"market" default:"crypto" validate:"oneof=crypto stocks"`
	Interval string `query:"interval" json:"interval" default:"1m"`
	Days     int    `query:"days" json:"days" default:"1" validate:"gte=1,lte=365"`
	Name     string `query:"name" json:"name" validate:"required"`
	Params   string `query:"params" json:"params"`
	Provider string `query:"provider" json:"provider"`
}

type IndicatorsResponse struct {
	Symbol string      `json:"symbol"`
	Name   string      `json:"name"`
	Params string      `json:"params"`
	Count  int         `json:"count"`
	Values []JSONFloat `json:"values"`
}

// ProviderStatus is one row of the /api/providers report.
type ProviderStatus struct {
	ID           string       `json:"id"`
	Markets      []Market     `json:"markets"`
	Capabilities Capabilities `json:"capabilities"`
	Priority     int          `json:"priority"`
	Healthy      bool         `json:"healthy"`
	Failures     int          `json:"consecutive_failures"`
	TokensLeft   float64      `json:"tokens_left"`
}
