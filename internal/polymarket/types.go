package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
)

// PolymarketEvent represents an event from the Gamma API /events endpoint
type PolymarketEvent struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	Slug       string             `json:"slug"`
	Category   string             `json:"category"`
	Active     bool               `json:"active"`
	Closed     bool               `json:"closed"`
	Volume24hr FlexFloat          `json:"volume24hr"`
	Liquidity  FlexFloat          `json:"liquidity"`
	EndDate    string             `json:"endDate"`
	Markets    []PolymarketMarket `json:"markets"`
	Tags       []PolymarketTag    `json:"tags"`
}

// PolymarketMarket represents a single yes/no market nested in an event.
// Outcomes, OutcomePrices and ClobTokenIds are JSON-encoded string arrays.
type PolymarketMarket struct {
	ID            string    `json:"id"`
	ConditionID   string    `json:"conditionId"`
	Question      string    `json:"question"`
	Outcomes      string    `json:"outcomes"`
	OutcomePrices string    `json:"outcomePrices"`
	ClobTokenIds  string    `json:"clobTokenIds"`
	Volume24hr    FlexFloat `json:"volume24hr"`
	Liquidity     FlexFloat `json:"liquidity"`
	EndDate       string    `json:"endDate"`
	Active        bool      `json:"active"`
	Closed        bool      `json:"closed"`
}

// PolymarketTag represents an event tag
type PolymarketTag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// OrderBookLevel is one price level of a CLOB order book
type OrderBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// OrderBook is the CLOB /book response for one outcome token
type OrderBook struct {
	Market    string           `json:"market"`
	AssetID   string           `json:"asset_id"`
	Hash      string           `json:"hash"`
	Timestamp string           `json:"timestamp"`
	Bids      []OrderBookLevel `json:"bids"`
	Asks      []OrderBookLevel `json:"asks"`
}

// Activity is one recent trade from the data API
type Activity struct {
	ProxyWallet     string    `json:"proxyWallet"`
	Side            string    `json:"side"`
	Asset           string    `json:"asset"`
	ConditionID     string    `json:"conditionId"`
	Size            FlexFloat `json:"size"`
	Price           FlexFloat `json:"price"`
	Timestamp       int64     `json:"timestamp"`
	Outcome         string    `json:"outcome"`
	TransactionHash string    `json:"transactionHash"`
}

// FlexFloat accepts a JSON number, a numeric string, or null.
// Gamma is inconsistent about which one it sends.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// decodeStringArray parses a JSON-encoded string array such as `["0.5","0.5"]`.
// Numeric elements are accepted and formatted back to strings.
func decodeStringArray(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return out, nil
}
