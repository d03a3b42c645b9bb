package types

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is a pending transaction as delivered by the feed.
// All fields keep the feed's hex encoding; To is empty for contract creation.
type TransactionRecord struct {
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Input string `json:"input"`
	Value string `json:"value"`
}

// UnmarshalJSON accepts any JSON object. A field that is missing, null or not
// a string decodes as "", so a malformed value still classifies with 0 ETH.
func (t *TransactionRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Hash  json.RawMessage `json:"hash"`
		From  json.RawMessage `json:"from"`
		To    json.RawMessage `json:"to"`
		Input json.RawMessage `json:"input"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = TransactionRecord{
		Hash:  looseString(raw.Hash),
		From:  looseString(raw.From),
		To:    looseString(raw.To),
		Input: looseString(raw.Input),
		Value: looseString(raw.Value),
	}
	return nil
}

func looseString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// ClassifiedSwap is a TransactionRecord that hit a tracked router and selector.
type ClassifiedSwap struct {
	Tx         TransactionRecord `json:"tx"`
	ValueEth   decimal.Decimal   `json:"value_eth"`
	IsBig      bool              `json:"is_big"`
	Method     string            `json:"method"`
	ObservedAt time.Time         `json:"observed_at"`
}
