package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/metrics"
	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
)

const (
	DefaultSubscriptionMethod = "eth_subscribe"
	DefaultSubscriptionKind   = "alchemy_pendingTransactions"
)

// Subscription describes the single request sent on every new connection.
type Subscription struct {
	RequestID   uint64
	Method      string
	Kind        string
	ToAddresses []string
}

type subscribeRequest struct {
	ID      uint64        `json:"id"`
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type pendingTxFilter struct {
	ToAddress  []string `json:"toAddress"`
	HashesOnly bool     `json:"hashesOnly"`
}

func (s Subscription) request() subscribeRequest {
	method := s.Method
	if method == "" {
		method = DefaultSubscriptionMethod
	}
	kind := s.Kind
	if kind == "" {
		kind = DefaultSubscriptionKind
	}
	addrs := make([]string, len(s.ToAddresses))
	for i, a := range s.ToAddresses {
		addrs[i] = strings.ToLower(a)
	}
	id := s.RequestID
	if id == 0 {
		id = 1
	}
	return subscribeRequest{
		ID:      id,
		JSONRPC: "2.0",
		Method:  method,
		Params: []interface{}{
			kind,
			pendingTxFilter{ToAddress: addrs, HashesOnly: false},
		},
	}
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type frameKind int

const (
	frameDiscard frameKind = iota
	frameConfirmation
	frameTransactions
)

// frame is the decoded form of one inbound message.
type frame struct {
	kind           frameKind
	err            *apperrors.DecodeError
	subscriptionID string
	requestID      uint64
	rpcErr         *rpcError
	txs            []types.TransactionRecord
	badTxs         int
}

var jsonNull = []byte("null")

func discard(reason string, err error) frame {
	return frame{kind: frameDiscard, err: &apperrors.DecodeError{Reason: reason, Err: err}}
}

func (f frame) reason() string {
	if f.err == nil {
		return ""
	}
	return f.err.Reason
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

// decodeFrame classifies a raw message. It never fails: anything that does not
// fit the notification envelope comes back as a discard with a reason.
func decodeFrame(data []byte) frame {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return discard(metrics.ReasonInvalidJSON, err)
	}
	if fields == nil {
		return discard(metrics.ReasonInvalidJSON, errors.New("null frame"))
	}

	if raw, ok := fields["result"]; ok {
		var id string
		if err := json.Unmarshal(raw, &id); err == nil {
			return frame{kind: frameConfirmation, subscriptionID: id}
		}
	}

	if raw, ok := fields["error"]; ok && !isNull(raw) {
		var rpcErr rpcError
		_ = json.Unmarshal(raw, &rpcErr)
		var reqID uint64
		_ = json.Unmarshal(fields["id"], &reqID)
		f := discard(metrics.ReasonRPCError, fmt.Errorf("code %d: %s", rpcErr.Code, rpcErr.Message))
		f.rpcErr = &rpcErr
		f.requestID = reqID
		return f
	}

	rawParams, ok := fields["params"]
	if !ok || isNull(rawParams) {
		return discard(metrics.ReasonNoParams, fmt.Errorf("keys=%s", strings.Join(keysOf(fields), ",")))
	}

	var params map[string]json.RawMessage
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return discard(metrics.ReasonBadPayload, err)
	}

	result, ok := params["result"]
	if !ok || isNull(result) {
		return discard(metrics.ReasonEmptyResult, fmt.Errorf("params keys=%s", strings.Join(keysOf(params), ",")))
	}

	var items []json.RawMessage
	switch trimmed := bytes.TrimSpace(result); trimmed[0] {
	case '{':
		items = []json.RawMessage{trimmed}
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return discard(metrics.ReasonBadPayload, err)
		}
	default:
		return discard(metrics.ReasonBadPayload, errors.New("result is neither object nor array"))
	}

	f := frame{kind: frameTransactions, txs: make([]types.TransactionRecord, 0, len(items))}
	for _, item := range items {
		var tx types.TransactionRecord
		if err := json.Unmarshal(item, &tx); err != nil {
			f.badTxs++
			continue
		}
		f.txs = append(f.txs, tx)
	}
	return f
}

func keysOf(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
