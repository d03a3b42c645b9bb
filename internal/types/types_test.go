package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionRecordUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		data string
		want TransactionRecord
	}{
		{
			name: "all strings",
			data: `{"hash":"0x01","from":"0xaa","to":"0xbb","input":"0x7ff36ab5","value":"0x10","gas":"0x5208"}`,
			want: TransactionRecord{Hash: "0x01", From: "0xaa", To: "0xbb", Input: "0x7ff36ab5", Value: "0x10"},
		},
		{
			name: "null to",
			data: `{"hash":"0x01","to":null,"value":"0x0"}`,
			want: TransactionRecord{Hash: "0x01", Value: "0x0"},
		},
		{
			name: "numeric value",
			data: `{"hash":"0x01","to":"0xbb","input":"0x7ff36ab5","value":12345}`,
			want: TransactionRecord{Hash: "0x01", To: "0xbb", Input: "0x7ff36ab5"},
		},
		{
			name: "object value and numeric to",
			data: `{"hash":"0x01","to":5,"value":{}}`,
			want: TransactionRecord{Hash: "0x01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tx TransactionRecord
			require.NoError(t, json.Unmarshal([]byte(tt.data), &tx))
			assert.Equal(t, tt.want, tx)
		})
	}
}

func TestTransactionRecordUnmarshalRejectsNonObject(t *testing.T) {
	for _, data := range []string{`"0xhash"`, `7`, `[1]`} {
		var tx TransactionRecord
		assert.Error(t, json.Unmarshal([]byte(data), &tx), data)
	}
}
