package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnyMessage_Type(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want MessageType
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"ping"}`, TypeRequest},
		{"request without version tag", `{"id":1,"method":"initialize","params":{}}`, TypeRequest},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, TypeNotification},
		{"null id is a notification", `{"jsonrpc":"2.0","id":null,"method":"x"}`, TypeNotification},
		{"result response", `{"jsonrpc":"2.0","id":"a","result":{}}`, TypeResponse},
		{"error response", `{"jsonrpc":"2.0","id":7,"error":{"code":-32601,"message":"nope"}}`, TypeResponse},
		{"bare id", `{"id":9}`, TypeResponse},
		{"inert object", `{"jsonrpc":"2.0"}`, TypeUnknown},
		{"empty object", `{}`, TypeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var m AnyMessage
			require.NoError(t, json.Unmarshal([]byte(tc.in), &m))
			assert.Equal(t, tc.want, m.Type())
		})
	}
}

func TestAnyMessage_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":           `{"id":1,`,
		"wrong version":      `{"jsonrpc":"1.0","id":1,"method":"x"}`,
		"method with result": `{"jsonrpc":"2.0","id":1,"method":"x","result":1}`,
		"result and error":   `{"jsonrpc":"2.0","id":1,"result":1,"error":{"code":1,"message":"m"}}`,
		"object id":          `{"jsonrpc":"2.0","id":{},"method":"x"}`,
		"array":              `[1,2]`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			var m AnyMessage
			assert.Error(t, json.Unmarshal([]byte(in), &m))
		})
	}
}

func TestRequestID_RoundTrip(t *testing.T) {
	var m AnyMessage
	require.NoError(t, json.Unmarshal([]byte(`{"id":42,"method":"x"}`), &m))
	assert.Equal(t, int64(42), m.ID.Value())

	b, err := json.Marshal(m.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `42`, string(b))

	require.NoError(t, json.Unmarshal([]byte(`{"id":"abc","method":"x"}`), &m))
	assert.Equal(t, "abc", m.ID.String())

	require.NoError(t, json.Unmarshal([]byte(`{"id":1.5,"method":"x"}`), &m))
	assert.Equal(t, 1.5, m.ID.Value())

	var nilID *RequestID
	assert.True(t, nilID.IsNil())
	assert.Equal(t, "", nilID.String())
}

func TestRequestID_KeySeparatesStringAndNumber(t *testing.T) {
	var num, str, float RequestID
	require.NoError(t, json.Unmarshal([]byte(`1`), &num))
	require.NoError(t, json.Unmarshal([]byte(`"1"`), &str))
	require.NoError(t, json.Unmarshal([]byte(`1.0`), &float))

	assert.Equal(t, num.String(), str.String())
	assert.NotEqual(t, num.Key(), str.Key())
	assert.Equal(t, num.Key(), float.Key())
	assert.Equal(t, num.Key(), NewRequestID(1).Key())
}

func TestNewResultResponse_NilResultIsEmptyObject(t *testing.T) {
	resp, err := NewResultResponse(NewRequestID(int64(3)), nil)
	require.NoError(t, err)

	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":3,"result":{}}`, string(b))
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(NewRequestID(int64(2)), ErrorCodeMethodNotFound, "method not found", nil)
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"method not found"}}`, string(b))
}
