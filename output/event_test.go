package output

import (
	"errors"
	"testing"
	"time"

	"github.com/casualjim/reagent/pkg/uuidx"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSON(t *testing.T) {
	t.Run("global values have a null run", func(t *testing.T) {
		b, err := json.Marshal(Event{Value: "gpt-4o-mini", Terminal: true, Seq: 1})
		require.NoError(t, err)
		assert.JSONEq(t, `{"run":null,"seq":1,"terminal":true,"value":"gpt-4o-mini"}`, string(b))

		var e Event
		require.NoError(t, json.Unmarshal(b, &e))
		assert.Equal(t, uuid.Nil, e.RunID)
		assert.True(t, e.Global())
		assert.Equal(t, "gpt-4o-mini", e.Value)
	})

	t.Run("run events", func(t *testing.T) {
		run := uuidx.New()
		ts := strfmt.DateTime(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
		in := Event{RunID: run, Value: map[string]any{"text": "Hel"}, Seq: 7, Timestamp: ts}

		b, err := json.Marshal(in)
		require.NoError(t, err)

		var out Event
		require.NoError(t, json.Unmarshal(b, &out))
		assert.Equal(t, run, out.RunID)
		assert.Equal(t, uint64(7), out.Seq)
		assert.False(t, out.Terminal)
		assert.Equal(t, map[string]any{"text": "Hel"}, out.Value)
		assert.Equal(t, ts.String(), out.Timestamp.String())
	})

	t.Run("aborts carry the error", func(t *testing.T) {
		b, err := json.Marshal(Event{RunID: uuidx.New(), Err: errors.New("cancelled")})
		require.NoError(t, err)

		var out Event
		require.NoError(t, json.Unmarshal(b, &out))
		require.Error(t, out.Err)
		assert.Equal(t, "cancelled", out.Err.Error())
		assert.Nil(t, out.Value)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		var e Event
		assert.Error(t, json.Unmarshal([]byte(`{"seq":1}`), &e))
		assert.Error(t, e.UnmarshalJSON([]byte(`{"run":"nope"}`)))
		assert.Error(t, e.UnmarshalJSON([]byte(`not json`)))
	})
}
