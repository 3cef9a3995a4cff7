package output

import (
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Event is one entry of a provider log.
type Event struct {
	// RunID is uuid.Nil for run-independent values.
	RunID    uuid.UUID
	Value    any
	Terminal bool
	// Err is set on the abort event a subscriber receives when a run is
	// cancelled or closed before its terminal value. Aborts carry no value.
	Err error
	// Seq orders events of a single provider.
	Seq       uint64
	Timestamp strfmt.DateTime
}

// Global reports whether the event is a run-independent value.
func (e Event) Global() bool {
	return e.RunID == uuid.Nil
}

// Aborted reports whether the event ends a run without a value.
func (e Event) Aborted() bool {
	return e.Err != nil
}

// MarshalJSON writes the event as
// {"run":…,"seq":…,"terminal":…,"value":…,"error":…,"timestamp":…} with a
// null run for run-independent values.
func (e Event) MarshalJSON() ([]byte, error) {
	result := []byte(`{"run":null}`)

	var err error
	if !e.Global() {
		result, err = sjson.SetBytes(result, "run", e.RunID.String())
		if err != nil {
			return nil, err
		}
	}

	result, err = sjson.SetBytes(result, "seq", e.Seq)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "terminal", e.Terminal)
	if err != nil {
		return nil, err
	}

	if e.Err != nil {
		result, err = sjson.SetBytes(result, "error", e.Err.Error())
		if err != nil {
			return nil, err
		}
	} else {
		valueBytes, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid value: %w", err)
		}
		result, err = sjson.SetRawBytes(result, "value", valueBytes)
		if err != nil {
			return nil, err
		}
	}

	if !e.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", e.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// UnmarshalJSON reads the format written by MarshalJSON. Values decode into
// their generic JSON representation and errors into opaque errors.
func (e *Event) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	run := gjson.GetBytes(data, "run")
	if !run.Exists() {
		return fmt.Errorf("missing required field 'run'")
	}
	e.RunID = uuid.Nil
	if run.Type != gjson.Null {
		if err := e.RunID.UnmarshalText([]byte(run.String())); err != nil {
			return fmt.Errorf("invalid run: %w", err)
		}
	}

	e.Seq = gjson.GetBytes(data, "seq").Uint()
	e.Terminal = gjson.GetBytes(data, "terminal").Bool()

	e.Err, e.Value = nil, nil
	if msg := gjson.GetBytes(data, "error"); msg.Exists() {
		e.Err = errors.New(msg.String())
	} else if value := gjson.GetBytes(data, "value"); value.Exists() {
		if err := json.Unmarshal([]byte(value.Raw), &e.Value); err != nil {
			return fmt.Errorf("invalid value: %w", err)
		}
	}

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := e.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	return nil
}
