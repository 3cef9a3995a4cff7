package provider

import (
	"errors"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	DelimStart = "start"
	DelimEnd   = "end"
	DelimEmpty = "empty"
)

type StreamEvent interface {
	streamEvent()
}

// Delim marks stream boundaries.
type Delim struct {
	RunID uuid.UUID `json:"run_id"`
	Delim string    `json:"delim"`
}

func (Delim) streamEvent() {}

// Chunk is an incremental piece of the assistant's answer.
type Chunk struct {
	RunID     uuid.UUID       `json:"run_id"`
	Content   string          `json:"content"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Chunk) streamEvent() {}

// Response is the complete assistant answer.
type Response struct {
	RunID        uuid.UUID       `json:"run_id"`
	Model        string          `json:"model,omitempty"`
	Content      string          `json:"content"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Timestamp    strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Response) streamEvent() {}

// Error reports a failed completion. It is always the last event on a stream.
type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Error) streamEvent() {}

func (e Error) Error() string {
	return fmt.Sprintf("run_id: %s, timestamp: %s, error: %v", e.RunID, e.Timestamp, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// UnmarshalEvent decodes any stream event by its type tag.
func UnmarshalEvent(data []byte) (StreamEvent, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	switch tpe := gjson.GetBytes(data, "type").String(); tpe {
	case "delim":
		var d Delim
		err := d.UnmarshalJSON(data)
		return d, err
	case "chunk":
		var c Chunk
		err := c.UnmarshalJSON(data)
		return c, err
	case "response":
		var r Response
		err := r.UnmarshalJSON(data)
		return r, err
	case "error":
		var e Error
		err := e.UnmarshalJSON(data)
		return e, err
	default:
		return nil, fmt.Errorf("unknown stream event type %q", tpe)
	}
}

func (d Delim) MarshalJSON() ([]byte, error) {
	result := []byte(`{"type":"delim"}`)

	var err error
	result, err = sjson.SetBytes(result, "run_id", d.RunID.String())
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "delim", d.Delim)
}

func (d *Delim) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "delim"); err != nil {
		return err
	}
	if err := parseRunID(data, &d.RunID); err != nil {
		return err
	}

	delim := gjson.GetBytes(data, "delim")
	if !delim.Exists() {
		return errors.New("missing required field 'delim'")
	}
	d.Delim = delim.String()
	return nil
}

func (c Chunk) MarshalJSON() ([]byte, error) {
	result := []byte(`{"type":"chunk"}`)

	var err error
	result, err = sjson.SetBytes(result, "run_id", c.RunID.String())
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "content", c.Content)
	if err != nil {
		return nil, err
	}
	return setTimestamp(result, c.Timestamp)
}

func (c *Chunk) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "chunk"); err != nil {
		return err
	}
	if err := parseRunID(data, &c.RunID); err != nil {
		return err
	}

	content := gjson.GetBytes(data, "content")
	if !content.Exists() {
		return errors.New("missing required field 'content'")
	}
	c.Content = content.String()
	return parseTimestamp(data, &c.Timestamp)
}

func (r Response) MarshalJSON() ([]byte, error) {
	result := []byte(`{"type":"response"}`)

	var err error
	result, err = sjson.SetBytes(result, "run_id", r.RunID.String())
	if err != nil {
		return nil, err
	}
	if r.Model != "" {
		result, err = sjson.SetBytes(result, "model", r.Model)
		if err != nil {
			return nil, err
		}
	}
	result, err = sjson.SetBytes(result, "content", r.Content)
	if err != nil {
		return nil, err
	}
	if r.FinishReason != "" {
		result, err = sjson.SetBytes(result, "finish_reason", r.FinishReason)
		if err != nil {
			return nil, err
		}
	}
	return setTimestamp(result, r.Timestamp)
}

func (r *Response) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "response"); err != nil {
		return err
	}
	if err := parseRunID(data, &r.RunID); err != nil {
		return err
	}

	content := gjson.GetBytes(data, "content")
	if !content.Exists() {
		return errors.New("missing required field 'content'")
	}
	r.Content = content.String()
	r.Model = gjson.GetBytes(data, "model").String()
	r.FinishReason = gjson.GetBytes(data, "finish_reason").String()
	return parseTimestamp(data, &r.Timestamp)
}

func (e Error) MarshalJSON() ([]byte, error) {
	result := []byte(`{"type":"error"}`)

	var err error
	result, err = sjson.SetBytes(result, "run_id", e.RunID.String())
	if err != nil {
		return nil, err
	}
	if e.Err != nil {
		result, err = sjson.SetBytes(result, "error", e.Err.Error())
		if err != nil {
			return nil, err
		}
	}
	return setTimestamp(result, e.Timestamp)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	if err := checkType(data, "error"); err != nil {
		return err
	}
	if err := parseRunID(data, &e.RunID); err != nil {
		return err
	}

	errMsg := gjson.GetBytes(data, "error")
	if !errMsg.Exists() {
		return errors.New("missing required field 'error'")
	}
	e.Err = errors.New(errMsg.String())
	return parseTimestamp(data, &e.Timestamp)
}

func checkType(data []byte, want string) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	if tpe := gjson.GetBytes(data, "type"); tpe.String() != want {
		return fmt.Errorf("missing or invalid type, expected '%s'", want)
	}
	return nil
}

func parseRunID(data []byte, dst *uuid.UUID) error {
	runID := gjson.GetBytes(data, "run_id")
	if !runID.Exists() {
		return errors.New("missing required field 'run_id'")
	}
	if err := dst.UnmarshalText([]byte(runID.String())); err != nil {
		return fmt.Errorf("invalid run_id: %w", err)
	}
	return nil
}

func setTimestamp(result []byte, ts strfmt.DateTime) ([]byte, error) {
	if ts.IsZero() {
		return result, nil
	}
	return sjson.SetBytes(result, "timestamp", ts.String())
}

func parseTimestamp(data []byte, dst *strfmt.DateTime) error {
	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := dst.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	return nil
}
