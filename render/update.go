package render

import (
	"fmt"
	"time"

	"github.com/casualjim/reagent/nodetype"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Well known steps. Node kinds are free to use their own.
const (
	StepNodeState = "node_state"
	StepToken     = "token"
	StepStream    = "stream"
	StepMessage   = "message"
)

type Render struct {
	Step string `json:"step"`
	Data any    `json:"data,omitempty"`
}

// Update is one progress notification of a node during a run.
type Update struct {
	RunID     uuid.UUID        `json:"run"`
	Node      nodetype.NodeRef `json:"node"`
	Render    Render           `json:"render"`
	Timestamp strfmt.DateTime  `json:"timestamp"`
}

// NewUpdate stamps an update with the current time.
func NewUpdate(runID uuid.UUID, node nodetype.NodeRef, step string, data any) Update {
	return Update{
		RunID:     runID,
		Node:      node,
		Render:    Render{Step: step, Data: data},
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

func (u Update) MarshalJSON() ([]byte, error) {
	result := []byte(`{}`)

	var err error
	result, err = sjson.SetBytes(result, "run", u.RunID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "node.id", u.Node.ID)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "node.type", u.Node.Type)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "node.version", u.Node.Version)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "render.step", u.Render.Step)
	if err != nil {
		return nil, err
	}
	if u.Render.Data != nil {
		dataBytes, err := json.Marshal(u.Render.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid render data: %w", err)
		}
		result, err = sjson.SetRawBytes(result, "render.data", dataBytes)
		if err != nil {
			return nil, err
		}
	}

	if !u.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", u.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (u *Update) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	run := gjson.GetBytes(data, "run")
	if !run.Exists() {
		return fmt.Errorf("missing required field 'run'")
	}
	if err := u.RunID.UnmarshalText([]byte(run.String())); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	node := gjson.GetBytes(data, "node")
	if !node.IsObject() {
		return fmt.Errorf("missing required field 'node'")
	}
	u.Node = nodetype.NodeRef{
		ID:      node.Get("id").String(),
		Type:    node.Get("type").String(),
		Version: node.Get("version").String(),
	}

	step := gjson.GetBytes(data, "render.step")
	if !step.Exists() {
		return fmt.Errorf("missing required field 'render.step'")
	}
	u.Render = Render{Step: step.String()}
	if d := gjson.GetBytes(data, "render.data"); d.Exists() {
		if err := json.Unmarshal([]byte(d.Raw), &u.Render.Data); err != nil {
			return fmt.Errorf("invalid render data: %w", err)
		}
	}

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := u.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	return nil
}
