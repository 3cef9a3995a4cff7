package nodes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/casualjim/reagent/nodetype"
	"github.com/casualjim/reagent/pkg/slogx"
	"github.com/casualjim/reagent/provider"
	"github.com/casualjim/reagent/render"
)

const ChatCompletionTypeID = "@core/chat-completion"

// Config keys understood by the chat completion node.
const (
	ConfigSystemPrompt = "systemPrompt"
	ConfigTemperature  = "temperature"
	ConfigStream       = "stream"
)

// ErrNoResponse is returned when a completion stream ends without an answer.
var ErrNoResponse = errors.New("completion ended without a response")

// ChatCompletion returns the chat completion kind. The model input names a
// model in models; the query is sent with the configured system prompt. The
// stream output carries the accumulated answer after every chunk, markdown
// carries only the final answer.
func ChatCompletion(models *provider.Models) *nodetype.NodeType {
	return &nodetype.NodeType{
		ID:          ChatCompletionTypeID,
		Version:     "1.0.0",
		Description: "Asks a model to answer a query",
		Inputs: nodetype.NewSchema(
			nodetype.NewSlot("model", nodetype.String).Describe("name of the model to call"),
			nodetype.NewSlot("query", nodetype.String).Describe("user prompt"),
			nodetype.NewSlot("history", nodetype.Of[[]provider.Message]()).AsOptional().Describe("preceding conversation"),
		),
		Outputs: nodetype.NewSchema(
			nodetype.NewSlot("markdown", nodetype.String).Describe("final answer"),
			nodetype.NewSlot("stream", nodetype.String).Streamed().Describe("answer so far"),
		),
		Compute: func(ctx context.Context, call nodetype.Call) error {
			return chatCompletion(ctx, call, models)
		},
	}
}

func chatCompletion(ctx context.Context, call nodetype.Call, models *provider.Models) error {
	name, _ := call.Input("model")
	query, _ := call.Input("query")
	history, _ := call.Input("history")

	model, err := models.Get(fmt.Sprint(name))
	if err != nil {
		return err
	}

	cfg := call.Config()
	params := provider.CompletionParams{
		RunID:        call.RunID(),
		Instructions: cfg.GetString(ConfigSystemPrompt, ""),
		Query:        fmt.Sprint(query),
		Stream:       cfg.GetBool(ConfigStream, true),
		Model:        model,
	}
	if msgs, ok := history.([]provider.Message); ok {
		params.Thread = msgs
	}
	if _, ok := cfg[ConfigTemperature]; ok {
		params.Temperature = provider.Temperature(cfg.GetFloat(ConfigTemperature, 0))
	}

	logger := call.Logger().With(slog.String("model", model.Name()))
	events, err := model.Provider().ChatCompletion(ctx, params)
	if err != nil {
		return fmt.Errorf("chat completion with %s: %w", model.Name(), err)
	}
	drained := false
	defer func() {
		if !drained {
			go func() {
				for range events {
				}
			}()
		}
	}()

	var (
		answer   strings.Builder
		response *provider.Response
	)
	for event := range events {
		switch e := event.(type) {
		case provider.Chunk:
			answer.WriteString(e.Content)
			if err := call.Emit(ctx, "stream", answer.String()); err != nil {
				return err
			}
			call.Render(ctx, render.StepToken, e.Content)
		case provider.Response:
			response = &e
		case provider.Error:
			logger.ErrorContext(ctx, "chat completion failed", slogx.Error(e.Err))
			return fmt.Errorf("chat completion with %s: %w", model.Name(), e.Err)
		case provider.Delim:
			if e.Delim == provider.DelimEmpty {
				logger.WarnContext(ctx, "model returned no choices")
			}
		}
	}
	drained = true

	if response == nil {
		return ErrNoResponse
	}
	logger.DebugContext(ctx, "chat completion finished", slog.String("finish_reason", response.FinishReason))

	if err := call.Complete(ctx, "stream", response.Content); err != nil {
		return err
	}
	return call.Complete(ctx, "markdown", response.Content)
}
