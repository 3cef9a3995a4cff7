package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/casualjim/reagent/provider"
	"github.com/go-openapi/strfmt"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultTemperature = 0.1

var _ provider.Provider = (*Provider)(nil)

type Provider struct {
	client *openai.Client
}

func New(options ...option.RequestOption) *Provider {
	client := openai.NewClient(options...)
	return &Provider{
		client: client,
	}
}

func (p *Provider) buildRequest(params *provider.CompletionParams) (openai.ChatCompletionNewParams, error) {
	if params.Model == nil {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("completion for run %s has no model", params.RunID)
	}
	if strings.TrimSpace(params.Query) == "" && len(params.Thread) == 0 {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("completion for run %s has no prompt", params.RunID)
	}

	temperature := defaultTemperature
	if params.Temperature != nil {
		temperature = *params.Temperature
	}

	oaiParams := openai.ChatCompletionNewParams{
		Messages:    openai.F(messagesToOpenAI(params.Instructions, params.Thread, params.Query)),
		Model:       openai.F(params.Model.Name()),
		N:           openai.Int(1),
		Temperature: openai.Float(temperature),
	}
	if strings.TrimSpace(params.Sender) != "" {
		oaiParams.User = openai.String(params.Sender)
	}
	return oaiParams, nil
}

// ChatCompletion starts a completion and streams its events. Callers must
// drain the returned channel until it is closed.
func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	chatParams, err := p.buildRequest(&params)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	events := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(events)
		if params.Stream {
			p.runStream(ctx, chatParams, &params, events)
		} else {
			p.runOnce(ctx, chatParams, &params, events)
		}
	}()
	return events, nil
}

func (p *Provider) runStream(ctx context.Context, params openai.ChatCompletionNewParams, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	strm := p.client.Chat.Completions.NewStreaming(ctx, params)

	if strm.Err() != nil {
		events <- errorEvent(command, strm.Err())
		strm.Close()
		return
	}

	defer func() {
		strm.Close()
		if err := ctx.Err(); err != nil {
			events <- errorEvent(command, err)
		}
	}()

	var notFirst bool
	var acc openai.ChatCompletionAccumulator

	for strm.Next() {
		if err := ctx.Err(); err != nil {
			return
		}

		if !notFirst {
			notFirst = true
			events <- provider.Delim{RunID: command.RunID, Delim: provider.DelimStart}
		}

		chunk := strm.Current()
		acc.AddChunk(chunk)
		if ev, ok := completionChunkToStreamEvent(&chunk, command); ok {
			events <- ev
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err := strm.Err(); err != nil {
		events <- errorEvent(command, err)
		return
	}
	if notFirst {
		events <- provider.Delim{RunID: command.RunID, Delim: provider.DelimEnd}
	}
	events <- completionToStreamEvent(&acc.ChatCompletion, command)
}

func (p *Provider) runOnce(ctx context.Context, params openai.ChatCompletionNewParams, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	chat, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		events <- errorEvent(command, err)
		return
	}

	events <- completionToStreamEvent(chat, command)
}

func messagesToOpenAI(instructions string, thread []provider.Message, query string) []openai.ChatCompletionMessageParamUnion {
	var result []openai.ChatCompletionMessageParamUnion
	if strings.TrimSpace(instructions) != "" {
		result = append(result, openai.SystemMessage(instructions))
	}
	for _, msg := range thread {
		switch msg.Role {
		case provider.RoleAssistant:
			result = append(result, openai.ChatCompletionAssistantMessageParam{
				Role:    openai.F(openai.ChatCompletionAssistantMessageParamRoleAssistant),
				Content: openai.F([]openai.ChatCompletionAssistantMessageParamContentUnion{openai.TextPart(msg.Content)}),
			})
		default:
			result = append(result, openai.UserMessageParts(openai.TextPart(msg.Content)))
		}
	}
	if strings.TrimSpace(query) != "" {
		result = append(result, openai.UserMessageParts(openai.TextPart(query)))
	}
	return result
}

func completionChunkToStreamEvent(chunk *openai.ChatCompletionChunk, command *provider.CompletionParams) (provider.StreamEvent, bool) {
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return nil, false
	}
	return provider.Chunk{
		RunID:     command.RunID,
		Content:   chunk.Choices[0].Delta.Content,
		Timestamp: strfmt.DateTime(time.Now()),
	}, true
}

func completionToStreamEvent(chat *openai.ChatCompletion, command *provider.CompletionParams) provider.StreamEvent {
	if len(chat.Choices) == 0 {
		return provider.Delim{RunID: command.RunID, Delim: provider.DelimEmpty}
	}

	choice := chat.Choices[0]
	return provider.Response{
		RunID:        command.RunID,
		Model:        chat.Model,
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Timestamp:    strfmt.DateTime(time.Now()),
	}
}

func errorEvent(command *provider.CompletionParams, err error) provider.Error {
	return provider.Error{
		RunID:     command.RunID,
		Err:       err,
		Timestamp: strfmt.DateTime(time.Now()),
	}
}
