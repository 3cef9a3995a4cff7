// Package provider defines the contract between node computations and model
// providers (OpenAI, ...). A completion is delivered as a stream of events on a
// channel that the provider closes when it is done.
//
// The stream for a streaming request looks like:
//
//  1. Delim{"start"} before the first chunk
//  2. Chunk events carrying incremental content
//  3. Delim{"end"} once the model stopped producing
//  4. Response carrying the complete answer
//
// A non-streaming request yields only the Response. Any failure is reported as a
// single Error event, after which the channel is closed.
//
// Example usage:
//
//	models := openai.Catalog()
//	model, err := models.Get("gpt-4o-mini")
//	if err != nil {
//	    return err
//	}
//	events, err := model.Provider().ChatCompletion(ctx, provider.CompletionParams{
//	    RunID:        runID,
//	    Instructions: "You are a helpful assistant",
//	    Query:        "What's the weather in Paris?",
//	    Stream:       true,
//	    Model:        model,
//	})
//	if err != nil {
//	    return err
//	}
//	for event := range events {
//	    switch e := event.(type) {
//	    case provider.Chunk:
//	        fmt.Print(e.Content)
//	    case provider.Response:
//	        // complete answer
//	    case provider.Error:
//	        return e
//	    }
//	}
package provider
