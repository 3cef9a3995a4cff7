/*
Package openai implements provider.Provider for OpenAI's chat models.

Catalog registers the supported chat models behind one client, created when
the first completion starts:

	models := openai.Catalog(option.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
	model, err := models.Get("gpt-4o-mini")

A streaming completion emits a start delimiter, the content chunks, an end
delimiter and finally the accumulated response. A non-streaming completion
emits only the response. Request failures and context cancellation arrive as a
provider.Error event before the channel closes.
*/
package openai
