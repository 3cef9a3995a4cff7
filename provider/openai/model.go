package openai

import (
	"context"
	"sync"

	"github.com/casualjim/reagent/pkg/stdx"
	"github.com/casualjim/reagent/provider"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ChatModels names the models Catalog registers.
var ChatModels = []string{
	string(openai.ChatModelGPT4oMini),
	string(openai.ChatModelGPT4o),
	string(openai.ChatModelO1Mini),
}

// Catalog returns a model catalog holding every chat model in ChatModels.
// The models share one client, created when the first completion starts.
func Catalog(opts ...option.RequestOption) *provider.Models {
	shared := Shared(opts...)
	models := provider.NewModels()
	for _, name := range ChatModels {
		stdx.Must0(models.Add(provider.NewModel(name, shared)))
	}
	return models
}

// Shared returns a provider that creates its client on first use.
func Shared(opts ...option.RequestOption) provider.Provider {
	return &deferred{opts: opts}
}

type deferred struct {
	opts []option.RequestOption
	once sync.Once
	prov *Provider
}

func (d *deferred) get() *Provider {
	d.once.Do(func() { d.prov = New(d.opts...) })
	return d.prov
}

func (d *deferred) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	return d.get().ChatCompletion(ctx, params)
}
