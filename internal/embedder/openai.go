package embedder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements Provider using the OpenAI embeddings API, or any
// endpoint compatible with it
type OpenAIProvider struct {
	client    openai.Client
	model     string
	baseURL   string
	dimension int
}

// NewOpenAIProvider creates a new OpenAI provider. Empty model and baseURL
// select the defaults; dimension 0 selects the model's native size.
func NewOpenAIProvider(apiKey, model, baseURL string, dimension int) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL+"/"),
		option.WithMaxRetries(MaxRetries),
		option.WithRequestTimeout(requestTimeout),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		baseURL:   baseURL,
		dimension: dimension,
	}, nil
}

// Embed embeds texts in sub-batches of at most MaxBatchSize
func (o *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		batch := texts[start:min(start+MaxBatchSize, len(texts))]

		embedded, err := o.callAPI(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		if err := checkBatch(batch, embedded, o.dimension); err != nil {
			return nil, err
		}
		vectors = append(vectors, embedded...)
	}

	return vectors, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(o.model),
	}
	if o.dimension > 0 {
		params.Dimensions = openai.Int(int64(o.dimension))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}

	data := resp.Data
	sort.SliceStable(data, func(a, b int) bool {
		return data[a].Index < data[b].Index
	})

	vectors := make([][]float32, len(data))
	for i, d := range data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (o *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Dimension() int {
	if o.dimension > 0 {
		return o.dimension
	}
	if o.model == DefaultOpenAIModel {
		return OpenAIDimension
	}
	return 0
}

func (o *OpenAIProvider) CacheKey() string {
	return fmt.Sprintf("%s|dim=%d", o.baseURL, o.dimension)
}

func (o *OpenAIProvider) Close() error {
	return nil
}
