package embedding

import (
	"context"
	"fmt"

	"Memora/backend/go/internal/config"
)

// maxBatchSize 是单次请求发送给提供商的最大文本数量。
const maxBatchSize = 64

// NewFromConfig 根据配置中的提供商创建 Embedding 模型实例。
//
// 参数:
//
//	cfg: Embedding 配置，Provider 取值为 "openai"、"gemini" 或 "ollama"。
//
// 返回值:
//
//	Embedding: 新创建的 Embedding 模型实例。
//	error: 如果提供商不支持或模型初始化失败，则返回错误。
func NewFromConfig(cfg config.EmbeddingConfig) (Embedding, error) {
	switch ModelType(cfg.Provider) {
	case OpenAI:
		return NewOpenAIModel(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	case Gemini:
		return NewGoogleModel(cfg.Gemini.APIKey, cfg.Gemini.Model)
	case Ollama:
		return NewOllamaModel(cfg.Ollama.Model, cfg.Ollama.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// embedInBatches 将文本按 maxBatchSize 分组后依次调用 fn，并校验返回数量。
func embedInBatches(ctx context.Context, texts []string, fn func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(texts))
		vectors, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(vectors), end-start)
		}
		out = append(out, vectors...)
	}
	return out, nil
}
