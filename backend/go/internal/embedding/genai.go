package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GoogleModel 是一个用于 Gemini Embedding API 的客户端。
type GoogleModel struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

// NewGoogleModel 创建一个新的 GoogleModel 客户端。
func NewGoogleModel(apiKey, modelName string) (*GoogleModel, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GoogleModel{client: client, model: client.EmbeddingModel(modelName)}, nil
}

// Embed 为单个文本生成嵌入向量。
func (m *GoogleModel) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := m.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}
	return res.Embedding.Values, nil
}

// EmbedBatch 为一批文本生成嵌入向量。
func (m *GoogleModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedInBatches(ctx, texts, func(ctx context.Context, batch []string) ([][]float32, error) {
		b := m.model.NewBatch()
		for _, text := range batch {
			b.AddContent(genai.Text(text))
		}
		res, err := m.model.BatchEmbedContents(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("gemini batch embed failed: %w", err)
		}
		embeddings := make([][]float32, 0, len(res.Embeddings))
		for _, emb := range res.Embeddings {
			embeddings = append(embeddings, emb.Values)
		}
		return embeddings, nil
	})
}

// Close 释放底层的 gRPC 连接。
func (m *GoogleModel) Close() error {
	return m.client.Close()
}
