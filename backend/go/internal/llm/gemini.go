package llm

import (
	"context"
	"errors"
	"fmt"

	"Memora/backend/go/internal/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Gemini 是一个实现了 LLM 接口的结构体，用于与 Gemini API 交互。
// 每次请求都创建独立的 GenerativeModel，因此可以并发使用。
type Gemini struct {
	client    *genai.Client
	modelName string
}

// NewGemini 创建一个新的 Gemini 客户端。
func NewGemini(ctx context.Context, model, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{client: client, modelName: model}, nil
}

// GenerateContent 向 Gemini API 发送请求并返回响应。
func (g *Gemini) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	model, parts := g.prepare(req)
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}
	return fromGenaiResponse(resp, g.modelName), nil
}

// GenerateContentStream 以流式方式调用 Gemini API。
func (g *Gemini) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	model, parts := g.prepare(req)
	iter := model.GenerateContentStream(ctx, parts...)

	ch := make(chan *models.GenerateContentResponse)
	go func() {
		defer close(ch)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				send(ctx, ch, &models.GenerateContentResponse{Err: fmt.Errorf("gemini stream failed: %w", err)})
				return
			}
			if !send(ctx, ch, fromGenaiResponse(resp, g.modelName)) {
				return
			}
		}
	}()
	return ch, nil
}

// Close 释放底层连接。
func (g *Gemini) Close() error {
	return g.client.Close()
}

// prepare 将系统提示词放入 SystemInstruction，其余消息作为用户输入。
func (g *Gemini) prepare(req *models.GenerateContentRequest) (*genai.GenerativeModel, []genai.Part) {
	model := g.client.GenerativeModel(g.modelName)
	var parts []genai.Part
	for _, c := range req.Content {
		for _, p := range c.Parts {
			if p.Text == "" {
				continue
			}
			if c.Role == models.SpeakerSystem {
				model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(p.Text)}}
				continue
			}
			parts = append(parts, genai.Text(p.Text))
		}
	}
	return model, parts
}

func fromGenaiResponse(resp *genai.GenerateContentResponse, model string) *models.GenerateContentResponse {
	var text string
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text += string(t)
				}
			}
			break
		}
	}
	return textResponse(text, "", model)
}
