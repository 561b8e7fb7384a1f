package pipeline

import (
	"context"
	"fmt"
	"strings"

	"Memora/backend/go/internal/rag/interfaces"
	"Memora/backend/go/internal/rag/schema"
	"Memora/backend/go/pkg/logger"
)

// NoDocumentsAnswer is returned without calling the model when nothing relevant was retrieved.
const NoDocumentsAnswer = "No relevant documents were found in this knowledge base."

// QAPipeline answers a question from a set of retrieved documents.
type QAPipeline struct {
	llm interfaces.LLM
	log *logger.Logger
}

// NewQAPipeline creates a new QAPipeline.
func NewQAPipeline(llm interfaces.LLM, log *logger.Logger) *QAPipeline {
	return &QAPipeline{llm: llm, log: log}
}

// Run builds a system prompt listing documents and asks the model to answer question.
func (p *QAPipeline) Run(ctx context.Context, question string, documents []*schema.Document) (string, error) {
	if len(documents) == 0 {
		return NoDocumentsAnswer, nil
	}

	p.log.Info(fmt.Sprintf("Answering question with %d documents", len(documents)))
	answer, err := p.llm.Generate(ctx, buildSystemPrompt(documents), question)
	if err != nil {
		p.log.Error(fmt.Sprintf("LLM failed to generate answer: %v", err))
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func buildSystemPrompt(documents []*schema.Document) string {
	var sb strings.Builder
	sb.WriteString("You answer questions using only the documents below, which come from the user's own saved collections. ")
	sb.WriteString("If the documents do not contain the answer, say so briefly. Answer in the language of the question.\n\nDocuments:\n")
	for i, doc := range documents {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, doc.Text))
	}
	sb.WriteString("---\n")
	return sb.String()
}
