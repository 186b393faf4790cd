package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/wellness-commerce-bot/internal/catalog"
)

func TestRuleResponder(t *testing.T) {
	cat := catalog.New(testLinks)
	ctx := context.Background()

	t.Run("price rule skips llm", func(t *testing.T) {
		llm := &stubLLMClient{resp: LLMResponse{Text: "ai"}}
		got := NewRuleResponder(cat, llm, nil).Respond(ctx, "¿Cuál es el COSTO?", testUser)
		assert.Equal(t, cat.PriceRule(), got)
		assert.Zero(t, llm.calls)
	})

	t.Run("how it works rule", func(t *testing.T) {
		got := NewRuleResponder(cat, nil, nil).Respond(ctx, "¿qué es esto?", testUser)
		assert.Equal(t, cat.HowItWorksRule(), got)
	})

	t.Run("llm answer with sales prompt", func(t *testing.T) {
		llm := &stubLLMClient{resp: LLMResponse{Text: "Te recomiendo la terapia."}}
		got := NewRuleResponder(cat, llm, nil).Respond(ctx, "tengo insomnio", testUser)
		assert.Equal(t, "Te recomiendo la terapia.", got)
		assert.Equal(t, cat.SalesPrompt(), llm.last.SystemPrompt)
		assert.Equal(t, "tengo insomnio", llm.last.Messages[0].Content)
		assert.Equal(t, int32(llmMaxTokens), llm.last.MaxTokens)
	})

	t.Run("truncated llm answer is still sent", func(t *testing.T) {
		llm := &stubLLMClient{resp: LLMResponse{Text: "La terapia dura", Provider: "gemini", FinishReason: "FinishReasonMaxTokens"}}
		got := NewRuleResponder(cat, llm, nil).Respond(ctx, "tengo insomnio", testUser)
		assert.Equal(t, "La terapia dura", got)
	})

	t.Run("llm failure sends greeting", func(t *testing.T) {
		llm := &stubLLMClient{err: errors.New("timeout")}
		got := NewRuleResponder(cat, llm, nil).Respond(ctx, "tengo insomnio", testUser)
		assert.Equal(t, cat.Greeting(), got)
	})

	t.Run("blank llm answer sends greeting", func(t *testing.T) {
		llm := &stubLLMClient{resp: LLMResponse{Text: "  "}}
		got := NewRuleResponder(cat, llm, nil).Respond(ctx, "hola", testUser)
		assert.Equal(t, cat.Greeting(), got)
	})
}
