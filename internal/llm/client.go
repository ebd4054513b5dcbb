package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/insights"
	"github.com/liaxp/backend/internal/metrics"
	"github.com/liaxp/backend/pkg/circuitbreaker"
	"github.com/liaxp/backend/pkg/logger"
	"github.com/liaxp/backend/pkg/retry"
)

const systemPersona = `Você é a Lia, assistente de vendas do time. Você conversa pelo WhatsApp com vendedores de varejo.

Suas respostas devem:
1. Ser curtas e diretas (no máximo 3 frases)
2. Usar os números fornecidos no contexto, nunca inventar valores
3. Ter tom motivador e próximo, como uma colega de equipe
4. Usar português brasileiro informal`

type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(apiKey, model string, temperature float32, maxTokens, timeoutSec int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized", zap.String("model", model))

	return &Client{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     time.Duration(timeoutSec) * time.Second,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)
			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

// PolishMessage rewrites a templated coach message into a more natural tone
// without changing its numbers. Callers keep the template on error.
func (c *Client) PolishMessage(ctx context.Context, draft, sellerName string) (string, error) {
	userPrompt := fmt.Sprintf(`Reescreva a mensagem abaixo para %s mantendo TODOS os números e valores exatamente iguais. Apenas deixe o tom mais natural e pessoal.

Mensagem:
%s`, sellerName, draft)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPersona,
		UserPrompt:   userPrompt,
		Temperature:  0.7,
		MaxTokens:    400,
	})

	if err != nil {
		return "", fmt.Errorf("failed to polish message: %w", err)
	}

	polished := strings.TrimSpace(resp.Content)
	if polished == "" {
		return "", fmt.Errorf("empty completion")
	}

	return polished, nil
}

// AnswerQuestion handles chat messages that matched no keyword intent,
// grounded on the seller's cached numbers.
func (c *Client) AnswerQuestion(ctx context.Context, question, sellerName string, result *insights.Result) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Vendas do mês: R$ %.2f\n", result.TotalSales)
	fmt.Fprintf(&sb, "Ticket médio: R$ %.2f\n", result.AvgTicket)
	fmt.Fprintf(&sb, "Falta para a meta: R$ %.2f\n", result.GoalGap)
	fmt.Fprintf(&sb, "Progresso da meta: %.1f%%\n", result.GoalProgress)

	userPrompt := fmt.Sprintf(`Vendedor: %s
Números do mês:
%s
Pergunta: %s

Responda usando apenas os números acima.`, sellerName, sb.String(), question)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPersona,
		UserPrompt:   userPrompt,
		Temperature:  0.6,
		MaxTokens:    300,
	})

	if err != nil {
		return "", fmt.Errorf("failed to answer question: %w", err)
	}

	return strings.TrimSpace(resp.Content), nil
}
