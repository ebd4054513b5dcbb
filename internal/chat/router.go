package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/insights"
	"github.com/liaxp/backend/internal/messaging"
	"github.com/liaxp/backend/internal/metrics"
	"github.com/liaxp/backend/internal/storage/models"
	"github.com/liaxp/backend/pkg/logger"
)

// Intent is the recognized purpose of an inbound seller message.
type Intent string

const (
	IntentGoalGap   Intent = "goal_gap"
	IntentTips      Intent = "tips"
	IntentRanking   Intent = "ranking"
	IntentFocus     Intent = "focus"
	IntentAvgTicket Intent = "avg_ticket"
	IntentUnknown   Intent = "unknown"
)

const fallbackReply = "Desculpe, não entendi sua mensagem. Tente perguntar sobre metas, ranking ou dicas."
const unknownSellerReply = "Desculpe, não consegui identificar seu perfil. Entre em contato com o administrador."

// InsightCalculator computes live insights for chat replies. Chat answers the
// current numbers, not the last training snapshot.
type InsightCalculator interface {
	Calculate(companyID, storeID, sellerID string, asOf time.Time) (*insights.Result, error)
}

// SellerDirectory resolves the sender.
type SellerDirectory interface {
	GetSellerByPhone(companyID, phoneE164 string) (*models.Seller, error)
}

// LogStore persists both the raw delivery log and the conversation history.
type LogStore interface {
	InsertMessageLog(entry *models.MessageLogEntry) error
	InsertChatMessage(msg *models.ChatMessage) error
}

// Answerer handles questions no keyword matched; optional.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question, sellerName string, result *insights.Result) (string, error)
}

// Reply is the outbound answer to one inbound message.
type Reply struct {
	Intent   Intent `json:"intent"`
	Response string `json:"response"`
}

// Router classifies inbound seller messages by keyword and answers from live
// insights. The inbound message is always logged before the reply is sent.
type Router struct {
	engine   InsightCalculator
	sellers  SellerDirectory
	log      LogStore
	provider messaging.Provider
	answerer Answerer
	now      func() time.Time
}

func NewRouter(engine InsightCalculator, sellers SellerDirectory, log LogStore, provider messaging.Provider, answerer Answerer) *Router {
	return &Router{
		engine:   engine,
		sellers:  sellers,
		log:      log,
		provider: provider,
		answerer: answerer,
		now:      time.Now,
	}
}

// ClassifyIntent maps a message to an intent by keyword. First match wins,
// checked in fixed order.
func ClassifyIntent(message string) Intent {
	m := strings.ToLower(message)

	switch {
	case strings.Contains(m, "meta") || strings.Contains(m, "falta"):
		return IntentGoalGap
	case strings.Contains(m, "dica") || strings.Contains(m, "ajuda") || strings.Contains(m, "melhorar"):
		return IntentTips
	case strings.Contains(m, "ranking") || strings.Contains(m, "posição"):
		return IntentRanking
	case strings.Contains(m, "foco") || strings.Contains(m, "priorizar"):
		return IntentFocus
	case strings.Contains(m, "ticket"):
		return IntentAvgTicket
	default:
		return IntentUnknown
	}
}

// HandleInbound logs the inbound message, builds a reply and sends it back
// through the provider. The reply is returned even when the send fails; the
// failure lands in the delivery log.
func (r *Router) HandleInbound(ctx context.Context, companyID, phoneE164, text string) (*Reply, error) {
	now := r.now()
	intent := ClassifyIntent(text)

	if err := r.log.InsertMessageLog(&models.MessageLogEntry{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		Direction: models.DirectionInbound,
		PhoneFrom: phoneE164,
		Message:   text,
		Status:    models.MessageStatusSent,
		SentAt:    now,
	}); err != nil {
		return nil, fmt.Errorf("failed to log inbound message: %w", err)
	}

	if err := r.log.InsertChatMessage(&models.ChatMessage{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		PhoneE164: phoneE164,
		Direction: models.DirectionInbound,
		Message:   text,
		Intent:    string(intent),
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to save chat message: %w", err)
	}

	reply, err := r.buildReply(ctx, companyID, phoneE164, text)
	if err != nil {
		return nil, err
	}

	metrics.ChatIntents.WithLabelValues(string(reply.Intent)).Inc()

	if err := r.sendReply(ctx, companyID, phoneE164, reply); err != nil {
		logger.Warn("Failed to send chat reply",
			zap.String("company_id", companyID),
			zap.String("phone", phoneE164),
			zap.Error(err),
		)
	}

	return reply, nil
}

func (r *Router) buildReply(ctx context.Context, companyID, phoneE164, text string) (*Reply, error) {
	seller, err := r.sellers.GetSellerByPhone(companyID, phoneE164)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve seller: %w", err)
	}
	if seller == nil {
		return &Reply{Intent: IntentUnknown, Response: unknownSellerReply}, nil
	}

	intent := ClassifyIntent(text)

	var response string
	switch intent {
	case IntentGoalGap:
		response, err = r.goalGapReply(companyID, seller.ID)
	case IntentTips:
		response, err = r.tipsReply(companyID, seller.ID)
	case IntentRanking:
		response, err = r.rankingReply(companyID, seller.ID)
	case IntentFocus:
		response, err = r.focusReply(companyID, seller.ID)
	case IntentAvgTicket:
		response, err = r.avgTicketReply(companyID, seller.ID)
	default:
		response, err = r.unknownReply(ctx, companyID, seller, text)
	}
	if err != nil {
		return nil, err
	}

	return &Reply{Intent: intent, Response: response}, nil
}

func (r *Router) sendReply(ctx context.Context, companyID, phoneE164 string, reply *Reply) error {
	if err := r.log.InsertChatMessage(&models.ChatMessage{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		PhoneE164: phoneE164,
		Direction: models.DirectionOutbound,
		Message:   reply.Response,
		Intent:    string(reply.Intent),
		CreatedAt: r.now(),
	}); err != nil {
		return err
	}

	if r.provider == nil {
		return nil
	}

	sendResult, err := r.provider.Send(ctx, phoneE164, reply.Response, companyID)
	if err != nil {
		sendResult = &messaging.SendResult{Success: false, Error: err.Error()}
	}

	status := models.MessageStatusSent
	if !sendResult.Success {
		status = models.MessageStatusFailed
	}

	return r.log.InsertMessageLog(&models.MessageLogEntry{
		ID:           uuid.NewString(),
		CompanyID:    companyID,
		Direction:    models.DirectionOutbound,
		PhoneTo:      phoneE164,
		Message:      reply.Response,
		Provider:     r.provider.ProviderName(),
		ExternalID:   sendResult.ExternalID,
		Status:       status,
		SentAt:       r.now(),
		ErrorMessage: sendResult.Error,
	})
}

func (r *Router) goalGapReply(companyID, sellerID string) (string, error) {
	result, err := r.engine.Calculate(companyID, "", sellerID, r.now())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Você atingiu %.1f%% da sua meta! Falta R$ %.2f para completar. Continue assim! 💪",
		result.GoalProgress, result.GoalGap), nil
}

func (r *Router) tipsReply(companyID, sellerID string) (string, error) {
	result, err := r.engine.Calculate(companyID, "", sellerID, r.now())
	if err != nil {
		return "", err
	}
	return "Aqui estão algumas dicas personalizadas para você:\n\n" + strings.Join(result.Suggestions, "\n"), nil
}

func (r *Router) rankingReply(companyID, sellerID string) (string, error) {
	result, err := r.engine.Calculate(companyID, "", "", r.now())
	if err != nil {
		return "", err
	}

	for _, entry := range result.Rankings {
		if entry.SellerID == sellerID {
			return fmt.Sprintf("Você está em %dº lugar com R$ %.2f em vendas! 🎯",
				entry.Rank, entry.TotalSales), nil
		}
	}

	return "Não consegui encontrar seu ranking no momento.", nil
}

func (r *Router) focusReply(companyID, sellerID string) (string, error) {
	result, err := r.engine.Calculate(companyID, "", sellerID, r.now())
	if err != nil {
		return "", err
	}
	return "Áreas de foco para você:\n\n" + strings.Join(result.FocusAreas, "\n"), nil
}

func (r *Router) avgTicketReply(companyID, sellerID string) (string, error) {
	result, err := r.engine.Calculate(companyID, "", sellerID, r.now())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Seu ticket médio atual é R$ %.2f. "+
		"Sugestões para aumentar: ofereça produtos complementares, faça upsell, e destaque itens premium.",
		result.AvgTicket), nil
}

func (r *Router) unknownReply(ctx context.Context, companyID string, seller *models.Seller, text string) (string, error) {
	if r.answerer == nil {
		return fallbackReply, nil
	}

	result, err := r.engine.Calculate(companyID, "", seller.ID, r.now())
	if err != nil {
		return fallbackReply, nil
	}

	answer, err := r.answerer.AnswerQuestion(ctx, text, seller.Name, result)
	if err != nil {
		logger.Warn("LLM chat fallback failed", zap.Error(err))
		return fallbackReply, nil
	}

	return answer, nil
}
