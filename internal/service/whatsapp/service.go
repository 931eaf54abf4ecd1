package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/config"
	"github.com/mamadbah2/rabbitry/internal/domain/models"
	client "github.com/mamadbah2/rabbitry/pkg/clients/whatsapp"
)

const (
	sendTimeout  = 10 * time.Second
	failureReply = "Something went wrong while saving that. Please try again later."
)

// ErrVerification is returned when a webhook verification handshake is rejected.
var ErrVerification = errors.New("webhook verification failed")

// MessagingService describes the operations the HTTP layer can perform.
type MessagingService interface {
	VerifyWebhookToken(mode, verifyToken, challenge string) (string, error)
	HandleWebhook(ctx context.Context, payload models.WebhookPayload) error
}

// Dispatcher executes a parsed chat command and renders the reply.
type Dispatcher interface {
	HandleCommand(ctx context.Context, actor, farmID string, cmd models.Command) (string, error)
}

// OwnerResolver finds the account the intake acts as.
type OwnerResolver interface {
	Owner(ctx context.Context, farmID string) (string, error)
}

// MetaWhatsAppService is the production implementation backed by WhatsApp Cloud API.
type MetaWhatsAppService struct {
	cfg        config.WhatsAppConfig
	client     client.Client
	dispatcher Dispatcher
	owners     OwnerResolver
	allowed    map[string]struct{}
	logger     *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance. Only senders listed in
// cfg.AllowedSenders are served.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, client client.Client, dispatcher Dispatcher, owners OwnerResolver, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:        cfg,
		client:     client,
		dispatcher: dispatcher,
		owners:     owners,
		allowed:    make(map[string]struct{}, len(cfg.AllowedSenders)),
		logger:     logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	for _, sender := range cfg.AllowedSenders {
		if n := normalizeNumber(sender); n != "" {
			svc.allowed[n] = struct{}{}
		}
	}
	return svc
}

// VerifyWebhookToken validates the callback verification token.
func (s *MetaWhatsAppService) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode == "" || verifyToken == "" {
		return "", fmt.Errorf("%w: missing mode or verify token", ErrVerification)
	}

	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("%w: unsupported hub.mode %s", ErrVerification, mode)
	}

	if verifyToken != s.cfg.VerifyToken {
		return "", fmt.Errorf("%w: invalid verify token", ErrVerification)
	}

	return challenge, nil
}

// HandleWebhook processes inbound webhook payloads. Every message is attempted;
// the first failure is returned.
func (s *MetaWhatsAppService) HandleWebhook(ctx context.Context, payload models.WebhookPayload) error {
	var firstErr error

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if err := s.handleInboundMessage(ctx, msg); err != nil {
					s.logger.Error("failed to handle inbound message", zap.Error(err), zap.String("message_id", msg.ID))
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}

	return firstErr
}

func (s *MetaWhatsAppService) handleInboundMessage(ctx context.Context, msg models.InboundMessage) error {
	if _, ok := s.allowed[normalizeNumber(msg.From)]; !ok {
		s.logger.Warn("ignoring message from unknown sender", zap.String("from", msg.From), zap.String("message_id", msg.ID))
		return nil
	}

	text := extractMessageText(msg)
	if text == "" {
		s.logger.Debug("ignoring message without text", zap.String("type", msg.Type), zap.String("message_id", msg.ID))
		return nil
	}

	cmd := models.ParseCommand(text)
	s.logger.Info("parsed inbound command",
		zap.String("from", msg.From),
		zap.String("command", string(cmd.Type)),
		zap.Strings("args", cmd.Args))

	reply, err := s.execute(ctx, cmd)
	if err != nil {
		if sendErr := s.send(ctx, msg.From, failureReply); sendErr != nil {
			s.logger.Warn("failed to send failure reply", zap.Error(sendErr))
		}
		return err
	}
	return s.send(ctx, msg.From, reply)
}

func (s *MetaWhatsAppService) execute(ctx context.Context, cmd models.Command) (string, error) {
	owner, err := s.owners.Owner(ctx, s.cfg.FarmID)
	if err != nil {
		return "", fmt.Errorf("resolve owner of farm %s: %w", s.cfg.FarmID, err)
	}
	return s.dispatcher.HandleCommand(ctx, owner, s.cfg.FarmID, cmd)
}

func (s *MetaWhatsAppService) send(ctx context.Context, to, body string) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := s.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:   to,
		Body: body,
	})
	if err != nil {
		return fmt.Errorf("send reply to %s: %w", to, err)
	}
	return nil
}

func extractMessageText(msg models.InboundMessage) string {
	if msg.Text != nil {
		return strings.TrimSpace(msg.Text.Body)
	}
	if msg.Interactive != nil && msg.Interactive.ButtonReply != nil {
		return strings.TrimSpace(msg.Interactive.ButtonReply.ID)
	}
	return ""
}

func normalizeNumber(n string) string {
	return strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(n), " ", ""), "+")
}
