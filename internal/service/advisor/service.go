// Package advisor answers husbandry questions with an LLM, grounded on the farm's current summary.
package advisor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/service/farms"
	"github.com/mamadbah2/rabbitry/internal/service/reporting"
	"github.com/mamadbah2/rabbitry/pkg/clients/anthropic"
)

const systemPrompt = `You are an experienced rabbit husbandry advisor helping a small farm.
Answer concisely and practically. When you rely on published guidance, cite the source URL.
Current farm state:
%s`

var urlPattern = regexp.MustCompile(`https?://[^\s<>"()\[\]]+`)

// Answer is the advisor reply.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Service wraps the LLM client.
type Service struct {
	store    repository.Store
	client   anthropic.Client
	sessions *SessionManager
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires the advisor. A nil client disables it.
func NewService(store repository.Store, client anthropic.Client, sessions *SessionManager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessions == nil {
		sessions = NewSessionManager(10)
	}
	return &Service{store: store, client: client, sessions: sessions, logger: logger, now: time.Now}
}

// Ask sends the question with the user's recent history and the farm summary.
func (s *Service) Ask(ctx context.Context, actor, farmID, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, models.Validationf("question is required")
	}

	var summary models.FarmSummary
	if err := s.store.View(ctx, func(v repository.View) error {
		farm, err := farms.Authorize(ctx, v, actor, farmID)
		if err != nil {
			return err
		}
		summary, err = reporting.Build(ctx, v, farm, s.now())
		return err
	}); err != nil {
		return Answer{}, err
	}

	if s.client == nil {
		return Answer{}, fmt.Errorf("%w: advisor is not configured", models.ErrProvider)
	}

	key := actor + "/" + farmID
	messages := append(s.sessions.History(key), anthropic.Message{Role: anthropic.RoleUser, Content: question})
	text, err := s.client.Complete(ctx, fmt.Sprintf(systemPrompt, reporting.SummaryText(summary)), messages)
	if err != nil {
		s.logger.Error("advisor request failed", zap.String("farm_id", farmID), zap.Error(err))
		return Answer{}, fmt.Errorf("%w: %v", models.ErrProvider, err)
	}
	s.sessions.Append(key, question, text)

	answer := Answer{Answer: text, Sources: ExtractSources(text)}
	s.logger.Info("advisor answered", zap.String("farm_id", farmID), zap.Int("sources", len(answer.Sources)))
	return answer, nil
}

// Reset forgets the user's conversation on a farm.
func (s *Service) Reset(actor, farmID string) {
	s.sessions.Clear(actor + "/" + farmID)
}

// ExtractSources returns the distinct URLs in text, in order of appearance.
func ExtractSources(text string) []string {
	sources := []string{}
	seen := map[string]bool{}
	for _, raw := range urlPattern.FindAllString(text, -1) {
		url := strings.TrimRight(raw, ".,;:!?'")
		if !seen[url] {
			seen[url] = true
			sources = append(sources, url)
		}
	}
	return sources
}
