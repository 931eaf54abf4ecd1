package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/mamadbah2/rabbitry/internal/domain/models"
)

type stubMessaging struct {
	payloads []models.WebhookPayload
	err      error
}

func (s *stubMessaging) VerifyWebhookToken(mode, token, challenge string) (string, error) {
	if token != "secret" {
		return "", errors.New("invalid verify token")
	}
	return challenge, nil
}

func (s *stubMessaging) HandleWebhook(_ context.Context, payload models.WebhookPayload) error {
	s.payloads = append(s.payloads, payload)
	return s.err
}

func webhookEngine(svc *stubMessaging) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(svc, nil)
	r := gin.New()
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Receive)
	return r
}

func TestWebhookVerify(t *testing.T) {
	r := webhookEngine(&stubMessaging{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=99", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "99", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=99", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookReceive(t *testing.T) {
	svc := &stubMessaging{err: errors.New("dispatch failed")}
	r := webhookEngine(svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"object":"whatsapp_business_account","entry":[]}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, svc.payloads, 1)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
