package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/emahelps/sms-hub/internal/model"
	"github.com/emahelps/sms-hub/internal/service/messaging"
	"github.com/jmoiron/sqlx"
	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubConversations struct {
	mu      sync.Mutex
	unread  map[string]int
	preview map[string]string
}

func newStubConversations() *stubConversations {
	return &stubConversations{unread: map[string]int{}, preview: map[string]string{}}
}

func (s *stubConversations) Upsert(_ context.Context, _ *sqlx.Tx, key string, p model.ConversationPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.LastMessage != nil {
		s.preview[key] = *p.LastMessage
	}
	return nil
}

func (s *stubConversations) RecordInbound(_ context.Context, key string, p model.MessagePreview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread[key]++
	s.preview[key] = p.Body
	return nil
}

func (s *stubConversations) MarkRead(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread[key] = 0
	return nil
}

type stubLog struct {
	mu   sync.Mutex
	n    int
	sids map[string]bool
}

func newStubLog() *stubLog { return &stubLog{sids: map[string]bool{}} }

func (s *stubLog) Append(_ context.Context, _ *sqlx.Tx, m model.Message) (model.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ProviderSID != nil {
		if s.sids[*m.ProviderSID] {
			return m, false, nil
		}
		s.sids[*m.ProviderSID] = true
	}
	s.n++
	m.ID = "m1"
	return m, true, nil
}

func postWebhook(t *testing.T, h echo.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

func TestWebhook_AcksAndRecords(t *testing.T) {
	convs := newStubConversations()
	msgs := newStubLog()
	svc := messaging.New(convs, msgs, nil, nil, nil, zap.NewNop())

	rec := postWebhook(t, inboundSMSHandler(svc), url.Values{
		"From":       {"+15559876543"},
		"To":         {"+15550001111"},
		"Body":       {"hello"},
		"MessageSid": {"SMxyz"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "<Response></Response>")
	require.Equal(t, 1, convs.unread["+15559876543"])
	require.Equal(t, 1, msgs.n)
}

func TestWebhook_InvalidSenderStillAcks(t *testing.T) {
	convs := newStubConversations()
	msgs := newStubLog()
	svc := messaging.New(convs, msgs, nil, nil, nil, zap.NewNop())

	rec := postWebhook(t, inboundSMSHandler(svc), url.Values{
		"From": {"not-a-number"},
		"Body": {"hello"},
	})

	require.Equal(t, http.StatusOK, rec.Code, "provider must always get a 2xx")
	require.Contains(t, rec.Body.String(), "<Response></Response>")
	require.Equal(t, 0, msgs.n)
	require.Empty(t, convs.unread)
}

func TestWebhook_RetryAcksWithoutDoubleCount(t *testing.T) {
	convs := newStubConversations()
	msgs := newStubLog()
	svc := messaging.New(convs, msgs, nil, nil, nil, zap.NewNop())

	form := url.Values{
		"From":       {"5551234567"},
		"Body":       {"hi"},
		"MessageSid": {"SM42"},
	}
	rec := postWebhook(t, inboundSMSHandler(svc), form)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postWebhook(t, inboundSMSHandler(svc), form)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, 1, msgs.n)
	require.Equal(t, 1, convs.unread["+15551234567"])
}
