package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/emahelps/sms-hub/internal/provider"
	"github.com/emahelps/sms-hub/internal/service/messaging"
	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func postJSON(t *testing.T, h echo.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

func TestSendSMS_DeliversAndPersists(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "+15559876543", r.PostForm.Get("To"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SMout1"}`))
	}))
	defer upstream.Close()

	convs := newStubConversations()
	msgs := newStubLog()
	prov := provider.NewTwilioProvider(upstream.URL, "AC0", "secret", "+15550001111", 1000, 3, 1000)
	svc := messaging.New(convs, msgs, nil, prov, nil, zap.NewNop())

	rec := postJSON(t, sendSMSHandler(svc), "/v1/sms/send",
		`{"phone":"(555) 987-6543","body":"we got your note","sent_by":"Dana"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 1, msgs.n)
	require.Equal(t, "we got your note", convs.preview["+15559876543"])
	require.Equal(t, 0, convs.unread["+15559876543"], "own send must not bump unread")
}

func TestSendSMS_ProviderDownIsBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	convs := newStubConversations()
	msgs := newStubLog()
	prov := provider.NewTwilioProvider(upstream.URL, "AC0", "secret", "+15550001111", 1000, 3, 1000)
	svc := messaging.New(convs, msgs, nil, prov, nil, zap.NewNop())

	rec := postJSON(t, sendSMSHandler(svc), "/v1/sms/send",
		`{"phone":"5559876543","body":"hi"}`)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, 0, msgs.n, "failed delivery must leave no local trace")
}

func TestSendSMS_InvalidPhoneRejected(t *testing.T) {
	convs := newStubConversations()
	msgs := newStubLog()
	svc := messaging.New(convs, msgs, nil, nil, nil, zap.NewNop())

	rec := postJSON(t, sendSMSHandler(svc), "/v1/sms/send",
		`{"phone":"12345","body":"hi"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 0, msgs.n)
}
