package http

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/emahelps/sms-hub/internal/feed"
	"github.com/emahelps/sms-hub/internal/model"
	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubListers struct{}

func (stubListers) ListByRecency(_ context.Context) ([]model.Conversation, error) {
	return []model.Conversation{{Phone: "+15551112222"}}, nil
}

func (stubListers) List(_ context.Context) ([]model.Conversation, error) {
	return []model.Conversation{{Phone: "+15551112222"}}, nil
}

func (stubListers) ListByConversation(_ context.Context, phone string, _ int) ([]model.Message, error) {
	return []model.Message{{ID: "m1", Phone: phone, Body: "hi"}}, nil
}

type stubEvents struct {
	mu   sync.Mutex
	subs []chan feed.Event
}

func (e *stubEvents) Publish(_ context.Context, ev feed.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.subs {
		s <- ev
	}
	return nil
}

func (e *stubEvents) Subscribe(ctx context.Context) (<-chan feed.Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan feed.Event, 16)
	e.subs = append(e.subs, ch)
	var once sync.Once
	stop := func() { once.Do(func() { close(ch) }) }
	context.AfterFunc(ctx, stop)
	return ch, stop
}

func TestStreamConversations_WritesSnapshotAndEndsOnDisconnect(t *testing.T) {
	f := feed.New(stubListers{}, stubListers{}, &stubEvents{}, zap.NewNop())

	e := echo.New()
	e.GET("/v1/conversations/stream", streamConversationsHandler(f))
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/conversations/stream", nil)
	require.NoError(t, err)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "text/event-stream", res.Header.Get(echo.HeaderContentType))

	lineCh := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(res.Body).ReadString('\n')
		lineCh <- line
	}()

	select {
	case line := <-lineCh:
		require.Contains(t, line, "data: ")
		require.Contains(t, line, `"phone_number":"+15551112222"`)
	case <-time.After(2 * time.Second):
		t.Fatal("initial snapshot never arrived")
	}

	// Client disconnect cancels the request context; the feed closes
	// its channel and the handler must return, freeing the goroutine.
	cancel()
}
