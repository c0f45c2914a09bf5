package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/emahelps/sms-hub/internal/feed"
	"github.com/emahelps/sms-hub/internal/model"
	"github.com/emahelps/sms-hub/internal/phone"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConversations emulates the store's atomic semantics in memory:
// RecordInbound is one locked step, like the SQL statement it stands
// in for.
type fakeConversations struct {
	mu    sync.Mutex
	rows  map[string]*model.Conversation
	fail  error
	reads int
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{rows: map[string]*model.Conversation{}}
}

func (f *fakeConversations) row(key string) *model.Conversation {
	c, ok := f.rows[key]
	if !ok {
		c = &model.Conversation{Phone: key, Status: model.ConversationPending}
		f.rows[key] = c
	}
	return c
}

func (f *fakeConversations) Upsert(_ context.Context, _ *sqlx.Tx, key string, p model.ConversationPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	c := f.row(key)
	if p.ContactName != nil {
		c.ContactName = p.ContactName
	}
	if p.ContactType != nil {
		c.ContactType = *p.ContactType
	}
	if p.LastMessage != nil {
		c.LastMessage = p.LastMessage
	}
	if p.LastMessageDirection != nil {
		c.LastMessageDirection = p.LastMessageDirection
	}
	if p.LastMessageAt != nil {
		c.LastMessageAt = p.LastMessageAt
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	return nil
}

func (f *fakeConversations) RecordInbound(_ context.Context, key string, p model.MessagePreview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	c := f.row(key)
	c.UnreadCount++
	c.LastMessage = &p.Body
	d := p.Direction
	c.LastMessageDirection = &d
	t := p.SentAt
	c.LastMessageAt = &t
	c.Status = model.ConversationActive
	return nil
}

func (f *fakeConversations) MarkRead(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.row(key).UnreadCount = 0
	return nil
}

func (f *fakeConversations) get(key string) model.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.row(key)
}

type fakeLog struct {
	mu   sync.Mutex
	msgs []model.Message
	sids map[string]bool
	fail error
}

func newFakeLog() *fakeLog { return &fakeLog{sids: map[string]bool{}} }

func (f *fakeLog) Append(_ context.Context, _ *sqlx.Tx, m model.Message) (model.Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return model.Message{}, false, f.fail
	}
	m.ID = "msg-" + time.Now().Format("150405.000000000")
	m.SentAt = time.Now().UTC()
	if m.ProviderSID != nil {
		if f.sids[*m.ProviderSID] {
			return m, false, nil
		}
		f.sids[*m.ProviderSID] = true
	}
	f.msgs = append(f.msgs, m)
	return m, true, nil
}

func (f *fakeLog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type fakeProvider struct {
	mu    sync.Mutex
	sent  []string
	fail  error
	nextN int
}

func (p *fakeProvider) Name() string { return "fake" }
func (p *fakeProvider) Ready() bool  { return true }

func (p *fakeProvider) Send(_ context.Context, to, body string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return "", p.fail
	}
	p.nextN++
	p.sent = append(p.sent, to+"|"+body)
	return "SM" + time.Now().Format("150405") + "x", nil
}

type fakeEvents struct {
	mu  sync.Mutex
	evs []feed.Event
}

func (e *fakeEvents) Publish(_ context.Context, ev feed.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evs = append(e.evs, ev)
	return nil
}

func newService(convs *fakeConversations, log *fakeLog, prov *fakeProvider) *Service {
	return New(convs, log, nil, prov, &fakeEvents{}, zap.NewNop())
}

func TestInbound_CreatesConversationAndIncrements(t *testing.T) {
	convs := newFakeConversations()
	msgs := newFakeLog()
	svc := newService(convs, msgs, &fakeProvider{})

	_, err := svc.Inbound(context.Background(), Inbound{
		From:        "+1 (555) 987-6543",
		Body:        "need help",
		ProviderSID: "SM001",
	})
	require.NoError(t, err)

	c := convs.get("+15559876543")
	require.EqualValues(t, 1, c.UnreadCount)
	require.Equal(t, model.ConversationActive, c.Status)
	require.Equal(t, "need help", *c.LastMessage)
	require.Equal(t, model.DirectionInbound, *c.LastMessageDirection)
	require.Equal(t, 1, msgs.count())
}

func TestInbound_InvalidSenderWritesNothing(t *testing.T) {
	convs := newFakeConversations()
	msgs := newFakeLog()
	svc := newService(convs, msgs, &fakeProvider{})

	_, err := svc.Inbound(context.Background(), Inbound{From: "abc", Body: "hi"})
	require.ErrorIs(t, err, phone.ErrInvalid)
	require.Equal(t, 0, msgs.count())
	require.Empty(t, convs.rows)
}

func TestInbound_ProviderRetryDoesNotDoubleCount(t *testing.T) {
	convs := newFakeConversations()
	msgs := newFakeLog()
	svc := newService(convs, msgs, &fakeProvider{})

	in := Inbound{From: "5551234567", Body: "hello", ProviderSID: "SM777"}
	_, err := svc.Inbound(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.Inbound(context.Background(), in)
	require.ErrorIs(t, err, ErrDuplicate)

	require.Equal(t, 1, msgs.count())
	require.EqualValues(t, 1, convs.get("+15551234567").UnreadCount)
}

func TestInbound_ConcurrentBurstCountsExactly(t *testing.T) {
	convs := newFakeConversations()
	msgs := newFakeLog()
	svc := newService(convs, msgs, &fakeProvider{})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Inbound(context.Background(), Inbound{
				From:        "(555) 123-4567",
				Body:        "msg",
				ProviderSID: "SM" + string(rune('A'+i%26)) + string(rune('a'+i/26)),
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, n, convs.get("+15551234567").UnreadCount)
	require.Equal(t, n, msgs.count())
}

func TestSend_NoUnreadBumpAndPreviewUpdated(t *testing.T) {
	convs := newFakeConversations()
	msgs := newFakeLog()
	svc := newService(convs, msgs, &fakeProvider{})

	_, err := svc.Inbound(context.Background(), Inbound{
		From: "+15559876543", Body: "need help", ProviderSID: "SM1",
	})
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), "+15559876543", "We'll call you", "Admin")
	require.NoError(t, err)

	c := convs.get("+15559876543")
	require.EqualValues(t, 1, c.UnreadCount, "own send must not self-increment")
	require.Equal(t, "We'll call you", *c.LastMessage)
	require.Equal(t, model.DirectionOutbound, *c.LastMessageDirection)
	require.Equal(t, 2, msgs.count())
}

func TestSend_InvalidTargetRejected(t *testing.T) {
	convs := newFakeConversations()
	msgs := newFakeLog()
	prov := &fakeProvider{}
	svc := newService(convs, msgs, prov)

	_, err := svc.Send(context.Background(), "12345", "hi", "Admin")
	require.ErrorIs(t, err, phone.ErrImprecise)
	require.Empty(t, prov.sent)
	require.Equal(t, 0, msgs.count())
}

func TestSend_ProviderFailureWritesNothing(t *testing.T) {
	convs := newFakeConversations()
	msgs := newFakeLog()
	prov := &fakeProvider{fail: errors.New("upstream 500")}
	svc := newService(convs, msgs, prov)

	_, err := svc.Send(context.Background(), "5551234567", "hi", "Admin")
	require.ErrorIs(t, err, ErrSendFailed)
	require.Equal(t, 0, msgs.count())
	require.Empty(t, convs.rows)
}

func TestMarkRead(t *testing.T) {
	convs := newFakeConversations()
	msgs := newFakeLog()
	svc := newService(convs, msgs, &fakeProvider{})

	_, err := svc.Inbound(context.Background(), Inbound{
		From: "5551234567", Body: "a", ProviderSID: "SMa",
	})
	require.NoError(t, err)
	_, err = svc.Inbound(context.Background(), Inbound{
		From: "5551234567", Body: "b", ProviderSID: "SMb",
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, convs.get("+15551234567").UnreadCount)

	require.NoError(t, svc.MarkRead(context.Background(), "(555) 123-4567"))
	require.EqualValues(t, 0, convs.get("+15551234567").UnreadCount)
}
