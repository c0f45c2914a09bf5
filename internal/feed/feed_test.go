package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/emahelps/sms-hub/internal/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLister struct {
	mu          sync.Mutex
	convs       []model.Conversation
	msgs        map[string][]model.Message
	orderedFail error
	listFail    error
}

func (f *fakeLister) ListByRecency(_ context.Context) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderedFail != nil {
		return nil, f.orderedFail
	}
	return append([]model.Conversation(nil), f.convs...), nil
}

func (f *fakeLister) List(_ context.Context) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listFail != nil {
		return nil, f.listFail
	}
	// Fallback scan has no order guarantee; reverse to make the
	// difference observable.
	out := make([]model.Conversation, 0, len(f.convs))
	for i := len(f.convs) - 1; i >= 0; i-- {
		out = append(out, f.convs[i])
	}
	return out, nil
}

func (f *fakeLister) ListByConversation(_ context.Context, phone string, _ int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.msgs[phone]...), nil
}

func (f *fakeLister) set(convs []model.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convs = convs
}

// chanEvents is an in-process Events transport.
type chanEvents struct {
	mu   sync.Mutex
	subs []chan Event
}

func (e *chanEvents) Publish(_ context.Context, ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.subs {
		s <- ev
	}
	return nil
}

func (e *chanEvents) Subscribe(_ context.Context) (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan Event, 16)
	e.subs = append(e.subs, ch)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, s := range e.subs {
				if s == ch {
					e.subs = append(e.subs[:i], e.subs[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
}

func recv[T any](t *testing.T, ch <-chan []T) []T {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "channel closed before snapshot")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestConversations_InitialSnapshotThenEventDriven(t *testing.T) {
	lister := &fakeLister{convs: []model.Conversation{
		{Phone: "+15551112222"},
		{Phone: "+15553334444"},
	}}
	events := &chanEvents{}
	f := New(lister, lister, events, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, stop := f.Conversations(ctx)
	defer stop()

	snap := recv(t, ch)
	require.Len(t, snap, 2)
	require.Equal(t, "+15551112222", snap[0].Phone)

	lister.set([]model.Conversation{
		{Phone: "+15559998888"},
		{Phone: "+15551112222"},
		{Phone: "+15553334444"},
	})
	require.NoError(t, events.Publish(ctx, Event{Kind: EventConversation, Phone: "+15559998888"}))

	snap = recv(t, ch)
	require.Len(t, snap, 3)
	require.Equal(t, "+15559998888", snap[0].Phone)
}

func TestConversations_OrderedFailureFallsBackUnordered(t *testing.T) {
	lister := &fakeLister{
		convs: []model.Conversation{
			{Phone: "+15551112222"},
			{Phone: "+15553334444"},
		},
		orderedFail: errors.New("missing index"),
	}
	events := &chanEvents{}
	f := New(lister, lister, events, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, stop := f.Conversations(ctx)
	defer stop()

	snap := recv(t, ch)
	require.Len(t, snap, 2, "degraded feed still serves every conversation")
	require.Equal(t, "+15553334444", snap[0].Phone, "fallback order, not recency order")
}

func TestConversations_DoubleFailureEmitsNothingButSurvives(t *testing.T) {
	lister := &fakeLister{
		convs:       []model.Conversation{{Phone: "+15551112222"}},
		orderedFail: errors.New("down"),
		listFail:    errors.New("down"),
	}
	events := &chanEvents{}
	f := New(lister, lister, events, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, stop := f.Conversations(ctx)
	defer stop()

	select {
	case snap, ok := <-ch:
		require.True(t, ok)
		t.Fatalf("unexpected snapshot during outage: %v", snap)
	case <-time.After(100 * time.Millisecond):
	}

	// Store recovers; the next event produces a snapshot again.
	lister.mu.Lock()
	lister.orderedFail, lister.listFail = nil, nil
	lister.mu.Unlock()
	require.NoError(t, events.Publish(ctx, Event{Kind: EventConversation}))

	snap := recv(t, ch)
	require.Len(t, snap, 1)
}

func TestMessages_FiltersOtherConversations(t *testing.T) {
	lister := &fakeLister{msgs: map[string][]model.Message{
		"+15551112222": {{ID: "a", Phone: "+15551112222", Body: "hi"}},
		"+15553334444": {{ID: "b", Phone: "+15553334444", Body: "yo"}},
	}}
	events := &chanEvents{}
	f := New(lister, lister, events, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, stop := f.Messages(ctx, "+15551112222")
	defer stop()

	snap := recv(t, ch)
	require.Len(t, snap, 1)
	require.Equal(t, "hi", snap[0].Body)

	// An event for another phone must not produce a snapshot.
	require.NoError(t, events.Publish(ctx, Event{Kind: EventMessage, Phone: "+15553334444"}))
	select {
	case <-ch:
		t.Fatal("snapshot emitted for an unrelated conversation")
	case <-time.After(100 * time.Millisecond):
	}

	lister.mu.Lock()
	lister.msgs["+15551112222"] = append(lister.msgs["+15551112222"],
		model.Message{ID: "c", Phone: "+15551112222", Body: "again"})
	lister.mu.Unlock()
	require.NoError(t, events.Publish(ctx, Event{Kind: EventMessage, Phone: "+15551112222"}))

	snap = recv(t, ch)
	require.Len(t, snap, 2)
}

func TestConversations_CoalescesWhenConsumerIsSlow(t *testing.T) {
	lister := &fakeLister{convs: []model.Conversation{{Phone: "+15551112222"}}}
	events := &chanEvents{}
	f := New(lister, lister, events, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, stop := f.Conversations(ctx)
	defer stop()

	// Do not read; pile up events, then change state.
	for i := 0; i < 5; i++ {
		require.NoError(t, events.Publish(ctx, Event{Kind: EventConversation}))
	}
	lister.set([]model.Conversation{
		{Phone: "+15551112222"},
		{Phone: "+15553334444"},
	})
	require.NoError(t, events.Publish(ctx, Event{Kind: EventConversation}))

	// The last snapshot read must reflect the newest state.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if len(snap) == 2 {
				return
			}
		case <-deadline:
			t.Fatal("never saw the newest snapshot")
		}
	}
}

func TestConversations_StopClosesStream(t *testing.T) {
	lister := &fakeLister{convs: []model.Conversation{{Phone: "+15551112222"}}}
	events := &chanEvents{}
	f := New(lister, lister, events, zap.NewNop())

	ch, stop := f.Conversations(context.Background())
	recv(t, ch)
	stop()

	select {
	case _, ok := <-ch:
		require.False(t, ok, "channel must close after stop")
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after stop")
	}
}
