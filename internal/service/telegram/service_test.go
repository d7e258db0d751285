package telegram

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mamadbah2/relaybot/internal/config"
	"github.com/mamadbah2/relaybot/internal/domain/models"
	client "github.com/mamadbah2/relaybot/pkg/clients/telegram"
)

type fakeClient struct {
	mu      sync.Mutex
	sent    []client.SendMessageRequest
	sendErr error

	updates        func(call int, ctx context.Context) ([]models.Update, error)
	getCalls       int
	deleteWebhooks int
}

func (f *fakeClient) SendMessage(ctx context.Context, req client.SendMessageRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return f.sendErr
}

func (f *fakeClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]models.Update, int64, error) {
	f.mu.Lock()
	f.getCalls++
	call := f.getCalls
	f.mu.Unlock()

	updates, err := f.updates(call, ctx)
	if err != nil {
		return nil, offset, err
	}
	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

func (f *fakeClient) SetWebhook(ctx context.Context, url, secret string) error { return nil }

func (f *fakeClient) DeleteWebhook(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteWebhooks++
	return nil
}

func (f *fakeClient) GetMe(ctx context.Context) (*models.User, error) {
	return &models.User{ID: 1, IsBot: true}, nil
}

func (f *fakeClient) sentMessages() []client.SendMessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.SendMessageRequest(nil), f.sent...)
}

type recordingHandler struct {
	mu     sync.Mutex
	events []models.InboundEvent
	err    error
}

func (h *recordingHandler) Handle(ctx context.Context, event models.InboundEvent) ([]models.Reply, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	if h.err != nil {
		return nil, h.err
	}
	return []models.Reply{
		{Text: "echo " + event.Payload},
		{Text: "menu", Keyboard: &models.Keyboard{Rows: [][]models.Button{{{Text: "8"}}}}},
	}, nil
}

func textUpdate(id, chatID int64, text string) models.Update {
	return models.Update{
		UpdateID: id,
		Message: &models.Message{
			MessageID: id,
			Chat:      &models.Chat{ID: chatID, Type: "private"},
			From:      &models.User{ID: chatID},
			Text:      text,
		},
	}
}

func TestHandleUpdateDeliversRepliesInOrder(t *testing.T) {
	fc := &fakeClient{}
	handler := &recordingHandler{}
	svc := NewBotService(config.TelegramConfig{}, fc, handler, nil)

	if err := svc.HandleUpdate(context.Background(), textUpdate(1, 55, " 8 ")); err != nil {
		t.Fatalf("HandleUpdate err: %v", err)
	}
	svc.Close()

	sent := fc.sentMessages()
	if len(sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sent))
	}
	if sent[0].ChatID != 55 || sent[0].Text != "echo 8" || sent[0].Keyboard != nil {
		t.Fatalf("unexpected first message %+v", sent[0])
	}
	if sent[1].Text != "menu" || sent[1].Keyboard == nil {
		t.Fatalf("unexpected second message %+v", sent[1])
	}
	if handler.events[0].SessionID != "55" {
		t.Fatalf("unexpected session id %q", handler.events[0].SessionID)
	}
}

func TestHandleUpdatePreservesPerChatOrder(t *testing.T) {
	fc := &fakeClient{}
	handler := &recordingHandler{}
	svc := NewBotService(config.TelegramConfig{}, fc, handler, nil)

	const perChat = 40
	var wg sync.WaitGroup
	for chat := int64(1); chat <= 3; chat++ {
		wg.Add(1)
		go func(chat int64) {
			defer wg.Done()
			for i := 0; i < perChat; i++ {
				_ = svc.HandleUpdate(context.Background(), textUpdate(int64(i), chat, strconv.Itoa(i)))
			}
		}(chat)
	}
	wg.Wait()
	svc.Close()

	next := map[string]int{}
	for _, ev := range handler.events {
		want := strconv.Itoa(next[ev.SessionID])
		if ev.Payload != want {
			t.Fatalf("chat %s: got payload %s, want %s", ev.SessionID, ev.Payload, want)
		}
		next[ev.SessionID]++
	}
	for chat, n := range next {
		if n != perChat {
			t.Fatalf("chat %s processed %d events", chat, n)
		}
	}
}

func TestHandleUpdateIgnoresNonMessages(t *testing.T) {
	fc := &fakeClient{}
	handler := &recordingHandler{}
	svc := NewBotService(config.TelegramConfig{}, fc, handler, nil)

	_ = svc.HandleUpdate(context.Background(), models.Update{UpdateID: 1})
	bot := textUpdate(2, 9, "hi")
	bot.Message.From.IsBot = true
	_ = svc.HandleUpdate(context.Background(), bot)
	svc.Close()

	if len(handler.events) != 0 {
		t.Fatalf("expected no events, got %d", len(handler.events))
	}
}

func TestHandleUpdateAfterClose(t *testing.T) {
	svc := NewBotService(config.TelegramConfig{}, &fakeClient{}, &recordingHandler{}, nil)
	svc.Close()

	if err := svc.HandleUpdate(context.Background(), textUpdate(1, 1, "x")); !errors.Is(err, ErrServiceClosed) {
		t.Fatalf("expected ErrServiceClosed, got %v", err)
	}
}

func TestHandlerErrorSendsNothing(t *testing.T) {
	fc := &fakeClient{}
	svc := NewBotService(config.TelegramConfig{}, fc, &recordingHandler{err: errors.New("boom")}, nil)

	_ = svc.HandleUpdate(context.Background(), textUpdate(1, 1, "x"))
	svc.Close()

	if n := len(fc.sentMessages()); n != 0 {
		t.Fatalf("expected no messages, got %d", n)
	}
}

func TestSendFailureStillAttemptsRemainingReplies(t *testing.T) {
	fc := &fakeClient{sendErr: errors.New("blocked")}
	svc := NewBotService(config.TelegramConfig{}, fc, &recordingHandler{}, nil)

	_ = svc.HandleUpdate(context.Background(), textUpdate(1, 1, "x"))
	svc.Close()

	if n := len(fc.sentMessages()); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
}

func TestToEventContactOwnership(t *testing.T) {
	tests := []struct {
		name    string
		contact *models.Contact
		want    string
	}{
		{name: "own contact", contact: &models.Contact{PhoneNumber: "+79999999999", UserID: 10}, want: "+79999999999"},
		{name: "no user id", contact: &models.Contact{PhoneNumber: "79999999999"}},
		{name: "someone else", contact: &models.Contact{PhoneNumber: "+79999999999", UserID: 11}},
		{name: "no contact"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &models.Message{
				Chat:    &models.Chat{ID: 10},
				From:    &models.User{ID: 10},
				Contact: tt.contact,
			}
			if got := toEvent(msg).Identity; got != tt.want {
				t.Fatalf("identity = %q, want %q", got, tt.want)
			}

			msg.From = nil
			if got := toEvent(msg).Identity; got != "" {
				t.Fatalf("identity without sender = %q, want none", got)
			}
		})
	}
}

func TestVerifyWebhookSecret(t *testing.T) {
	open := NewBotService(config.TelegramConfig{}, &fakeClient{}, &recordingHandler{}, nil)
	if err := open.VerifyWebhookSecret(""); err != nil {
		t.Fatalf("no secret configured, got %v", err)
	}

	guarded := NewBotService(config.TelegramConfig{WebhookSecret: "s3cret"}, &fakeClient{}, &recordingHandler{}, nil)
	if err := guarded.VerifyWebhookSecret("s3cret"); err != nil {
		t.Fatalf("valid secret rejected: %v", err)
	}
	if err := guarded.VerifyWebhookSecret("nope"); !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("expected ErrInvalidSecret, got %v", err)
	}
}

func TestSendOutbound(t *testing.T) {
	fc := &fakeClient{}
	svc := NewBotService(config.TelegramConfig{}, fc, &recordingHandler{}, nil)

	err := svc.SendOutbound(context.Background(), models.OutboundMessageRequest{ChatID: 77, Message: "report"})
	if err != nil {
		t.Fatalf("SendOutbound err: %v", err)
	}
	sent := fc.sentMessages()
	if len(sent) != 1 || sent[0].ChatID != 77 || sent[0].Text != "report" {
		t.Fatalf("unexpected messages %+v", sent)
	}
}

// gatedHandler blocks events of one session until release is closed and reports
// every other session's events on seen.
type gatedHandler struct {
	blocked string
	release chan struct{}
	seen    chan models.InboundEvent
}

func (h *gatedHandler) Handle(ctx context.Context, event models.InboundEvent) ([]models.Reply, error) {
	if event.SessionID == h.blocked {
		<-h.release
		return nil, nil
	}
	h.seen <- event
	return nil, nil
}

func TestBusyChatDoesNotStallOtherChats(t *testing.T) {
	handler := &gatedHandler{blocked: "1", release: make(chan struct{}), seen: make(chan models.InboundEvent, 1)}
	svc := NewBotService(config.TelegramConfig{}, &fakeClient{}, handler, nil)
	defer svc.Close()
	defer close(handler.release)

	queued := make(chan struct{})
	go func() {
		defer close(queued)
		for i := int64(0); i < 40; i++ {
			_ = svc.HandleUpdate(context.Background(), textUpdate(i, 1, "8"))
		}
		_ = svc.HandleUpdate(context.Background(), textUpdate(100, 2, "13"))
	}()

	select {
	case <-queued:
	case <-time.After(time.Second):
		t.Fatal("HandleUpdate blocked behind a busy chat")
	}

	select {
	case ev := <-handler.seen:
		if ev.SessionID != "2" || ev.Payload != "13" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("chat 2 was not processed while chat 1 was busy")
	}
}

func TestBusyChatDropsBeyondLimit(t *testing.T) {
	handler := &gatedHandler{blocked: "1", release: make(chan struct{}), seen: make(chan models.InboundEvent, 1)}
	svc := NewBotService(config.TelegramConfig{}, &fakeClient{}, handler, nil)

	for i := int64(0); i < maxPendingPerChat+10; i++ {
		if err := svc.HandleUpdate(context.Background(), textUpdate(i, 1, "8")); err != nil {
			t.Fatalf("HandleUpdate err: %v", err)
		}
	}

	svc.mu.Lock()
	pending := len(svc.chats[1].pending)
	svc.mu.Unlock()
	if pending > maxPendingPerChat {
		t.Fatalf("queue grew to %d, limit %d", pending, maxPendingPerChat)
	}

	close(handler.release)
	svc.Close()
}

func TestEditedMessagesAreIgnored(t *testing.T) {
	handler := &recordingHandler{}
	svc := NewBotService(config.TelegramConfig{}, &fakeClient{}, handler, nil)

	edit := textUpdate(1, 5, "13")
	edit.EditedMessage, edit.Message = edit.Message, nil
	if err := svc.HandleUpdate(context.Background(), edit); err != nil {
		t.Fatalf("HandleUpdate err: %v", err)
	}
	svc.Close()

	if len(handler.events) != 0 {
		t.Fatalf("edit reached the handler: %+v", handler.events)
	}
}
