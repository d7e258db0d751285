package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/relaybot/internal/config"
	"github.com/mamadbah2/relaybot/internal/domain/models"
	client "github.com/mamadbah2/relaybot/pkg/clients/telegram"
)

const (
	sendTimeout       = 10 * time.Second
	maxPendingPerChat = 256
)

var (
	// ErrInvalidSecret is returned when a webhook call carries the wrong secret token.
	ErrInvalidSecret = errors.New("invalid webhook secret token")
	// ErrServiceClosed is returned for updates arriving after Close.
	ErrServiceClosed = errors.New("messaging service closed")
)

// MessagingService describes the operations the HTTP layer and the scheduler can perform.
type MessagingService interface {
	VerifyWebhookSecret(secret string) error
	HandleUpdate(ctx context.Context, update models.Update) error
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// EventHandler turns an inbound event into replies. The conversation controller implements it.
type EventHandler interface {
	Handle(ctx context.Context, event models.InboundEvent) ([]models.Reply, error)
}

// BotService is the Telegram adapter: it maps updates to conversation events and delivers
// the replies. Each chat has its own FIFO drained by at most one goroutine, so events of
// one chat are handled in arrival order while different chats proceed in parallel.
// Queuing never blocks the caller.
type BotService struct {
	cfg     config.TelegramConfig
	client  client.Client
	handler EventHandler
	logger  *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
	chats  map[int64]*chatQueue
	wg     sync.WaitGroup
}

// chatQueue holds the events waiting for one chat. draining is set while a
// goroutine is working through pending.
type chatQueue struct {
	pending  []models.InboundEvent
	draining bool
}

// NewBotService wires a new service instance.
func NewBotService(cfg config.TelegramConfig, client client.Client, handler EventHandler, logger *zap.Logger) *BotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BotService{
		cfg:     cfg,
		client:  client,
		handler: handler,
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
		chats:   make(map[int64]*chatQueue),
	}
}

// VerifyWebhookSecret validates the X-Telegram-Bot-Api-Secret-Token header value.
// Without a configured secret every call is accepted.
func (s *BotService) VerifyWebhookSecret(secret string) error {
	if s.cfg.WebhookSecret == "" {
		return nil
	}
	if secret != s.cfg.WebhookSecret {
		return ErrInvalidSecret
	}
	return nil
}

// HandleUpdate queues the update's message on its chat queue and returns without waiting
// for it to be processed. Updates without a new chat message, edits included, are ignored.
// A chat with maxPendingPerChat events waiting drops further updates.
func (s *BotService) HandleUpdate(_ context.Context, update models.Update) error {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		s.logger.Debug("ignoring update without message", zap.Int64("update_id", update.UpdateID))
		return nil
	}
	if msg.From != nil && msg.From.IsBot {
		return nil
	}

	event := toEvent(msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServiceClosed
	}

	chatID := msg.Chat.ID
	q, ok := s.chats[chatID]
	if !ok {
		q = &chatQueue{}
		s.chats[chatID] = q
	}
	if len(q.pending) >= maxPendingPerChat {
		s.logger.Warn("chat queue full, dropping update",
			zap.Int64("chat_id", chatID),
			zap.Int64("update_id", update.UpdateID))
		return nil
	}
	q.pending = append(q.pending, event)

	if !q.draining {
		q.draining = true
		s.wg.Add(1)
		go s.drain(chatID, q)
	}
	return nil
}

// SendOutbound lets operators and scheduled jobs push plain notifications.
func (s *BotService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	return s.client.SendMessage(ctxWithTimeout, client.SendMessageRequest{
		ChatID: req.ChatID,
		Text:   req.Message,
	})
}

// Close stops accepting updates and waits for queued events to drain.
func (s *BotService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
	s.cancel()
}

func (s *BotService) drain(chatID int64, q *chatQueue) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			delete(s.chats, chatID)
			s.mu.Unlock()
			return
		}
		event := q.pending[0]
		q.pending[0] = models.InboundEvent{}
		q.pending = q.pending[1:]
		s.mu.Unlock()

		s.process(chatID, event)
	}
}

func (s *BotService) process(chatID int64, event models.InboundEvent) {
	replies, err := s.handler.Handle(s.baseCtx, event)
	if err != nil {
		s.logger.Error("failed to handle inbound event", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}

	for _, reply := range replies {
		ctx, cancel := context.WithTimeout(s.baseCtx, sendTimeout)
		err := s.client.SendMessage(ctx, client.SendMessageRequest{
			ChatID:   chatID,
			Text:     reply.Text,
			Keyboard: reply.Keyboard,
		})
		cancel()
		if err != nil {
			s.logger.Error("failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}

// toEvent maps a Telegram message to a conversation event. A shared contact counts as
// an identity only when its user_id is the sender's id; contact cards without a user_id
// and messages without a sender never authenticate.
func toEvent(msg *models.Message) models.InboundEvent {
	event := models.InboundEvent{
		SessionID: strconv.FormatInt(msg.Chat.ID, 10),
		Payload:   strings.TrimSpace(msg.Text),
	}

	if c := msg.Contact; c != nil && c.PhoneNumber != "" {
		if msg.From != nil && c.UserID != 0 && c.UserID == msg.From.ID {
			event.Identity = c.PhoneNumber
		}
	}
	return event
}
