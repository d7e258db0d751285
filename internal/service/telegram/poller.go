package telegram

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	client "github.com/mamadbah2/relaybot/pkg/clients/telegram"
)

// DefaultReconnectPause is how long the poller waits after a failed getUpdates call.
const DefaultReconnectPause = 10 * time.Second

// Poller feeds updates obtained through getUpdates long polling into a MessagingService.
type Poller struct {
	client         client.Client
	svc            MessagingService
	timeout        time.Duration
	reconnectPause time.Duration
	logger         *zap.Logger
}

// NewPoller creates a poller; timeout is the long-poll duration per request.
func NewPoller(client client.Client, svc MessagingService, timeout time.Duration, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Poller{
		client:         client,
		svc:            svc,
		timeout:        timeout,
		reconnectPause: DefaultReconnectPause,
		logger:         logger,
	}
}

// Run polls until ctx is cancelled. Transport errors are logged and retried after the
// reconnect pause.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.client.DeleteWebhook(ctx); err != nil {
		p.logger.Warn("failed to delete webhook before polling", zap.Error(err))
	}

	p.logger.Info("polling for updates", zap.Duration("timeout", p.timeout))

	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}

		updates, next, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("getUpdates failed, pausing", zap.Duration("pause", p.reconnectPause), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.reconnectPause):
			}
			continue
		}
		offset = next

		for _, update := range updates {
			if err := p.svc.HandleUpdate(ctx, update); err != nil {
				if errors.Is(err, ErrServiceClosed) || ctx.Err() != nil {
					return nil
				}
				p.logger.Error("failed to queue update", zap.Int64("update_id", update.UpdateID), zap.Error(err))
			}
		}
	}
}
