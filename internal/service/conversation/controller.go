package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/relaybot/internal/domain/models"
	"github.com/mamadbah2/relaybot/internal/service/relay"
)

// ErrMissingSession is returned for events that carry no session id.
var ErrMissingSession = errors.New("inbound event has no session id")

const journalTimeout = 5 * time.Second

// IdentityChecker decides whether an identity may use the bot.
type IdentityChecker interface {
	Contains(identity string) bool
}

// TargetLookup resolves target labels to relay ids.
type TargetLookup interface {
	RelayFor(label string) (string, bool)
	Labels() []string
}

// ActivationRecorder persists dispatch attempts.
type ActivationRecorder interface {
	Record(ctx context.Context, activation models.Activation) error
}

// Controller drives the per-session protocol: identity prompt, allow-list check,
// target menu and relay activation.
type Controller struct {
	store      *SessionStore
	allowList  IdentityChecker
	targets    TargetLookup
	dispatcher relay.Dispatcher
	recorder   ActivationRecorder
	phrases    Phrasebook
	logger     *zap.Logger
	now        func() time.Time
}

// NewController wires a controller. recorder may be nil.
func NewController(store *SessionStore, allowList IdentityChecker, targets TargetLookup, dispatcher relay.Dispatcher, recorder ActivationRecorder, phrases Phrasebook, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:      store,
		allowList:  allowList,
		targets:    targets,
		dispatcher: dispatcher,
		recorder:   recorder,
		phrases:    phrases,
		logger:     logger,
		now:        time.Now,
	}
}

// Handle processes one inbound event and returns the replies to deliver, in order.
// The session's transition is applied atomically; the relay call runs under that
// session's lock only.
func (c *Controller) Handle(ctx context.Context, event models.InboundEvent) ([]models.Reply, error) {
	if event.SessionID == "" {
		return nil, ErrMissingSession
	}

	var replies []models.Reply
	_, err := c.store.Update(event.SessionID, func(s *models.Session) error {
		switch s.State {
		case models.StateAwaitingIdentity:
			replies = c.authenticate(s, event.Identity)
		case models.StateSelectingTarget:
			replies = c.selectTarget(ctx, s, strings.TrimSpace(event.Payload))
		default:
			replies = c.requestIdentity(s)
		}
		return nil
	})
	return replies, err
}

func (c *Controller) requestIdentity(s *models.Session) []models.Reply {
	c.logger.Info("requesting identity", zap.String("session", s.ID))
	s.State = models.StateAwaitingIdentity
	s.Identity = ""
	return []models.Reply{c.identityPrompt()}
}

func (c *Controller) authenticate(s *models.Session, identity string) []models.Reply {
	if !c.allowList.Contains(identity) {
		c.logger.Warn("authorization failed",
			zap.String("session", s.ID),
			zap.String("identity", maskIdentity(identity)),
			zap.Bool("identity_present", identity != ""))
		return []models.Reply{{Text: c.phrases.NotAuthorized}, c.identityPrompt()}
	}

	c.logger.Info("session authorized", zap.String("session", s.ID), zap.String("identity", maskIdentity(identity)))
	s.Identity = identity
	s.State = models.StateSelectingTarget
	return []models.Reply{c.menu()}
}

func (c *Controller) selectTarget(ctx context.Context, s *models.Session, label string) []models.Reply {
	relayID, ok := c.targets.RelayFor(label)
	if !ok {
		c.logger.Info("unknown target", zap.String("session", s.ID), zap.String("label", label))
		return []models.Reply{{Text: c.phrases.NotFound()}, c.menu()}
	}

	activation := models.Activation{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		Identity:  s.Identity,
		Target:    label,
		RelayID:   relayID,
	}

	code, err := c.dispatcher.Dispatch(ctx, s.Identity, relayID)
	activation.CreatedAt = c.now().UTC()
	if err != nil {
		var dispatchErr *relay.DispatchError
		c.logger.Error("relay dispatch failed",
			zap.String("session", s.ID),
			zap.String("label", label),
			zap.String("relay", relayID),
			zap.Bool("timeout", errors.As(err, &dispatchErr) && dispatchErr.Timeout()),
			zap.Error(err))
		activation.Outcome = models.OutcomeFailed
		activation.Error = err.Error()
		c.record(ctx, activation)
		return []models.Reply{{Text: c.phrases.CommandNotSent}, c.menu()}
	}

	outcome := models.Interpret(code)
	c.logger.Info("relay dispatched",
		zap.String("session", s.ID),
		zap.String("label", label),
		zap.String("relay", relayID),
		zap.Int64("code", code),
		zap.String("outcome", outcome.String()))

	activation.Code = code
	activation.Outcome = outcome.Kind
	activation.WaitSeconds = outcome.WaitSeconds
	c.record(ctx, activation)

	return []models.Reply{{Text: c.phrases.Outcome(outcome)}, c.menu()}
}

func (c *Controller) record(ctx context.Context, activation models.Activation) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	if err := c.recorder.Record(ctx, activation); err != nil {
		c.logger.Error("failed to record activation", zap.String("activation", activation.ID), zap.Error(err))
	}
}

func (c *Controller) identityPrompt() models.Reply {
	return models.Reply{Text: c.phrases.IdentityPrompt, Keyboard: identityKeyboard(c.phrases)}
}

func (c *Controller) menu() models.Reply {
	return models.Reply{Text: c.phrases.SelectPrompt(), Keyboard: targetKeyboard(c.targets.Labels())}
}

func maskIdentity(identity string) string {
	runes := []rune(identity)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}
