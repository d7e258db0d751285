package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/relaybot/internal/config"
	"github.com/mamadbah2/relaybot/internal/domain/models"
)

const (
	requestTimeout = 15 * time.Second
	redactedToken  = "<token>"
)

// Client exposes Telegram Bot API operations used by the application.
type Client interface {
	SendMessage(ctx context.Context, req SendMessageRequest) error
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]models.Update, int64, error)
	SetWebhook(ctx context.Context, url, secret string) error
	DeleteWebhook(ctx context.Context) error
	GetMe(ctx context.Context) (*models.User, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
	token      string
}

// NewClient builds a Bot API client using the provided configuration values.
func NewClient(cfg config.TelegramConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New().
		SetBaseURL(fmt.Sprintf("%s/bot%s", base, cfg.Token)).
		SetHeader("Content-Type", "application/json")

	return &APIClient{httpClient: restyClient, token: cfg.Token}
}

// SendMessageRequest is a text message with an optional reply keyboard.
type SendMessageRequest struct {
	ChatID   int64
	Text     string
	Keyboard *models.Keyboard
}

type sendMessagePayload struct {
	ChatID      int64        `json:"chat_id"`
	Text        string       `json:"text"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type replyMarkup struct {
	Keyboard       [][]keyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard"`
}

type keyboardButton struct {
	Text           string `json:"text"`
	RequestContact bool   `json:"request_contact,omitempty"`
}

// apiResponse is the envelope every Bot API method answers with.
type apiResponse[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// SendMessage delivers text to a chat, replacing the reply keyboard when one is given.
func (c *APIClient) SendMessage(ctx context.Context, req SendMessageRequest) error {
	payload := sendMessagePayload{
		ChatID:      req.ChatID,
		Text:        req.Text,
		ReplyMarkup: toReplyMarkup(req.Keyboard),
	}

	var out apiResponse[models.Message]
	return c.call(ctx, requestTimeout, "sendMessage", payload, nil, &out)
}

// GetUpdates long-polls for new updates and returns them with the next offset to request.
func (c *APIClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]models.Update, int64, error) {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}

	query := map[string]string{"timeout": strconv.Itoa(secs)}
	if offset > 0 {
		query["offset"] = strconv.FormatInt(offset, 10)
	}

	var out apiResponse[[]models.Update]
	if err := c.call(ctx, time.Duration(secs)*time.Second+requestTimeout, "getUpdates", nil, query, &out); err != nil {
		return nil, offset, err
	}

	next := offset
	for _, u := range out.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out.Result, next, nil
}

// SetWebhook registers url as the update destination.
func (c *APIClient) SetWebhook(ctx context.Context, url, secret string) error {
	payload := map[string]any{"url": url}
	if secret != "" {
		payload["secret_token"] = secret
	}

	var out apiResponse[bool]
	return c.call(ctx, requestTimeout, "setWebhook", payload, nil, &out)
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *APIClient) DeleteWebhook(ctx context.Context) error {
	var out apiResponse[bool]
	return c.call(ctx, requestTimeout, "deleteWebhook", map[string]any{}, nil, &out)
}

// GetMe returns the bot's own account.
func (c *APIClient) GetMe(ctx context.Context) (*models.User, error) {
	var out apiResponse[models.User]
	if err := c.call(ctx, requestTimeout, "getMe", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Result, nil
}

type okChecker interface {
	failure() (bool, int, string)
}

func (r *apiResponse[T]) failure() (bool, int, string) {
	return !r.OK, r.ErrorCode, r.Description
}

func (c *APIClient) call(ctx context.Context, timeout time.Duration, method string, body any, query map[string]string, out okChecker) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := c.httpClient.R().
		SetContext(ctx).
		SetResult(out).
		SetError(out)
	if query != nil {
		req.SetQueryParams(query)
	}

	var (
		resp *resty.Response
		err  error
	)
	if body != nil {
		resp, err = req.SetBody(body).Post(method)
	} else {
		resp, err = req.Get(method)
	}
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, c.redact(err))
	}

	if failed, code, description := out.failure(); failed || resp.IsError() {
		if code == 0 {
			code = resp.StatusCode()
		}
		return fmt.Errorf("telegram api error: method=%s, code=%d, description=%s", method, code, description)
	}

	return nil
}

// redact strips the bot token from transport errors, which carry the request URL.
func (c *APIClient) redact(err error) error {
	if c.token == "" {
		return err
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{
			Op:  urlErr.Op,
			URL: strings.ReplaceAll(urlErr.URL, c.token, redactedToken),
			Err: urlErr.Err,
		}
	}
	if msg := err.Error(); strings.Contains(msg, c.token) {
		return errors.New(strings.ReplaceAll(msg, c.token, redactedToken))
	}
	return err
}

func toReplyMarkup(kb *models.Keyboard) *replyMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}

	rows := make([][]keyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]keyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, keyboardButton{Text: b.Text, RequestContact: b.RequestContact})
		}
		rows = append(rows, buttons)
	}
	return &replyMarkup{Keyboard: rows, ResizeKeyboard: true}
}
