package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mamadbah2/relaybot/internal/config"
	"github.com/mamadbah2/relaybot/internal/domain/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.TelegramConfig{BaseURL: srv.URL + "/", Token: "TOKEN"})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestSendMessageWithKeyboard(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeJSON(w, http.StatusOK, `{"ok":true,"result":{"message_id":1}}`)
	})

	err := client.SendMessage(context.Background(), SendMessageRequest{
		ChatID: 1001,
		Text:   "Choose a floor",
		Keyboard: &models.Keyboard{Rows: [][]models.Button{
			{{Text: "8"}, {Text: "13"}},
		}},
	})
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	if got["chat_id"].(float64) != 1001 || got["text"] != "Choose a floor" {
		t.Fatalf("unexpected payload %v", got)
	}
	markup := got["reply_markup"].(map[string]any)
	rows := markup["keyboard"].([]any)
	first := rows[0].([]any)
	if len(first) != 2 || first[1].(map[string]any)["text"] != "13" {
		t.Fatalf("unexpected keyboard %v", rows)
	}
	if _, ok := first[0].(map[string]any)["request_contact"]; ok {
		t.Fatal("request_contact must be omitted for plain buttons")
	}
}

func TestSendMessageContactButton(t *testing.T) {
	var body string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		writeJSON(w, http.StatusOK, `{"ok":true,"result":{"message_id":2}}`)
	})

	err := client.SendMessage(context.Background(), SendMessageRequest{
		ChatID:   1,
		Text:     "Share your phone number to sign in",
		Keyboard: &models.Keyboard{Rows: [][]models.Button{{{Text: "Sign in", RequestContact: true}}}},
	})
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	if !strings.Contains(body, `"request_contact":true`) {
		t.Fatalf("contact button missing in %s", body)
	}
}

func TestSendMessageWithoutKeyboardOmitsMarkup(t *testing.T) {
	var body string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		writeJSON(w, http.StatusOK, `{"ok":true,"result":{"message_id":3}}`)
	})

	if err := client.SendMessage(context.Background(), SendMessageRequest{ChatID: 1, Text: "hi"}); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	if strings.Contains(body, "reply_markup") {
		t.Fatalf("unexpected reply_markup in %s", body)
	}
}

func TestSendMessageAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
	})

	err := client.SendMessage(context.Background(), SendMessageRequest{ChatID: 1, Text: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "code=403") || !strings.Contains(err.Error(), "blocked") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestGetUpdatesAdvancesOffset(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/botTOKEN/getUpdates" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, `{"ok":true,"result":[
			{"update_id":7,"message":{"message_id":1,"chat":{"id":5},"text":"8"}},
			{"update_id":9,"message":{"message_id":2,"chat":{"id":5},"contact":{"phone_number":"+79999999999","user_id":5}}}
		]}`)
	})

	updates, next, err := client.GetUpdates(context.Background(), 5, 2*time.Second)
	if err != nil {
		t.Fatalf("GetUpdates err: %v", err)
	}

	if len(updates) != 2 || next != 10 {
		t.Fatalf("unexpected updates=%d next=%d", len(updates), next)
	}
	if !strings.Contains(gotQuery, "offset=5") || !strings.Contains(gotQuery, "timeout=2") {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if updates[1].Message.Contact.PhoneNumber != "+79999999999" {
		t.Fatalf("contact not decoded: %+v", updates[1].Message)
	}
}

func TestGetUpdatesNotOK(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ok":false,"description":"conflict"}`)
	})

	_, next, err := client.GetUpdates(context.Background(), 3, time.Second)
	if err == nil {
		t.Fatal("expected error")
	}
	if next != 3 {
		t.Fatalf("offset must not move on error, got %d", next)
	}
}

func TestSetAndDeleteWebhook(t *testing.T) {
	var paths []string
	var setBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/setWebhook") {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &setBody)
		}
		writeJSON(w, http.StatusOK, `{"ok":true,"result":true}`)
	})

	if err := client.SetWebhook(context.Background(), "https://bot.example/telegram/webhook", "s3cret"); err != nil {
		t.Fatalf("SetWebhook err: %v", err)
	}
	if err := client.DeleteWebhook(context.Background()); err != nil {
		t.Fatalf("DeleteWebhook err: %v", err)
	}

	if len(paths) != 2 || paths[0] != "/botTOKEN/setWebhook" || paths[1] != "/botTOKEN/deleteWebhook" {
		t.Fatalf("unexpected paths %v", paths)
	}
	if setBody["url"] != "https://bot.example/telegram/webhook" || setBody["secret_token"] != "s3cret" {
		t.Fatalf("unexpected setWebhook body %v", setBody)
	}
}

func TestGetMe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ok":true,"result":{"id":77,"is_bot":true,"username":"lift_bot"}}`)
	})

	me, err := client.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe err: %v", err)
	}
	if me.ID != 77 || me.Username != "lift_bot" {
		t.Fatalf("unexpected user %+v", me)
	}
}

func TestTransportErrorsHideToken(t *testing.T) {
	const token = "123456:SECRET-TOKEN"
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client := NewClient(config.TelegramConfig{BaseURL: base, Token: token})

	_, _, err := client.GetUpdates(context.Background(), 0, time.Second)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), token) {
		t.Fatalf("error leaks the bot token: %v", err)
	}
	if !strings.Contains(err.Error(), "/bot<token>/getUpdates") {
		t.Fatalf("expected redacted url in error: %v", err)
	}

	err = client.SendMessage(context.Background(), SendMessageRequest{ChatID: 1, Text: "hi"})
	if err == nil || strings.Contains(err.Error(), token) {
		t.Fatalf("send error leaks the bot token: %v", err)
	}
}
