// Package transport adapts Telegram's two delivery mechanisms (webhook
// push and long-poll pull) into the normalized event stream consumed by
// the dispatcher, and routes engine replies back out.
package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/dfursa/qapolls-bot/internal/domain"
)

// Telegram wraps the bot API client. It is the only send capability the
// rest of the process needs: deliver text with an optional reply keyboard
// to a user, plus webhook registration and update fetching.
type Telegram struct {
	bot *tele.Bot
}

// New creates the API client and verifies the token against the platform.
func New(token string, client *http.Client) (*Telegram, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Client: client,
	})
	if err != nil {
		return nil, fmt.Errorf("create bot client: %w", err)
	}
	return &Telegram{bot: bot}, nil
}

// Send delivers one reply to a user. Failures are returned to the caller;
// the dispatcher decides whether to retry or apologize.
func (t *Telegram) Send(userID int64, reply domain.Reply) error {
	opts := make([]interface{}, 0, 2)
	if m := markup(reply.Keyboard); m != nil {
		opts = append(opts, m)
	}
	if reply.Markdown {
		opts = append(opts, tele.ModeMarkdown)
	}
	if _, err := t.bot.Send(tele.ChatID(userID), reply.Text, opts...); err != nil {
		return fmt.Errorf("send message to %d: %w", userID, err)
	}
	return nil
}

// SetWebhook registers the process's push endpoint with the platform.
// The secret is echoed back by Telegram in a header on every push.
func (t *Telegram) SetWebhook(url, secret string) error {
	_, err := t.bot.Raw("setWebhook", map[string]interface{}{
		"url":             url,
		"secret_token":    secret,
		"allowed_updates": []string{"message"},
	})
	if err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes any registered webhook. Required before long
// polling: Telegram rejects getUpdates while a webhook is active.
func (t *Telegram) DeleteWebhook() error {
	_, err := t.bot.Raw("deleteWebhook", map[string]interface{}{
		"drop_pending_updates": false,
	})
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// SetCommands publishes the bot's command menu.
func (t *Telegram) SetCommands() error {
	_, err := t.bot.Raw("setMyCommands", map[string]interface{}{
		"commands": []map[string]string{
			{"command": "start", "description": "Начать тест"},
			{"command": "cancel", "description": "Отменить тест"},
			{"command": "about", "description": "О курсе"},
			{"command": "help", "description": "Помощь"},
		},
	})
	if err != nil {
		return fmt.Errorf("set command menu: %w", err)
	}
	return nil
}

// GetUpdates fetches one batch of updates at the given cursor, blocking on
// the platform side for up to timeout. An empty batch after the timeout is
// the expected steady state, not an error.
func (t *Telegram) GetUpdates(offset int, timeout time.Duration) ([]tele.Update, error) {
	data, err := t.bot.Raw("getUpdates", map[string]interface{}{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch updates: %w", err)
	}
	return parseUpdates(data)
}

func parseUpdates(data []byte) ([]tele.Update, error) {
	var resp struct {
		Result []tele.Update `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode updates batch: %w", err)
	}
	return resp.Result, nil
}

// eventFromUpdate normalizes one platform update into an inbound event.
// Updates without a text message or from other bots yield no event.
func eventFromUpdate(u tele.Update) (domain.Event, bool) {
	msg := u.Message
	if msg == nil || msg.Sender == nil || msg.Sender.IsBot {
		return domain.Event{}, false
	}
	return domain.Event{
		UserID:    msg.Sender.ID,
		UpdateID:  u.ID,
		FirstName: msg.Sender.FirstName,
		Text:      msg.Text,
	}, true
}

// markup converts domain keyboard rows into a resized reply keyboard.
// Nil rows mean no keyboard change.
func markup(rows [][]string) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	m := &tele.ReplyMarkup{ResizeKeyboard: true}
	for _, row := range rows {
		buttons := make([]tele.ReplyButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tele.ReplyButton{Text: label})
		}
		m.ReplyKeyboard = append(m.ReplyKeyboard, buttons)
	}
	return m
}
