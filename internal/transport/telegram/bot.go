// Package telegram adapts the conversation layer to the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v4"

	"github.com/i474232898/weather-bot/internal/conversation"
)

// Deliverer accepts decoded inbound events.
type Deliverer interface {
	Deliver(ev conversation.Event) bool
}

type Config struct {
	Token       string
	PollTimeout time.Duration
	// Offline skips the getMe call; used by tests.
	Offline bool
}

// Bot is both the inbound event source and the conversation.Sink.
type Bot struct {
	bot *tele.Bot
	log *logrus.Entry
}

func New(cfg Config) (*Bot, error) {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	log := logrus.WithField("component", "telegram")

	b, err := tele.NewBot(tele.Settings{
		Token:       cfg.Token,
		Poller:      &tele.LongPoller{Timeout: cfg.PollTimeout},
		ParseMode:   tele.ModeHTML,
		Offline:     cfg.Offline,
		Synchronous: cfg.Offline,
		OnError: func(err error, c tele.Context) {
			log.WithError(err).Error("[TELEGRAM] handler error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Bot{bot: b, log: log}, nil
}

// Attach routes text messages and button presses into inbox.
func (b *Bot) Attach(inbox Deliverer) {
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		if c.Sender() == nil || c.Chat() == nil {
			return nil
		}
		inbox.Deliver(conversation.DecodeText(c.Sender().ID, c.Chat().ID, c.Text()))
		return nil
	})

	b.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil || c.Sender() == nil {
			return nil
		}

		chatID := c.Sender().ID
		var src *conversation.MessageRef
		if cb.Message != nil && cb.Message.Chat != nil {
			chatID = cb.Message.Chat.ID
			src = &conversation.MessageRef{ChatID: chatID, MessageID: cb.Message.ID}
		}

		ev := conversation.DecodeCallback(c.Sender().ID, chatID, cb.ID, cb.Data, src)
		if !inbox.Deliver(ev) {
			// dropped events still need the spinner cleared
			return b.bot.Respond(cb)
		}
		return nil
	})
}

// Start blocks while long polling.
func (b *Bot) Start() {
	b.log.Info("[TELEGRAM] polling started")
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
	b.log.Info("[TELEGRAM] polling stopped")
}

func stored(ref conversation.MessageRef) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
}

func inlineMarkup(rows [][]conversation.Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range rows {
		btns := make([]tele.InlineButton, 0, len(row))
		for _, btn := range row {
			btns = append(btns, tele.InlineButton{Text: btn.Text, Data: btn.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, btns)
	}
	return markup
}

func mainMenuMarkup() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	for _, row := range conversation.MainMenuRows() {
		btns := make([]tele.ReplyButton, 0, len(row))
		for _, text := range row {
			btns = append(btns, tele.ReplyButton{Text: text})
		}
		markup.ReplyKeyboard = append(markup.ReplyKeyboard, btns)
	}
	return markup
}

// markupFor picks the keyboard for msg. Telegram allows one markup per
// message, so inline buttons win over the main menu.
func markupFor(msg conversation.OutMessage) *tele.ReplyMarkup {
	switch {
	case len(msg.Buttons) > 0:
		return inlineMarkup(msg.Buttons)
	case msg.MainMenu:
		return mainMenuMarkup()
	default:
		return nil
	}
}

func (b *Bot) Send(_ context.Context, chatID int64, msg conversation.OutMessage) (conversation.MessageRef, error) {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if m := markupFor(msg); m != nil {
		opts.ReplyMarkup = m
	}
	sent, err := b.bot.Send(tele.ChatID(chatID), msg.Text, opts)
	if err != nil {
		return conversation.MessageRef{}, fmt.Errorf("telegram send: %w", err)
	}
	return conversation.MessageRef{ChatID: sent.Chat.ID, MessageID: sent.ID}, nil
}

func (b *Bot) Edit(_ context.Context, ref conversation.MessageRef, msg conversation.OutMessage) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if len(msg.Buttons) > 0 {
		opts.ReplyMarkup = inlineMarkup(msg.Buttons)
	}
	if _, err := b.bot.Edit(stored(ref), msg.Text, opts); err != nil {
		return fmt.Errorf("telegram edit: %w", err)
	}
	return nil
}

func (b *Bot) EditButtons(_ context.Context, ref conversation.MessageRef, buttons [][]conversation.Button) error {
	if _, err := b.bot.EditReplyMarkup(stored(ref), inlineMarkup(buttons)); err != nil {
		return fmt.Errorf("telegram edit markup: %w", err)
	}
	return nil
}

func (b *Bot) SendImage(_ context.Context, chatID int64, png []byte, caption string) error {
	photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(png)), Caption: caption}
	if _, err := b.bot.Send(tele.ChatID(chatID), photo); err != nil {
		return fmt.Errorf("telegram send photo: %w", err)
	}
	return nil
}

func (b *Bot) Ack(_ context.Context, callbackID string) error {
	return b.bot.Respond(&tele.Callback{ID: callbackID})
}
