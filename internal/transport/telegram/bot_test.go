package telegram

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/i474232898/weather-bot/internal/conversation"
)

type recordingInbox struct {
	mu     sync.Mutex
	events []conversation.Event
}

func (r *recordingInbox) Deliver(ev conversation.Event) bool {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return true
}

func newOfflineBot(t *testing.T) (*Bot, *recordingInbox) {
	t.Helper()
	b, err := New(Config{Token: "test", Offline: true})
	require.NoError(t, err)
	inbox := &recordingInbox{}
	b.Attach(inbox)
	return b, inbox
}

func TestTextUpdatesAreDecoded(t *testing.T) {
	b, inbox := newOfflineBot(t)

	b.bot.ProcessUpdate(tele.Update{Message: &tele.Message{
		ID:     10,
		Text:   "Berlin",
		Sender: &tele.User{ID: 7},
		Chat:   &tele.Chat{ID: 70},
	}})
	b.bot.ProcessUpdate(tele.Update{Message: &tele.Message{
		ID:     11,
		Text:   conversation.TextWeather,
		Sender: &tele.User{ID: 7},
		Chat:   &tele.Chat{ID: 70},
	}})

	require.Len(t, inbox.events, 2)
	assert.Equal(t, conversation.KindText, inbox.events[0].Kind)
	assert.Equal(t, "Berlin", inbox.events[0].Text)
	assert.EqualValues(t, 7, inbox.events[0].UserID)
	assert.EqualValues(t, 70, inbox.events[0].ChatID)
	assert.Equal(t, conversation.KindWeather, inbox.events[1].Kind)
}

func TestCallbackUpdatesCarrySource(t *testing.T) {
	b, inbox := newOfflineBot(t)

	b.bot.ProcessUpdate(tele.Update{Callback: &tele.Callback{
		ID:      "cb-1",
		Data:    "page:2",
		Sender:  &tele.User{ID: 7},
		Message: &tele.Message{ID: 33, Chat: &tele.Chat{ID: 70}},
	}})

	require.Len(t, inbox.events, 1)
	ev := inbox.events[0]
	assert.Equal(t, conversation.KindPage, ev.Kind)
	assert.Equal(t, 2, ev.Page)
	assert.Equal(t, "cb-1", ev.CallbackID)
	require.NotNil(t, ev.Source)
	assert.Equal(t, conversation.MessageRef{ChatID: 70, MessageID: 33}, *ev.Source)
}

func TestMarkupFor(t *testing.T) {
	assert.Nil(t, markupFor(conversation.OutMessage{Text: "plain"}))

	menu := markupFor(conversation.OutMessage{Text: "hi", MainMenu: true})
	require.NotNil(t, menu)
	assert.True(t, menu.ResizeKeyboard)
	require.Len(t, menu.ReplyKeyboard, 3)
	assert.Equal(t, conversation.TextWeather, menu.ReplyKeyboard[0][0].Text)

	inline := markupFor(conversation.OutMessage{
		Text:     "pick",
		MainMenu: true,
		Buttons:  [][]conversation.Button{{{Text: "Berlin, Germany", Data: "city:1"}}, {{Text: "Next", Data: "page:2"}}},
	})
	require.NotNil(t, inline)
	assert.Empty(t, inline.ReplyKeyboard, "inline buttons take precedence")
	require.Len(t, inline.InlineKeyboard, 2)
	assert.Equal(t, "city:1", inline.InlineKeyboard[0][0].Data)
}
