// Package conversation implements the per-user chat flow: main-menu
// commands, the set-city search/selection state machine, and the stateless
// popular-cities and image actions.
package conversation

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/i474232898/weather-bot/internal/weather"
)

// Weather is the orchestrator surface the machine needs.
type Weather interface {
	GetWeatherByUser(ctx context.Context, userID int64) (weather.WeatherResult, error)
	GetWeatherByCity(ctx context.Context, city string) (weather.WeatherResult, error)
	GetForecastByCity(ctx context.Context, city string, days int) (weather.ForecastResult, error)
	SearchCities(ctx context.Context, query string, page, pageSize int) (weather.CitySearchResult, error)
	SelectCity(ctx context.Context, userID int64, cityID string) error
}

// Sink delivers outbound messages. Every method reports failure; the
// machine logs it and carries on.
type Sink interface {
	Send(ctx context.Context, chatID int64, msg OutMessage) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, msg OutMessage) error
	EditButtons(ctx context.Context, ref MessageRef, buttons [][]Button) error
	SendImage(ctx context.Context, chatID int64, png []byte, caption string) error
	Ack(ctx context.Context, callbackID string) error
}

// Renderer turns a current-weather payload into a PNG card.
type Renderer interface {
	Render(p weather.CurrentPayload) ([]byte, error)
}

// Machine routes events by the user's session state. Handle must not be
// called concurrently for the same user.
type Machine struct {
	weather  Weather
	sink     Sink
	renderer Renderer
	sessions *Registry
	pageSize int
}

func NewMachine(w Weather, sink Sink, renderer Renderer, sessions *Registry, pageSize int) *Machine {
	if pageSize <= 0 {
		pageSize = weather.DefaultPageSize
	}
	return &Machine{
		weather:  w,
		sink:     sink,
		renderer: renderer,
		sessions: sessions,
		pageSize: pageSize,
	}
}

func (m *Machine) logFor(ev Event) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"component": "conversation",
		"event_id":  ev.ID.String(),
		"user_id":   ev.UserID,
		"kind":      ev.Kind.String(),
	})
}

// Handle processes one event to completion.
func (m *Machine) Handle(ctx context.Context, ev Event) {
	log := m.logFor(ev)

	if ev.IsCallback() {
		if err := m.sink.Ack(ctx, ev.CallbackID); err != nil {
			log.WithError(err).Warn("[BOT] callback ack failed")
		}
	}

	sess, active := m.sessions.Get(ev.UserID)
	if !active {
		m.handleIdle(ctx, ev, log)
		return
	}
	log = log.WithField("state", sess.State.String())

	switch {
	case ev.Kind.IsMainMenu():
		m.abort(ctx, ev, sess, log)
		m.handleIdle(ctx, ev, log)
		return
	case ev.Kind == KindCancel:
		m.abort(ctx, ev, sess, log)
		return
	}

	switch sess.State {
	case AwaitingCityQuery:
		if ev.Kind == KindText {
			m.search(ctx, ev, sess, ev.Text, 1, log)
			return
		}
	case AwaitingCitySelection:
		switch ev.Kind {
		case KindText:
			m.search(ctx, ev, sess, ev.Text, 1, log)
			return
		case KindPage:
			m.search(ctx, ev, sess, sess.LastQuery, ev.Page, log)
			return
		case KindSelectCity:
			m.selectCity(ctx, ev, sess, log)
			return
		}
	}

	if !m.handleStateless(ctx, ev, log) {
		log.Debug("[BOT] event ignored in current state")
	}
}

func (m *Machine) handleIdle(ctx context.Context, ev Event, log *logrus.Entry) {
	switch ev.Kind {
	case KindStart:
		m.send(ctx, ev.ChatID, OutMessage{Text: msgWelcome, MainMenu: true}, log)
	case KindHelp:
		m.send(ctx, ev.ChatID, OutMessage{Text: msgHelp, MainMenu: true}, log)
	case KindWeather:
		m.userWeather(ctx, ev, log)
	case KindShowCity:
		m.showCity(ctx, ev, log)
	case KindChangeCity:
		m.startCityChange(ctx, ev, log)
	case KindPopularCities:
		m.send(ctx, ev.ChatID, OutMessage{Text: msgPopularHeader, Buttons: popularKeyboard(1)}, log)
	case KindText:
		m.cityWeather(ctx, ev, log)
	default:
		if !m.handleStateless(ctx, ev, log) {
			log.Debug("[BOT] event ignored while idle")
		}
	}
}

// handleStateless serves events that never change the session.
func (m *Machine) handleStateless(ctx context.Context, ev Event, log *logrus.Entry) bool {
	switch ev.Kind {
	case KindPopularCity:
		m.popularCity(ctx, ev, log)
	case KindPopularForecast:
		m.popularForecast(ctx, ev, log)
	case KindPopularPage:
		if ev.Source == nil {
			m.send(ctx, ev.ChatID, OutMessage{Text: msgPopularHeader, Buttons: popularKeyboard(ev.Page)}, log)
			return true
		}
		if err := m.sink.EditButtons(ctx, *ev.Source, popularKeyboard(ev.Page)); err != nil {
			log.WithError(err).Warn("[BOT] popular page edit failed")
		}
	case KindShowImage:
		m.showImage(ctx, ev, log)
	default:
		return false
	}
	return true
}

func (m *Machine) startCityChange(ctx context.Context, ev Event, log *logrus.Entry) {
	sess := Session{UserID: ev.UserID, State: AwaitingCityQuery}
	ref, err := m.sink.Send(ctx, ev.ChatID, OutMessage{Text: msgEnterCity, Buttons: cancelKeyboard()})
	if err != nil {
		log.WithError(err).Warn("[BOT] city prompt send failed")
	} else {
		sess.PromptRef = &ref
	}
	m.sessions.Put(sess)
	log.Info("[BOT] city change started")
}

// abort edits the pending prompt to the aborted notice and clears the session.
func (m *Machine) abort(ctx context.Context, ev Event, sess Session, log *logrus.Entry) {
	m.sessions.Clear(ev.UserID)
	m.editOrSend(ctx, ev.ChatID, sess.PromptRef, OutMessage{Text: msgAborted}, log)
	log.Info("[BOT] city change aborted")
}

func (m *Machine) search(ctx context.Context, ev Event, sess Session, query string, page int, log *logrus.Entry) {
	res, err := m.weather.SearchCities(ctx, query, page, m.pageSize)
	switch {
	case errors.Is(err, weather.ErrQueryTooShort):
		m.send(ctx, ev.ChatID, OutMessage{Text: msgQueryTooShort}, log)
		return
	case err != nil:
		log.WithError(err).Warnf("[BOT] city search %q failed", query)
		m.send(ctx, ev.ChatID, OutMessage{Text: msgUpstreamDown}, log)
		return
	}

	if len(res.Cities) == 0 {
		sess.State = AwaitingCityQuery
		sess.LastQuery = ""
		sess.LastPage = 0
		sess.Shown = nil
		m.sessions.Put(sess)
		m.send(ctx, ev.ChatID, OutMessage{Text: msgCityNotFound}, log)
		return
	}

	out := OutMessage{Text: msgChooseCity, Buttons: candidatesKeyboard(res, page)}
	sess.PromptRef = m.editOrSend(ctx, ev.ChatID, sess.PromptRef, out, log)
	sess.State = AwaitingCitySelection
	sess.LastQuery = query
	sess.LastPage = page
	sess.Shown = res.Cities
	m.sessions.Put(sess)
}

func (m *Machine) selectCity(ctx context.Context, ev Event, sess Session, log *logrus.Entry) {
	m.sessions.Clear(ev.UserID)

	if err := m.weather.SelectCity(ctx, ev.UserID, ev.CityID); err != nil {
		log.WithError(err).Error("[BOT] saving city failed")
		m.editOrSend(ctx, ev.ChatID, sess.PromptRef, OutMessage{Text: msgSaveFailed}, log)
		return
	}

	name := ""
	for _, c := range sess.Shown {
		if c.ID == ev.CityID {
			name = c.Name
			break
		}
	}
	m.editOrSend(ctx, ev.ChatID, sess.PromptRef, OutMessage{Text: savedText(name)}, log)
	log.Infof("[BOT] city %s saved", ev.CityID)

	m.userWeather(ctx, ev, log)
}

func (m *Machine) userWeather(ctx context.Context, ev Event, log *logrus.Entry) {
	res, err := m.weather.GetWeatherByUser(ctx, ev.UserID)
	switch {
	case errors.Is(err, weather.ErrNoCitySelected):
		m.send(ctx, ev.ChatID, OutMessage{Text: msgNoCity, MainMenu: true}, log)
	case err != nil || !res.Success:
		log.WithError(err).Warn("[BOT] weather by user failed")
		m.send(ctx, ev.ChatID, OutMessage{Text: msgUpstreamDown}, log)
	default:
		m.send(ctx, ev.ChatID, OutMessage{Text: res.FormattedText, Buttons: imageKeyboard("")}, log)
	}
}

func (m *Machine) showCity(ctx context.Context, ev Event, log *logrus.Entry) {
	res, err := m.weather.GetWeatherByUser(ctx, ev.UserID)
	switch {
	case errors.Is(err, weather.ErrNoCitySelected):
		m.send(ctx, ev.ChatID, OutMessage{Text: msgNoCity}, log)
	case err != nil || res.Raw == nil || res.Raw.Location.Name == "":
		log.WithError(err).Warn("[BOT] show city failed")
		m.send(ctx, ev.ChatID, OutMessage{Text: msgUpstreamDown}, log)
	default:
		m.send(ctx, ev.ChatID, OutMessage{Text: yourCityText(res.Raw.Location)}, log)
	}
}

// cityWeather answers free text sent outside the set-city flow.
func (m *Machine) cityWeather(ctx context.Context, ev Event, log *logrus.Entry) {
	if utf8.RuneCountInString(ev.Text) < weather.MinQueryLength {
		m.send(ctx, ev.ChatID, OutMessage{Text: msgQueryTooShort}, log)
		return
	}
	res, err := m.weather.GetWeatherByCity(ctx, ev.Text)
	if err != nil || !res.Success {
		log.WithError(err).Warnf("[BOT] weather for %q failed", ev.Text)
		m.send(ctx, ev.ChatID, OutMessage{Text: msgUpstreamDown}, log)
		return
	}
	m.send(ctx, ev.ChatID, OutMessage{Text: res.FormattedText, Buttons: imageKeyboard(resolvedName(res, ev.Text))}, log)
}

func (m *Machine) popularCity(ctx context.Context, ev Event, log *logrus.Entry) {
	res, err := m.weather.GetWeatherByCity(ctx, ev.City)
	if err != nil || !res.Success {
		log.WithError(err).Warnf("[BOT] weather for %q failed", ev.City)
		m.editOrSend(ctx, ev.ChatID, ev.Source, OutMessage{Text: msgUpstreamDown}, log)
		return
	}
	m.editOrSend(ctx, ev.ChatID, ev.Source, OutMessage{Text: res.FormattedText, Buttons: imageKeyboard(ev.City)}, log)
}

func (m *Machine) popularForecast(ctx context.Context, ev Event, log *logrus.Entry) {
	res, err := m.weather.GetForecastByCity(ctx, ev.City, popularForecastN)
	if err != nil || !res.Success {
		log.WithError(err).Warnf("[BOT] forecast for %q failed", ev.City)
		m.editOrSend(ctx, ev.ChatID, ev.Source, OutMessage{Text: msgUpstreamDown}, log)
		return
	}
	m.editOrSend(ctx, ev.ChatID, ev.Source, OutMessage{Text: res.FormattedText}, log)
}

func (m *Machine) showImage(ctx context.Context, ev Event, log *logrus.Entry) {
	var (
		res weather.WeatherResult
		err error
	)
	if ev.City != "" {
		res, err = m.weather.GetWeatherByCity(ctx, ev.City)
	} else {
		res, err = m.weather.GetWeatherByUser(ctx, ev.UserID)
	}

	switch {
	case errors.Is(err, weather.ErrNoCitySelected):
		m.send(ctx, ev.ChatID, OutMessage{Text: msgNoCity}, log)
		return
	case err != nil || !res.Success || res.Raw == nil:
		log.WithError(err).Warn("[BOT] weather for image failed")
		m.send(ctx, ev.ChatID, OutMessage{Text: msgImageFailed}, log)
		return
	}

	png, err := m.renderer.Render(*res.Raw)
	if err != nil {
		log.WithError(err).Error("[BOT] rendering weather card failed")
		m.send(ctx, ev.ChatID, OutMessage{Text: msgImageFailed}, log)
		return
	}
	if err := m.sink.SendImage(ctx, ev.ChatID, png, ""); err != nil {
		log.WithError(err).Warn("[BOT] image send failed")
		return
	}
	if ev.Source != nil {
		if err := m.sink.EditButtons(ctx, *ev.Source, nil); err != nil {
			log.WithError(err).Debug("[BOT] removing image button failed")
		}
	}
}

func (m *Machine) send(ctx context.Context, chatID int64, msg OutMessage, log *logrus.Entry) {
	if _, err := m.sink.Send(ctx, chatID, msg); err != nil {
		log.WithError(err).Warn("[BOT] send failed")
	}
}

// editOrSend edits ref in place, falling back to a new message when there is
// no ref or the edit fails. It returns the ref now holding msg, or nil.
func (m *Machine) editOrSend(ctx context.Context, chatID int64, ref *MessageRef, msg OutMessage, log *logrus.Entry) *MessageRef {
	if ref != nil {
		err := m.sink.Edit(ctx, *ref, msg)
		if err == nil {
			return ref
		}
		log.WithError(err).Debug("[BOT] edit failed, sending new message")
	}
	sent, err := m.sink.Send(ctx, chatID, msg)
	if err != nil {
		log.WithError(err).Warn("[BOT] send failed")
		return nil
	}
	return &sent
}
