/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Asado Tracker
//
// Every family member opens the page on their phone, logs in with a username
// and the one thing they wish for from the grill, and from then on sees the
// points ranking, the dessert and group-name ballots, and the house rules.
//
// Features:
// - One WebSocket per tab at /ws; views are mounted and unmounted by the page
// - Devices identified by cookie (asado_device); all tabs of a device share
//   the simulated/live switch
// - Simulated mode works entirely on the server's local mirror
// - Live mode reads and writes the shared PostgreSQL store, with rankings
//   pushed on every change
// - In-browser QR button to invite the rest of the family, backed by go-qrcode

package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/OSCARNAR2018/asado-tracker/event"
	"github.com/OSCARNAR2018/asado-tracker/gateway"
	"github.com/OSCARNAR2018/asado-tracker/views"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

//go:embed asado/*
var asadoFiles embed.FS

const (
	deviceCookieName = "asado_device"

	tabSendBuffer  = 32
	tabWriteWait   = 10 * time.Second
	tabPongWait    = 60 * time.Second
	tabPingPeriod  = 30 * time.Second
	tabMaxMessages = 4096

	leaderboardKey = "leaderboard"
	rulesKey       = "rules"
	ballotPrefix   = "ballot:"
)

var errLoginRequired = errors.New("login required")

// Messages coming from tabs
type ClientMessage struct {
	Type      string `json:"type"`                // "mount", "unmount", "select", "vote", "change_vote", "set_mode"
	View      string `json:"view,omitempty"`      // mount / unmount: "leaderboard", "ballot" or "rules"
	Ballot    string `json:"ballot,omitempty"`    // ballot id
	Choice    string `json:"choice,omitempty"`    // select
	Simulated *bool  `json:"simulated,omitempty"` // set_mode
}

// ViewMessage carries a new state document of one mounted view.
type ViewMessage struct {
	Type  string `json:"type"` // "view"
	Key   string `json:"key"`  // "leaderboard", "rules" or "ballot:<id>"
	State any    `json:"state"`
}

// ModeMessage is sent on connect and after every mode flip of the device.
type ModeMessage struct {
	Type          string `json:"type"` // "mode"
	Simulated     bool   `json:"simulated"`
	LiveAvailable bool   `json:"live_available"`
}

// SessionMessage tells a new tab who is logged in on this device.
type SessionMessage struct {
	Type     string `json:"type"` // "session"
	LoggedIn bool   `json:"logged_in"`
	Username string `json:"username,omitempty"`
	Wish     string `json:"wish,omitempty"`
}

// ErrorMessage is sent only to the tab whose request failed.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Error   string `json:"error"`
	Message string `json:"message"`
}

type asadoApp struct {
	cfg      *Config
	event    *event.Event
	registry *gateway.Registry
	ctx      context.Context

	mu   sync.Mutex
	tabs map[*Tab]struct{}
}

func (a *asadoApp) addTab(t *Tab) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tabs == nil {
		a.tabs = make(map[*Tab]struct{})
	}
	a.tabs[t] = struct{}{}
}

func (a *asadoApp) removeTab(t *Tab) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.tabs, t)
}

// closeTabs disconnects every tab; their read pumps clean up the views.
func (a *asadoApp) closeTabs() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for t := range a.tabs {
		_ = t.conn.Close()
	}
}

// mountedView is a view with a live subscription.
type mountedView interface {
	Unmount()
}

type Tab struct {
	app      *asadoApp
	conn     *websocket.Conn
	send     chan any
	deviceID string
	sync     *gateway.Synchronizer
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    bool
	views     map[string]mountedView
	unsubMode func()
}

// push queues msg for the tab. A tab that cannot keep up loses messages
// rather than blocking the view that produced them.
func (t *Tab) push(msg any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	select {
	case t.send <- msg:
	default:
		t.logger.Warn().Msg("tab send buffer full, dropping message")
	}
}

func (t *Tab) pushError(err error) {
	t.push(ErrorMessage{
		Type:    "error",
		Error:   err.Error(),
		Message: errorText(err),
	})
}

func (t *Tab) pushMode(m gateway.Mode) {
	t.push(ModeMessage{
		Type:          "mode",
		Simulated:     m.Simulated,
		LiveAvailable: t.sync.LiveAvailable(),
	})
}

func (t *Tab) renderer(key string) views.Renderer {
	return func(state any) {
		t.push(ViewMessage{Type: "view", Key: key, State: state})
	}
}

func (t *Tab) view(key string) mountedView {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.views[key]
}

func (t *Tab) ballotView(id string) (*views.Ballot, error) {
	v, ok := t.view(ballotPrefix + id).(*views.Ballot)
	if !ok {
		return nil, views.ErrNotMounted
	}

	return v, nil
}

// replaceView stores v under key and returns what it replaced.
func (t *Tab) replaceView(key string, v mountedView) mountedView {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.views[key]
	if v == nil {
		delete(t.views, key)
	} else {
		t.views[key] = v
	}

	return old
}

// close tears the tab down. Views are unmounted without holding t.mu, since
// their final callbacks may still be pushing.
func (t *Tab) close() {
	t.cancel()

	t.mu.Lock()
	mounted := t.views
	t.views = make(map[string]mountedView)
	unsub := t.unsubMode
	t.unsubMode = nil
	t.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	for _, v := range mounted {
		v.Unmount()
	}

	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.send)
	}
	t.mu.Unlock()

	t.app.removeTab(t)
}

func (t *Tab) mount(msg ClientMessage) error {
	switch msg.View {
	case leaderboardKey:
		v := views.NewLeaderboard(t.sync, t.renderer(leaderboardKey), t.logger)
		if old := t.replaceView(leaderboardKey, v); old != nil {
			old.Unmount()
		}
		v.Mount(t.ctx)

	case "ballot":
		b, err := t.app.event.Ballot(msg.Ballot)
		if err != nil {
			return err
		}

		session, ok, err := t.sync.Session(t.ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errLoginRequired
		}

		key := ballotPrefix + b.ID
		v := views.NewBallot(t.sync, b, session.Username, t.renderer(key), t.logger)
		if old := t.replaceView(key, v); old != nil {
			old.Unmount()
		}
		v.Mount(t.ctx)

	case rulesKey:
		t.push(ViewMessage{Type: "view", Key: rulesKey, State: views.Rules(t.app.event)})

	default:
		return errors.New("unknown view " + msg.View)
	}

	return nil
}

func (t *Tab) unmount(msg ClientMessage) {
	key := msg.View
	if msg.View == "ballot" {
		key = ballotPrefix + msg.Ballot
	}

	if old := t.replaceView(key, nil); old != nil {
		old.Unmount()
	}
}

func (t *Tab) handle(msg ClientMessage) {
	var err error

	switch msg.Type {
	case "mount":
		err = t.mount(msg)

	case "unmount":
		t.unmount(msg)

	case "select":
		var v *views.Ballot
		if v, err = t.ballotView(msg.Ballot); err == nil {
			err = v.Select(msg.Choice)
		}

	case "vote":
		var v *views.Ballot
		if v, err = t.ballotView(msg.Ballot); err == nil {
			// the write runs on its own so the tab keeps reading meanwhile
			go func() {
				if err := v.Submit(); isViewError(err) {
					t.pushError(err)
				}
			}()
		}

	case "change_vote":
		var v *views.Ballot
		if v, err = t.ballotView(msg.Ballot); err == nil {
			err = v.ChangeVote()
		}

	case "set_mode":
		if msg.Simulated == nil {
			return
		}
		err = t.sync.SetMode(t.ctx, *msg.Simulated)
		if err == nil {
			log.Info().
				Str("device", t.deviceID).
				Bool("simulated", *msg.Simulated).
				Msg("mode changed")
		}

	default:
		// ignore unknown types
	}

	if err != nil {
		t.pushError(err)
	}
}

// isViewError reports errors the ballot view rejected without rendering a
// notice of its own.
func isViewError(err error) bool {
	for _, target := range []error{
		views.ErrNotMounted,
		views.ErrNotReady,
		views.ErrNoSelection,
		views.ErrSubmitting,
		views.ErrAlreadyVoted,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

func errorText(err error) string {
	switch {
	case errors.Is(err, errLoginRequired):
		return "Primero tenés que entrar con tu nombre."
	case errors.Is(err, gateway.ErrLiveUnavailable):
		return "El modo en vivo no está disponible en este servidor."
	case errors.Is(err, gateway.ErrImmutable):
		return "Los votos en vivo no se pueden cambiar."
	case errors.Is(err, views.ErrNoSelection):
		return "Elegí una opción antes de votar."
	case errors.Is(err, views.ErrSubmitting):
		return "Tu voto se está enviando."
	case errors.Is(err, views.ErrAlreadyVoted):
		return "Ya votaste en esta ronda."
	case errors.Is(err, views.ErrNotReady):
		return "Todavía estamos revisando si ya votaste."
	case errors.Is(err, views.ErrNotVoted):
		return "Todavía no votaste en esta ronda."
	case errors.Is(err, views.ErrNotMounted):
		return "Esa pantalla no está abierta."
	case errors.Is(err, event.ErrUnknownChoice), errors.Is(err, event.ErrUnknownBallot):
		return "Esa opción no existe."
	default:
		return "Algo salió mal. Intentá de nuevo."
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// deviceID returns the device of r. A missing or malformed cookie gets a
// fresh id, and the cookie to set is returned alongside.
func deviceID(r *http.Request) (string, *http.Cookie) {
	if c, err := r.Cookie(deviceCookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String(), nil
		}
	}

	id := uuid.NewString()

	return id, &http.Cookie{
		Name:     deviceCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func getOrSetDeviceID(w http.ResponseWriter, r *http.Request) string {
	id, cookie := deviceID(r)
	if cookie != nil {
		http.SetCookie(w, cookie)
	}

	return id
}

func serveWS(app *asadoApp) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id, cookie := deviceID(r)

		var header http.Header
		if cookie != nil {
			header = http.Header{"Set-Cookie": {cookie.String()}}
		}

		conn, err := upgrader.Upgrade(w, r, header)
		if err != nil {
			log.Debug().Err(err).Str("client", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		ctx, cancel := context.WithCancel(app.ctx)

		t := &Tab{
			app:      app,
			conn:     conn,
			send:     make(chan any, tabSendBuffer),
			deviceID: id,
			sync:     app.registry.For(id),
			logger:   log.With().Str("device", id).Logger(),
			ctx:      ctx,
			cancel:   cancel,
			views:    make(map[string]mountedView),
		}
		app.addTab(t)

		t.logger.Debug().Str("client", realIP(r)).Msg("tab connected")

		unsub := t.sync.OnModeChange(t.pushMode)
		t.mu.Lock()
		t.unsubMode = unsub
		t.mu.Unlock()

		session, ok, err := t.sync.Session(ctx)
		if err != nil {
			t.logger.Warn().Err(err).Msg("session unavailable")
		}
		t.push(SessionMessage{
			Type:     "session",
			LoggedIn: ok,
			Username: session.Username,
			Wish:     session.Wish,
		})
		t.pushMode(t.sync.Mode(ctx))

		go t.writePump()
		t.readPump()
	}
}

func (t *Tab) readPump() {
	defer func() {
		t.close()
		_ = t.conn.Close()

		t.logger.Debug().Msg("tab disconnected")
	}()

	t.conn.SetReadLimit(tabMaxMessages)
	_ = t.conn.SetReadDeadline(time.Now().Add(tabPongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(tabPongWait))
	})

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				t.logger.Debug().Err(err).Msg("tab closed unexpectedly")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.logger.Debug().Err(err).Msg("ignoring malformed message")
			continue
		}

		t.handle(msg)
		_ = t.conn.SetReadDeadline(time.Now().Add(tabPongWait))
	}
}

func (t *Tab) writePump() {
	ticker := time.NewTicker(tabPingPeriod)
	defer func() {
		ticker.Stop()
		_ = t.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-t.send:
			_ = t.conn.SetWriteDeadline(time.Now().Add(tabWriteWait))
			if !ok {
				_ = t.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := t.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = t.conn.SetWriteDeadline(time.Now().Add(tabWriteWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// qrHandler generates a PNG QR code of the app URL using go-qrcode.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/"

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func serveAsadoFile(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		fname := strings.TrimPrefix(p.ByName("file"), "/")
		if fname == "" || strings.Contains(fname, "/") {
			http.NotFound(w, r)
			return
		}

		data, err := asadoFiles.ReadFile("asado/" + fname)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		switch {
		case strings.HasSuffix(fname, ".css"):
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
		case strings.HasSuffix(fname, ".js"):
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		default:
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		written, err := w.Write(data)
		if err != nil {
			errs <- err

			return
		}

		logServe(fname, r, written, startTime)
	}
}

// registerAsado sets up routes so that:
//   - /assets/asado/:file → page scripts and styles
//   - /ws                 → WebSocket for one tab
//   - /qr                 → PNG QR code of the app URL
func registerAsado(cfg *Config, app *asadoApp, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/assets/asado/*file", serveAsadoFile(cfg, errs))

	mux.GET(cfg.prefix+"/ws", serveWS(app))

	mux.GET(cfg.prefix+"/qr", qrHandler(cfg))
}
