/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/OSCARNAR2018/asado-tracker/gateway"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

const maxBodySize = 4 << 10

type sessionRequest struct {
	Username string `json:"username"`
	Wish     string `json:"wish"`
}

type sessionResponse struct {
	LoggedIn bool   `json:"logged_in"`
	Username string `json:"username,omitempty"`
	Wish     string `json:"wish,omitempty"`
}

type modeRequest struct {
	Simulated *bool `json:"simulated"`
}

type modeResponse struct {
	Simulated     bool `json:"simulated"`
	LiveAvailable bool `json:"live_available"`
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}

func getSession(app *asadoApp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := getOrSetDeviceID(w, r)

		session, ok, err := app.registry.For(id).Session(r.Context())
		if err != nil {
			log.Error().Err(err).Str("device", id).Msg("session read failed")
			writeError(app.cfg, w, http.StatusInternalServerError, "could not read session")

			return
		}

		writeJSON(app.cfg, w, http.StatusOK, sessionResponse{
			LoggedIn: ok,
			Username: session.Username,
			Wish:     session.Wish,
		})
	}
}

func postSession(app *asadoApp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		id := getOrSetDeviceID(w, r)

		var req sessionRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(app.cfg, w, http.StatusBadRequest, "malformed request body")

			return
		}

		session, err := app.registry.For(id).Login(r.Context(), req.Username, req.Wish)
		switch {
		case errors.Is(err, gateway.ErrInvalidSession):
			writeError(app.cfg, w, http.StatusBadRequest, err.Error())

			return
		case err != nil:
			log.Error().Err(err).Str("device", id).Msg("login failed")
			writeError(app.cfg, w, http.StatusInternalServerError, "could not save session")

			return
		}

		log.Info().
			Str("device", id).
			Str("username", session.Username).
			Dur("took", time.Since(startTime).Round(time.Microsecond)).
			Msg("logged in")

		writeJSON(app.cfg, w, http.StatusCreated, sessionResponse{
			LoggedIn: true,
			Username: session.Username,
			Wish:     session.Wish,
		})
	}
}

func deleteSession(app *asadoApp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := getOrSetDeviceID(w, r)

		if err := app.registry.For(id).Logout(r.Context()); err != nil {
			log.Error().Err(err).Str("device", id).Msg("logout failed")
			writeError(app.cfg, w, http.StatusInternalServerError, "could not clear session")

			return
		}

		writeJSON(app.cfg, w, http.StatusNoContent, nil)
	}
}

func getMode(app *asadoApp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := app.registry.For(getOrSetDeviceID(w, r))

		writeJSON(app.cfg, w, http.StatusOK, modeResponse{
			Simulated:     s.Mode(r.Context()).Simulated,
			LiveAvailable: s.LiveAvailable(),
		})
	}
}

func putMode(app *asadoApp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := getOrSetDeviceID(w, r)
		s := app.registry.For(id)

		var req modeRequest
		if err := decodeBody(r, &req); err != nil || req.Simulated == nil {
			writeError(app.cfg, w, http.StatusBadRequest, "simulated must be true or false")

			return
		}

		err := s.SetMode(r.Context(), *req.Simulated)
		switch {
		case errors.Is(err, gateway.ErrLiveUnavailable):
			writeError(app.cfg, w, http.StatusConflict, err.Error())

			return
		case err != nil:
			log.Error().Err(err).Str("device", id).Msg("mode change failed")
			writeError(app.cfg, w, http.StatusInternalServerError, "could not change mode")

			return
		}

		log.Info().Str("device", id).Bool("simulated", *req.Simulated).Msg("mode changed")

		writeJSON(app.cfg, w, http.StatusOK, modeResponse{
			Simulated:     s.Mode(r.Context()).Simulated,
			LiveAvailable: s.LiveAvailable(),
		})
	}
}

func getEvent(app *asadoApp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(app.cfg, w, http.StatusOK, app.event)
	}
}

// apiHandler applies the configured CORS policy. Without --cors-origin the
// API stays same-origin.
func apiHandler(cfg *Config, h http.Handler) http.Handler {
	if len(cfg.corsOrigins) == 0 {
		return h
	}

	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedOrigins:   cfg.corsOrigins,
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}).Handler(h)
}

// registerAPI sets up routes so that:
//   - /api/session → GET current user, POST login, DELETE logout
//   - /api/mode    → GET or PUT the device's simulated/live switch
//   - /api/event   → GET ballots and rules
func registerAPI(cfg *Config, app *asadoApp, mux *httprouter.Router) {
	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodGet, "/api/session", getSession(app)},
		{http.MethodPost, "/api/session", postSession(app)},
		{http.MethodDelete, "/api/session", deleteSession(app)},
		{http.MethodGet, "/api/mode", getMode(app)},
		{http.MethodPut, "/api/mode", putMode(app)},
		{http.MethodGet, "/api/event", getEvent(app)},
	}

	preflight := make(map[string]bool)

	for _, route := range routes {
		mux.Handler(route.method, cfg.prefix+route.path, apiHandler(cfg, route.handler))

		if len(cfg.corsOrigins) > 0 && !preflight[route.path] {
			preflight[route.path] = true
			mux.Handler(http.MethodOptions, cfg.prefix+route.path, apiHandler(cfg, http.NotFoundHandler()))
		}
	}
}
