/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/OSCARNAR2018/asado-tracker/event"
	"github.com/OSCARNAR2018/asado-tracker/gateway"
	"github.com/OSCARNAR2018/asado-tracker/views"
	"github.com/gorilla/websocket"
)

type wireMessage struct {
	Type          string          `json:"type"`
	Key           string          `json:"key"`
	State         json.RawMessage `json:"state"`
	Simulated     bool            `json:"simulated"`
	LiveAvailable bool            `json:"live_available"`
	LoggedIn      bool            `json:"logged_in"`
	Username      string          `json:"username"`
	Error         string          `json:"error"`
	Message       string          `json:"message"`
}

func dialTab(t *testing.T, s *testServer) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(s.mux)
	t.Cleanup(srv.Close)

	header := http.Header{}
	header.Set("Cookie", deviceCookieName+"="+testDevice)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(wireMessage) bool) wireMessage {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func ballotPhase(key string, phase views.Phase) func(wireMessage) bool {
	return func(msg wireMessage) bool {
		if msg.Type != "view" || msg.Key != key {
			return false
		}

		var state views.BallotState
		_ = json.Unmarshal(msg.State, &state)

		return state.Phase == phase
	}
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()

	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestTabGreetsWithSessionAndMode(t *testing.T) {
	s := newTestServer(t)
	conn := dialTab(t, s)

	session := readUntil(t, conn, func(m wireMessage) bool { return m.Type == "session" })
	if session.LoggedIn {
		t.Error("new device reported as logged in")
	}

	mode := readUntil(t, conn, func(m wireMessage) bool { return m.Type == "mode" })
	if !mode.Simulated || mode.LiveAvailable {
		t.Errorf("mode = %+v, want simulated without live", mode)
	}
}

func TestTabLeaderboardAndRules(t *testing.T) {
	s := newTestServer(t)
	conn := dialTab(t, s)

	send(t, conn, ClientMessage{Type: "mount", View: "leaderboard"})

	msg := readUntil(t, conn, func(m wireMessage) bool { return m.Type == "view" && m.Key == leaderboardKey })

	var board views.LeaderboardState
	if err := json.Unmarshal(msg.State, &board); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !board.Simulated || len(board.Entries) != 3 || board.Entries[0].Points != 1250 {
		t.Errorf("leaderboard = %+v", board)
	}

	send(t, conn, ClientMessage{Type: "mount", View: "rules"})

	msg = readUntil(t, conn, func(m wireMessage) bool { return m.Type == "view" && m.Key == rulesKey })

	var rules views.RulesState
	_ = json.Unmarshal(msg.State, &rules)
	if len(rules.Rules) != len(event.Default().Rules) || rules.Rules[0].Number != 1 {
		t.Errorf("rules = %+v", rules)
	}
}

func TestTabBallotNeedsLogin(t *testing.T) {
	s := newTestServer(t)
	conn := dialTab(t, s)

	send(t, conn, ClientMessage{Type: "mount", View: "ballot", Ballot: "dessert"})

	msg := readUntil(t, conn, func(m wireMessage) bool { return m.Type == "error" })
	if msg.Error != errLoginRequired.Error() {
		t.Errorf("error = %q, want %q", msg.Error, errLoginRequired)
	}
}

func TestTabSimulatedVote(t *testing.T) {
	s := newTestServer(t)

	if _, err := s.app.registry.For(testDevice).Login(context.Background(), "Dani", "Flan"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	conn := dialTab(t, s)
	key := ballotPrefix + "dessert"

	send(t, conn, ClientMessage{Type: "mount", View: "ballot", Ballot: "dessert"})
	readUntil(t, conn, ballotPhase(key, views.PhaseUnvoted))

	send(t, conn, ClientMessage{Type: "vote", Ballot: "dessert"})
	msg := readUntil(t, conn, func(m wireMessage) bool { return m.Type == "error" })
	if msg.Error != views.ErrNoSelection.Error() {
		t.Errorf("vote without selection: error = %q", msg.Error)
	}

	send(t, conn, ClientMessage{Type: "select", Ballot: "dessert", Choice: "flan"})
	send(t, conn, ClientMessage{Type: "vote", Ballot: "dessert"})

	msg = readUntil(t, conn, ballotPhase(key, views.PhaseVoted))

	var state views.BallotState
	_ = json.Unmarshal(msg.State, &state)
	if !state.CanChange || state.Selected != "flan" {
		t.Errorf("voted state = %+v", state)
	}

	// a remount in the same mode still shows the vote
	send(t, conn, ClientMessage{Type: "unmount", View: "ballot", Ballot: "dessert"})
	send(t, conn, ClientMessage{Type: "mount", View: "ballot", Ballot: "dessert"})
	readUntil(t, conn, ballotPhase(key, views.PhaseVoted))

	send(t, conn, ClientMessage{Type: "change_vote", Ballot: "dessert"})
	readUntil(t, conn, ballotPhase(key, views.PhaseUnvoted))
}

func TestTabRejectsLiveWithoutRemote(t *testing.T) {
	s := newTestServer(t)
	conn := dialTab(t, s)

	live := false
	send(t, conn, ClientMessage{Type: "set_mode", Simulated: &live})

	msg := readUntil(t, conn, func(m wireMessage) bool { return m.Type == "error" })
	if msg.Error != gateway.ErrLiveUnavailable.Error() {
		t.Errorf("error = %q", msg.Error)
	}
}

func TestTabsOfOneDeviceShareMode(t *testing.T) {
	s := newTestServer(t)

	first := dialTab(t, s)
	second := dialTab(t, s)

	readUntil(t, first, func(m wireMessage) bool { return m.Type == "mode" })
	readUntil(t, second, func(m wireMessage) bool { return m.Type == "mode" })

	simulated := true
	send(t, first, ClientMessage{Type: "set_mode", Simulated: &simulated})

	msg := readUntil(t, second, func(m wireMessage) bool { return m.Type == "mode" })
	if !msg.Simulated {
		t.Error("second tab saw the wrong mode")
	}
}

func TestTabIgnoresMalformedMessages(t *testing.T) {
	s := newTestServer(t)
	conn := dialTab(t, s)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{nope")); err != nil {
		t.Fatalf("write: %v", err)
	}

	send(t, conn, ClientMessage{Type: "mount", View: "rules"})
	readUntil(t, conn, func(m wireMessage) bool { return m.Type == "view" && m.Key == rulesKey })
}

func TestErrorTextCoversSentinels(t *testing.T) {
	fallback := errorText(errors.New("x"))

	for _, err := range []error{
		errLoginRequired,
		gateway.ErrLiveUnavailable,
		gateway.ErrImmutable,
		views.ErrNoSelection,
		views.ErrSubmitting,
		views.ErrAlreadyVoted,
		views.ErrNotReady,
		views.ErrNotVoted,
		views.ErrNotMounted,
		event.ErrUnknownChoice,
	} {
		if errorText(err) == fallback {
			t.Errorf("no message for %v", err)
		}
	}
}
