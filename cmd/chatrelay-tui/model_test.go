package main

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chatrelay/internal/store"
)

func TestWSURL(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"http://localhost:3000", "ws://localhost:3000/ws", false},
		{"https://relay.example.com/", "wss://relay.example.com/ws", false},
		{"https://example.com/chat", "wss://example.com/chat/ws", false},
		{"ftp://example.com", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := wsURL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeFrame(t *testing.T) {
	msg, err := decodeFrame([]byte(`{"event":"user_count","data":3}`))
	require.NoError(t, err)
	assert.Equal(t, countMsg(3), msg)

	msg, err = decodeFrame([]byte(`{"event":"message_history","data":[{"id":"1","content":"hi","author":"a","timestamp":"2026-01-02T03:04:05Z","origin":"remote","remote_id":"r1"}]}`))
	require.NoError(t, err)
	hist, ok := msg.(historyMsg)
	require.True(t, ok)
	require.Len(t, hist, 1)
	assert.True(t, hist[0].IsRemote())
	assert.Equal(t, "r1", hist[0].RemoteID)

	msg, err = decodeFrame([]byte(`{"event":"new_message","data":{"id":"2","content":"yo","author":"b","origin":"local"}}`))
	require.NoError(t, err)
	assert.Equal(t, "yo", store.Message(msg.(newMsg)).Content)

	msg, err = decodeFrame([]byte(`{"event":"error","data":{"error":"malformed frame"}}`))
	require.NoError(t, err)
	assert.Equal(t, serverErr("malformed frame"), msg)

	msg, err = decodeFrame([]byte(`{"event":"typing","data":{}}`))
	require.NoError(t, err)
	assert.Nil(t, msg)

	_, err = decodeFrame([]byte(`nope`))
	require.Error(t, err)
}

func sized(t *testing.T, m model) model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(model)
}

func TestModel_HistoryReplacesFeed(t *testing.T) {
	m := sized(t, newModel("ws://localhost:3000/ws", "alice"))
	m.messages = []store.Message{{ID: "old"}}

	next, _ := m.Update(historyMsg{{ID: "a", Author: "x", Content: "one"}, {ID: "b", Author: "y", Content: "two"}})
	m = next.(model)
	require.Len(t, m.messages, 2)
	assert.Equal(t, "a", m.messages[0].ID)

	next, _ = m.Update(newMsg(store.Message{ID: "c", Author: "z", Content: "three", Timestamp: time.Now()}))
	m = next.(model)
	require.Len(t, m.messages, 3)
	assert.Contains(t, m.renderFeed(), "three")
}

func TestModel_CountAndErrors(t *testing.T) {
	m := sized(t, newModel("ws://x/ws", "alice"))

	next, _ := m.Update(countMsg(4))
	m = next.(model)
	assert.Equal(t, 4, m.users)

	next, _ = m.Update(serverErr("malformed frame"))
	m = next.(model)
	assert.Equal(t, "malformed frame", m.lastErr)
}

func TestModel_CloseSchedulesReconnect(t *testing.T) {
	m := sized(t, newModel("ws://x/ws", "alice"))
	m.users = 2

	next, cmd := m.Update(closedMsg{err: errors.New("connection reset")})
	m = next.(model)
	assert.Nil(t, m.conn)
	assert.Zero(t, m.users)
	assert.Equal(t, "connection reset", m.lastErr)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Connecting to")
}

func TestModel_DialFailureRetries(t *testing.T) {
	m := newModel("ws://x/ws", "alice")
	m.dialer = func(string) (*client, error) { return nil, errors.New("refused") }

	msg := m.connect()()
	failed, ok := msg.(dialFailedMsg)
	require.True(t, ok)

	next, cmd := m.Update(failed)
	assert.Equal(t, "refused", next.(model).lastErr)
	assert.NotNil(t, cmd)
}

func TestModel_EmptyEnterIgnored(t *testing.T) {
	m := sized(t, newModel("ws://x/ws", "alice"))
	m.input.SetValue("   ")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, "   ", next.(model).input.Value())
}

func TestIsExitCmd(t *testing.T) {
	assert.True(t, isExitCmd("/quit"))
	assert.True(t, isExitCmd(" :q "))
	assert.False(t, isExitCmd("quit the game"))
}
