// ABOUTME: Tests for the Matrix channel against a fake homeserver
// ABOUTME: Covers message filtering, own-user echo detection, send, and errors

package channel

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chatrelay/internal/config"
)

func newTestMatrix(t *testing.T, handler http.Handler) *Matrix {
	t.Helper()
	return newTestMatrixAs(t, "@relay:example.org", handler)
}

// newTestMatrixAs builds a channel with the given configured user id; an
// empty userID leaves it to whoami.
func newTestMatrixAs(t *testing.T, userID string, handler http.Handler) *Matrix {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m, err := NewMatrix(config.MatrixConfig{
		Homeserver:  srv.URL,
		UserID:      userID,
		AccessToken: "syt_test",
		RoomID:      "!room:example.org",
		IgnoreUsers: []string{"@other-bot:example.org"},
	}, testLogger())
	require.NoError(t, err)
	return m
}

const echoChunk = `{"start":"s1","end":"s0","chunk":[
	{"type":"m.room.message","event_id":"$2","sender":"@alice:example.org","origin_server_ts":1714564802000,"room_id":"!room:example.org","content":{"msgtype":"m.text","body":"hello"}},
	{"type":"m.room.message","event_id":"$1","sender":"@relay:example.org","origin_server_ts":1714564801000,"room_id":"!room:example.org","content":{"msgtype":"m.text","body":"**alice** (from website): hi"}}
]}`

func TestMatrix_Poll(t *testing.T) {
	m := newTestMatrix(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"), r.URL.Path)
		assert.Equal(t, "b", r.URL.Query().Get("dir"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer syt_test", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"start":"s1","end":"s0","chunk":[
			{"type":"m.room.message","event_id":"$4","sender":"@alice:example.org","origin_server_ts":1714564804000,"room_id":"!room:example.org","content":{"msgtype":"m.text","body":"hello"}},
			{"type":"m.room.message","event_id":"$3","sender":"@relay:example.org","origin_server_ts":1714564803000,"room_id":"!room:example.org","content":{"msgtype":"m.text","body":"echo"}},
			{"type":"m.room.message","event_id":"$2","sender":"@other-bot:example.org","origin_server_ts":1714564802000,"room_id":"!room:example.org","content":{"msgtype":"m.notice","body":"notice"}},
			{"type":"m.room.member","event_id":"$1","sender":"@bob:example.org","origin_server_ts":1714564801000,"room_id":"!room:example.org","state_key":"@bob:example.org","content":{"membership":"join"}}
		]}`)
	}))

	msgs, err := m.Poll(t.Context(), 10)
	require.NoError(t, err)

	require.Len(t, msgs, 2, "notices and state events are skipped")
	assert.Equal(t, "$4", msgs[0].ID)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "alice", msgs[0].Author)
	assert.False(t, msgs[0].Bot)
	assert.Equal(t, int64(1714564804000), msgs[0].Timestamp.UnixMilli())

	assert.Equal(t, "$3", msgs[1].ID)
	assert.True(t, msgs[1].Bot, "own messages are treated as bot messages")
}

func TestMatrix_Send(t *testing.T) {
	var gotBody map[string]any
	m := newTestMatrix(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Contains(t, r.URL.Path, "/send/m.room.message/")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"event_id":"$sent"}`)
	}))

	require.NoError(t, m.Send(t.Context(), "**alice** (from website): hi"))
	assert.Equal(t, "m.text", gotBody["msgtype"])
	assert.Equal(t, "**alice** (from website): hi", gotBody["body"])
}

func TestMatrix_PollError(t *testing.T) {
	m := newTestMatrix(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"errcode":"M_FORBIDDEN","error":"not in room"}`)
	}))

	_, err := m.Poll(t.Context(), 10)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
}

func TestMatrix_PollResolvesOwnUserID(t *testing.T) {
	var whoamiCalls atomic.Int32
	m := newTestMatrixAs(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/account/whoami"):
			whoamiCalls.Add(1)
			_, _ = io.WriteString(w, `{"user_id":"@relay:example.org","device_id":"RELAY"}`)
		case strings.HasSuffix(r.URL.Path, "/messages"):
			_, _ = io.WriteString(w, echoChunk)
		default:
			http.NotFound(w, r)
		}
	}))

	for range 2 {
		msgs, err := m.Poll(t.Context(), 10)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.True(t, msgs[1].Bot, "relay's own forwarded post is a bot message")

		kept := Filter(msgs)
		require.Len(t, kept, 1)
		assert.Equal(t, "$2", kept[0].ID)
	}
	assert.Equal(t, int32(1), whoamiCalls.Load(), "user id is resolved once")
}

func TestMatrix_PollWhoamiFailure(t *testing.T) {
	var messagesCalled atomic.Bool
	m := newTestMatrixAs(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/messages") {
			messagesCalled.Store(true)
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"errcode":"M_UNKNOWN_TOKEN","error":"bad token"}`)
	}))

	_, err := m.Poll(t.Context(), 10)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Contains(t, err.Error(), "resolving matrix user id")
	assert.False(t, messagesCalled.Load(), "no history read before the own id is known")
}
