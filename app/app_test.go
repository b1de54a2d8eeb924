package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBackend(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"detail":"Invalid username or password."}`)
			return
		}
		fmt.Fprint(w, `{"access_token":"tok-1","token_type":"bearer"}`)
	})
	mux.HandleFunc("GET /users/me/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"detail":"Could not validate credentials"}`)
			return
		}
		fmt.Fprint(w, `{"id":12,"full_name":"Alice","email":"alice@example.com","role":"student"}`)
	})
	mux.HandleFunc("GET /books/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":7,"title":"Dune","author":"Herbert","genre":"SF","isbn":"1"}]`)
	})
	mux.HandleFunc("GET /users/me/borrow_history/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("GET /users/me/borrowed_books/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("POST /borrow/", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		assert.Nil(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":101,"book_id":%v,"user_id":12,"due_date":"%s","returned_date":null}`,
			req["book_id"], req["due_date"])
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testApp(t *testing.T, serverUrl string, sessionFile string) (*App, *bytes.Buffer) {
	t.Setenv("API_URL", serverUrl)
	t.Setenv("SESSION_FILE", sessionFile)
	t.Setenv("RETRY_DELAY", "1ms")
	var out bytes.Buffer
	return &App{out: &out}, &out
}

func TestLoginAndWhoami(t *testing.T) {
	server := fakeBackend(t)
	sessionFile := filepath.Join(t.TempDir(), "session.json")

	app, out := testApp(t, server.URL, sessionFile)
	require.Nil(t, app.Run([]string{"login", "alice@example.com", "secret"}))
	assert.Contains(t, out.String(), "logged in as Alice (student)")

	// a fresh invocation picks the session up from the file
	app2, out2 := testApp(t, server.URL, sessionFile)
	require.Nil(t, app2.Run([]string{"whoami"}))
	assert.Contains(t, out2.String(), "Alice")
	assert.Contains(t, out2.String(), "role:student")
}

func TestLoginBadPassword(t *testing.T) {
	server := fakeBackend(t)
	app, _ := testApp(t, server.URL, filepath.Join(t.TempDir(), "session.json"))
	err := app.Run([]string{"login", "alice@example.com", "wrong"})
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "Invalid username or password.")
}

func TestWhoamiWithoutSession(t *testing.T) {
	server := fakeBackend(t)
	app, _ := testApp(t, server.URL, filepath.Join(t.TempDir(), "session.json"))
	err := app.Run([]string{"whoami"})
	assert.ErrorContains(t, err, "not logged in")
}

func TestBooksCommand(t *testing.T) {
	server := fakeBackend(t)
	app, out := testApp(t, server.URL, filepath.Join(t.TempDir(), "session.json"))
	require.Nil(t, app.Run([]string{"books"}))
	assert.Contains(t, out.String(), "Dune")
	assert.Contains(t, out.String(), "Herbert")
}

func TestBorrowCommand(t *testing.T) {
	server := fakeBackend(t)
	sessionFile := filepath.Join(t.TempDir(), "session.json")
	app, _ := testApp(t, server.URL, sessionFile)
	require.Nil(t, app.Run([]string{"login", "alice@example.com", "secret"}))

	app2, out := testApp(t, server.URL, sessionFile)
	due := time.Now().AddDate(0, 0, 7).Format(dateLayout)
	require.Nil(t, app2.Run([]string{"borrow", due, "7"}))
	assert.Contains(t, out.String(), "borrowed: Dune")
	assert.Contains(t, out.String(), "outcome: full-success")
}

func TestBorrowRejectsDateOutsideWindow(t *testing.T) {
	server := fakeBackend(t)
	app, _ := testApp(t, server.URL, filepath.Join(t.TempDir(), "session.json"))
	due := time.Now().AddDate(0, 0, 45).Format(dateLayout)
	err := app.Run([]string{"borrow", due, "7"})
	assert.ErrorContains(t, err, "due date must lie between")
}

func TestUnknownCommand(t *testing.T) {
	server := fakeBackend(t)
	app, _ := testApp(t, server.URL, filepath.Join(t.TempDir(), "session.json"))
	err := app.Run([]string{"frobnicate"})
	assert.ErrorContains(t, err, "unknown command")
}

func TestParseEnvValidation(t *testing.T) {
	t.Setenv("SESSION_FILE", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv("RETRY_DELAY", "not-a-duration")
	app := &App{}
	err := app.Run([]string{"whoami"})
	assert.ErrorContains(t, err, "invalid RETRY_DELAY")
}
