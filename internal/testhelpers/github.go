// Package testhelpers provides in-process fakes of external services for tests.
package testhelpers

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/mux"
)

// FakeGitHub serves the subset of the GitHub contents API used by the snapshot store:
// GET and PUT of a single file with sha preconditions.
type FakeGitHub struct {
	Server *httptest.Server

	mu        sync.Mutex
	files     map[string]fakeFile
	commits   []string
	putCount  int
	conflicts int
	token     string
}

type fakeFile struct {
	content []byte
	sha     string
}

// NewFakeGitHub starts the fake. When token is non-empty, requests without
// "Authorization: token <token>" get 401. Call Close when done.
func NewFakeGitHub(token string) *FakeGitHub {
	f := &FakeGitHub{files: make(map[string]fakeFile), token: token}

	router := mux.NewRouter()
	router.Use(f.authMiddleware)
	router.HandleFunc("/repos/{owner}/{repo}/contents/{path:.*}", f.getContents).Methods(http.MethodGet)
	router.HandleFunc("/repos/{owner}/{repo}/contents/{path:.*}", f.putContents).Methods(http.MethodPut)

	f.Server = httptest.NewServer(router)
	return f
}

// URL is the API base URL.
func (f *FakeGitHub) URL() string {
	return f.Server.URL
}

// Close stops the server.
func (f *FakeGitHub) Close() {
	f.Server.Close()
}

// SetFile stores content at owner/repo/path as if it had been committed earlier.
func (f *FakeGitHub) SetFile(repository, path string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[repository+"/"+path] = fakeFile{content: content, sha: blobSHA(content)}
}

// File returns the current content at owner/repo/path.
func (f *FakeGitHub) File(repository, path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[repository+"/"+path]
	return file.content, ok
}

// Commits returns the commit messages of accepted PUTs in order.
func (f *FakeGitHub) Commits() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commits...)
}

// PutCount is the number of PUT requests received, accepted or not.
func (f *FakeGitHub) PutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putCount
}

// FailNextPuts makes the next n PUTs answer 409 as if another writer got there first.
func (f *FakeGitHub) FailNextPuts(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflicts = n
}

func (f *FakeGitHub) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.token != "" && r.Header.Get("Authorization") != "token "+f.token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeGitHub) getContents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := vars["owner"] + "/" + vars["repo"] + "/" + vars["path"]

	f.mu.Lock()
	file, ok := f.files[key]
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"sha":      file.sha,
		"encoding": "base64",
		"content":  wrapBase64(base64.StdEncoding.EncodeToString(file.content)),
	})
}

func (f *FakeGitHub) putContents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := vars["owner"] + "/" + vars["repo"] + "/" + vars["path"]

	var body struct {
		Message string `json:"message"`
		Content string `json:"content"`
		Branch  string `json:"branch"`
		SHA     string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}
	content, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "content is not valid Base64"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCount++

	if f.conflicts > 0 {
		f.conflicts--
		writeJSON(w, http.StatusConflict, map[string]string{"message": "is at a different commit"})
		return
	}

	existing, exists := f.files[key]
	switch {
	case exists && body.SHA == "":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": `"sha" wasn't supplied.`})
		return
	case exists && body.SHA != existing.sha, !exists && body.SHA != "":
		writeJSON(w, http.StatusConflict, map[string]string{"message": "does not match"})
		return
	}

	file := fakeFile{content: content, sha: blobSHA(content)}
	f.files[key] = file
	f.commits = append(f.commits, body.Message)

	status := http.StatusOK
	if !exists {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"content": map[string]string{"sha": file.sha, "path": vars["path"]},
	})
}

func blobSHA(content []byte) string {
	sum := sha1.Sum(content)
	return hex.EncodeToString(sum[:])
}

// wrapBase64 breaks encoded content into 60-char lines the way the real API does.
func wrapBase64(s string) string {
	var out []byte
	for len(s) > 60 {
		out = append(out, s[:60]...)
		out = append(out, '\n')
		s = s[60:]
	}
	out = append(out, s...)
	return string(out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
