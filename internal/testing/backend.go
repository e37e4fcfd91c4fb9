package testing

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/snipx/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type backendUser struct {
	password string
	identity models.Identity
}

type override struct {
	status int
	body   any
}

// Backend is an in-process fake of the snippet API.
//
// It speaks both credential modes: token auth on /login/ and the CSRF form login on /api-auth/login/.
type Backend struct {
	Server *httptest.Server

	// RegisterReturnsToken controls whether /register/ answers with {token, user} or the bare identity.
	RegisterReturnsToken bool

	mu        sync.Mutex
	users     map[string]*backendUser
	tokens    map[string]string
	sessions  map[string]string
	snippets  map[int]*models.Snippet
	nextUser  int
	nextSnip  int
	hits      map[string]int
	overrides map[string]override
	holds     map[string]chan struct{}
}

// NewBackend starts a fake backend that is closed with the test.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		RegisterReturnsToken: true,
		users:                map[string]*backendUser{},
		tokens:               map[string]string{},
		sessions:             map[string]string{},
		snippets:             map[int]*models.Snippet{},
		hits:                 map[string]int{},
		overrides:            map[string]override{},
		holds:                map[string]chan struct{}{},
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the server's base URL.
func (b *Backend) URL() string {
	return b.Server.URL
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.track)

	r.Post("/login/", b.tokenLogin)
	r.Post("/logout/", b.tokenLogout)
	r.Get("/api-auth/login/", b.loginPage)
	r.Post("/api-auth/login/", b.formLogin)
	r.Post("/api-auth/logout/", b.sessionLogout)
	r.Post("/register/", b.register)
	r.Get("/current_user/", b.currentUser)
	r.Patch("/users/{id}/", b.updateUser)

	r.Route("/snippets", func(r chi.Router) {
		r.Get("/", b.listSnippets)
		r.Post("/", b.createSnippet)
		r.Get("/{id}/", b.getSnippet)
		r.Put("/{id}/", b.updateSnippet)
		r.Delete("/{id}/", b.deleteSnippet)
		r.Post("/{id}/review/", b.reviewSnippet)
		r.Post("/shared/{uuid}/", b.sharedSnippet)
		r.Post("/shared/{uuid}/review/", b.sharedReview)
	})
	return r
}

func key(method, path string) string {
	return method + " " + path
}

// track counts hits, applies overrides and waits on holds.
func (b *Backend) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k := key(r.Method, r.URL.Path)

		b.mu.Lock()
		b.hits[k]++
		o, overridden := b.overrides[k]
		hold := b.holds[k]
		b.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}

		if overridden {
			writeJSON(w, o.status, o.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Hits returns how many requests reached method and path.
func (b *Backend) Hits(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key(method, path)]
}

// Fail makes method and path answer with status and body until cleared with [Backend.Clear].
func (b *Backend) Fail(method, path string, status int, body any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides[key(method, path)] = override{status: status, body: body}
}

// Clear removes a [Backend.Fail] override.
func (b *Backend) Clear(method, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.overrides, key(method, path))
}

// Hold blocks requests to method and path until the returned func is called.
func (b *Backend) Hold(method, path string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.holds[key(method, path)] = ch
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.holds, key(method, path))
			b.mu.Unlock()
			close(ch)
		})
	}
}

// AddUser registers an account directly.
func (b *Backend) AddUser(username, password string) models.Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(username, "", password)
}

func (b *Backend) addUserLocked(username, email, password string) models.Identity {
	b.nextUser++
	u := &backendUser{
		password: password,
		identity: models.Identity{ID: b.nextUser, Username: username, Email: email},
	}
	b.users[username] = u
	return u.identity
}

// IssueToken creates an API token for an existing user.
func (b *Backend) IssueToken(username string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueTokenLocked(username)
}

func (b *Backend) issueTokenLocked(username string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	b.tokens[token] = username
	return token
}

// RevokeToken invalidates a token as if it had expired server-side.
func (b *Backend) RevokeToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, token)
}

// IssueSession opens a server-side session for username and returns its sessionid.
func (b *Backend) IssueSession(username string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	sid := uuid.NewString()
	b.sessions[sid] = username
	return sid
}

// HasSession reports whether sid is still a live session.
func (b *Backend) HasSession(sid string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[sid]
	return ok
}

// AddSnippet stores a snippet for owner, filling its id, uuid and highlight.
func (b *Backend) AddSnippet(owner string, s models.Snippet) models.Snippet {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.addSnippetLocked(owner, s)
}

func (b *Backend) addSnippetLocked(owner string, s models.Snippet) *models.Snippet {
	b.nextSnip++
	s.ID = b.nextSnip
	s.Owner = owner
	s.UUID = uuid.NewString()
	s.Highlighted = highlight(s.Code)
	if s.Language == "" {
		s.Language = "python"
	}
	if s.Style == "" {
		s.Style = "friendly"
	}
	s.Created = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b.snippets[s.ID] = &s
	return &s
}

func highlight(code string) string {
	return `<div class="highlight"><pre><span class="k">` + html.EscapeString(code) + `</span></pre></div>`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func detail(msg string) map[string]string {
	return map[string]string{"detail": msg}
}

// authenticated resolves the caller from a token header or session cookie.
func (b *Backend) authenticated(r *http.Request) (*backendUser, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Token ") {
		if name, ok := b.tokens[strings.TrimPrefix(h, "Token ")]; ok {
			return b.users[name], true
		}
		return nil, false
	}
	if c, err := r.Cookie("sessionid"); err == nil {
		if name, ok := b.sessions[c.Value]; ok {
			return b.users[name], true
		}
	}
	return nil, false
}

func (b *Backend) requireUser(w http.ResponseWriter, r *http.Request) (*backendUser, bool) {
	u, ok := b.authenticated(r)
	if !ok {
		msg := "Authentication credentials were not provided."
		if r.Header.Get("Authorization") != "" {
			msg = "Invalid token."
		}
		writeJSON(w, http.StatusUnauthorized, detail(msg))
		return nil, false
	}
	if r.Header.Get("Authorization") == "" && !csrfValid(r) {
		writeJSON(w, http.StatusForbidden, detail("CSRF Failed: CSRF token missing."))
		return nil, false
	}
	return u, true
}

// csrfValid applies the session-auth rule: unsafe methods need X-CSRFToken matching the csrftoken cookie.
func csrfValid(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	c, err := r.Cookie("csrftoken")
	return err == nil && c.Value != "" && r.Header.Get("X-CSRFToken") == c.Value
}

func (b *Backend) tokenLogin(w http.ResponseWriter, r *http.Request) {
	var body struct{ Username, Password string }
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("JSON parse error"))
		return
	}

	errs := map[string][]string{}
	if body.Username == "" {
		errs["username"] = []string{"This field is required."}
	}
	if body.Password == "" {
		errs["password"] = []string{"This field is required."}
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[body.Username]
	if !ok || u.password != body.Password {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"non_field_errors": {"Unable to log in with provided credentials."},
		})
		return
	}
	token := b.issueTokenLocked(body.Username)
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": u.identity})
}

func (b *Backend) tokenLogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.requireUser(w, r); !ok {
		return
	}
	b.RevokeToken(strings.TrimPrefix(r.Header.Get("Authorization"), "Token "))
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Successfully logged out."})
}

func (b *Backend) loginPage(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: uuid.NewString(), Path: "/"})
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<form method="post"><input name="username"><input name="password"></form>`)
}

func (b *Backend) formLogin(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie("csrftoken")
	if err != nil || r.Header.Get("X-CSRFToken") != c.Value || r.PostFormValue("csrfmiddlewaretoken") != c.Value {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "CSRF verification failed.")
		return
	}

	b.mu.Lock()
	u, ok := b.users[r.PostFormValue("username")]
	valid := ok && u.password == r.PostFormValue("password")
	var sid string
	if valid {
		sid = uuid.NewString()
		b.sessions[sid] = u.identity.Username
	}
	b.mu.Unlock()

	if !valid {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<p class="errornote">Please enter a correct username and password.</p>`)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: sid, Path: "/", HttpOnly: true})
	next := r.PostFormValue("next")
	if next == "" {
		next = "/"
	}
	http.Redirect(w, r, next, http.StatusFound)
}

func (b *Backend) sessionLogout(w http.ResponseWriter, r *http.Request) {
	if !csrfValid(r) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "CSRF verification failed.")
		return
	}
	if c, err := r.Cookie("sessionid"); err == nil {
		b.mu.Lock()
		delete(b.sessions, c.Value)
		b.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var body struct{ Username, Email, Password string }
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("JSON parse error"))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	errs := map[string][]string{}
	switch {
	case body.Username == "":
		errs["username"] = []string{"This field is required."}
	case b.users[body.Username] != nil:
		errs["username"] = []string{"A user with that username already exists."}
	}
	if len(body.Password) < 8 {
		errs["password"] = []string{"This password is too short. It must contain at least 8 characters."}
	}
	if body.Email != "" && !strings.Contains(body.Email, "@") {
		errs["email"] = []string{"Enter a valid email address."}
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	identity := b.addUserLocked(body.Username, body.Email, body.Password)
	if b.RegisterReturnsToken {
		token := b.issueTokenLocked(body.Username)
		writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user": identity})
		return
	}
	writeJSON(w, http.StatusCreated, identity)
}

func (b *Backend) currentUser(w http.ResponseWriter, r *http.Request) {
	u, ok := b.requireUser(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, u.identity)
}

func (b *Backend) updateUser(w http.ResponseWriter, r *http.Request) {
	u, ok := b.requireUser(w, r)
	if !ok {
		return
	}
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	var update models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("JSON parse error"))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if id != u.identity.ID {
		writeJSON(w, http.StatusForbidden, detail("You do not have permission to perform this action."))
		return
	}
	if update.Email != nil && *update.Email != "" && !strings.Contains(*update.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"email": {"Enter a valid email address."}})
		return
	}
	if update.Email != nil {
		u.identity.Email = *update.Email
	}
	if update.FirstName != nil {
		u.identity.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		u.identity.LastName = *update.LastName
	}
	if update.Username != nil {
		delete(b.users, u.identity.Username)
		u.identity.Username = *update.Username
		b.users[u.identity.Username] = u
	}
	writeJSON(w, http.StatusOK, u.identity)
}

func (b *Backend) ownedSnippet(w http.ResponseWriter, r *http.Request) (*models.Snippet, bool) {
	u, ok := b.requireUser(w, r)
	if !ok {
		return nil, false
	}
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.snippets[id]
	if !ok || s.Owner != u.identity.Username {
		writeJSON(w, http.StatusNotFound, detail("Not found."))
		return nil, false
	}
	return s, true
}

func (b *Backend) listSnippets(w http.ResponseWriter, r *http.Request) {
	u, ok := b.requireUser(w, r)
	if !ok {
		return
	}

	const pageSize = 2
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	b.mu.Lock()
	var owned []models.Snippet
	for id := 1; id <= b.nextSnip; id++ {
		if s, ok := b.snippets[id]; ok && s.Owner == u.identity.Username {
			owned = append(owned, *s)
		}
	}
	b.mu.Unlock()

	start := min((page-1)*pageSize, len(owned))
	end := min(start+pageSize, len(owned))
	out := models.Page[models.Snippet]{Count: len(owned), Results: owned[start:end]}
	if out.Results == nil {
		out.Results = []models.Snippet{}
	}
	if end < len(owned) {
		next := fmt.Sprintf("%s/snippets/?page=%d", b.Server.URL, page+1)
		out.Next = &next
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createSnippet(w http.ResponseWriter, r *http.Request) {
	u, ok := b.requireUser(w, r)
	if !ok {
		return
	}
	var in models.SnippetInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("JSON parse error"))
		return
	}
	if in.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"code": {"This field may not be blank."}})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.addSnippetLocked(u.identity.Username, models.Snippet{
		Title: in.Title, Code: in.Code, LineNos: in.LineNos,
		Language: in.Language, Style: in.Style, SharedPassword: in.SharedPassword,
	})
	writeJSON(w, http.StatusCreated, s)
}

func (b *Backend) getSnippet(w http.ResponseWriter, r *http.Request) {
	if s, ok := b.ownedSnippet(w, r); ok {
		writeJSON(w, http.StatusOK, s)
	}
}

func (b *Backend) updateSnippet(w http.ResponseWriter, r *http.Request) {
	s, ok := b.ownedSnippet(w, r)
	if !ok {
		return
	}
	var in models.SnippetInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("JSON parse error"))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s.Title, s.Code, s.LineNos = in.Title, in.Code, in.LineNos
	if in.Language != "" {
		s.Language = in.Language
	}
	if in.Style != "" {
		s.Style = in.Style
	}
	if in.SharedPassword != "" {
		s.SharedPassword = in.SharedPassword
	}
	s.Highlighted = highlight(s.Code)
	writeJSON(w, http.StatusOK, s)
}

func (b *Backend) deleteSnippet(w http.ResponseWriter, r *http.Request) {
	s, ok := b.ownedSnippet(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	delete(b.snippets, s.ID)
	b.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func review(s *models.Snippet) string {
	return fmt.Sprintf("## Review of %s\n\nThe %s code looks **fine**.\n\n- keep functions small\n", s.DisplayTitle(), s.Language)
}

func (b *Backend) reviewSnippet(w http.ResponseWriter, r *http.Request) {
	if s, ok := b.ownedSnippet(w, r); ok {
		writeJSON(w, http.StatusOK, models.Review{Review: review(s)})
	}
}

// sharedLookup mirrors the backend: 404 unknown, 400 no password, 403 wrong password.
func (b *Backend) sharedLookup(w http.ResponseWriter, r *http.Request) (*models.Snippet, bool) {
	if r.Header.Get("Authorization") != "" {
		if _, ok := b.requireUser(w, r); !ok {
			return nil, false
		}
	}

	var body struct {
		Password string `json:"password"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	var found *models.Snippet
	for _, s := range b.snippets {
		if s.UUID == chi.URLParam(r, "uuid") {
			found = s
			break
		}
	}
	b.mu.Unlock()

	switch {
	case found == nil:
		writeJSON(w, http.StatusNotFound, detail("Not found."))
	case body.Password == "":
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Password required"})
	case body.Password != found.SharedPassword:
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid password"})
	default:
		return found, true
	}
	return nil, false
}

func (b *Backend) sharedSnippet(w http.ResponseWriter, r *http.Request) {
	if s, ok := b.sharedLookup(w, r); ok {
		writeJSON(w, http.StatusOK, models.SharedSnippetView{
			Title:             s.Title,
			Language:          s.Language,
			HighlightedMarkup: s.Highlighted,
		})
	}
}

func (b *Backend) sharedReview(w http.ResponseWriter, r *http.Request) {
	if s, ok := b.sharedLookup(w, r); ok {
		writeJSON(w, http.StatusOK, models.Review{Review: review(s)})
	}
}
