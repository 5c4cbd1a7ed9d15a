package api

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"conduit-backend/internal/auth"
	"conduit-backend/internal/database"
	"conduit-backend/internal/httperror"
	"conduit-backend/internal/models"
	"conduit-backend/internal/session"
)

const testPassword = "Secr3t!pw"

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	return NewServer(newTestHandler(t))
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h, _ := newTestHandlerDB(t)
	return h
}

func newTestHandlerDB(t *testing.T) (*Handler, *sql.DB) {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "conduit.db")})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sessions, err := session.NewManager(session.Config{Secrets: []string{"test-secret"}}, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	users := database.NewUserRepo(db)
	authSvc, err := auth.NewService(users, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	limiter := auth.NewRateLimiter(20, time.Minute, time.Minute)
	t.Cleanup(limiter.Close)

	h := NewHandler(Deps{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sessions:     sessions,
		Auth:         authSvc,
		Users:        users,
		Articles:     database.NewArticleRepo(db),
		Comments:     database.NewCommentRepo(db),
		Tags:         database.NewTagRepo(db),
		Audit:        database.NewAuditRepo(db),
		LoginLimiter: limiter,
	})
	return h, db
}

// client replays the session cookie between requests like a browser
type client struct {
	t      *testing.T
	e      *echo.Echo
	cookie *http.Cookie
}

func (cl *client) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	cl.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	if cl.cookie != nil {
		req.AddCookie(cl.cookie)
	}

	rec := httptest.NewRecorder()
	cl.e.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name != session.DefaultCookieName {
			continue
		}
		if ck.MaxAge < 0 {
			cl.cookie = nil
		} else {
			cl.cookie = ck
		}
	}
	return rec
}

func (cl *client) register(name, email string) *httptest.ResponseRecorder {
	return cl.do(http.MethodPost, "/register", url.Values{
		"name":     {name},
		"email":    {email},
		"password": {testPassword},
	})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302 (body %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(echo.HeaderLocation); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}

func TestHealth(t *testing.T) {
	cl := &client{t: t, e: newTestServer(t)}
	rec := cl.do(http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRegister_FlashShownOnce(t *testing.T) {
	cl := &client{t: t, e: newTestServer(t)}

	expectRedirect(t, cl.register("Jane", "jane@example.com"), "/")
	if cl.cookie == nil {
		t.Fatal("register did not set a session cookie")
	}

	rec := cl.do(http.MethodGet, "/messages", nil)
	var msgs messagesResponse
	decode(t, rec, &msgs)
	if msgs.Success != "Registration successful" {
		t.Errorf("success = %q, want %q", msgs.Success, "Registration successful")
	}

	rec = cl.do(http.MethodGet, "/messages", nil)
	if got := strings.TrimSpace(rec.Body.String()); got != "null" {
		t.Errorf("second read = %s, want null", got)
	}

	// still signed in after the flash is consumed
	expectRedirect(t, cl.do(http.MethodGet, "/", nil), "/feed/user")
}

func TestRegister_ValidationErrors(t *testing.T) {
	cl := &client{t: t, e: newTestServer(t)}

	rec := cl.do(http.MethodPost, "/register", url.Values{
		"name":     {"J"},
		"email":    {"not-an-email"},
		"password": {"short"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	var body httperror.Body
	decode(t, rec, &body)
	for _, field := range []string{"name", "email", "password"} {
		if len(body.Errors[field]) == 0 {
			t.Errorf("no errors for %s in %v", field, body.Errors)
		}
	}
	if got := len(body.Errors["password"]); got != 2 {
		t.Errorf("password errors = %v, want length and composition", body.Errors["password"])
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	e := newTestServer(t)
	(&client{t: t, e: e}).register("Jane", "jane@example.com")

	rec := (&client{t: t, e: e}).register("Other", "jane@example.com")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "has already been taken") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestLogin(t *testing.T) {
	e := newTestServer(t)
	(&client{t: t, e: e}).register("Jane", "jane@example.com")

	cl := &client{t: t, e: e}
	expectRedirect(t, cl.do(http.MethodPost, "/login", url.Values{
		"email":    {"jane@example.com"},
		"password": {testPassword},
	}), "/")

	var msgs messagesResponse
	decode(t, cl.do(http.MethodGet, "/messages", nil), &msgs)
	if msgs.Success != "Welcome back Jane!" {
		t.Errorf("success = %q", msgs.Success)
	}

	expectRedirect(t, cl.do(http.MethodPost, "/logout", nil), "/")
	if cl.cookie != nil {
		t.Error("logout did not clear the session cookie")
	}
	expectRedirect(t, cl.do(http.MethodGet, "/", nil), "/feed/global")
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	e := newTestServer(t)
	(&client{t: t, e: e}).register("Jane", "jane@example.com")

	wrongPassword := (&client{t: t, e: e}).do(http.MethodPost, "/login", url.Values{
		"email":    {"jane@example.com"},
		"password": {"Wrong1!pw"},
	})
	unknownUser := (&client{t: t, e: e}).do(http.MethodPost, "/login", url.Values{
		"email":    {"nobody@example.com"},
		"password": {testPassword},
	})

	for _, rec := range []*httptest.ResponseRecorder{wrongPassword, unknownUser} {
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	}
	if wrongPassword.Body.String() != unknownUser.Body.String() {
		t.Errorf("bodies differ:\n%s\n%s", wrongPassword.Body.String(), unknownUser.Body.String())
	}

	var body httperror.Body
	decode(t, unknownUser, &body)
	if got := body.Errors[auth.CredentialsField]; len(got) != 1 || got[0] != "is invalid" {
		t.Errorf("errors = %v", body.Errors)
	}
}

func TestRequireLogin(t *testing.T) {
	cl := &client{t: t, e: newTestServer(t)}

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/feed/user"},
		{http.MethodGet, "/articles/new"},
		{http.MethodGet, "/settings"},
		{http.MethodPost, "/api/articles/1/favorite"},
	} {
		expectRedirect(t, cl.do(tc.method, tc.path, url.Values{}), auth.LoginPath)
	}

	if rec := cl.do(http.MethodGet, "/feed/global", nil); rec.Code != http.StatusOK {
		t.Errorf("global feed status = %d, want 200", rec.Code)
	}
}

func createArticle(t *testing.T, cl *client, title, tags string) *models.Article {
	t.Helper()
	expectRedirect(t, cl.do(http.MethodPost, "/articles/new", url.Values{
		"title":       {title},
		"description": {"About " + title},
		"body":        {"Body of " + title},
		"tags":        {tags},
	}), "/")

	var feed feedResponse
	decode(t, cl.do(http.MethodGet, "/feed/global", nil), &feed)
	for _, a := range feed.Articles {
		if a.Title == title {
			return a
		}
	}
	t.Fatalf("article %q not in global feed", title)
	return nil
}

func TestArticleLifecycle(t *testing.T) {
	e := newTestServer(t)
	author := &client{t: t, e: e}
	author.register("Jane", "jane@example.com")
	author.do(http.MethodGet, "/messages", nil)

	article := createArticle(t, author, "Go Sessions", "go, web")
	if len(article.Tags) != 2 {
		t.Errorf("tags = %v, want 2", article.Tags)
	}

	var msgs messagesResponse
	decode(t, author.do(http.MethodGet, "/messages", nil), &msgs)
	if msgs.Success != `Article "Go Sessions" was created successfully` {
		t.Errorf("flash = %q", msgs.Success)
	}

	reader := &client{t: t, e: e}
	reader.register("Bob", "bob@example.com")
	path := "/articles/" + itoa(article.ID)

	// comment
	rec := reader.do(http.MethodPost, path, url.Values{"comment": {"Nice post"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("comment status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec = reader.do(http.MethodPost, path, url.Values{"comment": {"  "}}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("blank comment status = %d, want 422", rec.Code)
	}

	// favorite
	var fav struct {
		Article models.Article `json:"article"`
		Success bool           `json:"success"`
	}
	decode(t, reader.do(http.MethodPost, "/api"+path+"/favorite", nil), &fav)
	if !fav.Success || !fav.Article.Favorited || fav.Article.FavoritesCount != 1 {
		t.Errorf("favorite = %+v", fav)
	}

	// follow the author and see the article in the user feed
	rec = reader.do(http.MethodPost, "/api/users/"+itoa(article.AuthorID)+"/follow", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("follow status = %d: %s", rec.Code, rec.Body.String())
	}
	var feed feedResponse
	decode(t, reader.do(http.MethodGet, "/feed/user", nil), &feed)
	if feed.ArticlesCount != 1 {
		t.Errorf("user feed count = %d, want 1", feed.ArticlesCount)
	}

	var page articleResponse
	decode(t, reader.do(http.MethodGet, path, nil), &page)
	if len(page.Comments) != 1 || page.Comments[0].Body != "Nice post" {
		t.Errorf("comments = %+v", page.Comments)
	}
	if page.CurrentUser == nil || page.CurrentUser.Name != "Bob" {
		t.Errorf("currentUser = %+v", page.CurrentUser)
	}

	// only the author may delete
	if rec = reader.do(http.MethodPost, path+"/delete", nil); rec.Code != http.StatusForbidden {
		t.Errorf("non-author delete status = %d, want 403", rec.Code)
	}
	expectRedirect(t, author.do(http.MethodPost, path+"/delete", nil), "/")
	if rec = reader.do(http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
		t.Errorf("deleted article status = %d, want 404", rec.Code)
	}
}

func TestUpdateSettings(t *testing.T) {
	cl := &client{t: t, e: newTestServer(t)}
	cl.register("Jane", "jane@example.com")

	rec := cl.do(http.MethodPost, "/settings", url.Values{
		"name":  {"Jane Doe"},
		"email": {"jane@example.com"},
		"bio":   {"Writes about Go"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		User models.User `json:"user"`
	}
	decode(t, cl.do(http.MethodGet, "/settings", nil), &resp)
	if resp.User.Name != "Jane Doe" || resp.User.Bio != "Writes about Go" {
		t.Errorf("user = %+v", resp.User)
	}

	var activity struct {
		Activity []models.AuditLog `json:"activity"`
	}
	decode(t, cl.do(http.MethodGet, "/settings/activity", nil), &activity)
	if len(activity.Activity) != 2 {
		t.Errorf("activity = %+v, want register and update", activity.Activity)
	}
}

func TestUnknownArticleIsNotFound(t *testing.T) {
	cl := &client{t: t, e: newTestServer(t)}
	for _, path := range []string{"/articles/999", "/articles/abc", "/profiles/42"} {
		if rec := cl.do(http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestPanicIsGeneric500(t *testing.T) {
	e := newTestServer(t)
	e.GET("/boom", func(c echo.Context) error {
		panic("database exploded")
	})

	rec := (&client{t: t, e: e}).do(http.MethodGet, "/boom", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body httperror.Body
	decode(t, rec, &body)
	if body.Message != httperror.GenericMessage {
		t.Errorf("message = %q", body.Message)
	}
	if strings.Contains(rec.Body.String(), "exploded") {
		t.Errorf("body leaks panic value: %s", rec.Body.String())
	}
}

func TestCommentDelete_ScopedToArticle(t *testing.T) {
	e := newTestServer(t)
	author := &client{t: t, e: e}
	author.register("Jane", "jane@example.com")
	first := createArticle(t, author, "First", "")
	second := createArticle(t, author, "Second", "")

	path := "/articles/" + itoa(first.ID)
	var created struct {
		Comment models.Comment `json:"comment"`
	}
	decode(t, author.do(http.MethodPost, path, url.Values{"comment": {"Mine"}}), &created)

	wrong := "/articles/" + itoa(second.ID) + "/comments/" + itoa(created.Comment.ID) + "/delete"
	if rec := author.do(http.MethodPost, wrong, nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete through other article status = %d, want 404", rec.Code)
	}
	var page articleResponse
	decode(t, author.do(http.MethodGet, path, nil), &page)
	if len(page.Comments) != 1 {
		t.Fatalf("comments = %d, want 1", len(page.Comments))
	}

	right := path + "/comments/" + itoa(created.Comment.ID) + "/delete"
	if rec := author.do(http.MethodPost, right, nil); rec.Code != http.StatusOK {
		t.Errorf("delete status = %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, author.do(http.MethodGet, path, nil), &page)
	if len(page.Comments) != 0 {
		t.Errorf("comments after delete = %+v", page.Comments)
	}
}

func TestStorageFailureIsGeneric500(t *testing.T) {
	h, db := newTestHandlerDB(t)
	e := NewServer(h)
	db.Close()

	for _, path := range []string{"/register", "/login"} {
		rec := (&client{t: t, e: e}).do(http.MethodPost, path, url.Values{
			"name":     {"Jane"},
			"email":    {"jane@example.com"},
			"password": {testPassword},
		})
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("POST %s status = %d, want 500 (body %s)", path, rec.Code, rec.Body.String())
			continue
		}
		var body httperror.Body
		decode(t, rec, &body)
		if body.Message != httperror.GenericMessage {
			t.Errorf("POST %s message = %q", path, body.Message)
		}
		if strings.Contains(rec.Body.String(), "closed") {
			t.Errorf("POST %s body leaks storage error: %s", path, rec.Body.String())
		}
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestLiveComments(t *testing.T) {
	h := newTestHandler(t)
	e := NewServer(h)
	srv := httptest.NewServer(e)
	defer srv.Close()

	cl := &client{t: t, e: e}
	cl.register("Jane", "jane@example.com")
	article := createArticle(t, cl, "Live", "")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/articles/" + itoa(article.ID) + "/comments/live"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Hub.Subscribers(article.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec := cl.do(http.MethodPost, "/articles/"+itoa(article.ID), url.Values{"comment": {"First!"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("comment status = %d", rec.Code)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.Comment
	if err := ws.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.Body != "First!" || got.Author.Name != "Jane" {
		t.Errorf("comment = %+v", got)
	}
}

func TestLiveComments_UnknownArticle(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/articles/999/comments/live"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("Dial() succeeded for a missing article")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("response = %v, want 404", resp)
	}
}
