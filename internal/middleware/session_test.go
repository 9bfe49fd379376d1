package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newSessionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Session("sid", time.Hour))
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, SessionID(c))
	})
	return router
}

func TestSessionIssuesCookie(t *testing.T) {
	recorder := httptest.NewRecorder()
	newSessionRouter().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	issued := recorder.Body.String()
	if issued == "" {
		t.Fatalf("expected a session id")
	}
	cookies := recorder.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "sid" || cookies[0].Value != issued {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}
	if got := recorder.Header().Get(SessionHeader); got != issued {
		t.Fatalf("unexpected session header: %s", got)
	}
}

func TestSessionReusesCookieAndHeader(t *testing.T) {
	router := newSessionRouter()

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "cookie-session"})
	router.ServeHTTP(recorder, req)
	if got := recorder.Body.String(); got != "cookie-session" {
		t.Fatalf("unexpected session id: %s", got)
	}
	if len(recorder.Result().Cookies()) != 0 {
		t.Fatalf("cookie should not be reissued")
	}

	recorder = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, "header-session")
	req.AddCookie(&http.Cookie{Name: "sid", Value: "cookie-session"})
	router.ServeHTTP(recorder, req)
	if got := recorder.Body.String(); got != "header-session" {
		t.Fatalf("header should win over cookie, got %s", got)
	}
}

func TestSessionRejectsMalformedID(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, "bad id;drop")
	newSessionRouter().ServeHTTP(recorder, req)

	if got := recorder.Body.String(); got == "bad id;drop" || got == "" {
		t.Fatalf("expected a fresh session id, got %q", got)
	}
}
