package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newFeedRouter(username, password string) *gin.Engine {
	r := gin.New()
	r.GET("/feed", FeedBasicAuth(username, password), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestFeedBasicAuth_DisabledWhenUsernameEmpty(t *testing.T) {
	r := newFeedRouter("", "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/feed", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFeedBasicAuth_RejectsMissingCredentials(t *testing.T) {
	r := newFeedRouter("alice", "secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/feed", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
}

func TestFeedBasicAuth_RejectsWrongCredentials(t *testing.T) {
	r := newFeedRouter("alice", "secret")
	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.SetBasicAuth("alice", "wrong-password")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFeedBasicAuth_AcceptsCorrectCredentials(t *testing.T) {
	r := newFeedRouter("alice", "secret")
	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.SetBasicAuth("alice", "secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
