package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"team_id":     GetTeamID(c),
			"user_id":     GetUserID(c),
			"ctx_team_id": GetTeamIDFromContext(c.Request.Context()),
		})
	})
	r.GET("/", handlers...)
	return r
}

func TestTeamMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		teamID     string
		wantStatus int
		wantCode   string
	}{
		{"valid", "team_42-a", http.StatusOK, ""},
		{"missing", "", http.StatusBadRequest, "TEAM_ID_REQUIRED"},
		{"bad characters", "team/../x", http.StatusBadRequest, "INVALID_TEAM_ID"},
		{"too long", strings.Repeat("a", 129), http.StatusBadRequest, "INVALID_TEAM_ID"},
	}

	r := newRouter(TeamMiddleware())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.teamID != "" {
				req.Header.Set(TeamIDHeader, tt.teamID)
			}
			req.Header.Set(UserIDHeader, "user-7")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Contains(t, w.Body.String(), tt.wantCode)
				return
			}
			assert.JSONEq(t, `{"team_id":"team_42-a","user_id":"user-7","ctx_team_id":"team_42-a"}`, w.Body.String())
		})
	}
}

func TestRateLimitMiddleware_PerTeam(t *testing.T) {
	r := newRouter(TeamMiddleware(), RateLimitMiddleware(NewTeamRateLimiter(0.001, 2)))

	do := func(team string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TeamIDHeader, team)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("team-a"))
	assert.Equal(t, http.StatusOK, do("team-a"))
	assert.Equal(t, http.StatusTooManyRequests, do("team-a"))

	// other teams have their own bucket
	assert.Equal(t, http.StatusOK, do("team-b"))
}

func TestTeamRateLimiter_ReusesLimiter(t *testing.T) {
	rl := NewTeamRateLimiter(10, 10)
	assert.Same(t, rl.GetLimiter("t1"), rl.GetLimiter("t1"))
	assert.NotSame(t, rl.GetLimiter("t1"), rl.GetLimiter("t2"))
}
