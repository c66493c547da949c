package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// TeamIDKey is the context key for storing team ID
	TeamIDKey ContextKey = "team_id"

	// UserIDKey is the context key for storing the acting user ID
	UserIDKey ContextKey = "user_id"

	// TeamIDHeader is the HTTP header carrying the authorized team
	TeamIDHeader = "X-Team-ID"

	// UserIDHeader is the HTTP header carrying the acting user
	UserIDHeader = "X-User-ID"

	// teamIDPattern defines allowed characters for team IDs
	teamIDPattern = `^[a-zA-Z0-9_-]+$`
)

var teamIDRegex = regexp.MustCompile(teamIDPattern)

// TeamMiddleware extracts the X-Team-ID header set by the authenticating
// gateway and rejects requests without a well-formed team.
func TeamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		teamID := c.GetHeader(TeamIDHeader)

		if teamID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Missing team identifier",
				"message": "X-Team-ID header is required",
				"code":    "TEAM_ID_REQUIRED",
			})
			c.Abort()
			return
		}

		if len(teamID) > 128 || !teamIDRegex.MatchString(teamID) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid team identifier",
				"message": "X-Team-ID must be at most 128 alphanumeric characters, hyphens, and underscores",
				"code":    "INVALID_TEAM_ID",
			})
			c.Abort()
			return
		}

		c.Set(string(TeamIDKey), teamID)
		ctx := context.WithValue(c.Request.Context(), TeamIDKey, teamID)

		if userID := c.GetHeader(UserIDHeader); userID != "" {
			c.Set(string(UserIDKey), userID)
			ctx = context.WithValue(ctx, UserIDKey, userID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetTeamID retrieves the team ID from Gin context
// Returns empty string if team ID is not found
func GetTeamID(c *gin.Context) string {
	return c.GetString(string(TeamIDKey))
}

// GetUserID retrieves the acting user ID from Gin context
func GetUserID(c *gin.Context) string {
	return c.GetString(string(UserIDKey))
}

// GetTeamIDFromContext retrieves team ID from standard context
func GetTeamIDFromContext(ctx context.Context) string {
	if teamID, ok := ctx.Value(TeamIDKey).(string); ok {
		return teamID
	}
	return ""
}
