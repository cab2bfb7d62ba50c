package ws

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"team-chat/internal/auth"
	"team-chat/internal/models"
	"team-chat/internal/observability"
)

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// authenticate resolves the viewer from the Authorization header or, for
// browser websocket clients that cannot set headers, a token query
// parameter.
func authenticate(c *gin.Context, secret []byte) (models.User, error) {
	token := c.GetHeader("Authorization")
	if token == "" {
		if query := c.Query("token"); query != "" {
			token = "Bearer " + query
		}
	}

	parts := strings.Split(token, " ")
	if len(parts) != 2 {
		return models.User{}, errors.New("invalid token")
	}
	claims, err := auth.ValidateToken(parts[1], secret)
	if err != nil {
		return models.User{}, err
	}
	return claims.User(), nil
}

func connInfo(c *gin.Context, span trace.Span, userID string) ConnInfo {
	return ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
}
