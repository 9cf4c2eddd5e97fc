package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const basicPrefix = "Basic "

// BasicAuthMiddleware accepts HTTP Basic credentials whose username is the
// secret key. The password part is ignored.
func BasicAuthMiddleware(secretKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !validSecretKey(c.GetHeader("Authorization"), secretKey) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Invalid secret key",
			})
			return
		}
		c.Next()
	}
}

func validSecretKey(header, secretKey string) bool {
	if !strings.HasPrefix(header, basicPrefix) {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, basicPrefix))
	if err != nil {
		return false
	}

	user, _, _ := strings.Cut(string(decoded), ":")
	return subtle.ConstantTimeCompare([]byte(user), []byte(secretKey)) == 1
}
