package middleware

import (
	"crypto/subtle"
	"strings"

	"persona-nft/backend/pkg/errors"
	"persona-nft/backend/pkg/jwt"
	"persona-nft/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	// ClaimsKey holds the *jwt.WalletClaims of an authenticated request
	ClaimsKey = "claims"
	// WalletKey holds the lower-cased wallet address of an authenticated request
	WalletKey = "wallet"
	// ConnectSecretHeader carries the operator secret for wallet connection
	ConnectSecretHeader = "X-Connect-Secret"
)

// WalletAuth requires a valid wallet token and stores its claims on the context
func WalletAuth(jwtService *jwt.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Error(errors.NewUnauthorizedError(errors.CodeAuthRequired, "Connect your wallet first"))
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			log.Warn("Invalid wallet token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError(errors.CodeInvalidToken, "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(WalletKey, claims.Address)

		c.Next()
	}
}

// WalletFromContext returns the address of the authenticated wallet, if any
func WalletFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(WalletKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// ConnectGuard requires the operator secret before a wallet connection is issued.
// An empty secret leaves the route open.
func ConnectGuard(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader(ConnectSecretHeader)), []byte(secret)) != 1 {
			c.Error(errors.NewUnauthorizedError(errors.CodeAuthRequired, "Wallet connection requires the operator secret"))
			c.Abort()
			return
		}
		c.Next()
	}
}
