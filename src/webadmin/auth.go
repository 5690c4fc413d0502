package webadmin

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const tokenTTL = 24 * time.Hour

func sessionNonceKey(jti string) string { return "webadmin:session:" + jti }

// Auth issues and validates admin API tokens. Tokens are HS256 JWTs
// whose jti is mirrored into Redis, so sessions can be revoked by
// deleting the nonce.
type Auth struct {
	rdb         *redis.Client
	jwtSecret   []byte
	adminSecret string
}

func NewAuth(rdb *redis.Client, jwtSecret []byte, adminSecret string) Auth {
	return Auth{rdb: rdb, jwtSecret: jwtSecret, adminSecret: adminSecret}
}

// Token exchanges the shared admin secret for a bearer token.
func (a Auth) Token(c *gin.Context) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if a.adminSecret == "" ||
		subtle.ConstantTimeCompare([]byte(req.Secret), []byte(a.adminSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "invalid secret"})
		return
	}

	jti := uuid.NewString()
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "token signing failed"})
		return
	}

	if err := a.rdb.Set(context.Background(), sessionNonceKey(jti), 1, tokenTTL).Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "session store failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int(tokenTTL.Seconds())})
}

// Middleware validates the bearer token and the session nonce.
func (a Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "missing bearer token"})
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return a.jwtSecret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "invalid token"})
			return
		}

		exists, err := a.rdb.Exists(context.Background(), sessionNonceKey(claims.ID)).Result()
		if err != nil || exists == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "session revoked"})
			return
		}

		c.Next()
	}
}
