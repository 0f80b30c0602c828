package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/coursepay/internal/actor"
	obscontext "github.com/smallbiznis/coursepay/internal/observability/context"
	"github.com/smallbiznis/coursepay/internal/observability/logger"
	"go.uber.org/zap"
)

const tokenLeeway = 30 * time.Second

// AccessClaims is the bearer token body. Subject carries the user id.
type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthRequired resolves the bearer token once into an actor on the request
// context. Handlers read the actor back and pass it to services.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		a, err := s.parseActor(raw)
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("bearer token rejected", zap.Error(err))
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := actor.WithActor(c.Request.Context(), a)
		ctx = obscontext.WithActor(ctx, string(a.Role), a.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) parseActor(raw string) (actor.Actor, error) {
	if len(s.jwtSecret) == 0 {
		return actor.Actor{}, errors.New("jwt secret not configured")
	}

	var claims AccessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tokenLeeway),
	)
	if err != nil {
		return actor.Actor{}, err
	}

	role, ok := actor.ParseRole(claims.Role)
	if !ok {
		return actor.Actor{}, errors.New("unknown role")
	}
	a := actor.Actor{UserID: strings.TrimSpace(claims.Subject), Role: role}
	if !a.Valid() {
		return actor.Actor{}, errors.New("invalid subject")
	}
	return a, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(strings.TrimSpace(header))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func actorFromContext(c *gin.Context) (actor.Actor, bool) {
	a, ok := actor.FromContext(c.Request.Context())
	if !ok || !a.Valid() {
		return actor.Actor{}, false
	}
	return a, true
}

// SignAccessToken issues an HS256 token for a user. Used by tooling and tests.
func SignAccessToken(secret []byte, a actor.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Role: string(a.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
