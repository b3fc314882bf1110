package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/algorithm/pkg/httpcontext"
)

// HeaderControllerSession carries the session id of a verified controller
// token to the handlers.
const HeaderControllerSession = httpcontext.HeaderControllerSession

const controllerScope = "controller"

var errMissingSecret = errors.New("jwt secret not configured")

// ControllerClaims are embedded in the link handed to a controller device.
type ControllerClaims struct {
	Scope   string `json:"scope"`
	Session string `json:"session"`
	jwt.RegisteredClaims
}

// IssueControllerToken signs a controller token for session.
func IssueControllerToken(secret, issuer, session string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errMissingSecret
	}
	claims := ControllerClaims{
		Scope:   controllerScope,
		Session: session,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseControllerToken verifies signature, expiry and scope.
func ParseControllerToken(secret, tokenString string) (*ControllerClaims, error) {
	if secret == "" {
		return nil, errMissingSecret
	}
	var claims ControllerClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Scope != controllerScope {
		return nil, errors.New("not a controller token")
	}
	return &claims, nil
}

// ControllerAuth only lets requests with a valid controller token through.
// The token is read from the Authorization header or the token query arg.
func ControllerAuth(secret string, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			tokenString := extractToken(ctx)
			if tokenString == "" {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			claims, err := ParseControllerToken(secret, tokenString)
			if err != nil {
				logger.Warn("invalid controller token", zap.Error(err))
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			ctx.Request.Header.Set(HeaderControllerSession, claims.Session)
			next(ctx)
		}
	}
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return string(ctx.QueryArgs().Peek("token"))
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
