package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/policy"
)

const (
	contextTokenKey = "userToken"
	contextActorKey = "actor"
)

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are issued by the identity service; the subject is the account id.
type Claims struct {
	jwt.StandardClaims
	Role string `json:"role"`
}

// newJWTConfig returns the JWT auth middleware config.
func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// NewClaims returns the claims of an account holding role, valid for ttl.
func NewClaims(conf *core.Config, subject string, role policy.Role, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   subject,
			Audience:  conf.JWTAudience,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Role: string(role),
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	jwtConf := newJWTConfig(conf)
	method := jwt.GetSigningMethod(jwtConf.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(jwtConf.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// actorMiddleware turns verified claims into the request's policy.Actor.
// It must run after the JWT middleware.
func actorMiddleware(audience string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.Subject == "" {
				return errUnauthorized
			}
			if audience != "" && !claims.VerifyAudience(audience, true) {
				return errUnauthorized
			}
			ctx.Set(contextActorKey, policy.Actor{
				ID:   core.CleanString(claims.Subject, true /* lower */),
				Role: policy.ParseRole(claims.Role),
			})
			return next(ctx)
		}
	}
}

func getContextActor(ctx echo.Context) (policy.Actor, error) {
	if actor, ok := ctx.Get(contextActorKey).(policy.Actor); ok {
		return actor, nil
	}
	return policy.Actor{}, errUnauthorized
}
