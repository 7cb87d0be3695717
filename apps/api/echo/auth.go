package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/ervnjmsdnts/ojt/core"
)

const (
	contextTokenKey = "userToken"
	contextActorKey = "actor"
	tokenAudience   = "OJT Portal"
)

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are minted by the portal's identity provider (or the admin CLI) with the shared secret key.
type Claims struct {
	jwt.StandardClaims
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
}

func (c Claims) Actor() core.Actor {
	return core.Actor{ID: c.Subject, Name: c.Name, Role: c.Role}
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func GetActorClaims(conf *core.Config, actor core.Actor) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   actor.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name: actor.Name,
		Role: actor.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the actor Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	jwtConf := newJWTConfig(conf)
	method := jwt.GetSigningMethod(jwtConf.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(jwtConf.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context, tokenKey string) (Claims, error) {
	if token, ok := ctx.Get(tokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextActor(ctx echo.Context) (core.Actor, error) {
	if actor, ok := ctx.Get(contextActorKey).(core.Actor); ok {
		return actor, nil
	}
	return core.Actor{}, errUnauthorized
}
