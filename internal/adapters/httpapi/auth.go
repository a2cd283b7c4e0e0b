package httpapi

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/zerr"
)

// IdentityHeader names the caller when authentication is disabled.
const IdentityHeader = "X-Splitup-Identity"

const identityKey = "splitup.identity"

// Claims are the bearer token claims. The subject is the caller identity.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator. An empty secret disables
// authentication and the caller is taken from IdentityHeader instead.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether bearer tokens are required.
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// Issue signs a token for id valid for ttl.
func (a *Authenticator) Issue(id domain.Identity, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", zerr.Wrap(domain.ErrInvalidConfig, "server.jwt_secret is not set")
	}
	if !id.Valid() {
		return "", zerr.Wrap(domain.ErrInvalidIdentifier, "token subject must be set")
	}
	now := a.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   id.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", zerr.Wrap(err, "failed to sign token")
	}
	return token, nil
}

// Verify checks the token signature and expiry and returns its subject.
func (a *Authenticator) Verify(token string) (domain.Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired())
	if err != nil {
		return "", zerr.Wrap(ErrUnauthenticated, err.Error())
	}
	id := domain.Identity(claims.Subject)
	if !id.Valid() {
		return "", zerr.Wrap(ErrUnauthenticated, "token has no subject")
	}
	return id, nil
}

// Middleware binds the caller identity to the request context.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !a.Enabled() {
				c.Set(identityKey, domain.Identity(c.Request().Header.Get(IdentityHeader)))
				return next(c)
			}
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return zerr.Wrap(ErrUnauthenticated, "missing bearer token")
			}
			id, err := a.Verify(token)
			if err != nil {
				return err
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

func caller(c echo.Context) domain.Identity {
	id, _ := c.Get(identityKey).(domain.Identity)
	return id
}
