package guard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jwulff/evening/internal/config"
	"github.com/jwulff/evening/internal/db"
)

// Reasons a credential is rejected. All wrap ErrUnauthenticated.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNoToken         = fmt.Errorf("%w: no session token", ErrUnauthenticated)
	ErrInvalidToken    = fmt.Errorf("%w: invalid session token", ErrUnauthenticated)
	ErrSessionEnded    = fmt.Errorf("%w: session expired or revoked", ErrUnauthenticated)
)

// Claims are the session token claims. The session ID is also the token ID.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// SessionStore looks sessions up by ID. *db.Store implements it.
type SessionStore interface {
	Session(ctx context.Context, id string) (*db.Session, error)
}

// Authenticator mints and checks session tokens.
type Authenticator struct {
	secret []byte
	issuer string
	cookie string
	store  SessionStore
	now    func() time.Time
}

// NewAuthenticator builds an Authenticator from the auth config.
func NewAuthenticator(cfg config.AuthConfig, store SessionStore) *Authenticator {
	return &Authenticator{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		cookie: cfg.CookieName,
		store:  store,
		now:    time.Now,
	}
}

// Issue mints a token for a stored session. The token expires with the session.
func (a *Authenticator) Issue(sess db.Session) (string, error) {
	claims := Claims{
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   sess.UserID,
			ID:        sess.ID,
			IssuedAt:  jwt.NewNumericDate(a.now()),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and claims, then that its session is live
// and belongs to the token subject.
func (a *Authenticator) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing sid or sub", ErrInvalidToken)
	}

	sess, err := a.store.Session(ctx, claims.SessionID)
	if err != nil {
		return Identity{}, fmt.Errorf("load session: %w", err)
	}
	if sess == nil || sess.UserID != claims.Subject || !sess.Active(a.now()) {
		return Identity{}, ErrSessionEnded
	}

	return Identity{UserID: sess.UserID, SessionID: sess.ID, ExpiresAt: sess.ExpiresAt}, nil
}

// TokenFrom extracts the token from the Authorization header or, failing that,
// the session cookie.
func (a *Authenticator) TokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(a.cookie); err == nil {
		return c.Value
	}
	return ""
}

// Authenticate verifies the request's token.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	return a.Verify(r.Context(), a.TokenFrom(r))
}
