package guard

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jwulff/evening/internal/config"
	"github.com/jwulff/evening/internal/metrics"
)

const identityKey = "evening.identity"

// Guard decides, per request, whether the caller must be signed in.
type Guard struct {
	protected *Matcher
	skip      *Matcher
	auth      *Authenticator
	signInURL string
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// New builds a Guard from the auth config.
func New(cfg config.AuthConfig, auth *Authenticator, m *metrics.Metrics, logger *zap.Logger) (*Guard, error) {
	protected, err := NewMatcher(cfg.Protected)
	if err != nil {
		return nil, err
	}
	skip, err := NewMatcher(cfg.Skip)
	if err != nil {
		return nil, err
	}
	if _, err := url.Parse(cfg.SignInURL); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		protected: protected,
		skip:      skip,
		auth:      auth,
		signInURL: cfg.SignInURL,
		metrics:   m,
		logger:    logger,
	}, nil
}

// Protected reports whether path requires a session. Protected patterns win over
// skip patterns, so a dotted path under a protected prefix is still checked.
func (g *Guard) Protected(path string) bool {
	return g.protected.Match(path)
}

// Middleware enforces the guard. Unauthenticated page loads are redirected to the
// sign-in URL; API and other non-HTML requests get a 401.
func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !g.protected.Match(path) {
			if g.skip.Match(path) {
				g.record(metrics.DecisionSkipped)
			} else {
				g.record(metrics.DecisionPublic)
			}
			c.Next()
			return
		}

		id, err := g.auth.Authenticate(c.Request)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				g.logger.Error("session lookup failed", zap.String("path", path), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
				return
			}
			g.reject(c, err)
			return
		}

		g.record(metrics.DecisionAllowed)
		c.Set(identityKey, id)
		c.Next()
	}
}

func (g *Guard) reject(c *gin.Context, err error) {
	if g.metrics != nil {
		g.metrics.RecordAuthFailure(failureReason(err))
	}
	g.logger.Debug("unauthenticated request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)

	if wantsHTML(c.Request) {
		g.record(metrics.DecisionRedirect)
		c.Redirect(http.StatusTemporaryRedirect, g.signInRedirect(c.Request))
		c.Abort()
		return
	}
	g.record(metrics.DecisionRejected)
	c.Header("WWW-Authenticate", `Bearer realm="evening"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
}

// signInRedirect returns the sign-in URL carrying the original location as
// redirect_url.
func (g *Guard) signInRedirect(r *http.Request) string {
	u, err := url.Parse(g.signInURL)
	if err != nil {
		return g.signInURL
	}
	q := u.Query()
	q.Set("redirect_url", r.URL.RequestURI())
	u.RawQuery = q.Encode()
	return u.String()
}

func (g *Guard) record(decision string) {
	if g.metrics != nil {
		g.metrics.RecordDecision(decision)
	}
}

// IdentityFrom returns the identity the guard attached to the request.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

func wantsHTML(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "missing"
	case errors.Is(err, ErrSessionEnded):
		return "session"
	default:
		return "invalid"
	}
}
