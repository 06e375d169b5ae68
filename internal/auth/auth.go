// Package auth implements the single-operator login: a bcrypt-checked
// password and an HS256 JWT session carried in a cookie.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	applog "temporada/internal/log"
)

// CookieName is the session cookie.
const CookieName = "session"

const issuer = "temporada"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
)

// Claims is the session token payload.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Config configures an Authenticator.
type Config struct {
	Username string
	// Password is hashed at construction when PasswordHash is empty.
	Password     string
	PasswordHash string
	Secret       string
	TTL          time.Duration
	SecureCookie bool
}

type Authenticator struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	secure       bool
	now          func() time.Time
}

func New(cfg Config) (*Authenticator, error) {
	if cfg.Username == "" {
		return nil, errors.New("username is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("secret is required")
	}
	hash := []byte(cfg.PasswordHash)
	if len(hash) == 0 {
		if cfg.Password == "" {
			return nil, errors.New("password or password hash is required")
		}
		var err error
		if hash, err = bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("invalid password hash: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Authenticator{
		username:     cfg.Username,
		passwordHash: hash,
		secret:       []byte(cfg.Secret),
		ttl:          ttl,
		secure:       cfg.SecureCookie,
		now:          time.Now,
	}, nil
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

// CheckCredentials compares username and password with the configured operator.
func (a *Authenticator) CheckCredentials(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(a.username)) == 1
	// The password is compared even when the username is wrong.
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueToken signs a session token for username.
func (a *Authenticator) IssueToken(username string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

// ParseToken validates signature, algorithm, issuer and expiry.
func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !token.Valid || claims.Username != a.username {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Login checks credentials and sets the session cookie.
func (a *Authenticator) Login(w http.ResponseWriter, username, password string) error {
	if err := a.CheckCredentials(username, password); err != nil {
		return err
	}
	token, expires, err := a.IssueToken(a.username)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(a.ttl.Seconds()),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout clears the session cookie.
func (a *Authenticator) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Session returns the claims of the request's session cookie.
func (a *Authenticator) Session(r *http.Request) (*Claims, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrInvalidSession
	}
	return a.ParseToken(c.Value)
}

type ctxKey struct{}

// UsernameFromContext returns the operator set by Middleware.
func UsernameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// Middleware rejects requests without a valid session. Page requests are
// redirected to loginPath; HTMX requests get an HX-Redirect header and
// API requests a 401, since neither can follow a redirect to a page.
func (a *Authenticator) Middleware(loginPath string, logger *applog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentAuth)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.Session(r)
			if err != nil {
				logger.DebugContext(r.Context(), "Unauthenticated request",
					applog.FieldPath, r.URL.Path,
					applog.FieldError, err.Error())
				switch {
				case r.Header.Get("HX-Request") == "true":
					w.Header().Set("HX-Redirect", loginPath)
					w.WriteHeader(http.StatusUnauthorized)
				case strings.HasPrefix(r.URL.Path, "/api/"):
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				default:
					http.Redirect(w, r, loginPath, http.StatusSeeOther)
				}
				return
			}
			ctx := context.WithValue(r.Context(), ctxKey{}, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
