package middleware

import (
	"errors"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const sessionLocalsKey = "session"

const RoleAdmin = "admin"

// Session is the authenticated caller of a request. It is built from the bearer token
// and handed to handlers through fiber locals.
type Session struct {
	UserID string
	Name   string
	Roles  []string
}

// HasRole reports whether the session carries role.
func (s *Session) HasRole(role string) bool {
	return s != nil && slices.Contains(s.Roles, role)
}

// SessionClaims is the JWT payload issued by the login service.
type SessionClaims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

var (
	errTokenMissing = errors.New("session token missing")
	errTokenInvalid = errors.New("session token invalid")
	errTokenExpired = errors.New("session expired")
)

// ParseSessionToken verifies an HS256 token and returns its session.
func ParseSessionToken(raw string, secret []byte) (*Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errTokenMissing
	}
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errTokenExpired
		}
		return nil, errTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errTokenInvalid
	}
	return &Session{UserID: claims.Subject, Name: claims.Name, Roles: claims.Roles}, nil
}

// SignSessionToken issues an HS256 token for s. Used by tooling and tests; production
// tokens come from the login service.
func SignSessionToken(s Session, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:  s.Name,
		Roles: s.Roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// SessionMiddleware requires a valid "Authorization: Bearer <token>" header and stores
// the resulting *Session in the request locals.
func SessionMiddleware(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			token = ""
		}

		session, err := ParseSessionToken(token, secret)
		if err != nil {
			log.Printf("❌ [SESSION] %v on %s %s", err, c.Method(), c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		c.Locals(sessionLocalsKey, session)
		return c.Next()
	}
}

// SessionFrom returns the session attached by SessionMiddleware, or nil.
func SessionFrom(c *fiber.Ctx) *Session {
	s, _ := c.Locals(sessionLocalsKey).(*Session)
	return s
}

// RequireRole rejects requests whose session lacks role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !SessionFrom(c).HasRole(role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "missing role " + role,
			})
		}
		return c.Next()
	}
}
