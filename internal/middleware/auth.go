package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/config"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
)

const (
	ViewerKey = "viewer"
	UserIDKey = "user_id"
)

type roleMetadata struct {
	Role string `json:"role,omitempty"`
}

// Claims are the access token claims issued by the hosted auth provider.
// The provider puts its own role ("authenticated") at the top level, so the
// application role is read from app_metadata first.
type Claims struct {
	Role         string       `json:"role,omitempty"`
	AppMetadata  roleMetadata `json:"app_metadata"`
	UserMetadata roleMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

func (c *Claims) AppRole() model.Role {
	for _, r := range []string{c.AppMetadata.Role, c.UserMetadata.Role, c.Role} {
		if role := model.Role(strings.ToLower(r)); role.Valid() {
			return role
		}
	}
	return ""
}

func JWTAuth(cfg *config.Config) fiber.Handler {
	secret := []byte(cfg.Auth.JWTSecret)
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing bearer token",
			})
		}

		viewer, err := ParseToken(strings.TrimPrefix(header, "Bearer "), secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token: " + err.Error(),
			})
		}

		c.Locals(ViewerKey, viewer)
		c.Locals(UserIDKey, viewer.UserID)

		return c.Next()
	}
}

// ParseToken validates an HS256 token and returns the caller it names.
func ParseToken(raw string, secret []byte) (model.Viewer, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return model.Viewer{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return model.Viewer{}, errors.New("invalid token claims")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Viewer{}, fmt.Errorf("parse sub: %w", err)
	}
	role := claims.AppRole()
	if role == "" {
		return model.Viewer{}, errors.New("token carries no application role")
	}
	return model.Viewer{UserID: userID, Role: role}, nil
}

// SignToken issues a token in the provider's format. Used by tests and local
// tooling.
func SignToken(secret []byte, viewer model.Viewer, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:        "authenticated",
		AppMetadata: roleMetadata{Role: string(viewer.Role)},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   viewer.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}

func GetViewer(c *fiber.Ctx) (model.Viewer, bool) {
	viewer, ok := c.Locals(ViewerKey).(model.Viewer)
	return viewer, ok
}

func GetUserID(c *fiber.Ctx) uuid.UUID {
	userID, ok := c.Locals(UserIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return userID
}
