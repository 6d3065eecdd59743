package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/SnippetCanvas/app/models"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ProfileLookup resolves the profile behind a token subject.
type ProfileLookup interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
}

// JWTConfig configures bearer token authentication.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Profiles ProfileLookup
	Log      zerolog.Logger
}

// Claims are the token claims issued by the identity provider. The user id
// travels in the standard subject claim.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewToken signs an HS256 token for userID.
func NewToken(secret, issuer, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates signature, expiry and issuer and returns the claims.
func ParseToken(secret, issuer, tokenString string) (*Claims, error) {
	if secret == "" {
		return nil, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// JWTAuth authenticates requests carrying an Authorization bearer token and
// fills the user context. Admin status always comes from the profile row.
func JWTAuth(cfg JWTConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			return unauthorized(c, "Missing bearer token")
		}

		claims, err := ParseToken(cfg.Secret, cfg.Issuer, tokenString)
		if err != nil {
			cfg.Log.Debug().Err(err).Msg("rejected bearer token")
			return unauthorized(c, "Invalid token")
		}

		uc := usercontext.UserContext{
			UserID:     claims.Subject,
			Email:      claims.Email,
			IsLoggedIn: true,
		}
		if cfg.Profiles != nil {
			profile, err := cfg.Profiles.GetByID(c.UserContext(), claims.Subject)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				return unauthorized(c, "Unknown user")
			case err != nil:
				cfg.Log.Error().Err(err).Str("user_id", claims.Subject).Msg("profile lookup failed")
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error":   "internal_server_error",
					"message": "Token verification failed",
				})
			}
			uc.IsAdmin = profile.IsAdmin()
			if profile.Email != "" {
				uc.Email = profile.Email
			}
		}

		usercontext.Set(c, uc)
		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": message,
	})
}
