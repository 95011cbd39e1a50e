package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"

	repo "github.com/mycoharvest/officeroute/internal/auth/repo"
	"github.com/mycoharvest/officeroute/internal/user/entity"
)

const (
	accessTTL  = 1 * time.Hour
	refreshTTL = 30 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Principal is the authenticated caller extracted from a bearer token.
type Principal struct {
	UserID string
	Name   string
	Email  string
	Role   entity.Role
}

func (p Principal) IsAdmin() bool { return p.Role == entity.RoleAdmin }

// Service signs and verifies access tokens and manages refresh sessions.
// The signing key is generated at startup; restarting the process
// invalidates outstanding access tokens, which refresh sessions survive.
type Service struct {
	key      *rsa.PrivateKey
	kid      string
	issuer   string
	sessions *repo.SessionRepo
}

func NewService(db *sqlx.DB, issuer string) (*Service, error) {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	pubBytes, _ := json.Marshal(k.PublicKey)
	h := sha256.Sum256(pubBytes)
	kid := base64.RawURLEncoding.EncodeToString(h[:8])
	var sessions *repo.SessionRepo
	if db != nil {
		sessions = repo.NewSessionRepo(db)
	}
	return &Service{key: k, kid: kid, issuer: issuer, sessions: sessions}, nil
}

// Tokens is an issued token pair.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Issue signs an access token for the user and opens a refresh session.
func (s *Service) Issue(ctx context.Context, u *entity.User) (*Tokens, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   s.issuer,
		"sub":   u.ID,
		"exp":   now.Add(accessTTL).Unix(),
		"iat":   now.Unix(),
		"name":  u.Name,
		"email": u.Email,
		"role":  string(u.Role),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.kid
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return nil, err
	}

	out := &Tokens{AccessToken: signed, ExpiresIn: int64(accessTTL.Seconds())}
	if s.sessions != nil {
		rtBytes := make([]byte, 32)
		if _, err := rand.Read(rtBytes); err != nil {
			return nil, err
		}
		refresh := base64.RawURLEncoding.EncodeToString(rtBytes)
		if err := s.sessions.Save(ctx, refresh, u.ID, now.Add(refreshTTL)); err != nil {
			return nil, err
		}
		out.RefreshToken = refresh
	}
	return out, nil
}

// Verify parses a bearer token and returns the caller's principal.
func (s *Service) Verify(tokenString string) (*Principal, error) {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return &s.key.PublicKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return &Principal{UserID: sub, Name: name, Email: email, Role: entity.Role(role)}, nil
}

// ValidateRefresh resolves an opaque refresh token to its user id.
func (s *Service) ValidateRefresh(ctx context.Context, token string) (string, error) {
	if s.sessions == nil {
		return "", ErrInvalidToken
	}
	userID, expiresAt, err := s.sessions.Get(ctx, token)
	if err != nil {
		return "", ErrInvalidToken
	}
	if expiresAt.Before(time.Now()) {
		_ = s.sessions.Delete(ctx, token)
		return "", ErrInvalidToken
	}
	return userID, nil
}

// RevokeRefresh deletes a refresh session.
func (s *Service) RevokeRefresh(ctx context.Context, token string) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}
