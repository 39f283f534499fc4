package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"housing-chat-service/internal/apperrors"
	"housing-chat-service/internal/models"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = apperrors.Unauthorized("invalid token")

// TokenManager verifies access tokens issued by the identity service and
// mints short-lived channel tokens for realtime subscriptions. Both are
// HS256 over the shared secret.
type TokenManager struct {
	secret     []byte
	channelTTL time.Duration
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(secret string, channelTTL time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), channelTTL: channelTTL}
}

type channelClaims struct {
	Rooms []string `json:"rooms"`
	jwt.RegisteredClaims
}

// ParseAccessToken verifies an access token and returns its subject.
func (m *TokenManager) ParseAccessToken(token string) (models.UserID, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	return subjectUserID(claims.Subject)
}

// IssueChannelToken mints a token granting subscription to the listed
// rooms, expiring after the configured TTL.
func (m *TokenManager) IssueChannelToken(userID models.UserID, rooms []string) (string, error) {
	now := time.Now()
	claims := channelClaims{
		Rooms: rooms,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(int64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.channelTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseChannelToken verifies a channel token and returns the subject and
// the rooms it grants.
func (m *TokenManager) ParseChannelToken(token string) (models.UserID, []string, error) {
	parsed, err := jwt.ParseWithClaims(token, &channelClaims{}, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return 0, nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*channelClaims)
	if !ok {
		return 0, nil, ErrInvalidToken
	}
	userID, err := subjectUserID(claims.Subject)
	if err != nil {
		return 0, nil, err
	}
	return userID, claims.Rooms, nil
}

func (m *TokenManager) keyFunc(token *jwt.Token) (interface{}, error) {
	return m.secret, nil
}

func subjectUserID(subject string) (models.UserID, error) {
	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return models.UserID(id), nil
}
