package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

type sessionClaims struct {
	ConversationID string `json:"conversation_id"`
	jwt.RegisteredClaims
}

// SignSession issues an anonymous widget session token bound to one conversation.
func SignSession(conversationID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		ConversationID: conversationID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseSession validates a widget session token and returns its conversation id.
func ParseSession(tokenStr, secret string) (string, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid || claims.ConversationID == "" {
		return "", ErrInvalidToken
	}
	return claims.ConversationID, nil
}
