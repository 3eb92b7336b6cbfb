package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService issues the member tokens handed out on join. A token binds a
// member id to its room and is what reconnecting clients present; there are
// no user accounts behind it.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

func (s *TokenService) IssueMemberToken(roomID, memberID string) (string, error) {
	claims := jwt.MapClaims{
		"room_id":   roomID,
		"member_id": memberID,
		"exp":       time.Now().Add(s.ttl).Unix(),
		"iat":       time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *TokenService) ValidateMemberToken(tokenString string) (roomID, memberID string, err error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid claims")
	}

	roomID, ok = claims["room_id"].(string)
	if !ok {
		return "", "", errors.New("invalid room_id in token")
	}
	memberID, ok = claims["member_id"].(string)
	if !ok {
		return "", "", errors.New("invalid member_id in token")
	}
	return roomID, memberID, nil
}
