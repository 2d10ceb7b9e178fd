package remote

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const terminalTokenType = "terminal_sync"

// GenerateTerminalToken signs a short-lived bearer token identifying this terminal
func GenerateTerminalToken(terminalID, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("remote api secret is not configured")
	}
	claims := jwt.MapClaims{
		"id":   terminalID,
		"type": terminalTokenType,
		"exp":  time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateTerminalToken checks a terminal token and returns the terminal id
func ValidateTerminalToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims["type"] != terminalTokenType {
		return "", fmt.Errorf("invalid token type")
	}
	id, _ := claims["id"].(string)
	return id, nil
}
