package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xelth-com/eckposgo/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// OperatorTokenTTL is how long a terminal login stays valid
const OperatorTokenTTL = 12 * time.Hour

const operatorTokenType = "operator"

// HashPIN hashes an operator PIN using bcrypt
func HashPIN(pin string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(pin), 10)
	return string(bytes), err
}

// CheckPINHash compares a PIN with a hash
func CheckPINHash(pin, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	return err == nil
}

// OperatorClaims identifies the operator behind an API call
type OperatorClaims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// GenerateOperatorToken signs an access token for a logged-in operator
func GenerateOperatorToken(user *models.User, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	if ttl <= 0 {
		ttl = OperatorTokenTTL
	}
	claims := jwt.MapClaims{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
		"type":     operatorTokenType,
		"exp":      time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken parses and validates an operator token
func ValidateToken(tokenString string, secret string) (*OperatorClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims["type"] != operatorTokenType {
		return nil, errors.New("invalid token type")
	}

	out := &OperatorClaims{}
	out.UserID, _ = claims["id"].(string)
	out.Username, _ = claims["username"].(string)
	out.Role, _ = claims["role"].(string)
	if out.UserID == "" {
		return nil, errors.New("token carries no operator id")
	}
	return out, nil
}
