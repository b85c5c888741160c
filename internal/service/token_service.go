package service

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-upload-stream/internal/model"
	"go-upload-stream/pkg/apierror"
)

const controlTokenType = "control"

// TokenService signs and checks HS256 bearer tokens for the control API.
type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("token secret cannot be empty")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// IssueToken signs a control token for subject valid for ttl.
func (s *TokenService) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"typ": controlTokenType,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString(s.secret)
}

func (s *TokenService) ValidateToken(tokenString string) (*model.Claims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apierror.New("UNAUTHORIZED", "invalid token signing method", "", http.StatusUnauthorized)
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apierror.Wrap(model.ErrInvalidToken, "UNAUTHORIZED", "invalid token", http.StatusUnauthorized)
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.Wrap(model.ErrInvalidToken, "UNAUTHORIZED", "invalid token claims", http.StatusUnauthorized)
	}

	typ, _ := claimsMap["typ"].(string)
	if typ != controlTokenType {
		return nil, apierror.Wrap(model.ErrInvalidToken, "UNAUTHORIZED", "invalid token type", http.StatusUnauthorized)
	}

	claims := &model.Claims{}
	claims.Subject, _ = claimsMap["sub"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.Subject == "" {
		return nil, apierror.Wrap(model.ErrInvalidToken, "UNAUTHORIZED", "invalid token subject", http.StatusUnauthorized)
	}

	return claims, nil
}
