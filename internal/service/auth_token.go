package service

import (
	"time"

	"github.com/dianxiu-server/internal/config"
	"github.com/dianxiu-server/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// UserJWTClaims 用户令牌载荷
type UserJWTClaims struct {
	UserID uint   `json:"user_id"`
	OpenID string `json:"openid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IssueUserToken 签发用户访问令牌
func IssueUserToken(cfg config.JWTConfig, user *models.User) (string, error) {
	if cfg.SecretKey == "" {
		return "", ErrUserTokenSecretMissing
	}
	expireHours := cfg.ExpireHours
	if expireHours <= 0 {
		expireHours = 24
	}
	now := time.Now()
	claims := UserJWTClaims{
		UserID: user.ID,
		OpenID: user.OpenID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireHours) * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.SecretKey))
}
