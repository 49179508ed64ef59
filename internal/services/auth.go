package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	types "github.com/yungbote/chatstream-backend/internal/domain"
	"github.com/yungbote/chatstream-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

type AuthService interface {
	IssueAccessToken(user *types.User) (string, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type JWTClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey string
	accessTTL    time.Duration
	now          func() time.Time
}

func NewAuthService(log *logger.Logger, jwtSecretKey string, accessTTL time.Duration) AuthService {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	return &authService{
		log:          log.With("service", "AuthService"),
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
		now:          time.Now,
	}
}

func (as *authService) GetAccessTTL() time.Duration { return as.accessTTL }

func (as *authService) IssueAccessToken(user *types.User) (string, error) {
	if user == nil || user.ID == uuid.Nil {
		return "", fmt.Errorf("missing user")
	}
	now := as.now()
	claims := JWTClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, nil
	}
	parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(as.now))
	if err != nil {
		return ctx, fmt.Errorf("Failed to parse token: %w", err)
	}
	claims, ok := parsedToken.Claims.(*JWTClaims)
	if !ok || !parsedToken.Valid {
		return ctx, fmt.Errorf("Invalid or expired JWT token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("Invalid user id in token: %w", err)
	}
	role := claims.Role
	if role == "" {
		role = types.UserRoleUser
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{UserID: userID, Role: role}), nil
}
