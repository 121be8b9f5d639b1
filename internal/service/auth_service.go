package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/MorseWayne/catalog_shop/internal/config"
	"github.com/MorseWayne/catalog_shop/internal/domain"
)

// 认证相关错误
var ErrInvalidCredentials = errors.New("invalid credentials")

// adminUserID 配置中唯一管理员的固定ID
const adminUserID int64 = 1

// AuthService 管理员认证服务
type AuthService interface {
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

type authService struct {
	username     string
	passwordHash []byte
	jwtService   JWTService
	logger       *zap.Logger
}

// NewAuthService 创建认证服务
// 未配置哈希时，启动时对明文密码做一次bcrypt哈希，之后只保留哈希。
func NewAuthService(cfg config.AdminConfig, jwtService JWTService, logger *zap.Logger) (AuthService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	hash := []byte(cfg.PasswordHash)
	if len(hash) == 0 {
		if cfg.Password == "" {
			return nil, fmt.Errorf("admin password or password hash is required")
		}
		generated, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		hash = generated
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("invalid admin password hash: %w", err)
	}

	return &authService{
		username:     cfg.Username,
		passwordHash: hash,
		jwtService:   jwtService,
		logger:       logger,
	}, nil
}

// Login 校验管理员账号并签发令牌
func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	usernameOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.username)) == 1

	// 用户名错误时同样比较密码，保持耗时一致
	err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		s.logger.Error("failed to compare password", zap.Error(err))
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if err != nil || !usernameOK {
		s.logger.Warn("admin login failed", zap.String("username", req.Username))
		return nil, ErrInvalidCredentials
	}

	user := &domain.User{ID: adminUserID, Username: s.username, Role: domain.UserRoleAdmin}
	pair, err := s.jwtService.GenerateTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("generate token pair: %w", err)
	}

	s.logger.Info("admin logged in", zap.String("username", user.Username))
	return &domain.LoginResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Refresh 使用刷新令牌换取新令牌对
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.jwtService.RefreshTokenPair(refreshToken)
}
