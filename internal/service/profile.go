package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"vitalmesh/internal/models"
	"vitalmesh/internal/repository"

	"go.uber.org/zap"
)

// ErrInvalidProfile 必填字段缺失
var ErrInvalidProfile = errors.New("invalid profile")

// ProfileView 档案页面数据
// Editable：档案不存在或读取失败时为 true（首次填写）
type ProfileView struct {
	Profile  models.MilitaryProfile `json:"profile"`
	Editable bool                   `json:"editable"`
	Found    bool                   `json:"found"`
}

// ProfileService 用户档案
type ProfileService struct {
	repo   repository.ProfileRepository
	logger *zap.Logger
}

func NewProfileService(repo repository.ProfileRepository, logger *zap.Logger) *ProfileService {
	return &ProfileService{repo: repo, logger: logger}
}

// GetProfile 读取档案；读取失败不返回错误，降级为可编辑的空档案
func (s *ProfileService) GetProfile(ctx context.Context, uid string) ProfileView {
	profile, err := s.repo.Get(ctx, uid)
	if err != nil {
		if !errors.Is(err, repository.ErrProfileNotFound) {
			s.logger.Error("Failed to load profile", zap.String("uid", uid), zap.Error(err))
		}
		return ProfileView{Editable: true}
	}
	return ProfileView{Profile: *profile, Found: true}
}

// SaveProfile 校验并保存档案
func (s *ProfileService) SaveProfile(ctx context.Context, uid string, profile *models.MilitaryProfile) error {
	if profile == nil {
		return fmt.Errorf("%w: empty body", ErrInvalidProfile)
	}
	required := map[string]string{
		"fullName":      profile.FullName,
		"rank":          profile.Rank,
		"serviceNumber": profile.ServiceNumber,
		"unit":          profile.Unit,
	}
	var missing []string
	for _, field := range []string{"fullName", "rank", "serviceNumber", "unit"} {
		if strings.TrimSpace(required[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidProfile, strings.Join(missing, ", "))
	}

	if err := s.repo.Save(ctx, uid, profile); err != nil {
		return err
	}
	s.logger.Info("Profile saved", zap.String("uid", uid))
	return nil
}
