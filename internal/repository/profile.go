package repository

import (
	"context"
	"errors"
	"fmt"
	"vitalmesh/internal/models"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ProfilesCollection 档案集合名
const ProfilesCollection = "profiles"

// ErrProfileNotFound 用户还没有档案
var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository 档案存储
type ProfileRepository interface {
	Get(ctx context.Context, uid string) (*models.MilitaryProfile, error)
	Save(ctx context.Context, uid string, profile *models.MilitaryProfile) error
}

// FirestoreProfileRepository Firestore profiles/{uid}
type FirestoreProfileRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreProfileRepository 创建 Firestore 档案仓库
func NewFirestoreProfileRepository(client *firestore.Client, logger *zap.Logger) *FirestoreProfileRepository {
	return &FirestoreProfileRepository{
		client: client,
		logger: logger,
	}
}

// Get 读取档案，文档不存在时返回 ErrProfileNotFound
func (r *FirestoreProfileRepository) Get(ctx context.Context, uid string) (*models.MilitaryProfile, error) {
	doc, err := r.client.Collection(ProfilesCollection).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var profile models.MilitaryProfile
	if err := doc.DataTo(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &profile, nil
}

// Save 整体覆盖写入档案
func (r *FirestoreProfileRepository) Save(ctx context.Context, uid string, profile *models.MilitaryProfile) error {
	if _, err := r.client.Collection(ProfilesCollection).Doc(uid).Set(ctx, profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	r.logger.Debug("Saved profile", zap.String("uid", uid))
	return nil
}
