package service

import (
	"context"
	"errors"
	"testing"
	"vitalmesh/internal/models"
	"vitalmesh/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProfileRepo struct {
	profiles map[string]models.MilitaryProfile
	getErr   error
	saveErr  error
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]models.MilitaryProfile)}
}

func (f *fakeProfileRepo) Get(_ context.Context, uid string) (*models.MilitaryProfile, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[uid]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return &p, nil
}

func (f *fakeProfileRepo) Save(_ context.Context, uid string, profile *models.MilitaryProfile) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.profiles[uid] = *profile
	return nil
}

func strPtr(s string) *string { return &s }

func validProfile() *models.MilitaryProfile {
	return &models.MilitaryProfile{
		FullName:      "Ana Torres",
		Rank:          "Lieutenant",
		ServiceNumber: "SN-2291",
		Unit:          "3rd Recon",
		Phone:         strPtr("+34 600 000 000"),
	}
}

func TestProfileService_FirstVisitIsEditable(t *testing.T) {
	svc := NewProfileService(newFakeProfileRepo(), zap.NewNop())

	view := svc.GetProfile(context.Background(), "uid-1")

	assert.True(t, view.Editable)
	assert.False(t, view.Found)
	assert.Empty(t, view.Profile.FullName)
}

func TestProfileService_ReadFailureIsEditable(t *testing.T) {
	repo := newFakeProfileRepo()
	repo.getErr = errors.New("unavailable")
	svc := NewProfileService(repo, zap.NewNop())

	view := svc.GetProfile(context.Background(), "uid-1")

	assert.True(t, view.Editable)
	assert.False(t, view.Found)
}

func TestProfileService_SaveThenGet(t *testing.T) {
	svc := NewProfileService(newFakeProfileRepo(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.SaveProfile(ctx, "uid-1", validProfile()))

	view := svc.GetProfile(ctx, "uid-1")
	assert.True(t, view.Found)
	assert.False(t, view.Editable)
	assert.Equal(t, "Lieutenant", view.Profile.Rank)
	require.NotNil(t, view.Profile.Phone)
	assert.Nil(t, view.Profile.Email)
}

func TestProfileService_SaveValidation(t *testing.T) {
	svc := NewProfileService(newFakeProfileRepo(), zap.NewNop())

	p := validProfile()
	p.Rank = "  "
	p.Unit = ""
	err := svc.SaveProfile(context.Background(), "uid-1", p)
	assert.ErrorIs(t, err, ErrInvalidProfile)
	assert.Contains(t, err.Error(), "rank, unit")

	assert.ErrorIs(t, svc.SaveProfile(context.Background(), "uid-1", nil), ErrInvalidProfile)
}

func TestProfileService_SaveError(t *testing.T) {
	repo := newFakeProfileRepo()
	repo.saveErr = errors.New("permission denied")
	svc := NewProfileService(repo, zap.NewNop())

	err := svc.SaveProfile(context.Background(), "uid-1", validProfile())
	assert.EqualError(t, err, "permission denied")
}
