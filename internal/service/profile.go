package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
	"github.com/Match-Score-project/Match-Score/internal/media"
	"github.com/Match-Score-project/Match-Score/internal/model"
	"github.com/Match-Score-project/Match-Score/internal/view"
)

var ErrInvalidTheme = errors.New("theme must be dark or light")

type Profiles struct {
	*core
	media    media.Store
	uploader media.Uploader
}

type ProfileInput struct {
	Name      string
	Phone     string
	BirthDate string
	Position  string
}

type Upload struct {
	UploadURL string
	Key       string
	URL       string
}

func (s *Profiles) Get(ctx context.Context, userID string) (view.Profile, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return view.Profile{}, err
	}
	return view.NewProfile(u, s.now().In(s.loc)), nil
}

func (s *Profiles) Update(ctx context.Context, userID string, in ProfileInput) (view.Profile, error) {
	name := strings.TrimSpace(in.Name)
	err := s.repo.MergeUser(ctx, userID, docstore.Fields{
		"name":      name,
		"nameLower": strings.ToLower(name),
		"phone":     strings.TrimSpace(in.Phone),
		"birthDate": in.BirthDate,
		"position":  in.Position,
	})
	if err != nil {
		return view.Profile{}, err
	}
	return s.Get(ctx, userID)
}

func (s *Profiles) SetTheme(ctx context.Context, userID, theme string) error {
	if theme != model.ThemeDark && theme != model.ThemeLight {
		return ErrInvalidTheme
	}
	return s.repo.MergeUser(ctx, userID, docstore.Fields{"theme": theme})
}

// SetPhoto stores the image and points the profile at it.
func (s *Profiles) SetPhoto(ctx context.Context, userID, photo string) (string, error) {
	url, err := s.media.Save(ctx, "users/"+userID, photo)
	if err != nil {
		return "", fmt.Errorf("failed to save photo: %w", err)
	}
	if err := s.repo.MergeUser(ctx, userID, docstore.Fields{"photoUrl": url}); err != nil {
		return "", err
	}
	return url, nil
}

// Upload presigns a direct image upload for the user.
func (s *Profiles) Upload(ctx context.Context, userID, contentType string) (Upload, error) {
	if s.uploader == nil {
		return Upload{}, media.ErrUploadsUnsupported
	}
	if !strings.HasPrefix(contentType, "image/") {
		return Upload{}, fmt.Errorf("%w: %s", media.ErrNotImage, contentType)
	}
	key := "uploads/" + userID + "/" + uuid.NewString()
	uploadURL, publicURL, err := s.uploader.PresignUpload(ctx, key, contentType)
	if err != nil {
		return Upload{}, err
	}
	return Upload{UploadURL: uploadURL, Key: key, URL: publicURL}, nil
}
