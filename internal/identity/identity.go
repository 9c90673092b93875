// Package identity owns local accounts: sign-up, login sessions and password resets.
package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
	"github.com/Match-Score-project/Match-Score/internal/media"
	"github.com/Match-Score-project/Match-Score/internal/model"
	"github.com/Match-Score-project/Match-Score/internal/repo"
)

var (
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUnauthenticated    = errors.New("not authenticated")
)

const (
	MinPasswordLen = 6
	purposeSession = "session"
	purposeReset   = "reset"
	issuer         = "matchscore"
)

type Config struct {
	Secret       string
	SessionTTL   time.Duration
	ResetTTL     time.Duration
	CookieSecure bool
	// ResetURL is the page the reset e-mail links to; the token is appended as ?token=.
	ResetURL string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type ResetMailer interface {
	SendPasswordReset(ctx context.Context, recipientEmail, link string) error
}

type claims struct {
	Purpose     string `json:"purpose"`
	Fingerprint string `json:"pwh,omitempty"`
	jwt.RegisteredClaims
}

type Service struct {
	repo   repo.Repository
	photos media.Store
	mail   ResetMailer
	cfg    Config
	log    *zerolog.Logger
	now    func() time.Time
}

func New(repo repo.Repository, photos media.Store, mail ResetMailer, cfg Config, log *zerolog.Logger) (*Service, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("auth secret cannot be empty")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, photos: photos, mail: mail, cfg: cfg, log: log, now: time.Now}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type SignUpInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	BirthDate       string
	Position        string
	Phone           string
	Photo           string
}

func checkPassword(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if len(password) < MinPasswordLen {
		return ErrWeakPassword
	}
	return nil
}

// SignUp creates the credential and merges the profile document.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*model.UserProfile, error) {
	if err := checkPassword(in.Password, in.ConfirmPassword); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	cred := &model.Credential{
		UID:          uuid.NewString(),
		Email:        normalizeEmail(in.Email),
		PasswordHash: string(hash),
		CreatedAt:    now,
	}

	if err := s.repo.CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}

	photo := ""
	if in.Photo != "" {
		if photo, err = s.photos.Save(ctx, "users/"+cred.UID, in.Photo); err != nil {
			s.log.Warn().Err(err).Str("user_id", cred.UID).Msg("profile photo rejected, continuing without it")
			photo = ""
		}
	}

	name := strings.TrimSpace(in.Name)
	profile := &model.UserProfile{
		ID:        cred.UID,
		Name:      name,
		NameLower: strings.ToLower(name),
		Email:     cred.Email,
		Phone:     in.Phone,
		BirthDate: in.BirthDate,
		Position:  in.Position,
		PhotoURL:  photo,
		Theme:     model.ThemeDark,
		CreatedAt: now,
	}
	fields, err := docstore.Encode(profile)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MergeUser(ctx, cred.UID, fields); err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", cred.UID).Msg("account created")
	return profile, nil
}

// Login checks the password and returns a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, string, error) {
	cred, err := s.repo.GetCredential(ctx, normalizeEmail(email))
	if errors.Is(err, repo.ErrCredentialNotFound) {
		return "", "", ErrInvalidCredentials
	}
	if err != nil {
		return "", "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return "", "", ErrInvalidCredentials
	}
	token, err := s.sign(cred.UID, purposeSession, "", s.cfg.SessionTTL)
	if err != nil {
		return "", "", err
	}
	return token, cred.UID, nil
}

func (s *Service) sign(subject, purpose, fingerprint string, ttl time.Duration) (string, error) {
	now := s.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Purpose:     purpose,
		Fingerprint: fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := tok.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(token, purpose string) (*claims, error) {
	cl := &claims{}
	tok, err := jwt.ParseWithClaims(token, cl, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil || !tok.Valid || cl.Purpose != purpose || cl.Subject == "" {
		return nil, ErrInvalidToken
	}
	return cl, nil
}

// Authenticate returns the user id of a session token.
func (s *Service) Authenticate(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}
	cl, err := s.parse(token, purposeSession)
	if err != nil {
		return "", ErrUnauthenticated
	}
	return cl.Subject, nil
}

// AuthenticateHeader reads the session cookie out of raw request headers.
func (s *Service) AuthenticateHeader(h http.Header) (string, error) {
	c, err := (&http.Request{Header: h}).Cookie(SessionCookie)
	if err != nil {
		return "", ErrUnauthenticated
	}
	return s.Authenticate(c.Value)
}

// fingerprint ties a reset token to the current password hash so it stops
// working once the password changes. The token carries only a keyed digest of
// the hash.
func (s *Service) fingerprint(hash string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.Secret))
	mac.Write([]byte(purposeReset))
	mac.Write([]byte(hash))
	return hex.EncodeToString(mac.Sum(nil)[:16])
}

// RequestPasswordReset mails a reset link. Unknown addresses succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	cred, err := s.repo.GetCredential(ctx, normalizeEmail(email))
	if errors.Is(err, repo.ErrCredentialNotFound) {
		s.log.Debug().Msg("password reset requested for unknown e-mail")
		return nil
	}
	if err != nil {
		return err
	}
	token, err := s.sign(cred.Email, purposeReset, s.fingerprint(cred.PasswordHash), s.cfg.ResetTTL)
	if err != nil {
		return err
	}
	link := s.cfg.ResetURL + "?token=" + url.QueryEscape(token)
	if err := s.mail.SendPasswordReset(ctx, cred.Email, link); err != nil {
		return fmt.Errorf("failed to send reset e-mail: %w", err)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if err := checkPassword(password, confirm); err != nil {
		return err
	}
	cl, err := s.parse(token, purposeReset)
	if err != nil {
		return err
	}
	cred, err := s.repo.GetCredential(ctx, cl.Subject)
	if errors.Is(err, repo.ErrCredentialNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(s.fingerprint(cred.PasswordHash)), []byte(cl.Fingerprint)) {
		return ErrInvalidToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, cred.Email, string(hash)); err != nil {
		return err
	}
	s.log.Info().Str("user_id", cred.UID).Msg("password reset")
	return nil
}
