package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Match-Score-project/Match-Score/internal/docstore/memstore"
	"github.com/Match-Score-project/Match-Score/internal/media"
	"github.com/Match-Score-project/Match-Score/internal/repo"
)

type resetCapture struct {
	to, link string
}

func (r *resetCapture) SendPasswordReset(_ context.Context, to, link string) error {
	r.to, r.link = to, link
	return nil
}

func newService(t *testing.T) (*Service, repo.Repository, *resetCapture) {
	t.Helper()
	log := zerolog.Nop()
	r, err := repo.NewRepository(memstore.New(&log), &log)
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	mail := &resetCapture{}
	s, err := New(r, media.NewInline(0), mail, Config{
		Secret:     "test-secret",
		ResetURL:   "https://matchscore.app/redefinir.html",
		BcryptCost: bcrypt.MinCost,
	}, &log)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return s, r, mail
}

func signUp(t *testing.T, s *Service, email string) string {
	t.Helper()
	p, err := s.SignUp(context.Background(), SignUpInput{
		Name: " Ana Souza ", Email: email, Password: "segredo", ConfirmPassword: "segredo",
		BirthDate: "2000-01-01", Position: "Goleiro", Phone: "11 99999-0000",
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	return p.ID
}

func TestNewRequiresSecret(t *testing.T) {
	log := zerolog.Nop()
	if _, err := New(nil, nil, nil, Config{}, &log); err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestSignUpAndLogin(t *testing.T) {
	s, r, _ := newService(t)
	ctx := context.Background()
	uid := signUp(t, s, "Ana@Example.com")

	u, err := r.GetUser(ctx, uid)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if u.Name != "Ana Souza" || u.NameLower != "ana souza" || u.Email != "ana@example.com" || u.EffectiveTheme() != "dark" {
		t.Fatalf("unexpected profile %+v", u)
	}

	token, gotUID, err := s.Login(ctx, "ana@example.com ", "segredo")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if gotUID != uid {
		t.Fatalf("login uid %s, want %s", gotUID, uid)
	}
	if authUID, err := s.Authenticate(token); err != nil || authUID != uid {
		t.Fatalf("authenticate: %s %v", authUID, err)
	}
}

func TestSignUpRejects(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	signUp(t, s, "ana@example.com")

	cases := []struct {
		name string
		in   SignUpInput
		want error
	}{
		{"mismatch", SignUpInput{Email: "b@x.com", Password: "123456", ConfirmPassword: "654321"}, ErrPasswordMismatch},
		{"short", SignUpInput{Email: "b@x.com", Password: "123", ConfirmPassword: "123"}, ErrWeakPassword},
		{"duplicate", SignUpInput{Email: "ANA@example.com", Password: "123456", ConfirmPassword: "123456"}, ErrEmailInUse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.SignUp(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLoginFailures(t *testing.T) {
	s, _, _ := newService(t)
	signUp(t, s, "ana@example.com")
	for _, tc := range []struct{ email, pass string }{
		{"ana@example.com", "errada"},
		{"nobody@example.com", "segredo"},
	} {
		if _, _, err := s.Login(context.Background(), tc.email, tc.pass); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", tc.email, err)
		}
	}
}

func TestSessionExpires(t *testing.T) {
	s, _, _ := newService(t)
	signUp(t, s, "ana@example.com")
	token, _, _ := s.Login(context.Background(), "ana@example.com", "segredo")

	s.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	if _, err := s.Authenticate(token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestPasswordResetIsSingleUse(t *testing.T) {
	s, _, mail := newService(t)
	ctx := context.Background()
	signUp(t, s, "ana@example.com")

	if err := s.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown e-mail should not fail: %v", err)
	}
	if mail.link != "" {
		t.Fatal("mail sent for unknown account")
	}

	if err := s.RequestPasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	u, err := url.Parse(mail.link)
	if err != nil || !strings.HasPrefix(mail.link, "https://matchscore.app/redefinir.html?token=") {
		t.Fatalf("unexpected link %q", mail.link)
	}
	token := u.Query().Get("token")

	if _, err := s.Authenticate(token); err == nil {
		t.Fatal("reset token must not work as a session")
	}
	if err := s.ResetPassword(ctx, token, "novasenha", "novasenha"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, _, err := s.Login(ctx, "ana@example.com", "novasenha"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if err := s.ResetPassword(ctx, token, "outrasenha", "outrasenha"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected reused token to fail, got %v", err)
	}
}

func TestResetTokenHidesPasswordHash(t *testing.T) {
	s, r, mail := newService(t)
	ctx := context.Background()
	signUp(t, s, "ana@example.com")
	if err := s.RequestPasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	u, _ := url.Parse(mail.link)
	token := u.Query().Get("token")

	var cl claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &cl); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	cred, err := r.GetCredential(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("credential: %v", err)
	}
	if cl.Fingerprint == "" {
		t.Fatal("reset token carries no fingerprint")
	}
	for n := 8; n <= len(cred.PasswordHash); n++ {
		if strings.Contains(cl.Fingerprint, cred.PasswordHash[len(cred.PasswordHash)-n:]) {
			t.Fatalf("fingerprint leaks the last %d characters of the hash", n)
		}
	}

	other, _, _ := newService(t)
	other.cfg.Secret = "another-secret"
	if other.fingerprint(cred.PasswordHash) == cl.Fingerprint {
		t.Fatal("fingerprint must depend on the signing secret")
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte("trocada"), bcrypt.MinCost)
	if err := r.UpdatePasswordHash(ctx, "ana@example.com", string(hash)); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if err := s.ResetPassword(ctx, token, "novasenha", "novasenha"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token to die with the old password, got %v", err)
	}
}

func TestGate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s, _, _ := newService(t)
	signUp(t, s, "ana@example.com")
	token, uid, _ := s.Login(context.Background(), "ana@example.com", "segredo")

	r := gin.New()
	r.Use(s.Gate())
	r.GET("/v1/me", func(c *gin.Context) { c.String(http.StatusOK, UserID(c)) })
	r.GET("/v1/matches", func(c *gin.Context) { c.String(http.StatusOK, "matches") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/me", nil))
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "UNAUTHORIZED") {
		t.Fatalf("expected 401 envelope, got %d %s", w.Code, w.Body.String())
	}

	browser := httptest.NewRequest(http.MethodGet, "/v1/matches", nil)
	browser.Header.Set("Accept", "text/html,application/xhtml+xml")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, browser)
	if w.Code != http.StatusUnauthorized || w.Header().Get("Location") != "" {
		t.Fatalf("page navigations get the same 401, got %d %q", w.Code, w.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != uid {
		t.Fatalf("expected uid %s, got %d %s", uid, w.Code, w.Body.String())
	}

	h := http.Header{}
	h.Add("Cookie", SessionCookie+"="+token)
	if got, err := s.AuthenticateHeader(h); err != nil || got != uid {
		t.Fatalf("header auth: %s %v", got, err)
	}
}
