package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newAuthFixture(users ...*testSeed) (*AuthService, *memUserRepo, *memWidgetRepo, *memResetRepo, *recorderMailer) {
	userRepo := newMemUserRepo()
	for _, seed := range users {
		u := newTestUser(seed.username)
		hash, _ := hashPassword(seed.password)
		u.PasswordHash = hash
		u.IsVerified = seed.verified
		userRepo.Create(context.Background(), u)
	}
	widgetRepo := newMemWidgetRepo(userRepo)
	resetRepo := newMemResetRepo()
	mailer := &recorderMailer{}

	svc := NewAuthService(userRepo, widgetRepo, resetRepo, mailer, noopBot{}, "test-secret", zap.NewNop().Sugar())
	svc.now = func() time.Time { return testTime }
	return svc, userRepo, widgetRepo, resetRepo, mailer
}

type testSeed struct {
	username string
	password string
	verified bool
}

func TestSignupAndLogin(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture()

	resp, err := svc.Signup(context.Background(), SignupInput{
		Email:    "alice@example.com",
		Password: "hunter42",
		PlayerID: "device-1",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}

	if resp.User.Username != "alice" {
		t.Errorf("username = %q, want %q", resp.User.Username, "alice")
	}
	if !resp.User.IsVerified {
		t.Error("signup should produce a verified user")
	}
	if resp.User.Code == "" {
		t.Error("friend code must be set")
	}
	if resp.AccessToken == "" {
		t.Error("access token must be set")
	}

	login, err := svc.Login(context.Background(), "alice@example.com", "hunter42", "device-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.ID != resp.User.ID {
		t.Errorf("login resolved a different user")
	}
}

func TestSignupEmailTaken(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(&testSeed{username: "alice", password: "hunter42", verified: true})

	_, err := svc.Signup(context.Background(), SignupInput{Email: "alice@example.com", Password: "other123"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(&testSeed{username: "alice", password: "hunter42", verified: true})

	if _, err := svc.Login(context.Background(), "alice@example.com", "wrong", ""); !errors.Is(err, ErrInvalidCreds) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCreds", err)
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "hunter42", ""); !errors.Is(err, ErrInvalidCreds) {
		t.Errorf("unknown email: err = %v, want ErrInvalidCreds", err)
	}
}

func TestLoginUnverified(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(&testSeed{username: "alice", password: "hunter42", verified: false})

	if _, err := svc.Login(context.Background(), "alice@example.com", "hunter42", ""); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("err = %v, want ErrNotVerified", err)
	}
}

func TestSkipLoginCreatesGuest(t *testing.T) {
	svc, userRepo, _, _, _ := newAuthFixture()

	resp, err := svc.SkipLogin(context.Background())
	if err != nil {
		t.Fatalf("SkipLogin: %v", err)
	}

	if !strings.HasPrefix(resp.User.Username, "guest-") {
		t.Errorf("username = %q, want guest prefix", resp.User.Username)
	}
	if resp.User.Email != nil {
		t.Error("guest must have no email")
	}

	stored, _ := userRepo.GetByID(context.Background(), resp.User.ID)
	if stored == nil {
		t.Fatal("guest was not persisted")
	}
}

func TestRegisterWithTokenUpgradesGuest(t *testing.T) {
	svc, userRepo, _, _, _ := newAuthFixture()

	guest, err := svc.SkipLogin(context.Background())
	if err != nil {
		t.Fatalf("SkipLogin: %v", err)
	}

	resp, err := svc.RegisterWithToken(context.Background(), guest.User.ID, SignupInput{
		Email:    "alice@example.com",
		Password: "hunter42",
		PlayerID: "device-1",
	})
	if err != nil {
		t.Fatalf("RegisterWithToken: %v", err)
	}

	if resp.User.ID != guest.User.ID {
		t.Error("upgrade must keep the guest's identity")
	}
	if !resp.User.IsVerified {
		t.Error("upgraded account must be verified")
	}
	if resp.User.Email == nil || *resp.User.Email != "alice@example.com" {
		t.Errorf("email = %v", resp.User.Email)
	}
	if resp.User.Username != "alice" {
		t.Errorf("username = %q, want %q", resp.User.Username, "alice")
	}
	if resp.User.Code != guest.User.Code {
		t.Error("friend code must survive the upgrade")
	}

	// The upgraded account logs in like a regular one.
	login, err := svc.Login(context.Background(), "alice@example.com", "hunter42", "")
	if err != nil {
		t.Fatalf("login after upgrade: %v", err)
	}
	if login.User.ID != guest.User.ID {
		t.Error("login resolved a different user")
	}

	stored, _ := userRepo.GetByID(context.Background(), guest.User.ID)
	if !stored.IsVerified {
		t.Error("upgrade was not persisted")
	}
}

func TestRegisterWithTokenVerifiedIsIdempotent(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(&testSeed{username: "alice", password: "hunter42", verified: true})
	alice, _ := svc.userRepo.GetByEmail(context.Background(), "alice@example.com")

	resp, err := svc.RegisterWithToken(context.Background(), alice.ID, SignupInput{
		Email:    "other@example.com",
		Password: "different1",
		PlayerID: "device-2",
	})
	if err != nil {
		t.Fatalf("RegisterWithToken: %v", err)
	}
	if resp.AccessToken == "" {
		t.Error("access token must be set")
	}
	if resp.User.Email == nil || *resp.User.Email != "alice@example.com" {
		t.Errorf("verified account must be untouched, email = %v", resp.User.Email)
	}

	// The original password still works.
	if _, err := svc.Login(context.Background(), "alice@example.com", "hunter42", ""); err != nil {
		t.Errorf("login with original password: %v", err)
	}
}

func TestRegisterWithTokenEmailTaken(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(&testSeed{username: "alice", password: "hunter42", verified: true})

	guest, err := svc.SkipLogin(context.Background())
	if err != nil {
		t.Fatalf("SkipLogin: %v", err)
	}

	_, err = svc.RegisterWithToken(context.Background(), guest.User.ID, SignupInput{
		Email:    "alice@example.com",
		Password: "hunter42",
		PlayerID: "device-1",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

var tempPasswordRe = regexp.MustCompile(`temporary password is ([A-Za-z0-9]+)\.`)

func TestForgotPasswordFlow(t *testing.T) {
	svc, _, _, _, mailer := newAuthFixture(&testSeed{username: "alice", password: "hunter42", verified: true})

	if err := svc.SendForgotPassword(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("SendForgotPassword: %v", err)
	}
	if len(mailer.body) != 1 {
		t.Fatalf("mails sent = %d, want 1", len(mailer.body))
	}

	m := tempPasswordRe.FindStringSubmatch(mailer.body[0])
	if m == nil {
		t.Fatalf("mail body %q has no temporary password", mailer.body[0])
	}
	temp := m[1]

	resp, err := svc.ForgotPassword(context.Background(), "alice@example.com", temp)
	if err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if resp.AccessToken == "" {
		t.Error("access token must be set")
	}

	// The temporary password became the account password.
	if _, err := svc.Login(context.Background(), "alice@example.com", temp, ""); err != nil {
		t.Errorf("login with confirmed password: %v", err)
	}
	// The old one no longer works.
	if _, err := svc.Login(context.Background(), "alice@example.com", "hunter42", ""); !errors.Is(err, ErrInvalidCreds) {
		t.Errorf("old password: err = %v, want ErrInvalidCreds", err)
	}
	// The code is single-use.
	if _, err := svc.ForgotPassword(context.Background(), "alice@example.com", temp); !errors.Is(err, ErrResetExpired) {
		t.Errorf("reuse: err = %v, want ErrResetExpired", err)
	}
}

func TestForgotPasswordWithoutRequest(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(&testSeed{username: "alice", password: "hunter42", verified: true})

	if _, err := svc.ForgotPassword(context.Background(), "alice@example.com", "whatever"); !errors.Is(err, ErrResetExpired) {
		t.Fatalf("err = %v, want ErrResetExpired", err)
	}
}

func TestForgotPasswordUntouchedUntilConfirmed(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(&testSeed{username: "alice", password: "hunter42", verified: true})

	if err := svc.SendForgotPassword(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("SendForgotPassword: %v", err)
	}

	// Requesting a reset must not lock out the current password.
	if _, err := svc.Login(context.Background(), "alice@example.com", "hunter42", ""); err != nil {
		t.Errorf("login with current password: %v", err)
	}
}

func TestEditPassword(t *testing.T) {
	svc, userRepo, _, _, _ := newAuthFixture(&testSeed{username: "alice", password: "hunter42", verified: true})
	alice, _ := userRepo.GetByEmail(context.Background(), "alice@example.com")

	if _, err := svc.EditPassword(context.Background(), alice.ID, "wrong", "newpass99"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("err = %v, want ErrWrongPassword", err)
	}

	if _, err := svc.EditPassword(context.Background(), alice.ID, "hunter42", "newpass99"); err != nil {
		t.Fatalf("EditPassword: %v", err)
	}
	if _, err := svc.Login(context.Background(), "alice@example.com", "newpass99", ""); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}

func TestDeleteAccountCleansUpWidgets(t *testing.T) {
	svc, userRepo, widgetRepo, _, _ := newAuthFixture(
		&testSeed{username: "alice", password: "hunter42", verified: true},
		&testSeed{username: "bob", password: "hunter42", verified: true},
	)
	alice, _ := userRepo.GetByEmail(context.Background(), "alice@example.com")
	bob, _ := userRepo.GetByEmail(context.Background(), "bob@example.com")

	widgetSvc := NewWidgetService(widgetRepo, userRepo, &recorderDispatcher{})
	widgetSvc.now = func() time.Time { return testTime }

	solo, err := widgetSvc.Create(context.Background(), alice.ID, CreateWidgetInput{Name: "just me"})
	if err != nil {
		t.Fatalf("creating solo widget: %v", err)
	}
	paired, err := widgetSvc.Create(context.Background(), alice.ID, CreateWidgetInput{Name: "us", FriendID: bob.ID.String()})
	if err != nil {
		t.Fatalf("creating paired widget: %v", err)
	}

	if err := svc.DeleteAccount(context.Background(), alice.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	if u, _ := userRepo.GetByID(context.Background(), alice.ID); u != nil {
		t.Error("user should be gone")
	}
	if w, _ := widgetRepo.GetByID(context.Background(), solo.ID); w != nil {
		t.Error("emptied solo widget should be gone")
	}
	remaining, _ := widgetRepo.GetByID(context.Background(), paired.ID)
	if remaining == nil {
		t.Fatal("paired widget should survive for the partner")
	}
	if !remaining.IsAlone || len(remaining.Members) != 1 || remaining.Members[0].ID != bob.ID {
		t.Errorf("unexpected surviving widget: %+v", remaining)
	}
}

func TestVerifyPasswordRoundTrip(t *testing.T) {
	hash, err := hashPassword("secret123")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	if !verifyPassword("secret123", hash) {
		t.Error("correct password rejected")
	}
	if verifyPassword("secret124", hash) {
		t.Error("wrong password accepted")
	}
	if verifyPassword("secret123", "garbage") {
		t.Error("malformed hash accepted")
	}
}
