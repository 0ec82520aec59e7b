package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"

	"github.com/enigmateam/lovewidget/internal/domain"
	"github.com/enigmateam/lovewidget/internal/repository"
)

var (
	ErrEmailTaken    = errors.New("email already registered")
	ErrInvalidCreds  = errors.New("invalid email or password")
	ErrNotVerified   = errors.New("user not verified")
	ErrResetExpired  = errors.New("reset password expired or not requested")
	ErrWrongPassword = errors.New("incorrect password")
)

const (
	resetTTL        = time.Hour
	tempPasswordLen = 10
	opsBotTimeout   = 3 * time.Second
)

// AuthService handles signup, login, guest accounts, password recovery and
// account deletion. Ops-channel announcements and reset mail are best-effort
// collaborators; their failure never fails the flow that triggered them,
// except the reset mail itself.
type AuthService struct {
	userRepo   repository.UserRepository
	widgetRepo repository.WidgetRepository
	resetRepo  repository.ResetCodeRepository
	mailer     Mailer
	opsBot     OpsBot
	jwtSecret  []byte
	log        *zap.SugaredLogger
	now        func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	widgetRepo repository.WidgetRepository,
	resetRepo repository.ResetCodeRepository,
	mailer Mailer,
	opsBot OpsBot,
	jwtSecret string,
	log *zap.SugaredLogger,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		widgetRepo: widgetRepo,
		resetRepo:  resetRepo,
		mailer:     mailer,
		opsBot:     opsBot,
		jwtSecret:  []byte(jwtSecret),
		log:        log,
		now:        time.Now,
	}
}

type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	PlayerID string `json:"player_id"`
}

type AuthResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*AuthResponse, error) {
	existing, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.IsVerified {
		return nil, ErrEmailTaken
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        &input.Email,
		Username:     usernameFromEmail(input.Email),
		PasswordHash: hash,
		Code:         strconv.FormatInt(now.UnixMilli(), 10),
		IsVerified:   true,
		ProfileImage: randomAvatar(),
		PlayerID:     &input.PlayerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	s.announce(fmt.Sprintf("%s signed up", user.Username))
	return &AuthResponse{User: user, AccessToken: token}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password, playerID string) (*AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCreds
	}
	if !user.IsVerified {
		return nil, ErrNotVerified
	}
	if !verifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCreds
	}

	if playerID != "" && (user.PlayerID == nil || *user.PlayerID != playerID) {
		user.PlayerID = &playerID
		user.UpdatedAt = s.now()
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	s.announce(fmt.Sprintf("%s logged in (widgets: %d)", user.Username, user.WidgetCount))
	return &AuthResponse{User: user, AccessToken: token}, nil
}

// RegisterWithToken upgrades an authenticated guest to a full account: email,
// password and player id are set and the account becomes verified. Calling it
// on an already verified account changes nothing and just issues a fresh
// token.
func (s *AuthService) RegisterWithToken(ctx context.Context, userID uuid.UUID, input SignupInput) (*AuthResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if user.IsVerified {
		token, err := s.generateToken(user.ID)
		if err != nil {
			return nil, fmt.Errorf("generating token: %w", err)
		}
		return &AuthResponse{User: user, AccessToken: token}, nil
	}

	existing, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ID != user.ID {
		return nil, ErrEmailTaken
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user.Email = &input.Email
	user.Username = usernameFromEmail(input.Email)
	user.PasswordHash = hash
	user.PlayerID = &input.PlayerID
	user.IsVerified = true
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("upgrading guest: %w", err)
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	s.announce(fmt.Sprintf("%s registered from a guest account", user.Username))
	return &AuthResponse{User: user, AccessToken: token}, nil
}

// SkipLogin creates a guest account with no email or password.
func (s *AuthService) SkipLogin(ctx context.Context) (*AuthResponse, error) {
	now := s.now()
	code := strconv.FormatInt(now.UnixMilli(), 10)
	user := &domain.User{
		ID:           uuid.New(),
		Username:     "guest-" + code,
		Code:         code,
		ProfileImage: randomAvatar(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating guest: %w", err)
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	s.announce("guest skipped signup")
	return &AuthResponse{User: user, AccessToken: token}, nil
}

// SendForgotPassword mails a temporary password and stores its hash with a
// TTL. The account password stays untouched until the temporary one is
// confirmed.
func (s *AuthService) SendForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if !user.IsVerified {
		return ErrNotVerified
	}

	temp, err := generatePassword(tempPasswordLen)
	if err != nil {
		return err
	}
	hash, err := hashPassword(temp)
	if err != nil {
		return err
	}
	if err := s.resetRepo.Set(ctx, email, hash, resetTTL); err != nil {
		return fmt.Errorf("storing reset code: %w", err)
	}

	body := fmt.Sprintf("Your temporary password is %s. It expires in one hour.", temp)
	if err := s.mailer.SendMail(ctx, email, "New Password", body); err != nil {
		return fmt.Errorf("sending reset mail: %w", err)
	}
	return nil
}

// ForgotPassword confirms the temporary password and makes it the account
// password.
func (s *AuthService) ForgotPassword(ctx context.Context, email, password string) (*AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.IsVerified {
		return nil, ErrNotVerified
	}

	stored, err := s.resetRepo.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if stored == "" {
		return nil, ErrResetExpired
	}
	if !verifyPassword(password, stored) {
		return nil, ErrWrongPassword
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	if err := s.resetRepo.Delete(ctx, email); err != nil {
		s.log.Warnw("deleting reset code", "error", err)
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, AccessToken: token}, nil
}

func (s *AuthService) EditPassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) (*AuthResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !verifyPassword(oldPassword, user.PasswordHash) {
		return nil, ErrWrongPassword
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, AccessToken: token}, nil
}

// DeleteAccount pulls the user out of every widget (degrading or deleting
// them as membership dictates), then removes the account.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if err := s.widgetRepo.RemoveUserFromAll(ctx, userID); err != nil {
		return fmt.Errorf("removing user from widgets: %w", err)
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	s.announce(fmt.Sprintf("%s deleted their account", user.Username))
	return nil
}

// Logout issues a short-lived token the client swaps in to invalidate its
// long-lived one.
func (s *AuthService) Logout(userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"typ": "logout",
		"exp": s.now().Add(time.Minute).Unix(),
		"iat": s.now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) generateToken(userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"exp": s.now().Add(30 * 24 * time.Hour).Unix(),
		"iat": s.now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// announce posts to the ops channel without blocking the caller's flow.
func (s *AuthService) announce(message string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), opsBotTimeout)
		defer cancel()
		if err := s.opsBot.Announce(ctx, message); err != nil {
			s.log.Warnw("ops announcement failed", "error", err)
		}
	}()
}

func usernameFromEmail(email string) string {
	name, _, found := strings.Cut(email, "@")
	if !found || name == "" {
		return email
	}
	return name
}

// randomAvatar picks one of the eight bundled logo images.
func randomAvatar() string {
	n, err := rand.Int(rand.Reader, big.NewInt(8))
	if err != nil {
		return "logo1.png"
	}
	return fmt.Sprintf("logo%d.png", n.Int64()+1)
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generatePassword(length int) (string, error) {
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	return fmt.Sprintf("%s:%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyPassword(password, encoded string) bool {
	saltB64, hashB64, ok := strings.Cut(encoded, ":")
	if !ok {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(hashB64)
	if err != nil {
		return false
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, expected) == 1
}
