package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/queue"
	"github.com/iliyamo/trip-reservation/internal/utils"
)

// UserStore is the account storage the identity service needs.
type UserStore interface {
	Create(ctx context.Context, u *model.User) (uint64, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Activate(ctx context.Context, code string) (*model.User, error)
	RecordFailedLogin(ctx context.Context, id uint64, maxAttempts int) (int, bool, error)
	RecordSuccessfulLogin(ctx context.Context, id uint64, at time.Time) error
}

// TokenStore keeps refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthConfig carries the identity settings.
type AuthConfig struct {
	JWTSecret           string
	AccessTTLMin        int
	RefreshTTLDays      int
	BcryptCost          int
	LoginMaxAttempts    int
	BootstrapAdminEmail string
}

// RegisterInput is the body of POST /v1/auth/register.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email,max=191"`
	Password string `json:"password" validate:"required,min=8,max=72,password"`
}

// LoginInput is the body of POST /v1/auth/login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is an issued access and refresh token pair.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
	// Message tells the user when they last logged in.
	Message string
}

// AuthService registers, activates and logs in operators.
type AuthService struct {
	users  UserStore
	tokens TokenStore
	events EventDispatcher
	cfg    AuthConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewAuthService wires the account service. events may be nil.
func NewAuthService(users UserStore, tokens TokenStore, events EventDispatcher, cfg AuthConfig, log *zap.Logger) *AuthService {
	if events == nil {
		events = discard{}
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		events: events,
		cfg:    cfg,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an inactive account and queues its activation e-mail.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", model.ErrPersistence, err)
	}
	code, err := utils.NewActivationCode()
	if err != nil {
		return nil, fmt.Errorf("%w: activation code: %v", model.ErrPersistence, err)
	}
	role := model.RoleOperator
	if s.cfg.BootstrapAdminEmail != "" && in.Email == s.cfg.BootstrapAdminEmail {
		role = model.RoleAdmin
	}
	u := &model.User{
		Name:           in.Name,
		Email:          in.Email,
		PasswordHash:   hash,
		Role:           role,
		ActivationCode: &code,
	}
	if _, err := s.users.Create(ctx, u); err != nil {
		return nil, classify(ctx, s.log, "register", err)
	}

	ev := queue.NewEvent(queue.KindUserRegistered, u.ID, "account registered")
	ev.UserEmail, ev.UserName, ev.ActivationCode = u.Email, u.Name, code
	if !s.events.Dispatch(ev) {
		s.log.Warn("activation e-mail not queued", zap.Uint64("user_id", u.ID))
	}
	u.PasswordHash = ""
	u.ActivationCode = nil
	return u, nil
}

// Activate redeems an activation code.
func (s *AuthService) Activate(ctx context.Context, code string) (*model.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: activation code is required", model.ErrValidation)
	}
	u, err := s.users.Activate(ctx, code)
	if err != nil {
		return nil, classify(ctx, s.log, "activate", err)
	}
	s.events.Dispatch(queue.NewEvent(queue.KindUserActivated, u.ID, "account activated"))
	u.PasswordHash = ""
	return u, nil
}

// Login checks the password and issues a session. Every failure counts
// toward LoginMaxAttempts; the attempt that reaches it blocks the account.
// Blocked and not yet activated accounts get model.ErrForbidden.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	u, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", model.ErrUnauthorized)
		}
		return nil, classify(ctx, s.log, "login", err)
	}
	if u.Blocked {
		return nil, fmt.Errorf("%w: account blocked after too many failed logins", model.ErrForbidden)
	}
	if !utils.VerifyPassword(u.PasswordHash, in.Password) {
		attempts, blocked, err := s.users.RecordFailedLogin(ctx, u.ID, s.cfg.LoginMaxAttempts)
		if err != nil {
			return nil, classify(ctx, s.log, "login", err)
		}
		if blocked {
			s.log.Warn("account blocked", zap.Uint64("user_id", u.ID), zap.Int("attempts", attempts))
		}
		return nil, fmt.Errorf("%w: invalid credentials", model.ErrUnauthorized)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: account not activated", model.ErrForbidden)
	}

	now := s.now()
	if err := s.users.RecordSuccessfulLogin(ctx, u.ID, now); err != nil {
		return nil, classify(ctx, s.log, "login", err)
	}
	sess, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}
	if u.LastLoginAt != nil {
		sess.Message = "Your last access was on " + u.LastLoginAt.UTC().Format("2006-01-02 15:04:05 MST")
	} else {
		sess.Message = "This is your first access."
	}
	s.events.Dispatch(queue.NewEvent(queue.KindUserLoggedIn, u.ID, "login"))
	return sess, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: refresh_token is required", model.ErrValidation)
	}
	hash := utils.HashRefreshRaw(raw)
	userID, err := s.tokens.ValidateRefresh(ctx, hash, s.now())
	if err != nil {
		return nil, classify(ctx, s.log, "refresh", err)
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, classify(ctx, s.log, "refresh", err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid refresh token", model.ErrUnauthorized)
		}
		return nil, classify(ctx, s.log, "refresh", err)
	}
	if u.Blocked || !u.IsActive {
		return nil, fmt.Errorf("%w: account is not usable", model.ErrForbidden)
	}
	return s.issue(ctx, u)
}

// Logout revokes one refresh token when raw is given, otherwise every
// token of userID.
func (s *AuthService) Logout(ctx context.Context, userID uint64, raw string) error {
	raw = strings.TrimSpace(raw)
	switch {
	case raw != "":
		hash := utils.HashRefreshRaw(raw)
		if _, err := s.tokens.ValidateRefresh(ctx, hash, s.now()); err != nil {
			return classify(ctx, s.log, "logout", err)
		}
		return classify(ctx, s.log, "logout", s.tokens.RevokeByHash(ctx, hash))
	case userID != 0:
		return classify(ctx, s.log, "logout", s.tokens.RevokeAllForUser(ctx, userID))
	}
	return fmt.Errorf("%w: provide Authorization header or refresh_token", model.ErrValidation)
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, userID uint64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, classify(ctx, s.log, "me", err)
	}
	u.PasswordHash = ""
	u.ActivationCode = nil
	return u, nil
}

// Users lists every account without credentials.
func (s *AuthService) Users(ctx context.Context) ([]model.User, error) {
	out, err := s.users.List(ctx)
	if err != nil {
		return nil, classify(ctx, s.log, "list users", err)
	}
	for i := range out {
		out[i].PasswordHash = ""
		out[i].ActivationCode = nil
	}
	return out, nil
}

func (s *AuthService) issue(ctx context.Context, u *model.User) (*Session, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return nil, fmt.Errorf("%w: issue access token: %v", model.ErrPersistence, err)
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return nil, fmt.Errorf("%w: issue refresh token: %v", model.ErrPersistence, err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, classify(ctx, s.log, "store refresh token", err)
	}
	user := *u
	user.PasswordHash = ""
	user.ActivationCode = nil
	return &Session{User: user, Access: access, Refresh: refresh}, nil
}
