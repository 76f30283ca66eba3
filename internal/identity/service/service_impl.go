package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/auth/password"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/clock"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const minPasswordLength = 6

type Params struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  domain.Repository

	dummyOnce sync.Once
	dummyHash string
}

func New(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("identity.service"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Resolve(ctx context.Context, userID string, scopeHeader *string) (*domain.Identity, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(userID))
	if err != nil || id == 0 {
		return nil, domain.ErrUnknownUser
	}

	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}

	if scopeHeader == nil {
		return domain.NewIdentity(*user, nil, false), nil
	}
	return domain.NewIdentity(*user, parseScopes(*scopeHeader), true), nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	caller, _ := domain.FromContext(ctx)
	callerIsAdmin := caller != nil && caller.Admin

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != "" && !validEmail(email) {
		return nil, domain.ErrInvalidEmail
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = email
	}
	if username == "" || strings.ContainsAny(username, " \t\n") {
		return nil, domain.ErrInvalidUsername
	}
	if len(req.Groups) > 0 && !callerIsAdmin {
		return nil, domain.ErrAdminOnly
	}

	now := s.clock.Now()
	user := domain.User{
		ID:        s.genID.Generate(),
		Username:  username,
		Groups:    normalizeGroups(req.Groups),
		Validated: req.Validated && callerIsAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if email != "" {
		user.Email = &email
	}
	if req.Password != "" {
		if len(req.Password) < minPasswordLength {
			return nil, domain.ErrPasswordTooShort
		}
		hash, err := password.Hash(req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = &hash
	}

	if err := s.ensureUnique(ctx, username, email); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, err
	}

	s.log.Info("user created", zap.String("user_id", user.ID.String()), zap.Strings("groups", user.Groups))
	return &user, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	if err := requireSelfOrAdmin(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.repo.FindByUsername(ctx, strings.TrimSpace(username))
}

func (s *Service) Authenticate(ctx context.Context, login, plain string) (*domain.User, error) {
	login = strings.TrimSpace(login)
	user, err := s.lookupLogin(ctx, login)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	if user == nil || user.PasswordHash == nil {
		// keep the unknown-user path as expensive as a real mismatch
		password.Verify(plain, s.dummy())
		return nil, domain.ErrInvalidCredentials
	}
	if !password.Verify(plain, *user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Update validates the whole patch before writing anything and then applies
// it as a single UPDATE.
func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateUserRequest) (*domain.User, error) {
	if err := requireSelfOrAdmin(ctx, id); err != nil {
		return nil, err
	}
	caller, _ := domain.FromContext(ctx)
	if (req.Groups != nil || req.Validated != nil) && !caller.Admin {
		return nil, domain.ErrAdminOnly
	}

	fields := map[string]any{"updated_at": s.clock.Now()}
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			return nil, domain.ErrPasswordTooShort
		}
		hash, err := password.Hash(*req.Password)
		if err != nil {
			return nil, err
		}
		fields["password_hash"] = hash
	}
	if req.Validated != nil {
		fields["validated"] = *req.Validated
	}

	var groups []string
	if req.Groups != nil {
		groups = normalizeGroups(*req.Groups)
		// serializer:json columns are not encoded for map updates
		encoded, err := encodeGroups(groups)
		if err != nil {
			return nil, err
		}
		fields["groups"] = encoded
	}

	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	if req.Groups != nil {
		s.log.Info("user groups changed",
			zap.String("user_id", id.String()),
			zap.String("by", caller.UserID.String()),
			zap.Strings("groups", groups),
		)
	}
	return s.repo.FindByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if err := requireSelfOrAdmin(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("user_id", id.String()))
	return nil
}

func (s *Service) lookupLogin(ctx context.Context, login string) (*domain.User, error) {
	if login == "" {
		return nil, domain.ErrUserNotFound
	}
	user, err := s.repo.FindByUsername(ctx, login)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	return s.repo.FindByEmail(ctx, strings.ToLower(login))
}

func (s *Service) ensureUnique(ctx context.Context, username, email string) error {
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return domain.ErrUsernameTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}
	if email == "" {
		return nil
	}
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}
	return nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := password.Hash("wicked-dummy-password")
		if err != nil {
			s.log.Warn("failed to prepare dummy password hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func requireSelfOrAdmin(ctx context.Context, id snowflake.ID) error {
	caller, ok := domain.FromContext(ctx)
	if !ok {
		return domain.ErrNotAllowed
	}
	if caller.Admin || caller.UserID == id {
		return nil
	}
	return domain.ErrNotAllowed
}
