package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/application/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/clock"
	eventsdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/events/domain"
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/policy"
	"github.com/Haufe-Lexware/wicked.portal-test/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minIDLength      = 4
	maxIDLength      = 50
	defaultListLimit = 100
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Users   identitydomain.Repository
	Policy  *policy.Engine
	Events  eventsdomain.Publisher
	Cascade domain.SubscriptionCascade
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	users   identitydomain.Repository
	policy  *policy.Engine
	events  eventsdomain.Publisher
	cascade domain.SubscriptionCascade
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("application.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		users:   p.Users,
		policy:  p.Policy,
		events:  p.Events,
		cascade: p.Cascade,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateApplicationRequest) (*domain.ApplicationView, error) {
	caller, ok := identitydomain.FromContext(ctx)
	if !ok {
		return nil, domain.ErrLoginRequired
	}

	id := strings.TrimSpace(req.ID)
	if err := validateID(id); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	redirect, err := normalizeRedirectURI(req.RedirectURI)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	app := domain.Application{
		ID:           id,
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		RedirectURI:  redirect,
		Confidential: req.Confidential,
		CreatedBy:    caller.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	owner := domain.Owner{
		ApplicationID: id,
		UserID:        caller.UserID,
		Role:          policy.RoleOwner.String(),
		CreatedAt:     now,
	}
	change := eventsdomain.Change{
		Type:          eventsdomain.EventApplicationCreated,
		ApplicationID: id,
		Payload:       map[string]any{"userId": caller.UserID.String()},
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &app); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrApplicationExists
			}
			return err
		}
		if err := s.repo.InsertOwner(ctx, tx, &owner); err != nil {
			return err
		}
		return s.events.Publish(ctx, tx, change)
	})
	if err != nil {
		return nil, err
	}
	s.events.Notify(ctx, change)

	s.log.Info("application created",
		zap.String("application_id", id),
		zap.String("user_id", caller.UserID.String()),
	)
	return s.view(ctx, s.db, app)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.ApplicationView, error) {
	caller, _ := identitydomain.FromContext(ctx)
	if err := s.policy.CheckApplicationAccess(ctx, caller, id, policy.RoleReader); err != nil {
		return nil, err
	}
	app, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, s.db, *app)
}

func (s *Service) List(ctx context.Context, req domain.ListApplicationsRequest) ([]domain.ApplicationView, error) {
	caller, ok := identitydomain.FromContext(ctx)
	if !ok {
		return nil, domain.ErrLoginRequired
	}

	filter := domain.ListFilter{Offset: req.Offset, Limit: req.Limit}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if !s.policy.IsAdmin(caller) {
		uid := caller.UserID
		filter.OwnerID = &uid
	}

	apps, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	views := make([]domain.ApplicationView, 0, len(apps))
	for _, app := range apps {
		v, err := s.view(ctx, s.db, app)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateApplicationRequest) (*domain.ApplicationView, error) {
	caller, _ := identitydomain.FromContext(ctx)
	if err := s.policy.CheckApplicationAccess(ctx, caller, id, policy.RoleCollaborator); err != nil {
		return nil, err
	}

	var updated domain.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			app.Name = name
		}
		if req.Description != nil {
			app.Description = strings.TrimSpace(*req.Description)
		}
		if req.RedirectURI != nil {
			redirect, err := normalizeRedirectURI(*req.RedirectURI)
			if err != nil {
				return err
			}
			app.RedirectURI = redirect
		}
		if req.Confidential != nil {
			app.Confidential = *req.Confidential
		}
		app.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, app); err != nil {
			return err
		}
		updated = *app
		return s.events.Publish(ctx, tx, eventsdomain.Change{
			Type:          eventsdomain.EventApplicationUpdated,
			ApplicationID: id,
		})
	})
	if err != nil {
		return nil, err
	}
	s.events.Notify(ctx, eventsdomain.Change{Type: eventsdomain.EventApplicationUpdated, ApplicationID: id})
	return s.view(ctx, s.db, updated)
}

// Delete removes the application together with its owners and every
// subscription. Subscription rows go under their pair locks so that no
// create for this application can commit after the delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	caller, _ := identitydomain.FromContext(ctx)
	if err := s.policy.CheckApplicationAccess(ctx, caller, id, policy.RoleOwner); err != nil {
		return err
	}

	change := eventsdomain.Change{
		Type:          eventsdomain.EventApplicationDeleted,
		ApplicationID: id,
	}
	if caller != nil {
		change.Payload = map[string]any{"userId": caller.UserID.String()}
	}

	err := s.cascade.DeleteForApplication(ctx, id, func(tx *gorm.DB) error {
		if err := s.repo.DeleteOwners(ctx, tx, id); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.events.Publish(ctx, tx, change)
	})
	if err != nil {
		return err
	}
	s.events.Notify(ctx, change)

	s.log.Info("application deleted", zap.String("application_id", id))
	return nil
}

func (s *Service) AddOwner(ctx context.Context, id string, req domain.AddOwnerRequest) (*domain.ApplicationView, error) {
	caller, _ := identitydomain.FromContext(ctx)
	if err := s.policy.CheckApplicationAccess(ctx, caller, id, policy.RoleOwner); err != nil {
		return nil, err
	}

	role, ok := policy.ParseRole(req.Role)
	if !ok || role == policy.RoleOwner {
		return nil, domain.ErrInvalidRole
	}

	user, err := s.lookupUser(ctx, req)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindOwner(ctx, tx, id, user.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrOwnerExists
		}
		owner := domain.Owner{
			ApplicationID: id,
			UserID:        user.ID,
			Role:          role.String(),
			CreatedAt:     s.clock.Now(),
		}
		if err := s.repo.InsertOwner(ctx, tx, &owner); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrOwnerExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("application owner added",
		zap.String("application_id", id),
		zap.String("user_id", user.ID.String()),
		zap.String("role", role.String()),
	)
	return s.Get(ctx, id)
}

func (s *Service) RemoveOwner(ctx context.Context, id string, userID snowflake.ID) (*domain.ApplicationView, error) {
	caller, _ := identitydomain.FromContext(ctx)
	if err := s.policy.CheckApplicationAccess(ctx, caller, id, policy.RoleOwner); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := s.repo.FindOwner(ctx, tx, id, userID)
		if err != nil {
			return err
		}
		if owner == nil {
			return domain.ErrOwnerNotFound
		}
		if owner.Role == policy.RoleOwner.String() {
			return domain.ErrOwnerImmutable
		}
		return s.repo.DeleteOwner(ctx, tx, id, userID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) lookupUser(ctx context.Context, req domain.AddOwnerRequest) (*identitydomain.User, error) {
	var (
		user *identitydomain.User
		err  error
	)
	switch {
	case req.UserID != nil:
		user, err = s.users.FindByID(ctx, *req.UserID)
	case strings.TrimSpace(req.Email) != "":
		user, err = s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	default:
		return nil, identitydomain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) view(ctx context.Context, conn *gorm.DB, app domain.Application) (*domain.ApplicationView, error) {
	owners, err := s.repo.ListOwners(ctx, conn, app.ID)
	if err != nil {
		return nil, err
	}
	views := make([]domain.OwnerView, 0, len(owners))
	for _, o := range owners {
		ov := domain.OwnerView{UserID: o.UserID.String(), Role: o.Role}
		user, err := s.users.FindByID(ctx, o.UserID)
		switch {
		case err == nil && user.Email != nil:
			ov.Email = *user.Email
		case err != nil && !errors.Is(err, identitydomain.ErrUserNotFound):
			return nil, err
		}
		views = append(views, ov)
	}
	v := app.View(views)
	return &v, nil
}

func validateID(id string) error {
	if len(id) < minIDLength || len(id) > maxIDLength {
		return domain.ErrInvalidIDLength
	}
	// slug has no notion of underscores; treat them like dashes.
	if !slug.IsSlug(strings.ReplaceAll(id, "_", "-")) {
		return domain.ErrInvalidID
	}
	return nil
}

// normalizeRedirectURI accepts https URIs with a host and plain http on
// localhost. An empty value clears the redirect URI.
func normalizeRedirectURI(raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, domain.ErrInvalidRedirectURI
	}
	switch {
	case u.Scheme == "https":
	case u.Scheme == "http" && u.Hostname() == "localhost":
	default:
		return nil, domain.ErrInvalidRedirectURI
	}
	return &raw, nil
}
