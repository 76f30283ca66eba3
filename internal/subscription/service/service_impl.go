package service

import (
	"context"
	"errors"
	"slices"

	appdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/application/domain"
	catalogdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/catalog/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/clock"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/credential"
	eventsdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/events/domain"
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/locking"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/observability/metrics"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/policy"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	GenID   *snowflake.Node
	Repo    domain.Repository
	Apps    appdomain.Repository
	Catalog catalogdomain.Registry
	Policy  *policy.Engine
	Issuer  *credential.Issuer
	Locks   locking.Keyed
	Events  eventsdomain.Publisher
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	genID   *snowflake.Node
	repo    domain.Repository
	apps    appdomain.Repository
	catalog catalogdomain.Registry
	policy  *policy.Engine
	issuer  *credential.Issuer
	locks   locking.Keyed
	events  eventsdomain.Publisher
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("subscription.service"),
		clock:   p.Clock,
		genID:   p.GenID,
		repo:    p.Repo,
		apps:    p.Apps,
		catalog: p.Catalog,
		policy:  p.Policy,
		issuer:  p.Issuer,
		locks:   p.Locks,
		events:  p.Events,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSubscriptionRequest) (*domain.View, error) {
	caller, ok := identitydomain.FromContext(ctx)
	if !ok {
		return nil, appdomain.ErrLoginRequired
	}

	app, err := s.apps.FindByID(ctx, s.db, req.ApplicationID)
	if err != nil {
		return nil, err
	}
	api, err := s.catalog.GetAPI(ctx, req.APIID)
	if err != nil {
		return nil, err
	}
	if api.Deprecated {
		return nil, domain.ErrAPIDeprecated
	}
	if !api.HasPlan(req.PlanID) {
		return nil, domain.ErrInvalidPlan
	}
	plan, err := s.catalog.GetPlan(ctx, req.PlanID)
	if errors.Is(err, catalogdomain.ErrPlanNotFound) {
		return nil, domain.ErrInvalidPlan
	}
	if err != nil {
		return nil, err
	}
	if err := s.policy.CheckApplicationAccess(ctx, caller, app.ID, policy.RoleCollaborator); err != nil {
		return nil, err
	}
	if err := s.policy.CheckGroupRestriction(caller, *plan); err != nil {
		return nil, err
	}
	if plan.AuthType.IsOAuth2() && !app.HasRedirectURI() {
		return nil, domain.ErrMissingRedirectURI
	}

	admin := s.policy.IsAdmin(caller)
	if req.Trusted && !admin {
		return nil, domain.ErrTrustedAdminOnly
	}
	approved := !plan.NeedsApproval || admin

	unlock, err := s.locks.Lock(ctx, locking.SubscriptionKey(app.ID, api.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.clock.Now()
	sub := domain.Subscription{
		ID:            s.genID.Generate(),
		ApplicationID: app.ID,
		APIID:         api.ID,
		PlanID:        plan.ID,
		Auth:          plan.AuthType,
		Trusted:       req.Trusted,
		Approved:      approved,
		CreatedBy:     caller.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	change := eventsdomain.Change{
		Type:          eventsdomain.EventSubscriptionCreated,
		ApplicationID: app.ID,
		APIID:         api.ID,
		Payload: map[string]any{
			"planId":   plan.ID,
			"auth":     string(plan.AuthType),
			"approved": approved,
			"trusted":  req.Trusted,
			"userId":   caller.UserID.String(),
		},
	}

	issued := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.apps.Touch(ctx, tx, app.ID, now)
		if err != nil {
			return err
		}
		if !exists {
			return appdomain.ErrApplicationNotFound
		}

		if _, err := s.repo.FindByPair(ctx, tx, app.ID, api.ID); err == nil {
			return domain.ErrSubscriptionExists
		} else if !errors.Is(err, domain.ErrSubscriptionNotFound) {
			return err
		}

		if approved {
			creds, ok, err := s.issuer.Issue(plan.AuthType, credential.Credentials{})
			if err != nil {
				return err
			}
			issued = ok
			sub.APIKey, sub.ClientID, sub.ClientSecret = creds.APIKey, creds.ClientID, creds.ClientSecret
		}

		if err := s.repo.Insert(ctx, tx, &sub); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrSubscriptionExists
			}
			return err
		}
		if err := s.writeIndices(ctx, tx, sub); err != nil {
			return err
		}
		return s.events.Publish(ctx, tx, change)
	})
	if err != nil {
		return nil, err
	}
	s.events.Notify(ctx, change)

	s.metrics.RecordSubscriptionCreated(ctx, api.ID, string(plan.AuthType), approved)
	if issued {
		s.metrics.RecordCredentialIssued(ctx, string(plan.AuthType))
	}
	s.log.Info("subscription created",
		zap.String("application_id", app.ID),
		zap.String("api_id", api.ID),
		zap.String("plan_id", plan.ID),
		zap.Bool("approved", approved),
		zap.Bool("trusted", req.Trusted),
	)

	v := domain.ToView(sub, true)
	return &v, nil
}

func (s *Service) Get(ctx context.Context, appID, apiID string) (*domain.View, error) {
	caller, _ := identitydomain.FromContext(ctx)
	if err := s.policy.CheckApplicationAccess(ctx, caller, appID, policy.RoleReader); err != nil {
		return nil, err
	}
	sub, err := s.repo.FindByPair(ctx, s.db, appID, apiID)
	if err != nil {
		return nil, err
	}
	v := domain.ToView(*sub, true)
	return &v, nil
}

func (s *Service) List(ctx context.Context, appID string) ([]domain.View, error) {
	caller, _ := identitydomain.FromContext(ctx)
	if err := s.policy.CheckApplicationAccess(ctx, caller, appID, policy.RoleReader); err != nil {
		return nil, err
	}
	subs, err := s.repo.ListByApplication(ctx, s.db, appID)
	if err != nil {
		return nil, err
	}
	views := make([]domain.View, 0, len(subs))
	for _, sub := range subs {
		views = append(views, domain.ToView(sub, true))
	}
	return views, nil
}

func (s *Service) ListByAPI(ctx context.Context, apiID string) ([]domain.APISubscriber, error) {
	caller, _ := identitydomain.FromContext(ctx)
	if !s.policy.IsAdmin(caller) {
		return nil, domain.ErrListByAPIAdminOnly
	}
	if _, err := s.catalog.GetAPI(ctx, apiID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListAPIIndex(ctx, s.db, apiID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.APISubscriber, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.APISubscriber{Application: e.ApplicationID, Plan: e.PlanID})
	}
	return out, nil
}

func (s *Service) LookupByClientID(ctx context.Context, clientID string) (*domain.ClientLookup, error) {
	caller, _ := identitydomain.FromContext(ctx)
	if !s.policy.IsAdmin(caller) {
		return nil, domain.ErrLookupAdminOnly
	}
	client, err := s.ResolveClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	owners, err := s.apps.ListOwners(ctx, s.db, client.Application.ID)
	if err != nil {
		return nil, err
	}
	ownerViews := make([]appdomain.OwnerView, 0, len(owners))
	for _, o := range owners {
		ownerViews = append(ownerViews, appdomain.OwnerView{UserID: o.UserID.String(), Role: o.Role})
	}
	return &domain.ClientLookup{
		Application:  client.Application.View(ownerViews),
		Subscription: domain.ToView(client.Subscription, true),
	}, nil
}

func (s *Service) ResolveClient(ctx context.Context, clientID string) (*domain.Client, error) {
	if clientID == "" {
		return nil, domain.ErrClientNotFound
	}
	entry, err := s.repo.FindClientIndex(ctx, s.db, clientID)
	if err != nil {
		return nil, err
	}
	sub, err := s.repo.FindByPair(ctx, s.db, entry.ApplicationID, entry.APIID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, domain.ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	app, err := s.apps.FindByID(ctx, s.db, entry.ApplicationID)
	if errors.Is(err, appdomain.ErrApplicationNotFound) {
		return nil, domain.ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Client{Application: *app, Subscription: *sub}, nil
}

func (s *Service) Delete(ctx context.Context, appID, apiID string) error {
	caller, _ := identitydomain.FromContext(ctx)
	if err := s.policy.CheckApplicationAccess(ctx, caller, appID, policy.RoleCollaborator); err != nil {
		return err
	}

	unlock, err := s.locks.Lock(ctx, locking.SubscriptionKey(appID, apiID))
	if err != nil {
		return err
	}
	defer unlock()

	change := eventsdomain.Change{
		Type:          eventsdomain.EventSubscriptionDeleted,
		ApplicationID: appID,
		APIID:         apiID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByPair(ctx, tx, appID, apiID)
		if err != nil {
			return err
		}
		change.Payload = map[string]any{"planId": sub.PlanID, "approved": sub.Approved}
		if err := s.removeWithIndices(ctx, tx, *sub); err != nil {
			return err
		}
		return s.events.Publish(ctx, tx, change)
	})
	if err != nil {
		return err
	}
	s.events.Notify(ctx, change)

	s.metrics.RecordSubscriptionDeleted(ctx, apiID)
	s.log.Info("subscription deleted", zap.String("application_id", appID), zap.String("api_id", apiID))
	return nil
}

func (s *Service) SetTrusted(ctx context.Context, appID, apiID string, trusted bool) (*domain.View, error) {
	caller, _ := identitydomain.FromContext(ctx)
	if _, err := s.apps.FindByID(ctx, s.db, appID); err != nil {
		return nil, err
	}
	if !s.policy.IsAdmin(caller) {
		return nil, domain.ErrTrustedAdminOnly
	}

	unlock, err := s.locks.Lock(ctx, locking.SubscriptionKey(appID, apiID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	change := eventsdomain.Change{
		Type:          eventsdomain.EventSubscriptionUpdated,
		ApplicationID: appID,
		APIID:         apiID,
		Payload:       map[string]any{"trusted": trusted},
	}
	var updated domain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByPair(ctx, tx, appID, apiID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := s.repo.SetTrusted(ctx, tx, sub.ID, trusted, now); err != nil {
			return err
		}
		if sub.ClientID != nil {
			if err := s.repo.SetClientTrusted(ctx, tx, *sub.ClientID, trusted); err != nil {
				return err
			}
		}
		sub.Trusted = trusted
		sub.UpdatedAt = now
		updated = *sub
		return s.events.Publish(ctx, tx, change)
	})
	if err != nil {
		return nil, err
	}
	s.events.Notify(ctx, change)

	v := domain.ToView(updated, true)
	return &v, nil
}

// DeleteForApplication removes every subscription of appID and then runs
// within, all in one transaction. The pair locks of the known subscriptions
// are held throughout; creates for other APIs are ordered by the row lock
// taken on the application.
func (s *Service) DeleteForApplication(ctx context.Context, appID string, within func(tx *gorm.DB) error) error {
	existing, err := s.repo.ListByApplication(ctx, s.db, appID)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(existing))
	for _, sub := range existing {
		keys = append(keys, locking.SubscriptionKey(appID, sub.APIID))
	}
	slices.Sort(keys)

	unlocks := make([]func(), 0, len(keys))
	defer func() {
		for _, unlock := range unlocks {
			unlock()
		}
	}()
	for _, key := range keys {
		unlock, err := s.locks.Lock(ctx, key)
		if err != nil {
			return err
		}
		unlocks = append(unlocks, unlock)
	}

	var removed []domain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.apps.Touch(ctx, tx, appID, s.clock.Now())
		if err != nil {
			return err
		}
		if !exists {
			return appdomain.ErrApplicationNotFound
		}

		subs, err := s.repo.ListByApplication(ctx, tx, appID)
		if err != nil {
			return err
		}
		changes := make([]eventsdomain.Change, 0, len(subs))
		for _, sub := range subs {
			if err := s.removeWithIndices(ctx, tx, sub); err != nil {
				return err
			}
			changes = append(changes, eventsdomain.Change{
				Type:          eventsdomain.EventSubscriptionDeleted,
				ApplicationID: appID,
				APIID:         sub.APIID,
				Payload:       map[string]any{"planId": sub.PlanID, "approved": sub.Approved},
			})
		}
		if err := s.events.Publish(ctx, tx, changes...); err != nil {
			return err
		}
		removed = subs
		if within == nil {
			return nil
		}
		return within(tx)
	})
	if err != nil {
		return err
	}

	for _, sub := range removed {
		s.metrics.RecordSubscriptionDeleted(ctx, sub.APIID)
		s.events.Notify(ctx, eventsdomain.Change{
			Type:          eventsdomain.EventSubscriptionDeleted,
			ApplicationID: appID,
			APIID:         sub.APIID,
		})
	}
	if len(removed) > 0 {
		s.log.Info("subscriptions removed with application",
			zap.String("application_id", appID),
			zap.Int("count", len(removed)),
		)
	}
	return nil
}

func (s *Service) writeIndices(ctx context.Context, tx *gorm.DB, sub domain.Subscription) error {
	if err := s.repo.InsertAPIIndex(ctx, tx, &domain.APIIndexEntry{
		APIID:         sub.APIID,
		ApplicationID: sub.ApplicationID,
		PlanID:        sub.PlanID,
		CreatedAt:     sub.CreatedAt,
	}); err != nil {
		return err
	}
	if sub.ClientID == nil {
		return nil
	}
	return s.repo.InsertClientIndex(ctx, tx, &domain.ClientIndexEntry{
		ClientID:      *sub.ClientID,
		ApplicationID: sub.ApplicationID,
		APIID:         sub.APIID,
		Trusted:       sub.Trusted,
		CreatedAt:     sub.CreatedAt,
	})
}

func (s *Service) removeWithIndices(ctx context.Context, tx *gorm.DB, sub domain.Subscription) error {
	if err := s.repo.DeleteAPIIndex(ctx, tx, sub.APIID, sub.ApplicationID); err != nil {
		return err
	}
	if sub.ClientID != nil {
		if err := s.repo.DeleteClientIndex(ctx, tx, *sub.ClientID); err != nil {
			return err
		}
	}
	return s.repo.Delete(ctx, tx, sub.ID)
}
