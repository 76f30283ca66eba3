package service

import (
	"context"
	"errors"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/approval/domain"
	appdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/application/domain"
	catalogdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/catalog/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/clock"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/credential"
	eventsdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/events/domain"
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/locking"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/observability/metrics"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/policy"
	subscriptiondomain "github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	Subscriptions subscriptiondomain.Repository
	Apps          appdomain.Repository
	Catalog       catalogdomain.Registry
	Policy        *policy.Engine
	Issuer        *credential.Issuer
	Locks         locking.Keyed
	Events        eventsdomain.Publisher
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	subs    subscriptiondomain.Repository
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
		log:     p.Log.Named("approval.service"),
		clock:   p.Clock,
		subs:    p.Subscriptions,
		apps:    p.Apps,
		catalog: p.Catalog,
		policy:  p.Policy,
		issuer:  p.Issuer,
		locks:   p.Locks,
		events:  p.Events,
		metrics: p.Metrics,
	}
}

func (s *Service) ListPending(ctx context.Context) ([]domain.Approval, error) {
	caller, _ := identitydomain.FromContext(ctx)
	out := []domain.Approval{}
	if !s.policy.CanApprove(caller) {
		return out, nil
	}

	pending, err := s.subs.ListPending(ctx, s.db)
	if err != nil {
		return nil, err
	}

	appNames := map[string]string{}
	for _, sub := range pending {
		plan, err := s.catalog.GetPlan(ctx, sub.PlanID)
		if errors.Is(err, catalogdomain.ErrPlanNotFound) {
			if !s.policy.IsAdmin(caller) {
				continue
			}
			plan = &catalogdomain.Plan{ID: sub.PlanID}
		} else if err != nil {
			return nil, err
		}
		if !s.policy.CanSeePending(caller, *plan) {
			continue
		}

		name, ok := appNames[sub.ApplicationID]
		if !ok {
			app, err := s.apps.FindByID(ctx, s.db, sub.ApplicationID)
			if err != nil && !errors.Is(err, appdomain.ErrApplicationNotFound) {
				return nil, err
			}
			if app != nil {
				name = app.Name
			}
			appNames[sub.ApplicationID] = name
		}

		apiRef := domain.Ref{ID: sub.APIID}
		if api, err := s.catalog.GetAPI(ctx, sub.APIID); err == nil {
			apiRef.Name = api.Name
		}

		out = append(out, domain.Approval{
			Application: domain.Ref{ID: sub.ApplicationID, Name: name},
			API:         apiRef,
			Plan:        domain.Ref{ID: plan.ID, Name: plan.Name},
			CreatedBy:   sub.CreatedBy.String(),
			CreatedAt:   sub.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) Approve(ctx context.Context, appID, apiID string) (*subscriptiondomain.View, error) {
	caller, ok := identitydomain.FromContext(ctx)
	if !ok {
		return nil, policy.ErrNotApprover
	}

	if _, err := s.apps.FindByID(ctx, s.db, appID); err != nil {
		if errors.Is(err, appdomain.ErrApplicationNotFound) {
			return nil, domain.ErrNoPendingSubscription
		}
		return nil, err
	}
	sub, err := s.findPending(ctx, s.db, appID, apiID)
	if err != nil {
		return nil, err
	}

	if sub.CreatedBy == caller.UserID {
		return nil, domain.ErrSelfApproval
	}
	ownership, err := s.apps.FindOwner(ctx, s.db, appID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if ownership != nil {
		return nil, domain.ErrSelfApproval
	}
	if !s.policy.CanApprove(caller) {
		return nil, policy.ErrNotApprover
	}
	plan, err := s.catalog.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CheckGroupRestriction(caller, *plan); err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, locking.SubscriptionKey(appID, apiID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	change := eventsdomain.Change{
		Type:          eventsdomain.EventSubscriptionApproved,
		ApplicationID: appID,
		APIID:         apiID,
		Payload: map[string]any{
			"planId":     sub.PlanID,
			"approvedBy": caller.UserID.String(),
		},
	}

	var (
		approved subscriptiondomain.Subscription
		issued   bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.findPending(ctx, tx, appID, apiID)
		if err != nil {
			return err
		}

		creds, ok, err := s.issuer.Issue(current.Auth, current.Credentials())
		if err != nil {
			return err
		}
		issued = ok

		now := s.clock.Now()
		won, err := s.subs.Approve(ctx, tx, current.ID, creds, now)
		if err != nil {
			return err
		}
		if !won {
			return domain.ErrNoPendingSubscription
		}

		if creds.ClientID != nil {
			if err := s.subs.InsertClientIndex(ctx, tx, &subscriptiondomain.ClientIndexEntry{
				ClientID:      *creds.ClientID,
				ApplicationID: appID,
				APIID:         apiID,
				Trusted:       current.Trusted,
				CreatedAt:     now,
			}); err != nil {
				return err
			}
		}

		current.Approved = true
		current.APIKey, current.ClientID, current.ClientSecret = creds.APIKey, creds.ClientID, creds.ClientSecret
		current.UpdatedAt = now
		approved = *current
		return s.events.Publish(ctx, tx, change)
	})
	if err != nil {
		return nil, err
	}
	s.events.Notify(ctx, change)

	s.metrics.RecordApproval(ctx, apiID)
	if issued {
		s.metrics.RecordCredentialIssued(ctx, string(approved.Auth))
	}
	s.log.Info("subscription approved",
		zap.String("application_id", appID),
		zap.String("api_id", apiID),
		zap.String("approver_id", caller.UserID.String()),
	)

	v := subscriptiondomain.ToView(approved, s.policy.IsAdmin(caller))
	return &v, nil
}

func (s *Service) findPending(ctx context.Context, conn *gorm.DB, appID, apiID string) (*subscriptiondomain.Subscription, error) {
	sub, err := s.subs.FindByPair(ctx, conn, appID, apiID)
	if errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		return nil, domain.ErrNoPendingSubscription
	}
	if err != nil {
		return nil, err
	}
	if sub.Approved {
		return nil, domain.ErrNoPendingSubscription
	}
	return sub, nil
}
