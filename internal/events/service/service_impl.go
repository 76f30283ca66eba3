package service

import (
	"context"
	"strings"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/clock"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/events/domain"
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultEventLimit = 100

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	Notifier domain.Notifier
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	notifier domain.Notifier
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("events.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		notifier: p.Notifier,
	}
}

func (s *Service) Publish(ctx context.Context, tx *gorm.DB, changes ...domain.Change) error {
	listeners, err := s.repo.ListenerIDs(ctx, tx)
	if err != nil {
		return err
	}
	if len(listeners) == 0 || len(changes) == 0 {
		return nil
	}

	now := s.clock.Now()
	rows := make([]domain.Event, 0, len(listeners)*len(changes))
	for _, change := range changes {
		id := ulid.Make().String()
		for _, listenerID := range listeners {
			rows = append(rows, domain.Event{
				ListenerID:    listenerID,
				ID:            id,
				Type:          change.Type,
				ApplicationID: change.ApplicationID,
				APIID:         change.APIID,
				Payload:       datatypes.JSONMap(change.Payload),
				CreatedAt:     now,
			})
		}
	}
	return s.repo.InsertEvents(ctx, tx, rows)
}

func (s *Service) Notify(ctx context.Context, changes ...domain.Change) {
	for _, change := range changes {
		s.notifier.Notify(ctx, change)
	}
}

func (s *Service) UpsertListener(ctx context.Context, id, url string) (*domain.Listener, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	id, url = strings.TrimSpace(id), strings.TrimSpace(url)
	if id == "" || url == "" {
		return nil, domain.ErrInvalidListener
	}

	now := s.clock.Now()
	listener := domain.Listener{ID: id, URL: url, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.UpsertListener(ctx, s.db, &listener); err != nil {
		return nil, err
	}
	s.log.Info("webhook listener registered", zap.String("listener_id", id))
	return &listener, nil
}

func (s *Service) DeleteListener(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeleteEvents(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.DeleteListener(ctx, tx, id)
	})
}

func (s *Service) ListListeners(ctx context.Context) ([]domain.Listener, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListListeners(ctx, s.db)
}

func (s *Service) ListEvents(ctx context.Context, listenerID string, limit int) ([]domain.Event, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = defaultEventLimit
	}
	events, err := s.repo.ListEvents(ctx, s.db, listenerID, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}

func (s *Service) Ack(ctx context.Context, listenerID, eventID string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.DeleteEvent(ctx, s.db, listenerID, eventID)
}

func (s *Service) Flush(ctx context.Context, listenerID string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.DeleteEvents(ctx, s.db, listenerID)
}

func requireAdmin(ctx context.Context) error {
	caller, ok := identitydomain.FromContext(ctx)
	if !ok || !caller.Admin {
		return domain.ErrAdminOnly
	}
	return nil
}
