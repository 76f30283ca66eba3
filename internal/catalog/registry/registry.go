package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/catalog/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/config"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Registry serves the API/plan catalog from apis.yml and swaps in a new
// snapshot whenever the file changes. Invalid edits are logged and ignored.
type Registry struct {
	log     *zap.Logger
	v       *viper.Viper
	current atomic.Pointer[snapshot]
}

type snapshot struct {
	catalog domain.Catalog
	apis    map[string]domain.API
	plans   map[string]domain.Plan
}

// New loads the catalog from cfg.CatalogPath and starts watching it.
func New(cfg config.Config, log *zap.Logger) (domain.Registry, error) {
	r, err := load(cfg.CatalogPath, log)
	if err != nil {
		return nil, err
	}
	if r.v.ConfigFileUsed() != "" {
		r.v.OnConfigChange(func(e fsnotify.Event) {
			if err := r.Reload(); err != nil {
				r.log.Warn("catalog reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			r.log.Info("catalog reloaded", zap.String("file", e.Name))
		})
		r.v.WatchConfig()
	}
	return r, nil
}

// NewStatic serves a fixed catalog.
func NewStatic(c domain.Catalog) (*Registry, error) {
	snap, err := newSnapshot(c)
	if err != nil {
		return nil, err
	}
	r := &Registry{log: zap.NewNop()}
	r.current.Store(snap)
	return r, nil
}

func load(path string, log *zap.Logger) (*Registry, error) {
	v := viper.New()
	v.SetConfigName("apis")
	v.SetConfigType("yml")
	if strings.TrimSpace(path) != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("/etc/wicked")
	v.AddConfigPath(".")

	r := &Registry{log: log.Named("catalog.registry"), v: v}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		r.log.Warn("apis.yml not found, serving built-in catalog")
		snap, err := newSnapshot(DefaultCatalog())
		if err != nil {
			return nil, err
		}
		r.current.Store(snap)
		return r, nil
	}

	if err := r.Reload(); err != nil {
		return nil, err
	}
	r.log.Info("catalog loaded", zap.String("file", v.ConfigFileUsed()))
	return r, nil
}

// Reload re-reads the backing file and swaps the snapshot when it is valid.
func (r *Registry) Reload() error {
	if r.v == nil {
		return nil
	}
	if err := r.v.ReadInConfig(); err != nil {
		return err
	}
	var c domain.Catalog
	if err := r.v.Unmarshal(&c); err != nil {
		return err
	}
	snap, err := newSnapshot(c)
	if err != nil {
		return err
	}
	r.current.Store(snap)
	return nil
}

func (r *Registry) GetAPI(_ context.Context, id string) (*domain.API, error) {
	api, ok := r.current.Load().apis[id]
	if !ok {
		return nil, domain.ErrAPINotFound
	}
	return &api, nil
}

func (r *Registry) GetPlan(_ context.Context, id string) (*domain.Plan, error) {
	plan, ok := r.current.Load().plans[id]
	if !ok {
		return nil, domain.ErrPlanNotFound
	}
	return &plan, nil
}

func (r *Registry) ListAPIs(context.Context) []domain.API {
	return append([]domain.API(nil), r.current.Load().catalog.APIs...)
}

func (r *Registry) ListPlans(context.Context) []domain.Plan {
	return append([]domain.Plan(nil), r.current.Load().catalog.Plans...)
}

func newSnapshot(c domain.Catalog) (*snapshot, error) {
	if len(c.APIs) == 0 {
		return nil, errors.New("catalog: apis cannot be empty")
	}
	snap := &snapshot{
		catalog: c,
		apis:    make(map[string]domain.API, len(c.APIs)),
		plans:   make(map[string]domain.Plan, len(c.Plans)),
	}
	for _, p := range c.Plans {
		if p.ID == "" {
			return nil, errors.New("catalog: plan without id")
		}
		if !p.AuthType.Valid() {
			return nil, fmt.Errorf("catalog: plan %s has invalid authType %q", p.ID, p.AuthType)
		}
		snap.plans[p.ID] = p
	}
	for _, a := range c.APIs {
		if a.ID == "" {
			return nil, errors.New("catalog: api without id")
		}
		for _, planID := range a.Plans {
			if _, ok := snap.plans[planID]; !ok {
				return nil, fmt.Errorf("catalog: api %s references unknown plan %s", a.ID, planID)
			}
		}
		snap.apis[a.ID] = a
	}
	return snap, nil
}

var _ domain.Registry = (*Registry)(nil)
