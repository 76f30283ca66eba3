package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes portal-level instruments.
type Metrics struct {
	subscriptionsCreated metric.Int64Counter
	subscriptionsDeleted metric.Int64Counter
	approvals            metric.Int64Counter
	credentialsIssued    metric.Int64Counter
	tokensIssued         metric.Int64Counter
	loginAttempts        metric.Int64Counter
	rateLimitDenied      metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "portal-api"
	}
	meter := provider.Meter(name)

	counters := map[string]*metric.Int64Counter{}
	m := &Metrics{}
	counters["portal_subscriptions_created_total"] = &m.subscriptionsCreated
	counters["portal_subscriptions_deleted_total"] = &m.subscriptionsDeleted
	counters["portal_approvals_total"] = &m.approvals
	counters["portal_credentials_issued_total"] = &m.credentialsIssued
	counters["portal_oauth2_tokens_issued_total"] = &m.tokensIssued
	counters["portal_oauth2_login_attempts_total"] = &m.loginAttempts
	counters["portal_rate_limit_denied_total"] = &m.rateLimitDenied

	for instrument, target := range counters {
		counter, err := meter.Int64Counter(instrument)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", instrument, err)
		}
		*target = counter
	}
	return m, nil
}

// RecordSubscriptionCreated counts new subscriptions and whether they await approval.
func (m *Metrics) RecordSubscriptionCreated(ctx context.Context, apiID, authType string, approved bool) {
	if m == nil {
		return
	}
	result := "approved"
	if !approved {
		result = "pending"
	}
	attrs := FilterAttributes(
		attribute.String("api_id", strings.TrimSpace(apiID)),
		attribute.String("auth_type", strings.TrimSpace(authType)),
		attribute.String("result", result),
	)
	m.subscriptionsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordSubscriptionDeleted(ctx context.Context, apiID string) {
	if m == nil {
		return
	}
	m.subscriptionsDeleted.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("api_id", strings.TrimSpace(apiID)))...))
}

func (m *Metrics) RecordApproval(ctx context.Context, apiID string) {
	if m == nil {
		return
	}
	m.approvals.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("api_id", strings.TrimSpace(apiID)))...))
}

func (m *Metrics) RecordCredentialIssued(ctx context.Context, authType string) {
	if m == nil {
		return
	}
	m.credentialsIssued.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("auth_type", strings.TrimSpace(authType)))...))
}

func (m *Metrics) RecordTokenIssued(ctx context.Context, apiID, grantType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("api_id", strings.TrimSpace(apiID)),
		attribute.String("grant_type", strings.TrimSpace(grantType)),
	)
	m.tokensIssued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLoginAttempt counts login form submissions by result ("success", "failure").
func (m *Metrics) RecordLoginAttempt(ctx context.Context, apiID, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("api_id", strings.TrimSpace(apiID)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.loginAttempts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"api_id":      {},
	"auth_type":   {},
	"grant_type":  {},
	"result":      {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
