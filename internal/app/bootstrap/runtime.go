// Package bootstrap centralizes dependency wiring shared by the api and
// flow-worker binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/swandust/clinic-concierge/internal/availability"
	"github.com/swandust/clinic-concierge/internal/booking"
	appconfig "github.com/swandust/clinic-concierge/internal/config"
	"github.com/swandust/clinic-concierge/internal/flow"
	"github.com/swandust/clinic-concierge/internal/gateway"
	"github.com/swandust/clinic-concierge/internal/observability/metrics"
	"github.com/swandust/clinic-concierge/internal/reschedule"
	"github.com/swandust/clinic-concierge/internal/session"
	"github.com/swandust/clinic-concierge/internal/timeparse"
	"github.com/swandust/clinic-concierge/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildSessionStore prefers Redis-backed sessions so conversations survive
// restarts; without Redis it falls back to process memory.
func BuildSessionStore(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) session.Store {
	if redisClient != nil {
		return session.NewRedisStore(redisClient, cfg.SessionTTL)
	}
	if logger != nil {
		logger.Warn("sessions held in process memory, a restart loses in-flight conversations")
	}
	return session.NewMemoryStore()
}

// BuildHoursPolicy parses the configured operating window.
func BuildHoursPolicy(cfg *appconfig.Config) (availability.StaticHours, error) {
	open, err := timeparse.ParseTime(cfg.ClinicOpenTime)
	if err != nil {
		return availability.StaticHours{}, fmt.Errorf("bootstrap: clinic open time: %w", err)
	}
	closeAt, err := timeparse.ParseTime(cfg.ClinicCloseTime)
	if err != nil {
		return availability.StaticHours{}, fmt.Errorf("bootstrap: clinic close time: %w", err)
	}
	return availability.StaticHours{Hours: availability.Hours{
		Open:            open,
		Close:           closeAt,
		GranularityMins: cfg.SlotGranularityMins,
	}}, nil
}

// BuildAuditLog opens the audit database when configured. A nil return is
// valid: audit writes become no-ops.
func BuildAuditLog(cfg *appconfig.Config, logger *logging.Logger) *booking.AuditLog {
	url := strings.TrimSpace(cfg.AuditLogDBURL)
	if url == "" {
		url = strings.TrimSpace(cfg.DatabaseURL)
	}
	if url == "" {
		return nil
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		if logger != nil {
			logger.Warn("audit log disabled", "error", err)
		}
		return nil
	}
	return booking.NewAuditLog(db)
}

// EngineDeps carries everything BuildEngine needs beyond config.
type EngineDeps struct {
	Pool     *pgxpool.Pool
	Sessions session.Store
	Metrics  *metrics.FlowMetrics
	Logger   *logging.Logger
}

// BuildEngine assembles the booking flow engine over the shared pool.
func BuildEngine(cfg *appconfig.Config, deps EngineDeps) (*flow.Engine, error) {
	hours, err := BuildHoursPolicy(cfg)
	if err != nil {
		return nil, err
	}

	repo := booking.NewRepository(deps.Pool)
	resolver := availability.NewResolver(repo, hours)
	directory := availability.NewPGDirectory(deps.Pool)
	reschedules := reschedule.NewStore(deps.Pool)
	messenger := gateway.NewHTTPMessenger(cfg.GatewayBaseURL, cfg.GatewayAPIKey, deps.Logger)
	profiles := gateway.StaticProfileStore{Context: gateway.ServiceContext{
		ClinicID:        cfg.DefaultClinicID,
		ServiceID:       cfg.DefaultServiceID,
		BookingType:     cfg.DefaultBookingType,
		DurationMinutes: cfg.DefaultDurationMinutes,
	}}

	engine := flow.NewEngine(flow.Deps{
		Sessions:    deps.Sessions,
		Bookings:    repo,
		Resolver:    resolver,
		Reschedules: reschedules,
		Directory:   directory,
		Messenger:   messenger,
		Renderer:    gateway.TemplateRenderer{},
		Profiles:    profiles,
		Audit:       auditOrNil(BuildAuditLog(cfg, deps.Logger)),
		Metrics:     deps.Metrics,
		Logger:      deps.Logger,
	}, flow.Options{
		NearestSearchMinutes:   cfg.NearestSearchMinutes,
		DefaultDurationMinutes: cfg.DefaultDurationMinutes,
	})
	return engine, nil
}

// auditOrNil keeps a typed-nil *AuditLog from masquerading as a non-nil
// interface value.
func auditOrNil(log *booking.AuditLog) flow.AuditLogger {
	if log == nil {
		return nil
	}
	return log
}
