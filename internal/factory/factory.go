package factory

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"send2me-service/internal/bucketing"
	"send2me-service/internal/client"
	"send2me-service/internal/config"
	"send2me-service/internal/docstore"
	"send2me-service/internal/handler"
	"send2me-service/internal/hashing"
	"send2me-service/internal/identity"
	"send2me-service/internal/publicurl"
	"send2me-service/internal/ratelimit"
	redisrepo "send2me-service/internal/repository/redis"
	"send2me-service/internal/repository/scylla"
	"send2me-service/internal/service"
	"send2me-service/internal/tls"
	"send2me-service/internal/turnstile"
	"send2me-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.Manager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	clickhouseClient *client.ClickHouseClient

	// Managers
	docStore         *docstore.Store
	hasher           *hashing.Hasher
	bucketingManager *bucketing.Manager
	verifier         *turnstile.Verifier
	resolver         identity.Resolver
	urlResolver      *publicurl.Resolver

	// Repositories
	accountStore      *redisrepo.AccountStore
	verificationStore *redisrepo.VerificationStore
	messageRepository *scylla.MessageRepository

	// Services
	intakeService *service.IntakeService
	inboxService  *service.InboxService
	linkService   *service.LinkService
	abuseReporter *service.AbuseReporter

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		factory.tlsManager = tls.NewManager(&cfg.Server)
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := factory.initializeManagers(); err != nil {
		return nil, fmt.Errorf("failed to initialize managers: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled),
		util.Bool("clickhouse_enabled", cfg.Clickhouse.Enabled),
	)

	return factory, nil
}

// initializeClients initializes all external service clients with health checks
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	// Redis
	if redisClient, err := client.NewRedisClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else {
		f.redisClient = redisClient
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
		} else {
			util.Info("Redis client initialized and healthy")
		}
	}

	// ScyllaDB
	if scyllaClient, err := scylla.NewScyllaClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
	} else {
		f.scyllaClient = scyllaClient
		if err := f.scyllaClient.HealthCheck(); err != nil {
			initErrors = append(initErrors, fmt.Errorf("scylla health check: %w", err))
		} else {
			util.Info("ScyllaDB client initialized and healthy")
		}
	}

	// Kafka
	if f.config.Kafka.Enabled {
		if producer, err := client.NewKafkaProducer(f.config); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
	}

	// ClickHouse
	if f.config.Clickhouse.Enabled {
		if chClient, err := client.NewClickHouseClient(f.config); err != nil {
			util.Warn("ClickHouse initialization failed - proceeding without audit sink", util.ErrorField(err))
		} else {
			f.clickhouseClient = chClient
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

// initializeManagers wires the domain components on top of the clients.
func (f *Factory) initializeManagers() error {
	var err error

	f.hasher, err = hashing.NewHasher(f.config.Hashing.Salt)
	if err != nil {
		return err
	}

	f.verifier, err = turnstile.NewVerifier(
		f.config.Turnstile.SecretKey,
		f.config.Turnstile.Endpoint,
		f.config.Turnstile.Timeout,
	)
	if err != nil {
		return err
	}

	f.resolver, err = identity.NewJWTResolver(f.config.Auth.JWTSecret)
	if err != nil {
		return err
	}

	f.bucketingManager = bucketing.NewManager(0)
	f.urlResolver = publicurl.NewResolver(
		publicurl.Source{Name: "base_url", Value: f.config.PublicURL.BaseURL},
		publicurl.Source{Name: "site_url", Value: f.config.PublicURL.SiteURL},
	)

	if f.redisClient != nil {
		f.docStore = docstore.New(f.redisClient, f.config.Redis.TxRetries)
		f.accountStore = redisrepo.NewAccountStore(f.docStore)
		f.verificationStore = redisrepo.NewVerificationStore(f.docStore)
	}
	if f.scyllaClient != nil {
		f.messageRepository = scylla.NewMessageRepository(f.scyllaClient)
	}

	util.Info("Managers initialized successfully",
		util.Bool("hashing_initialized", f.hasher != nil),
		util.Bool("turnstile_initialized", f.verifier != nil),
		util.Bool("bucketing_initialized", f.bucketingManager != nil),
	)

	return nil
}

// ==============================
// Services
// ==============================

func (f *Factory) AbuseReporter() *service.AbuseReporter {
	if f.abuseReporter == nil {
		var producer service.EventProducer
		if f.kafkaProducer != nil {
			producer = f.kafkaProducer
		}
		var audit service.AuditSink
		if f.clickhouseClient != nil {
			audit = f.clickhouseClient
		}
		f.abuseReporter = service.NewAbuseReporter(producer, audit, f.bucketingManager, f.config.Kafka.AbuseTopic)
	}
	return f.abuseReporter
}

func (f *Factory) IntakeService() *service.IntakeService {
	if f.intakeService == nil {
		f.intakeService = service.NewIntakeService(
			f.verifier,
			f.accountStore,
			ratelimit.NewLimiter(f.docStore),
			f.resolver,
			f.messageRepository,
			f.hasher,
			f.AbuseReporter(),
			f.config.RateLimit,
		)
	}
	return f.intakeService
}

func (f *Factory) InboxService() *service.InboxService {
	if f.inboxService == nil {
		f.inboxService = service.NewInboxService(f.messageRepository)
	}
	return f.inboxService
}

func (f *Factory) LinkService() *service.LinkService {
	if f.linkService == nil {
		f.linkService = service.NewLinkService(f.accountStore, f.urlResolver, f.config.PublicURL.AllowLocal)
	}
	return f.linkService
}

// Router assembles the HTTP surface over the services.
func (f *Factory) Router() http.Handler {
	auth := handler.NewAuthenticator(f.resolver, f.accountStore)
	return handler.NewRouter(
		auth,
		handler.NewMessageHandler(f.IntakeService(), f.InboxService()),
		handler.NewAccountHandler(f.LinkService(), f.urlResolver),
		handler.NewTurnstileHandler(f.verifier, f.verificationStore, f.hasher),
		f.healthHandler(),
	)
}

// ==============================
// Health Checks
// ==============================

func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	} else {
		healthErrors["redis"] = fmt.Errorf("redis client not initialized")
	}

	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	} else {
		healthErrors["scylla"] = fmt.Errorf("scylla client not initialized")
	}

	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}

	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	// Optional sinks never fail the service.
	delete(healthErrors, "kafka")
	delete(healthErrors, "clickhouse")
	return len(healthErrors) == 0
}

func (f *Factory) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "healthy"
		code := http.StatusOK
		if !f.IsHealthy(ctx) {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":%q,"service":"send2me-service"}`, status)
	}
}

// ==============================
// Lifecycle
// ==============================

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.Manager {
	return f.tlsManager
}
