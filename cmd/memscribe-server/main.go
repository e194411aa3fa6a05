// Command memscribe-server is the process entrypoint: it loads
// configuration, wires every component (Store, Embedder Gateway, LLM
// Judge, Search Engine, Write Buffer, Memory Core, Contact Sync Engine,
// Session & Auth, Protocol Dispatcher), starts the background worker
// and backfill loops, and serves the transport(s) appropriate to the
// configured auth mode until it receives SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/memscribe/memscribe/pkg/buffer"
	"github.com/memscribe/memscribe/pkg/contacts"
	"github.com/memscribe/memscribe/pkg/contacts/fake"
	"github.com/memscribe/memscribe/pkg/contacts/filecard"
	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/embedder"
	embedderopenai "github.com/memscribe/memscribe/pkg/embedder/openai"
	llmopenai "github.com/memscribe/memscribe/pkg/llm/openai"
	"github.com/memscribe/memscribe/pkg/memory"
	"github.com/memscribe/memscribe/pkg/rpc"
	"github.com/memscribe/memscribe/pkg/search"
	"github.com/memscribe/memscribe/pkg/session"
	"github.com/memscribe/memscribe/pkg/store"
	"github.com/memscribe/memscribe/pkg/store/mysql"
	"github.com/memscribe/memscribe/pkg/store/postgres"
	"github.com/memscribe/memscribe/pkg/store/sqlite"
)

func main() {
	var cfg *core.Config
	var err error
	if envPath, ok := core.FindEnvFile(); ok {
		cfg, err = core.LoadConfigFromEnvFile(envPath)
	} else {
		cfg, err = core.LoadConfigFromEnv()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: building logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("fatal", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *core.Config, log *zap.Logger) error {
	st, err := openStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close() //nolint:errcheck

	ids, err := core.NewIDGenerator(1)
	if err != nil {
		return fmt.Errorf("id generator: %w", err)
	}

	var gateway *embedder.Gateway
	if cfg.Embedder.APIKey != "" {
		embedClient, err := embedderopenai.NewClient(&embedderopenai.Config{
			APIKey:     cfg.Embedder.APIKey,
			Model:      cfg.Embedder.Model,
			BaseURL:    cfg.Embedder.BaseURL,
			Dimensions: cfg.Embedder.Dimension,
		})
		if err != nil {
			return fmt.Errorf("embedder client: %w", err)
		}
		gateway = embedder.NewGateway(embedClient, st)
	} else {
		log.Warn("embedder.api_key not set; running with vector search and embedding generation disabled")
	}

	engine := search.NewEngine(st, gateway)
	writeBuffer := buffer.NewBuffer(st)
	svc := memory.NewService(st, gateway, engine, writeBuffer, ids)

	failures := make(chan buffer.FailureEvent, 64)
	go logFailures(ctx, failures, log)

	worker := buffer.NewWorker(st, gateway, failures, log)
	worker.MaxAttempts = cfg.Buffer.MaxAttempts
	go worker.Run(ctx)

	var backfiller *buffer.Backfiller
	if gateway != nil {
		backfiller = buffer.NewBackfiller(st, gateway, failures, log)
		backfiller.Interval = cfg.Monitor.Interval
	}

	authn, err := newAuthenticator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("session authenticator: %w", err)
	}

	dispatcher := rpc.NewDispatcher(svc, backfiller, log)

	if cfg.Monitor.Enabled && gateway != nil {
		go backfiller.Run(ctx, dispatcher.KnownUsers)
	}

	if syncer := newContactSyncer(st, cfg); syncer != nil {
		go runContactSyncLoop(ctx, syncer, dispatcher.KnownUsers, log)
	}

	if cfg.Auth.Disabled {
		log.Info("auth disabled; serving stdio transport only", zap.String("trust_model", "local_os_user"))
		return serveStdio(ctx, dispatcher, log)
	}
	return serveHTTP(ctx, dispatcher, authn, cfg, log)
}

// openStore selects and constructs the configured Store backend.
// database.url is a DSN/path: a bare filesystem path (or ":memory:")
// for sqlite, or a postgres://.../mysql://... URL for the networked
// backends.
func openStore(cfg core.DatabaseConfig) (store.Store, error) {
	switch cfg.Provider {
	case "", "sqlite":
		path := cfg.URL
		if path == "" {
			path = "memscribe.db"
		}
		return sqlite.NewClient(&sqlite.Config{DBPath: path, NodeID: 1})

	case "postgres":
		pgCfg, err := parsePostgresURL(cfg.URL)
		if err != nil {
			return nil, err
		}
		pgCfg.NodeID = 1
		return postgres.NewClient(pgCfg)

	case "mysql":
		myCfg, err := parseMySQLURL(cfg.URL)
		if err != nil {
			return nil, err
		}
		myCfg.NodeID = 1
		return mysql.NewClient(myCfg)

	default:
		return nil, fmt.Errorf("unknown database.provider %q", cfg.Provider)
	}
}

func parsePostgresURL(raw string) (*postgres.Config, error) {
	u, err := parseDBURL(raw, "postgres")
	if err != nil {
		return nil, err
	}
	return &postgres.Config{
		Host:     u.host,
		Port:     u.port,
		User:     u.user,
		Password: u.pass,
		DBName:   u.db,
		SSLMode:  u.query.Get("sslmode"),
	}, nil
}

func parseMySQLURL(raw string) (*mysql.Config, error) {
	u, err := parseDBURL(raw, "mysql")
	if err != nil {
		return nil, err
	}
	return &mysql.Config{
		Host:     u.host,
		Port:     u.port,
		User:     u.user,
		Password: u.pass,
		DBName:   u.db,
	}, nil
}

// newAuthenticator builds the Session & Auth component. When
// auth.disabled is set it returns nil — the caller then serves only
// the stdio transport, which needs no bearer authentication at all.
func newAuthenticator(ctx context.Context, cfg *core.Config) (*session.Authenticator, error) {
	if cfg.Auth.Disabled {
		return nil, nil
	}

	st, err := newSessionStore()
	if err != nil {
		return nil, err
	}

	issuerURL := cfg.Auth.ProviderKey
	clientID := os.Getenv("AUTH_OIDC_CLIENT_ID")
	verifier, err := session.NewOIDCVerifier(ctx, issuerURL, clientID)
	if err != nil {
		return nil, err
	}

	limiter := session.NewRateLimiter(float64(cfg.RateLimit.RequestsPerMinute)/60.0, cfg.RateLimit.RequestsPerMinute)
	return session.NewAuthenticator(st, verifier, limiter), nil
}

// newSessionStore picks RedisStore when REDIS_URL is set (multi-process
// deployments sharing one cache), MemStore otherwise.
func newSessionStore() (session.SessionStore, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return session.NewMemStore(), nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	return session.NewRedisStore(redis.NewClient(opts)), nil
}

// newContactSyncer wires the Contact Sync Engine (C9's fake/filecard
// adapters) only when an LLM judge is configured (llm.api_key); the
// contact file path alone does not enable it. It has no entry in the
// JSON-RPC tool surface, so it is
// only ever exercised by this background loop, never by a dispatched
// tool call.
func newContactSyncer(st store.Store, cfg *core.Config) *contacts.Syncer {
	if cfg.LLM.APIKey == "" {
		return nil
	}
	judge, err := llmopenai.NewClient(&llmopenai.Config{APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model})
	if err != nil {
		return nil
	}

	var provider contacts.ContactProvider
	if path := os.Getenv("CONTACTS_FILECARD_PATH"); path != "" {
		provider = filecard.New(path)
	} else {
		provider = fake.New()
	}
	return contacts.NewSyncer(st, provider, judge)
}

func runContactSyncLoop(ctx context.Context, syncer *contacts.Syncer, knownUsers func() []string, log *zap.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, userID := range knownUsers() {
				if _, err := syncer.Sync(ctx, userID, contacts.Options{}); err != nil {
					log.Warn("contact sync failed", zap.String("user_id", userID), zap.Error(err))
				}
			}
		}
	}
}

func serveStdio(ctx context.Context, d *rpc.Dispatcher, log *zap.Logger) error {
	userID := os.Getenv("MEMSCRIBE_LOCAL_USER")
	if userID == "" {
		userID = "local"
	}
	srv := rpc.NewStdioServer(d, userID, log)
	return srv.Serve(ctx, os.Stdin, os.Stdout)
}

func serveHTTP(ctx context.Context, d *rpc.Dispatcher, authn *session.Authenticator, cfg *core.Config, log *zap.Logger) error {
	router := rpc.NewHTTPRouter(rpc.HTTPServerConfig{
		Dispatcher:         d,
		Authenticator:      authn,
		CORSAllowedOrigins: cfg.CORSOrigins,
		Log:                log,
	})

	addr := os.Getenv("MEMSCRIBE_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving HTTP", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func logFailures(ctx context.Context, failures <-chan buffer.FailureEvent, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-failures:
			log.Warn("buffer failure",
				zap.String("kind", string(f.Kind)),
				zap.String("write_id", f.WriteID),
				zap.String("memory_id", f.MemoryID),
				zap.Error(f.Err),
			)
		}
	}
}

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// dbURL is the minimal subset of net/url's parse result main.go needs
// to build a per-backend store Config from a single database.url value.
type dbURL struct {
	host  string
	port  int
	user  string
	pass  string
	db    string
	query interface{ Get(string) string }
}

func parseDBURL(raw, wantScheme string) (*dbURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing database.url: %w", err)
	}
	if u.Scheme != wantScheme && !(wantScheme == "postgres" && u.Scheme == "postgresql") {
		return nil, fmt.Errorf("database.url scheme %q does not match provider %q", u.Scheme, wantScheme)
	}

	host := u.Hostname()
	port, _ := strconv.Atoi(u.Port())
	if port == 0 {
		if wantScheme == "postgres" {
			port = 5432
		} else {
			port = 3306
		}
	}

	user := ""
	pass := ""
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}

	dbName := ""
	if len(u.Path) > 1 {
		dbName = u.Path[1:]
	}

	return &dbURL{host: host, port: port, user: user, pass: pass, db: dbName, query: u.Query()}, nil
}
