package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultEnvFile         = ".env"
	defaultPort            = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultEnvironment     = "local"
	defaultStorageBackend  = "memory"
	defaultSlotCollection  = "cartSlots"
	defaultBroadcast       = "local"
	defaultExchange        = "kahramana.cart"
	defaultLocale          = "ar"
	defaultAddDebounce     = 150 * time.Millisecond
	defaultLocateTimeout   = 10 * time.Second
)

// Storage backends accepted by KAHRAMANA_STORAGE_BACKEND.
const (
	StorageMemory    = "memory"
	StorageFirestore = "firestore"
	StoragePostgres  = "postgres"
	StorageMySQL     = "mysql"
)

// Broadcast backends accepted by KAHRAMANA_BROADCAST_BACKEND.
const (
	BroadcastLocal  = "local"
	BroadcastPubSub = "pubsub"
	BroadcastAMQP   = "amqp"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	Storage   StorageConfig
	Firestore FirestoreConfig
	Broadcast BroadcastConfig
	Site      SiteConfig
	Cart      CartConfig
	CORS      CORSConfig
	Trace     TraceConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	Environment     string
	Dev             bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// SessionConfig configures the signed session cookie.
type SessionConfig struct {
	SigningKey string
	Secure     bool
}

// StorageConfig selects the cart slot backend.
type StorageConfig struct {
	Backend string
	DSN     string
	Migrate bool
}

// FirestoreConfig stores database parameters for the firestore backend.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
	Collection   string
}

// BroadcastConfig selects how cart changes reach other instances.
type BroadcastConfig struct {
	Backend            string
	PubSubProjectID    string
	PubSubTopic        string
	PubSubSubscription string
	AMQPURL            string
	AMQPExchange       string
}

// SiteConfig points at site content and presentation assets.
type SiteConfig struct {
	DataFile      string
	TemplatesDir  string
	PublicDir     string
	ContentDir    string
	LocalesDir    string
	DefaultLocale string
	Locales       []string
}

// CartConfig tunes cart behaviour.
type CartConfig struct {
	AddDebounce   time.Duration
	LocateTimeout time.Duration
}

// CORSConfig lists origins allowed to call the JSON cart API.
type CORSConfig struct {
	AllowedOrigins []string
}

// TraceConfig configures trace correlation in logs.
type TraceConfig struct {
	ProjectID string
}

// IsProduction reports whether the service runs in the prod environment.
func (c Config) IsProduction() bool {
	return c.Server.Environment == "prod" || c.Server.Environment == "production"
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	// Cloud Run injects PORT; the prefixed key wins when both are set.
	port := stringWithDefault(lookup, "PORT", defaultPort)

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "KAHRAMANA_PORT", port),
			Environment:     strings.ToLower(stringWithDefault(lookup, "KAHRAMANA_ENV", defaultEnvironment)),
			Dev:             boolWithDefault(lookup, "KAHRAMANA_DEV", false),
			ReadTimeout:     durationWithDefault(lookup, "KAHRAMANA_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "KAHRAMANA_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "KAHRAMANA_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "KAHRAMANA_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Session: SessionConfig{
			SigningKey: stringWithDefault(lookup, "KAHRAMANA_SESSION_SIGNING_KEY", ""),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(stringWithDefault(lookup, "KAHRAMANA_STORAGE_BACKEND", defaultStorageBackend)),
			DSN:     stringWithDefault(lookup, "KAHRAMANA_STORAGE_DSN", ""),
			Migrate: boolWithDefault(lookup, "KAHRAMANA_STORAGE_MIGRATE", true),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "KAHRAMANA_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "KAHRAMANA_FIRESTORE_EMULATOR_HOST", ""),
			Collection:   stringWithDefault(lookup, "KAHRAMANA_FIRESTORE_COLLECTION", defaultSlotCollection),
		},
		Broadcast: BroadcastConfig{
			Backend:            strings.ToLower(stringWithDefault(lookup, "KAHRAMANA_BROADCAST_BACKEND", defaultBroadcast)),
			PubSubProjectID:    stringWithDefault(lookup, "KAHRAMANA_PUBSUB_PROJECT_ID", ""),
			PubSubTopic:        stringWithDefault(lookup, "KAHRAMANA_PUBSUB_TOPIC", ""),
			PubSubSubscription: stringWithDefault(lookup, "KAHRAMANA_PUBSUB_SUBSCRIPTION", ""),
			AMQPURL:            stringWithDefault(lookup, "KAHRAMANA_AMQP_URL", ""),
			AMQPExchange:       stringWithDefault(lookup, "KAHRAMANA_AMQP_EXCHANGE", defaultExchange),
		},
		Site: SiteConfig{
			DataFile:      stringWithDefault(lookup, "KAHRAMANA_SITE_DATA", ""),
			TemplatesDir:  stringWithDefault(lookup, "KAHRAMANA_TEMPLATES_DIR", "templates"),
			PublicDir:     stringWithDefault(lookup, "KAHRAMANA_PUBLIC_DIR", "public"),
			ContentDir:    stringWithDefault(lookup, "KAHRAMANA_CONTENT_DIR", "content"),
			LocalesDir:    stringWithDefault(lookup, "KAHRAMANA_LOCALES_DIR", "locales"),
			DefaultLocale: strings.ToLower(stringWithDefault(lookup, "KAHRAMANA_DEFAULT_LOCALE", defaultLocale)),
			Locales:       csvWithDefault(lookup, "KAHRAMANA_LOCALES"),
		},
		Cart: CartConfig{
			AddDebounce:   durationWithDefault(lookup, "KAHRAMANA_CART_ADD_DEBOUNCE", defaultAddDebounce),
			LocateTimeout: durationWithDefault(lookup, "KAHRAMANA_CART_LOCATE_TIMEOUT", defaultLocateTimeout),
		},
		CORS: CORSConfig{
			AllowedOrigins: csvWithDefault(lookup, "KAHRAMANA_CORS_ALLOWED_ORIGINS"),
		},
		Trace: TraceConfig{
			ProjectID: stringWithDefault(lookup, "KAHRAMANA_TRACE_PROJECT_ID", ""),
		},
	}

	if len(cfg.Site.Locales) == 0 {
		cfg.Site.Locales = []string{"ar", "en"}
	}
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Trace.ProjectID
	}
	if cfg.Broadcast.PubSubProjectID == "" {
		cfg.Broadcast.PubSubProjectID = cfg.Firestore.ProjectID
	}
	cfg.Session.Secure = boolWithDefault(lookup, "KAHRAMANA_SESSION_SECURE", cfg.IsProduction())

	secretFields := []*string{
		&cfg.Session.SigningKey,
		&cfg.Storage.DSN,
		&cfg.Broadcast.AMQPURL,
	}
	for _, field := range secretFields {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return strings.TrimSpace(secret), nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.IsProduction() && len(cfg.Session.SigningKey) < 32 {
		missing = append(missing, "Session.SigningKey")
	}

	switch cfg.Storage.Backend {
	case StorageMemory:
	case StorageFirestore:
		if cfg.Firestore.ProjectID == "" && cfg.Firestore.EmulatorHost == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
		if cfg.Firestore.Collection == "" {
			missing = append(missing, "Firestore.Collection")
		}
	case StoragePostgres, StorageMySQL:
		if cfg.Storage.DSN == "" {
			missing = append(missing, "Storage.DSN")
		}
	default:
		missing = append(missing, "Storage.Backend")
	}

	switch cfg.Broadcast.Backend {
	case BroadcastLocal:
	case BroadcastPubSub:
		if cfg.Broadcast.PubSubProjectID == "" {
			missing = append(missing, "Broadcast.PubSubProjectID")
		}
		if cfg.Broadcast.PubSubTopic == "" {
			missing = append(missing, "Broadcast.PubSubTopic")
		}
		if cfg.Broadcast.PubSubSubscription == "" {
			missing = append(missing, "Broadcast.PubSubSubscription")
		}
	case BroadcastAMQP:
		if cfg.Broadcast.AMQPURL == "" {
			missing = append(missing, "Broadcast.AMQPURL")
		}
	default:
		missing = append(missing, "Broadcast.Backend")
	}

	if cfg.Cart.AddDebounce < 0 {
		missing = append(missing, "Cart.AddDebounce")
	}
	if cfg.Cart.LocateTimeout <= 0 {
		missing = append(missing, "Cart.LocateTimeout")
	}
	if !containsString(cfg.Site.Locales, cfg.Site.DefaultLocale) {
		missing = append(missing, "Site.DefaultLocale")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, strings.ToLower(trimmed))
		}
	}
	return out
}
