// Package config provides application configuration loaded from environment
// variables with defaults and validation. It covers the HTTP server, logging,
// the reminder store and dispatcher, and the credentials of the external
// collaborators (OpenAI, Google Calendar, Twilio).
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Undelivered policies accepted by UNDELIVERED_POLICY.
const (
	PolicyDrop    = "drop"
	PolicyRequeue = "requeue"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// StoreConfig selects and locates the durable snapshot.
type StoreConfig struct {
	Driver string // json|sqlite
	Path   string // JSON snapshot file
}

// DispatchConfig tunes the reminder sweeper and the assistant's defaults.
type DispatchConfig struct {
	SweepInterval      time.Duration
	UndeliveredPolicy  string        // drop|requeue
	LocalReminderDelay time.Duration // dueAt when the user gave no time
	EventReminderLead  time.Duration // lead before a calendar event starts
}

// OpenAIConfig holds the LLM / speech credentials.
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	TTSModel string
	TTSVoice string
}

// GoogleConfig holds the OAuth client and refresh token used for Calendar.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	RefreshToken string
	CalendarID   string
}

// Enabled reports whether enough credentials are present to call Calendar.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RefreshToken != ""
}

// TwilioConfig holds the Twilio account and WhatsApp sender.
type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	WhatsAppFrom      string
	ValidateSignature bool
}

// Enabled reports whether outbound Twilio REST calls can be made.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.WhatsAppFrom != ""
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath        string // SQLite path (conversations, idempotency, sqlite store)
	HistoryWindow int    // turns sent to the model
	PublicDir     string // static web client
	TTSDir        string // synthesized voice replies
	PublicBaseURL string // absolute base used in TwiML <Play> URLs

	Store    StoreConfig
	Dispatch DispatchConfig

	// Collaborators
	OpenAI OpenAIConfig
	Google GoogleConfig
	Twilio TwilioConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "3000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:        getenv("DB_PATH", "app.db"),
		HistoryWindow: getint("HISTORY_WINDOW", 12),
		PublicDir:     getenv("PUBLIC_DIR", "public"),
		TTSDir:        getenv("TTS_DIR", "tts"),
		PublicBaseURL: strings.TrimRight(getenv("PUBLIC_BASE_URL", ""), "/"),

		Store: StoreConfig{
			Driver: strings.ToLower(getenv("STORE_DRIVER", StoreJSON)),
			Path:   getenv("STORE_PATH", "db.json"),
		},
		Dispatch: DispatchConfig{
			SweepInterval:      getdur("SWEEP_INTERVAL", 5*time.Second),
			UndeliveredPolicy:  strings.ToLower(getenv("UNDELIVERED_POLICY", PolicyDrop)),
			LocalReminderDelay: getdur("LOCAL_REMINDER_DELAY", 30*time.Minute),
			EventReminderLead:  getdur("EVENT_REMINDER_LEAD", 10*time.Minute),
		},

		OpenAI: OpenAIConfig{
			APIKey:   getenv("OPENAI_API_KEY", ""),
			BaseURL:  getenv("OPENAI_BASE_URL", ""),
			Model:    getenv("OPENAI_MODEL", "gpt-4o-mini"),
			TTSModel: getenv("OPENAI_TTS_MODEL", "gpt-4o-mini-tts"),
			TTSVoice: getenv("OPENAI_TTS_VOICE", "alloy"),
		},
		Google: GoogleConfig{
			ClientID:     getenv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getenv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:  getenv("GOOGLE_REDIRECT_URI", ""),
			RefreshToken: getenv("GOOGLE_REFRESH_TOKEN", ""),
			CalendarID:   getenv("GOOGLE_CALENDAR_ID", "primary"),
		},
		Twilio: TwilioConfig{
			AccountSID:        getenv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:         getenv("TWILIO_AUTH_TOKEN", ""),
			WhatsAppFrom:      getenv("TWILIO_WHATSAPP_FROM", ""),
			ValidateSignature: getbool("TWILIO_VALIDATE_SIGNATURE", false),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "asistente-macla-ia"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Twilio.WhatsAppFrom != "" && !strings.HasPrefix(cfg.Twilio.WhatsAppFrom, "whatsapp:") {
		cfg.Twilio.WhatsAppFrom = "whatsapp:" + cfg.Twilio.WhatsAppFrom
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	switch cfg.Store.Driver {
	case StoreJSON:
		if strings.TrimSpace(cfg.Store.Path) == "" {
			return cfg, errors.New("STORE_PATH must not be empty")
		}
	case StoreSQLite:
	default:
		return cfg, errors.New("STORE_DRIVER must be one of: json, sqlite")
	}
	switch cfg.Dispatch.UndeliveredPolicy {
	case PolicyDrop, PolicyRequeue:
	default:
		return cfg, errors.New("UNDELIVERED_POLICY must be one of: drop, requeue")
	}
	if cfg.Dispatch.SweepInterval < 100*time.Millisecond {
		return cfg, errors.New("SWEEP_INTERVAL must be >= 100ms")
	}
	if cfg.Dispatch.LocalReminderDelay < 0 || cfg.Dispatch.EventReminderLead < 0 {
		return cfg, errors.New("LOCAL_REMINDER_DELAY and EVENT_REMINDER_LEAD must be >= 0")
	}
	if cfg.HistoryWindow < 1 {
		return cfg, errors.New("HISTORY_WINDOW must be >= 1")
	}
	if strings.TrimSpace(cfg.TTSDir) == "" {
		return cfg, errors.New("TTS_DIR must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
