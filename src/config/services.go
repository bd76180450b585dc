package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stake-plus/cardano-gov-sentiment/src/cardano"
)

// API configures the backend HTTP service.
type API struct {
	MySQLDSN         string
	RedisURL         string
	JWTSecret        string
	AdminAPIKey      string
	Port             string
	CORSOrigins      []string
	OverviewCacheTTL time.Duration
	AuthRateLimit    int
	TLS              TLS
}

// TLS enables HTTPS when both files are set. Certificates are reloaded when
// the files change.
type TLS struct {
	CertFile string
	KeyFile  string
}

func (t TLS) Enabled() bool { return t.CertFile != "" && t.KeyFile != "" }

func loadTLS(l *loader) TLS {
	t := TLS{
		CertFile: l.optional("TLS_CERT_FILE", ""),
		KeyFile:  l.optional("TLS_KEY_FILE", ""),
	}
	if (t.CertFile == "") != (t.KeyFile == "") {
		l.fail("env TLS_CERT_FILE and TLS_KEY_FILE: set both or neither")
	}
	return t
}

// LoadAPI reads API configuration. Redis is optional; without it wallet
// login and overview caching are disabled.
func LoadAPI(get Getenv) (API, error) {
	l := newLoader(get)
	cfg := API{
		MySQLDSN:         l.required("MYSQL_DSN"),
		RedisURL:         l.optional("REDIS_URL", ""),
		JWTSecret:        l.required("JWT_SECRET"),
		AdminAPIKey:      l.required("ADMIN_API_KEY"),
		Port:             l.optional("PORT", "8080"),
		CORSOrigins:      l.list("CORS_ORIGINS", "http://localhost:3000"),
		OverviewCacheTTL: l.duration("OVERVIEW_CACHE_TTL", 30*time.Second),
		AuthRateLimit:    l.integer("AUTH_RATE_LIMIT", 20),
		TLS:              loadTLS(l),
	}
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 32 {
		l.fail("env JWT_SECRET: must be at least 32 characters")
	}
	if cfg.RedisURL != "" && !strings.HasPrefix(cfg.RedisURL, "redis") {
		l.fail("env REDIS_URL: expected redis:// or rediss:// url")
	}
	return cfg, l.err()
}

// Backend holds what a client of the backend API needs.
type Backend struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func loadBackend(l *loader) Backend {
	b := Backend{
		URL:     strings.TrimRight(l.required("BACKEND_URL"), "/"),
		APIKey:  l.required("BACKEND_API_KEY"),
		Timeout: l.duration("BACKEND_TIMEOUT", 10*time.Second),
	}
	if b.URL != "" {
		if u, err := url.Parse(b.URL); err != nil || u.Scheme == "" || u.Host == "" {
			l.fail("env BACKEND_URL: invalid url %q", b.URL)
		}
	}
	return b
}

func loadDRepID(l *loader) string {
	raw := l.required("DREP_ID")
	if raw == "" {
		return ""
	}
	id, err := cardano.NormalizeDRepID(raw)
	if err != nil {
		l.fail("env DREP_ID: %v", err)
		return raw
	}
	return id
}

// Bot configures the Discord bot, including the scheduled proposal sync.
type Bot struct {
	Token                   string
	ClientID                string
	GuildID                 string
	ForumChannelID          string
	DelegateChannelID       string
	VerifiedRoleID          string
	DRepID                  string
	VerifyURL               string
	SyncCron                string
	PendingVotePollInterval time.Duration
	PostDelay               time.Duration
	Backend                 Backend
}

// LoadBot reads bot configuration. The forum channel may instead come from
// the guild record stored by the backend; sync aborts when neither is set.
func LoadBot(get Getenv) (Bot, error) {
	l := newLoader(get)
	cfg := Bot{
		Token:                   l.required("DISCORD_TOKEN"),
		ClientID:                l.required("DISCORD_CLIENT_ID"),
		GuildID:                 l.required("DISCORD_GUILD_ID"),
		ForumChannelID:          l.optional("FORUM_CHANNEL_ID", ""),
		DelegateChannelID:       l.optional("DELEGATE_CHANNEL_ID", ""),
		VerifiedRoleID:          l.required("VERIFIED_ROLE_ID"),
		DRepID:                  loadDRepID(l),
		VerifyURL:               l.required("VERIFY_URL"),
		SyncCron:                l.optional("SYNC_CRON", "*/30 * * * *"),
		PendingVotePollInterval: l.duration("PENDING_VOTE_POLL_INTERVAL", time.Minute),
		PostDelay:               l.duration("POST_DELAY", 2*time.Second),
		Backend:                 loadBackend(l),
	}
	if _, err := cron.ParseStandard(cfg.SyncCron); err != nil {
		l.fail("env SYNC_CRON: %v", err)
	}
	if cfg.PendingVotePollInterval == 0 {
		l.fail("env PENDING_VOTE_POLL_INTERVAL: must be positive")
	}
	return cfg, l.err()
}

// Verify configures the delegator verification service.
type Verify struct {
	Port                string
	DRepID              string
	Network             string
	BlockfrostURL       string
	BlockfrostProjectID string
	Backend             Backend
	TLS                 TLS
}

var blockfrostDefaults = map[string]string{
	"mainnet": "https://cardano-mainnet.blockfrost.io/api/v0",
	"preprod": "https://cardano-preprod.blockfrost.io/api/v0",
	"preview": "https://cardano-preview.blockfrost.io/api/v0",
}

// LoadVerify reads the verification service configuration.
func LoadVerify(get Getenv) (Verify, error) {
	l := newLoader(get)
	network := strings.ToLower(l.optional("CARDANO_NETWORK", "mainnet"))
	def, ok := blockfrostDefaults[network]
	if !ok {
		l.fail("env CARDANO_NETWORK: unknown network %q", network)
	}
	cfg := Verify{
		Port:                l.optional("PORT", "8081"),
		DRepID:              loadDRepID(l),
		Network:             network,
		BlockfrostURL:       strings.TrimRight(l.optional("BLOCKFROST_URL", def), "/"),
		BlockfrostProjectID: l.required("BLOCKFROST_PROJECT_ID"),
		Backend:             loadBackend(l),
		TLS:                 loadTLS(l),
	}
	return cfg, l.err()
}
