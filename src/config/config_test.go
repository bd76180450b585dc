package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/decred/dcrd/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) Getenv {
	return func(key string) string { return m[key] }
}

func TestLoadAPIReportsEveryMissingValue(t *testing.T) {
	_, err := LoadAPI(envMap(nil))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{
		"missing env MYSQL_DSN",
		"missing env JWT_SECRET",
		"missing env ADMIN_API_KEY",
	}, verr.Problems)
}

func TestLoadAPIDefaults(t *testing.T) {
	cfg, err := LoadAPI(envMap(map[string]string{
		"MYSQL_DSN":     "user:pass@tcp(localhost:3306)/gov",
		"JWT_SECRET":    "0123456789abcdef0123456789abcdef",
		"ADMIN_API_KEY": "admin",
		"CORS_ORIGINS":  "https://a.example, https://b.example",
	}))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.OverviewCacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadAPIRejectsShortSecret(t *testing.T) {
	_, err := LoadAPI(envMap(map[string]string{
		"MYSQL_DSN":     "dsn",
		"JWT_SECRET":    "short",
		"ADMIN_API_KEY": "admin",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func botEnv(t *testing.T) map[string]string {
	keyHash := bytes.Repeat([]byte{0x11}, 28)
	cip105, err := bech32.EncodeFromBase256("drep", keyHash)
	require.NoError(t, err)
	return map[string]string{
		"DISCORD_TOKEN":     "token",
		"DISCORD_CLIENT_ID": "123",
		"DISCORD_GUILD_ID":  "456",
		"VERIFIED_ROLE_ID":  "789",
		"DREP_ID":           cip105,
		"VERIFY_URL":        "https://verify.example",
		"BACKEND_URL":       "https://api.example/",
		"BACKEND_API_KEY":   "key",
	}
}

func TestLoadBotNormalizesDRepID(t *testing.T) {
	env := botEnv(t)
	cfg, err := LoadBot(envMap(env))
	require.NoError(t, err)

	want, err := bech32.EncodeFromBase256("drep", append([]byte{0x22}, bytes.Repeat([]byte{0x11}, 28)...))
	require.NoError(t, err)
	assert.Equal(t, want, cfg.DRepID)
	assert.Equal(t, "https://api.example", cfg.Backend.URL)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 2*time.Second, cfg.PostDelay)
	assert.Equal(t, "*/30 * * * *", cfg.SyncCron)
}

func TestLoadBotRejectsBadCronAndDRep(t *testing.T) {
	env := botEnv(t)
	env["SYNC_CRON"] = "every tuesday"
	env["DREP_ID"] = "drep1abc"
	env["POST_DELAY"] = "soon"
	_, err := LoadBot(envMap(env))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 3)
}

func TestLoadVerifyNetworkDefaults(t *testing.T) {
	env := botEnv(t)
	env["BLOCKFROST_PROJECT_ID"] = "preprodKey"
	env["CARDANO_NETWORK"] = "preprod"
	cfg, err := LoadVerify(envMap(env))
	require.NoError(t, err)
	assert.Equal(t, "https://cardano-preprod.blockfrost.io/api/v0", cfg.BlockfrostURL)

	env["CARDANO_NETWORK"] = "guildnet"
	_, err = LoadVerify(envMap(env))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GOVSENTIMENT_TEST_KEY=from-file\n"), 0o600))
	t.Setenv("GOVSENTIMENT_TEST_KEY", "")
	require.NoError(t, os.Unsetenv("GOVSENTIMENT_TEST_KEY"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("GOVSENTIMENT_TEST_KEY"))
}

func TestLoadAPITLSNeedsBothFiles(t *testing.T) {
	env := map[string]string{
		"MYSQL_DSN":     "dsn",
		"JWT_SECRET":    "0123456789abcdef0123456789abcdef",
		"ADMIN_API_KEY": "admin",
		"TLS_CERT_FILE": "/etc/ssl/api.crt",
	}
	_, err := LoadAPI(envMap(env))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TLS_KEY_FILE")

	env["TLS_KEY_FILE"] = "/etc/ssl/api.key"
	cfg, err := LoadAPI(envMap(env))
	require.NoError(t, err)
	assert.True(t, cfg.TLS.Enabled())
}
