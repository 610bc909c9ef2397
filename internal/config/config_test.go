package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SUPABASE_JWT_SECRET", "secret")
	t.Setenv("GESTLY_STORE", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, StoreMemory, cfg.Database.Store)
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 10.0, cfg.Integrations.SendRate)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.ReminderLead)
	assert.Equal(t, "@every 5m", cfg.Jobs.ReminderSchedule)
	assert.Equal(t, 5*time.Minute, cfg.Stripe.Tolerance)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GESTLY_TEST_DOTENV_ADDR=:9999\n"), 0o600))
	t.Setenv("SUPABASE_JWT_SECRET", "secret")
	t.Cleanup(func() { os.Unsetenv("GESTLY_TEST_DOTENV_ADDR") })

	_, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, ":9999", os.Getenv("GESTLY_TEST_DOTENV_ADDR"))
}

func TestReadSkipsServerChecks(t *testing.T) {
	t.Setenv("SUPABASE_JWT_SECRET", "")
	t.Setenv("GESTLY_STORE", "Postgres")
	t.Setenv("GESTLY_DATABASE_URL", "postgres://localhost/gestly")

	missing := filepath.Join(t.TempDir(), "missing.env")
	cfg, err := Read(missing)
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Database.Store)

	_, err = Load(missing)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Database:  DatabaseConfig{Store: StoreMemory},
			Supabase:  SupabaseConfig{JWTSecret: "s"},
			RateLimit: RateLimitConfig{RequestsPerMinute: 10},
		}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Database.Store = StorePostgres
	assert.ErrorContains(t, cfg.Validate(), "GESTLY_DATABASE_URL")

	cfg = base()
	cfg.Database.Store = StoreSupabase
	assert.ErrorContains(t, cfg.Validate(), "SUPABASE_URL")

	cfg = base()
	cfg.Database.Store = "mongo"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Supabase.JWTSecret = ""
	assert.ErrorContains(t, cfg.Validate(), "SUPABASE_JWT_SECRET")
}

func TestAllowedOrigins(t *testing.T) {
	s := ServerConfig{CORSOrigins: " https://a.test, ,https://b.test"}
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, s.AllowedOrigins())
}

func TestLoadPlans(t *testing.T) {
	plans, err := LoadPlans("")
	require.NoError(t, err)
	assert.Len(t, plans, 3)

	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plans:
  - name: free
    max_attendants: 2
  - name: studio
    max_attendants: 10
    api_access: true
    campaigns: true
    stripe_price_id: price_studio
`), 0o600))

	plans, err = LoadPlans(path)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	studio, ok := plans.ByPriceID("price_studio")
	require.True(t, ok)
	assert.True(t, studio.APIAccess)
	assert.Equal(t, 2, plans.Find("free").MaxAttendants)

	dup := filepath.Join(t.TempDir(), "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("plans:\n  - name: a\n  - name: a\n"), 0o600))
	_, err = LoadPlans(dup)
	assert.Error(t, err)
}
