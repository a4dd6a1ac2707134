// pkg/config/config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"INVOICES_DIR", "CURRENCY_SYMBOL", "HTTP_ADDR", "DATABASE_URL", "AWS_REGION", "S3_BUCKET", "S3_PREFIX", "LOG_LEVEL", "LOG_DEVELOPMENT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "invoices", cfg.InvoicesDir)
	assert.Equal(t, "RM", cfg.Currency)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Empty(t, cfg.S3.Bucket)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "desk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
invoices_dir: /srv/invoices
currency: USD
http:
  addr: ":9000"
s3:
  bucket: receipts
  prefix: desk/
log:
  level: debug
  development: true
`), 0o644))
	t.Setenv("HTTP_ADDR", ":9100")
	t.Setenv("DATABASE_URL", "postgres://localhost/invoicedb")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/invoices", cfg.InvoicesDir)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, ":9100", cfg.HTTP.Addr)
	assert.Equal(t, "postgres://localhost/invoicedb", cfg.Postgres.DSN)
	assert.Equal(t, "receipts", cfg.S3.Bucket)
	assert.Equal(t, "desk/", cfg.S3.Prefix)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.True(t, cfg.Log.Development)

	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("http: [unclosed"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	t.Setenv("LOG_DEVELOPMENT", "sometimes")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLogger_BadLevel(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	_, err := cfg.Logger()
	assert.Error(t, err)
}
