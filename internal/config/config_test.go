package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"appforge/internal/tester"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	tester.NoErr(t, err)

	tester.Eq(t, cfg.Env, "local")
	tester.Eq(t, cfg.Provider, "anthropic")
	tester.Eq(t, cfg.RequestsPerMinute, 3)
	tester.Eq(t, cfg.TokensPerMinute, 16000)
	tester.Eq(t, cfg.MaxRetries, 5)
	tester.Eq(t, cfg.BaseWait(), 5*time.Second)
	tester.Eq(t, cfg.MaxWait(), 120*time.Second)
	tester.Eq(t, cfg.Parallel, 3)
	tester.Eq(t, cfg.CacheSize, 128)
	tester.Eq(t, cfg.UsageLedger, "out/usage.json")
	tester.False(t, cfg.Artifact.Enabled)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
provider: gemini
model: gemini-2.0-flash
requests_per_minute: 10
tokens_per_minute: 40000
max_retries: 2
parallel: 8
artifact:
  enabled: true
  endpoint: minio.local:9000
  bucket: forge-artifacts
`
	tester.NoErr(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	tester.NoErr(t, err)
	tester.Eq(t, cfg.Provider, "gemini")
	tester.Eq(t, cfg.Model, "gemini-2.0-flash")
	tester.Eq(t, cfg.RequestsPerMinute, 10)
	tester.Eq(t, cfg.TokensPerMinute, 40000)
	tester.Eq(t, cfg.MaxRetries, 2)
	tester.Eq(t, cfg.Parallel, 8)
	tester.True(t, cfg.Artifact.Enabled)
	tester.Eq(t, cfg.Artifact.Endpoint, "minio.local:9000")
	tester.Eq(t, cfg.Artifact.Bucket, "forge-artifacts")

	// Unset keys keep their defaults.
	tester.Eq(t, cfg.CacheSize, 128)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	tester.Err(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	tester.NoErr(t, os.WriteFile(path, []byte("provider: gemini\nrequests_per_minute: 10\n"), 0o644))

	t.Setenv("FORGE_PROVIDER", "openai")
	t.Setenv("FORGE_MODEL", "gpt-4o")
	t.Setenv("FORGE_RPM", "7")
	t.Setenv("FORGE_MAX_WAIT_SEC", "300")

	cfg, err := Load(path)
	tester.NoErr(t, err)
	tester.Eq(t, cfg.Provider, "openai")
	tester.Eq(t, cfg.Model, "gpt-4o")
	tester.Eq(t, cfg.RequestsPerMinute, 7)
	tester.Eq(t, cfg.MaxWait(), 300*time.Second)
}

func TestEnvArtifactEndpointEnables(t *testing.T) {
	t.Setenv("ARTIFACT_S3_ENDPOINT", "s3.local:9000")
	t.Setenv("ARTIFACT_S3_USE_SSL", "TRUE")

	cfg, err := Load("")
	tester.NoErr(t, err)
	tester.True(t, cfg.Artifact.Enabled)
	tester.Eq(t, cfg.Artifact.Endpoint, "s3.local:9000")
	tester.True(t, cfg.Artifact.UseSSL)
}

func TestEnvMalformedIntIgnored(t *testing.T) {
	t.Setenv("FORGE_RPM", "lots")

	cfg, err := Load("")
	tester.NoErr(t, err)
	tester.Eq(t, cfg.RequestsPerMinute, 3)
}

func TestLoadRejectsInvalidLimits(t *testing.T) {
	for _, yaml := range []string{
		"requests_per_minute: 0\n",
		"tokens_per_minute: -5\n",
		"max_retries: -1\n",
	} {
		path := filepath.Join(t.TempDir(), "config.yaml")
		tester.NoErr(t, os.WriteFile(path, []byte(yaml), 0o644))
		_, err := Load(path)
		tester.Err(t, err, yaml)
	}
}
