package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrmsu/ojtinsight/ensemble"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "models", cfg.Models.Dir)
	assert.Equal(t, ensemble.DefaultWeights, cfg.Ensemble.Weights())
	assert.Equal(t, 0.2, cfg.Training.TestSize)
	assert.Equal(t, int64(42), cfg.Training.Seed)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
server:
  port: 8080
  read_timeout: 5s
models:
  dir: /srv/models
ensemble:
  lr_weight: 0.2
  rf_weight: 0.6
  nb_weight: 0.2
`)
	t.Setenv("OJT_MODELS_DIR", "/env/models")
	t.Setenv("OJT_LOGGER_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/env/models", cfg.Models.Dir)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, ensemble.Weights{LR: 0.2, RF: 0.6, NB: 0.2}, cfg.Ensemble.Weights())
}

func TestLoadFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("models-dir", "models", "")
	fs.Float64("test-size", 0.2, "")
	fs.Int64("seed", 42, "")
	require.NoError(t, fs.Parse([]string{"--models-dir", "/flag/models", "--test-size", "0.3"}))

	cfg, err := Load("", WithFlags(fs, map[string]string{
		"models.dir":         "models-dir",
		"training.test_size": "test-size",
		"training.seed":      "seed",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/flag/models", cfg.Models.Dir)
	assert.Equal(t, 0.3, cfg.Training.TestSize)
	assert.Equal(t, int64(42), cfg.Training.Seed)

	_, err = Load("", WithFlags(fs, map[string]string{"models.dir": "nope"}))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := writeFile(t, dir, ".env", "OJT_STORE_PATH=/dotenv/history.db\n")
	t.Cleanup(func() { os.Unsetenv("OJT_STORE_PATH") })

	cfg, err := Load("", WithDotEnv(env))
	require.NoError(t, err)
	assert.Equal(t, "/dotenv/history.db", cfg.Store.Path)

	_, err = Load("", WithDotEnv(filepath.Join(dir, "missing.env")))
	assert.NoError(t, err)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	tests := map[string]string{
		"port":      "server:\n  port: 70000\n",
		"weights":   "ensemble:\n  lr_weight: -1\n",
		"zero sum":  "ensemble:\n  lr_weight: 0\n  rf_weight: 0\n  nb_weight: 0\n",
		"nan":       "ensemble:\n  rf_weight: .nan\n",
		"infinite":  "ensemble:\n  nb_weight: .inf\n",
		"test size": "training:\n  test_size: 1.5\n",
		"log level": "logger:\n  level: loud\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
	t.Run("nan from env", func(t *testing.T) {
		t.Setenv("OJT_ENSEMBLE_LR_WEIGHT", "NaN")
		_, err := Load("")
		var ve *ojtErrors.ValueError
		assert.ErrorAs(t, err, &ve)
	})
}
