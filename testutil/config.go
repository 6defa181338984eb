package testutil

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/scrapedash/scrapedash"
	"github.com/stretchr/testify/require"
)

const (
	TestDir = "config_test"
	// TestSettings contains the default settings suitable for tests that
	// depend on the global environment.
	TestSettings = "settings.yml"

	TestSigningSecret = "scrapedash-test-secret"
	TestAudience      = "https://api.scrapedash.test"
)

// TestConfig returns validated settings for tests. They point at a local
// mongod and use a shared signing secret instead of an identity provider.
func TestConfig() *scrapedash.Settings {
	settings, err := scrapedash.NewSettings(TestConfigFile())
	if err != nil {
		settings = &scrapedash.Settings{
			Database: scrapedash.DBSettings{Url: "mongodb://localhost:27017", DB: "scrapedash_test"},
			Auth:     scrapedash.AuthConfig{SigningSecret: TestSigningSecret, Audience: TestAudience},
			Storage:  scrapedash.StorageConfig{Backend: scrapedash.StorageBackendGridFS},
			Amboy:    scrapedash.AmboyConfig{PoolSizeLocal: 2, DisableCrons: true},
		}
	}
	grip.EmergencyPanic(message.WrapError(settings.Validate(), message.Fields{
		"message": "invalid test settings",
	}))

	return settings
}

// TestConfigFile returns the path to the settings file used by tests.
func TestConfigFile() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filepath.Dir(file)), TestDir, TestSettings)
}

// Setup configures the global environment for tests that need the database.
func Setup() {
	if scrapedash.GetEnvironment() != nil {
		return
	}

	env, err := scrapedash.NewEnvironmentFromSettings(context.Background(), TestConfig())
	grip.EmergencyPanic(message.WrapError(err, message.Fields{
		"message": "could not initialize test environment",
	}))

	scrapedash.SetEnvironment(env)
}

// NewEnvironment creates an environment owned by the calling test.
func NewEnvironment(ctx context.Context, t *testing.T) scrapedash.Environment {
	env, err := scrapedash.NewEnvironmentFromSettings(ctx, TestConfig())
	require.NoError(t, err)
	t.Cleanup(func() { grip.Error(env.Close(context.Background())) })
	return env
}

// SkipWithoutDB skips tests that need a database when SCRAPEDASH_SKIP_DB_TESTS
// is set, for environments without a local mongod.
func SkipWithoutDB(t *testing.T) {
	if os.Getenv("SCRAPEDASH_SKIP_DB_TESTS") != "" {
		t.Skip("database tests are disabled")
	}
}
