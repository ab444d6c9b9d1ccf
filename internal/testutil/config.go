package testutil

import (
	"testing"

	"github.com/lepinkainen/librarian/internal/config"
	"github.com/spf13/viper"
)

// ResetConfig resets viper to the default librarian settings and
// schedules another reset when the test completes.
func ResetConfig(t *testing.T) {
	t.Helper()

	viper.Reset()
	config.SetDefaults()

	t.Cleanup(viper.Reset)
}

// SetTestConfig points the catalog settings at paths inside env.
// It returns the resolved configuration.
func SetTestConfig(t *testing.T, env *TestEnv) config.Config {
	t.Helper()

	ResetConfig(t)
	viper.Set("catalog.inpx", env.Path("library.inpx"))
	viper.Set("catalog.archives", env.Path("archives"))
	viper.Set("catalog.db", env.Path("librarian.db"))

	return config.Load()
}
