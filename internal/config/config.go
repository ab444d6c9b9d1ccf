package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override,
// e.g. LIBRARIAN_CATALOG_DB.
const EnvPrefix = "LIBRARIAN"

// Config holds the resolved librarian settings.
type Config struct {
	Catalog CatalogConfig
	Server  ServerConfig
	Session SessionConfig
}

// CatalogConfig locates the collection on disk.
type CatalogConfig struct {
	// InpxPath is the INPX bundle the catalog is loaded from.
	InpxPath string
	// ArchivesDir holds the numbered payload shards.
	ArchivesDir string
	// DBPath is the SQLite catalog file.
	DBPath     string
	RecordExt  string
	PayloadExt string
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr          string
	DownloadRPS   float64
	DownloadBurst int
}

// SessionConfig configures paginated search sessions.
type SessionConfig struct {
	TTL      time.Duration
	PageSize int
}

// SetDefaults registers the default value of every key with viper.
func SetDefaults() {
	viper.SetDefault("catalog.inpx", "./library.inpx")
	viper.SetDefault("catalog.archives", "./archives")
	viper.SetDefault("catalog.db", "./librarian.db")
	viper.SetDefault("catalog.record_ext", ".inp")
	viper.SetDefault("catalog.payload_ext", "fb2")
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.download_rps", 2.0)
	viper.SetDefault("server.download_burst", 4)
	viper.SetDefault("session.ttl", 30*time.Minute)
	viper.SetDefault("session.page_size", 10)
}

// BindEnv makes every key overridable through LIBRARIAN_* variables.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads the current viper state into a Config.
func Load() Config {
	cfg := Config{
		Catalog: CatalogConfig{
			InpxPath:    viper.GetString("catalog.inpx"),
			ArchivesDir: viper.GetString("catalog.archives"),
			DBPath:      viper.GetString("catalog.db"),
			RecordExt:   viper.GetString("catalog.record_ext"),
			PayloadExt:  viper.GetString("catalog.payload_ext"),
		},
		Server: ServerConfig{
			Addr:          viper.GetString("server.addr"),
			DownloadRPS:   viper.GetFloat64("server.download_rps"),
			DownloadBurst: viper.GetInt("server.download_burst"),
		},
		Session: SessionConfig{
			TTL:      viper.GetDuration("session.ttl"),
			PageSize: viper.GetInt("session.page_size"),
		},
	}

	if cfg.Session.PageSize <= 0 {
		cfg.Session.PageSize = 10
	}
	if cfg.Server.DownloadBurst <= 0 {
		cfg.Server.DownloadBurst = 1
	}

	return cfg
}
