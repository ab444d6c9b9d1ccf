package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/librarian/internal/config"
	apperrors "github.com/lepinkainen/librarian/internal/errors"
	"github.com/lepinkainen/librarian/internal/library"
	"github.com/lepinkainen/librarian/internal/tui"
)

var (
	openLibrary = library.Open
	browseBooks = tui.Browse
)

// CLI represents the complete command structure for the librarian application
type CLI struct {
	// Global flags
	DB       string `help:"Path to the SQLite catalog database (default from config)"`
	Inpx     string `help:"Path to the INPX collection bundle (default from config)"`
	Archives string `help:"Directory holding the book archive shards (default from config)"`
	Verbose  bool   `short:"v" help:"Enable debug logging"`
	NoLoad   bool   `help:"Do not load the collection before searching or fetching"`

	Load   LoadCmd   `cmd:"" help:"Load the INPX collection into the catalog"`
	Search SearchCmd `cmd:"" help:"Search the catalog by author, title or series"`
	Get    GetCmd    `cmd:"" help:"Extract a book file from the archives"`
	Shards ShardsCmd `cmd:"" help:"List the archive shards and their id ranges"`
	Serve  ServeCmd  `cmd:"" help:"Serve the HTTP API"`
}

// App is what every command runs against.
type App struct {
	Ctx    context.Context
	Config config.Config
	Out    io.Writer
	NoLoad bool
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(slog.LevelInfo)
	initConfig()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("librarian"),
		kong.Description("Search an INPX book collection and extract books from its archives."),
		kong.UsageOnError(),
	)

	if cli.Verbose {
		initLogging(slog.LevelDebug)
	}
	updateGlobalConfig(&cli)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{
		Ctx:    ctx,
		Config: config.Load(),
		Out:    os.Stdout,
		NoLoad: cli.NoLoad,
	}

	err := kctx.Run(app)
	if err != nil {
		if apperrors.IsStopProcessingError(err) {
			slog.Info("Stopped", "reason", err)
			return
		}
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	config.SetDefaults()
	config.BindEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Info("Config file not found, writing default config file...")
			if err := viper.SafeWriteConfig(); err != nil {
				slog.Error("Error writing config file", "error", err)
			}
		} else {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
	}
}

func updateGlobalConfig(cli *CLI) {
	if cli.DB != "" {
		viper.Set("catalog.db", cli.DB)
	}
	if cli.Inpx != "" {
		viper.Set("catalog.inpx", cli.Inpx)
	}
	if cli.Archives != "" {
		viper.Set("catalog.archives", cli.Archives)
	}
	if cli.Serve.Addr != "" {
		viper.Set("server.addr", cli.Serve.Addr)
	}
}

func initLogging(level slog.Level) {
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}

// open connects to the catalog and, unless disabled, makes sure the
// collection is loaded.
func (a *App) open(ensureLoaded bool) (*library.Service, error) {
	svc, err := openLibrary(a.Config.Catalog)
	if err != nil {
		return nil, err
	}
	if ensureLoaded && !a.NoLoad {
		if err := svc.EnsureLoaded(a.Ctx); err != nil {
			_ = svc.Close()
			return nil, err
		}
	}
	return svc, nil
}
