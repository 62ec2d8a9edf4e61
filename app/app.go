package app

import (
	"context"
	"embed"
	"os"
	"path/filepath"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"VeilKit/app/services"
	"VeilKit/pkg/logger"
)

//go:embed all:frontend_dist
var assets embed.FS

// App struct holds the application state and services
type App struct {
	ctx             context.Context
	configService   *services.ConfigService
	vaultService    *services.VaultService
	metadataService *services.MetadataService
	junkService     *services.JunkService
	shredService    *services.ShredService
	logService      *services.LogService
}

// NewApp creates a new App instance with all services wired. The services
// get their Wails context in OnStartup.
func NewApp(logFile string) (*App, error) {
	log := logger.Get()

	configService, err := services.NewConfigService(log)
	if err != nil {
		return nil, err
	}

	return &App{
		configService:   configService,
		vaultService:    services.NewVaultService(log, configService),
		metadataService: services.NewMetadataService(log, configService),
		junkService:     services.NewJunkService(log),
		shredService:    services.NewShredService(log, configService),
		logService:      services.NewLogService(log, logFile),
	}, nil
}

// OnStartup is called when the app starts
func (a *App) OnStartup(ctx context.Context) {
	a.ctx = ctx

	// Bound services were created before the runtime context existed;
	// hand it to them now so EventsEmit works.
	a.vaultService.SetContext(ctx)
	a.metadataService.SetContext(ctx)
	a.junkService.SetContext(ctx)
	a.shredService.SetContext(ctx)

	logger.Get().Info().Msg("[App] OnStartup: services initialized")
}

// OnShutdown is called when the app is shutting down
func (a *App) OnShutdown(ctx context.Context) {
	log := logger.Get()
	log.Info().Msg("[App] OnShutdown: shutting down")

	// Cancel whatever is still running so no engine is left mid-batch.
	for name, cancel := range map[string]func() error{
		"vault":    a.vaultService.CancelVaultOp,
		"metadata": a.metadataService.CancelMetadataClean,
		"junk":     a.junkService.CancelSystemClean,
		"shred":    a.shredService.CancelShred,
	} {
		if err := cancel(); err == nil {
			log.Warn().Str("service", name).Msg("[App] OnShutdown: cancelled active run")
		}
	}
}

// Run starts the Wails application
func Run() error {
	logFile := ""
	if logDir := defaultLogDir(); logDir != "" {
		logFile = filepath.Join(logDir, "veilkit.log")
	}
	if err := logger.Init("info", logFile); err != nil {
		return err
	}

	appInstance, err := NewApp(logFile)
	if err != nil {
		return err
	}

	return wails.Run(&options.App{
		Title:  "VeilKit",
		Width:  1024,
		Height: 768,
		AssetServer: &assetserver.Options{
			Assets:  assets,
			Handler: nil, // Use default handler for embedded assets
		},
		BackgroundColour: &options.RGBA{R: 24, G: 26, B: 33, A: 1},
		OnStartup:        appInstance.OnStartup,
		OnShutdown:       appInstance.OnShutdown,
		Bind: []interface{}{
			appInstance.configService,
			appInstance.vaultService,
			appInstance.metadataService,
			appInstance.junkService,
			appInstance.shredService,
			appInstance.logService,
		},
	})
}

func defaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".veilkit", "logs")
}
