package main

import (
	"flag"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"caiso-ops/internal/api/handlers"
	"caiso-ops/internal/api/middleware"
	"caiso-ops/internal/config"
	"caiso-ops/internal/datasets"
	"caiso-ops/internal/oasis"
	"caiso-ops/internal/pool"
	"caiso-ops/internal/report"
	"caiso-ops/internal/warehouse"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to YAML config")
	flag.Parse()

	// .env is optional; real deployments inject env vars directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config load failed")
	}

	log := newLogger(cfg.LogLevel)

	p := pool.New(cfg.PoolRoot, log)

	var wh *warehouse.Interface
	if cfg.Warehouse.DSN != "" {
		wh, err = warehouse.Open(cfg.Warehouse.Driver, cfg.Warehouse.DSN, log)
		if err != nil {
			log.Fatal().Err(err).Msg("warehouse open failed")
		}
		defer wh.Close()
	} else {
		log.Warn().Msg("no warehouse DSN; datasets serve from cache only")
	}

	oc := oasis.NewClient(cfg.Oasis.BaseURL, log)

	catalog := datasets.NewCatalog(p, wh, warehouse.Builder{Schema: cfg.Warehouse.Schema}, oc, log)

	currStart, currEnd, refStart, refEnd := cfg.ReportPeriods()
	h := &handlers.Handler{
		Catalog:   catalog,
		Log:       log,
		CurrStart: currStart,
		CurrEnd:   currEnd,
		RefStart:  refStart,
		RefEnd:    refEnd,
	}

	if cfg.API.RefreshCron != "" {
		c := cron.New()
		refresh := func() {
			dt := &report.DriverTable{
				CurrStart: currStart,
				CurrEnd:   currEnd,
				RefStart:  refStart,
				RefEnd:    refEnd,
				Data:      report.NewData(catalog, pool.Query{First: refStart, Final: currEnd}),
			}
			if _, err := dt.Create(); err != nil {
				log.Error().Err(err).Msg("scheduled report refresh failed")
				return
			}
			log.Info().Msg("report cache refreshed")
		}
		if _, err := c.AddFunc(cfg.API.RefreshCron, refresh); err != nil {
			log.Fatal().Err(err).Str("cron", cfg.API.RefreshCron).Msg("bad refresh schedule")
		}
		c.Start()
		defer c.Stop()
	}

	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Logger(log))
	router.Use(middleware.CORS())
	router.Use(middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.GET("/datasets", h.ListDatasets)
		api.GET("/datasets/:name", h.GetDataset)
		api.GET("/report/drivers", h.GetDrivers)
	}

	log.Info().Str("port", cfg.API.Port).Msg("starting API server")
	if err := router.Run(":" + cfg.API.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
