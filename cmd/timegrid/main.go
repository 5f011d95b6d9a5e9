package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/wenqi-dev/timegrid/internal/handler"
	"github.com/wenqi-dev/timegrid/internal/service"
	"github.com/wenqi-dev/timegrid/internal/store"
	"github.com/wenqi-dev/timegrid/pkg/blob"
	"github.com/wenqi-dev/timegrid/pkg/config"
	"github.com/wenqi-dev/timegrid/pkg/database"
	"github.com/wenqi-dev/timegrid/pkg/export"
	"github.com/wenqi-dev/timegrid/pkg/logger"
	reqidmiddleware "github.com/wenqi-dev/timegrid/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewSQLite(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to open database", "path", cfg.Database.Path, "error", err)
	}
	defer db.Close() //nolint:errcheck

	st := store.New(db)
	if err := st.Migrate(context.Background()); err != nil {
		logr.Sugar().Fatalw("failed to migrate database", "error", err)
	}

	blobs, err := blob.NewFilesystemStore(cfg.Blob.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to open blob store", "dir", cfg.Blob.Dir, "error", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	schedules := service.NewScheduleService(st, logr)
	integrity := service.NewIntegrityService(st, logr)
	conflicts := service.NewConflictService(st, logr)
	batches := service.NewBatchService(st, logr)
	backups := service.NewBackupService(st, blobs, cfg.Backups.SnapshotVersion, cfg.Backups.ImportNamePrefix, logr)
	transfers := service.NewTransferService(st, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	r := handler.NewRouter(handler.RouterConfig{
		APIPrefix:   cfg.APIPrefix,
		Schedules:   handler.NewScheduleHandler(schedules, validate),
		Maintenance: handler.NewMaintenanceHandler(integrity, conflicts, batches, metrics, validate),
		Backups:     handler.NewBackupHandler(backups, transfers, metrics),
		Metrics:     metrics,
		Middlewares: []gin.HandlerFunc{
			reqidmiddleware.Middleware(),
			logger.GinMiddleware(logr),
		},
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "db", cfg.Database.Path)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
