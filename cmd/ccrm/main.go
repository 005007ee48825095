package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-records/internal/cli"
	"github.com/noah-isme/campus-records/internal/repository"
	"github.com/noah-isme/campus-records/internal/service"
	"github.com/noah-isme/campus-records/pkg/cache"
	"github.com/noah-isme/campus-records/pkg/config"
	"github.com/noah-isme/campus-records/pkg/database"
	appErrors "github.com/noah-isme/campus-records/pkg/errors"
	"github.com/noah-isme/campus-records/pkg/jobs"
	"github.com/noah-isme/campus-records/pkg/logger"
	"github.com/noah-isme/campus-records/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(realMain())
}

func realMain() int {
	jsonOutput := flag.Bool("json", false, "print results as JSON envelopes")
	noLoad := flag.Bool("no-load", false, "start with empty records instead of loading the data store")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: ccrm [flags] [command args...]\n\nWithout a command ccrm starts an interactive shell.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, logr, *jsonOutput, !*noLoad, flag.Args())
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger, jsonOutput, load bool, args []string) int {
	store := repository.NewStore()
	metrics := service.NewMetricsService(store)
	policy := service.PolicyFromConfig(cfg.Policy)
	validate := validator.New()

	repo, closeRepo, err := openRecordRepository(ctx, cfg, logr)
	if err != nil {
		logr.Error("failed to open data store", zap.String("driver", cfg.Persistence.Driver), zap.Error(err))
		return appErrors.ExitCode(err)
	}
	defer closeRepo()

	cacheSvc, closeCache := openCache(ctx, cfg, metrics, logr)
	defer closeCache()

	backupFiles, err := storage.NewLocalStorage(cfg.Storage.BackupDir)
	if err != nil {
		logr.Error("failed to prepare backup directory", zap.Error(err))
		return 1
	}
	exportFiles, err := storage.NewLocalStorage(cfg.Storage.ExportDir)
	if err != nil {
		logr.Error("failed to prepare export directory", zap.Error(err))
		return 1
	}
	var signer *storage.Signer
	if cfg.Backup.SigningSecret != "" {
		signer = storage.NewSigner(cfg.Backup.SigningSecret)
	}

	reports := service.NewReportService(store, policy, cacheSvc, metrics)
	persistence := service.NewPersistenceService(store, repo, metrics, logr)
	svc := cli.Services{
		Students:    service.NewStudentService(store, policy, validate, metrics),
		Courses:     service.NewCourseService(store, policy, validate, metrics),
		Enrollments: service.NewEnrollmentService(store, policy, validate, metrics),
		Reports:     reports,
		Persistence: persistence,
		Backups:     service.NewBackupService(store, backupFiles, signer, service.BackupConfig{RetentionDays: cfg.Backup.RetentionDays}, metrics, logr),
		Exports:     service.NewExportService(store, reports, exportFiles, metrics, logr, nil, nil),
		Metrics:     metrics,
	}

	var queue *jobs.Queue
	if cfg.Autosave.Enabled {
		queue = startAutosave(ctx, cfg.Autosave, persistence, logr)
	}

	if load {
		snapshot, err := persistence.Load(ctx)
		if err != nil {
			logr.Error("failed to load records", logger.ErrorFields(err)...)
			return appErrors.ExitCode(err)
		}
		logr.Info("records loaded",
			zap.Int("students", len(snapshot.Students)),
			zap.Int("courses", len(snapshot.Courses)),
			zap.Int("enrollments", len(snapshot.Enrollments)),
		)
		if err := reports.PurgeCache(ctx); err != nil {
			logr.Warn("failed to purge report cache", zap.Error(err))
		}
	}

	shell := cli.NewShell(svc, cli.Options{JSON: jsonOutput, Autosave: cfg.Autosave.Enabled}, os.Stdout, logr)
	var cmdErr error
	if len(args) > 0 {
		cmdErr = shell.Execute(ctx, args)
	} else {
		// Closing stdin unblocks the shell on interrupt.
		go func() {
			<-ctx.Done()
			_ = os.Stdin.Close()
		}()
		cmdErr = shell.Run(ctx, os.Stdin)
	}

	shutdown(cfg, logr, persistence, queue, metrics)
	return appErrors.ExitCode(cmdErr)
}

// startAutosave routes persistence saves through a worker queue. The workers
// outlive ctx so an interrupt still lets shutdown drain them.
func startAutosave(ctx context.Context, cfg config.AutosaveConfig, persistence *service.PersistenceService, logr *zap.Logger) *jobs.Queue {
	queue := jobs.NewQueue("autosave", persistence.Handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: 16,
		MaxRetries: cfg.Retries,
		RetryDelay: 500 * time.Millisecond,
		Logger:     logr,
	})
	queue.Start(context.WithoutCancel(ctx))
	persistence.UseQueue(queue)
	return queue
}

// shutdown drains pending autosaves, writes a final save when autosave is on
// and exports the metrics textfile.
func shutdown(cfg *config.Config, logr *zap.Logger, persistence *service.PersistenceService, queue *jobs.Queue, metrics *service.MetricsService) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if queue != nil {
		if err := queue.Flush(ctx); err != nil {
			logr.Warn("autosave queue did not drain", zap.Error(err))
		}
		queue.Stop()
	}
	if cfg.Autosave.Enabled {
		if err := persistence.Save(ctx); err != nil {
			logr.Error("final save failed", logger.ErrorFields(err)...)
		}
	}
	if cfg.Metrics.TextfilePath != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			logr.Warn("failed to write metrics textfile", zap.String("path", cfg.Metrics.TextfilePath), zap.Error(err))
		}
	}
}

// openRecordRepository picks the CSV directory or a SQL database as the data
// store.
func openRecordRepository(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.RecordRepository, func(), error) {
	if cfg.Persistence.Driver == config.DriverCSV || cfg.Persistence.Driver == "" {
		return repository.NewCSVRecordRepository(cfg.Storage.DataDir), func() {}, nil
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, "failed to connect to database")
	}
	repo := repository.NewSQLRecordRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, "failed to migrate database")
	}
	logr.Info("database ready", zap.String("driver", cfg.Persistence.Driver))
	return repo, closeDB(db, logr), nil
}

func closeDB(db *sqlx.DB, logr *zap.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			logr.Warn("failed to close database", zap.Error(err))
		}
	}
}

// openCache connects Redis when caching is enabled. An unreachable server
// degrades to running without a cache.
func openCache(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*service.CacheService, func()) {
	if !cfg.Cache.Enabled {
		return nil, func() {}
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("cache disabled, redis unavailable", zap.Error(err))
		return nil, func() {}
	}
	repo := repository.NewCacheRepository(client, "ccrm", logr)
	return service.NewCacheService(repo, metrics, cfg.Cache.TTL, logr, true), func() {
		if err := repo.Close(); err != nil {
			logr.Warn("failed to close redis", zap.Error(err))
		}
	}
}
