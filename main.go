package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "mailmirror-backend/cmd/api"
	authRepo "mailmirror-backend/internal/auth/repository"
	authUsecase "mailmirror-backend/internal/auth/usecase"
	emailRepo "mailmirror-backend/internal/email/repository"
	emailUsecase "mailmirror-backend/internal/email/usecase"
	syncRepo "mailmirror-backend/internal/mailsync/repository"
	"mailmirror-backend/internal/mailsync/scheduler"
	syncUsecase "mailmirror-backend/internal/mailsync/usecase"
	"mailmirror-backend/pkg/config"
	"mailmirror-backend/pkg/database"
	"mailmirror-backend/pkg/gmail"
	"mailmirror-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

// services holds everything a command needs once the store is open.
type services struct {
	cfg    *config.Config
	log    logger.Logger
	db     *gorm.DB
	auth   authUsecase.AuthUsecase
	email  emailUsecase.EmailUsecase
	runner syncUsecase.Runner
}

func bootstrap(migrate bool) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	appLogger := logger.NewAppLogger(&logger.Config{LogLevel: cfg.Logger.Level, DevMode: cfg.Logger.DevMode})

	db, err := database.NewPostgresConnection(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	credRepo := authRepo.NewCredentialRepository(db)
	emailRepository := emailRepo.NewEmailRepository(db)
	spamRepo := emailRepo.NewSpamRepository(db)
	draftRepo := emailRepo.NewDraftRepository(db)
	labelRepo := emailRepo.NewLabelRepository(db)
	sentRepo := emailRepo.NewSentEmailRepository(db)
	trashRepo := emailRepo.NewTrashRepository(db)
	syncRunRepo := syncRepo.NewSyncRunRepository(db)

	gmailService := gmail.NewService(gmail.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RateLimit:    cfg.Gmail.RateLimit,
		RateBurst:    cfg.Gmail.RateBurst,
	}, appLogger)

	authUc := authUsecase.NewAuthUsecase(userRepo, credRepo, cfg, appLogger)

	opts := syncUsecase.OptionsFromConfig(cfg.Sync)
	importer := syncUsecase.NewImporter(authUc, gmailService, syncUsecase.Repositories{
		Emails: emailRepository,
		Spam:   spamRepo,
		Drafts: draftRepo,
		Labels: labelRepo,
		Sent:   sentRepo,
	}, opts, appLogger)
	runner := syncUsecase.NewRunner(userRepo, importer, syncRunRepo, opts.UserConcurrency, appLogger)

	emailUc := emailUsecase.NewEmailUsecase(emailUsecase.Repositories{
		Emails: emailRepository,
		Spam:   spamRepo,
		Trash:  trashRepo,
		Labels: labelRepo,
		Sent:   sentRepo,
		Drafts: draftRepo,
	}, userRepo, authUc, gmailService, emailUsecase.Options{
		LabelScope:       cfg.Sync.LabelScope,
		FetchConcurrency: cfg.Sync.FetchConcurrency,
	}, appLogger)

	return &services{
		cfg:    cfg,
		log:    appLogger,
		db:     db,
		auth:   authUc,
		email:  emailUc,
		runner: runner,
	}, nil
}

func (s *services) close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = s.log.Sync()
}

func serve(c *cli.Context) error {
	svc, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer svc.close()

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(svc.auth, svc.email, svc.runner, svc.cfg, svc.log)
	srv := &http.Server{
		Addr:    ":" + svc.cfg.Port,
		Handler: handler.Router(),
	}

	syncScheduler := scheduler.NewSyncScheduler(svc.runner, svc.cfg.Sync.Schedule, svc.cfg.Sync.OnStart, svc.log)
	if err := syncScheduler.Start(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		svc.log.Infof("Server starting on port %s", svc.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		svc.log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		svc.log.Warnf("server shutdown: %v", shutdownErr)
	}
	syncScheduler.Stop()
	return err
}

func migrate(c *cli.Context) error {
	svc, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer svc.close()
	svc.log.Info("Database migrated")
	return nil
}

func syncOnce(c *cli.Context) error {
	svc, err := bootstrap(false)
	if err != nil {
		return err
	}
	defer svc.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var out interface{}
	if userID := c.String("user"); userID != "" {
		out = svc.runner.RunUser(ctx, userID)
	} else {
		out = svc.runner.RunAll(ctx)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func main() {
	app := &cli.App{
		Name:   "mailmirror",
		Usage:  "mirror Gmail mailboxes into a relational store",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the sync scheduler",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the database schema",
				Action: migrate,
			},
			{
				Name:  "sync",
				Usage: "import mailboxes once and print the result",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "import only this user id"},
				},
				Action: syncOnce,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
