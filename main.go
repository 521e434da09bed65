package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/yeremiapane/gaming-portal/config"
	"github.com/yeremiapane/gaming-portal/database"
	"github.com/yeremiapane/gaming-portal/identity"
	"github.com/yeremiapane/gaming-portal/realtime"
	"github.com/yeremiapane/gaming-portal/repository"
	"github.com/yeremiapane/gaming-portal/router"
	"github.com/yeremiapane/gaming-portal/services"
	"github.com/yeremiapane/gaming-portal/utils"
	"gorm.io/gorm"
)

// app holds the wired process. Everything is built once and passed down
// explicitly.
type app struct {
	engine    *gin.Engine
	hub       *realtime.Hub
	scheduler *services.ReminderScheduler
	redis     *redis.Client
}

func newApp(cfg *config.Config, db *gorm.DB) (*app, error) {
	users := repository.NewUserRepository(db)
	resolver := identity.NewResolver(
		identity.NewJWTValidator(cfg.JWTSecret, identity.UserIssuer),
		identity.NewJWTValidator(cfg.StaffJWTSecret, identity.StaffIssuer),
		users,
	)

	rooms := realtime.NewRoomRouter()
	hub := realtime.NewHub(rooms)

	var push services.PushGateway = services.NoopPushGateway{}
	if cfg.PushGatewayURL != "" {
		push = services.NewHTTPPushGateway(cfg.PushGatewayURL)
	}

	var mailer services.EmailTransport = services.LogMailer{}
	if cfg.SMTPHost != "" {
		mailer = services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	a := &app{hub: hub}

	var locker services.RunLocker = services.NewLocalRunLocker()
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		locker = services.NewRedisRunLocker(a.redis)
		utils.InfoLogger.Printf("Sweep run lock backed by Redis at %s", cfg.RedisAddr)
	}

	messages := services.NewMessageService(repository.NewMessageRepository(db), hub)
	ledger := services.NewNotificationLedger(repository.NewNotificationRepository(db), users, hub, rooms, push)
	notices := services.NewNoticeService(repository.NewNoticeRepository(db), ledger)
	a.scheduler = services.NewReminderScheduler(repository.NewLoanRepository(db), users, ledger, mailer, locker, cfg.Reminders)

	a.engine = router.SetupRouter(router.Deps{
		Resolver:          resolver,
		Rooms:             rooms,
		Messages:          messages,
		Ledger:            ledger,
		Notices:           notices,
		Scheduler:         a.scheduler,
		Users:             users,
		Attachments:       services.NewDiskAttachmentStore(cfg.UploadDir),
		AllowedOrigin:     cfg.AllowedOrigin,
		UploadDir:         cfg.UploadDir,
		RequestsPerMinute: 600,
	})
	return a, nil
}

func (a *app) close() {
	a.scheduler.Stop()
	a.hub.Close()
	a.hub.Wait()
	if a.redis != nil {
		a.redis.Close()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.ErrorLogger.Fatalf("Invalid configuration: %v", err)
	}
	utils.InitLogger(cfg.LogLevel)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")

	a, err := newApp(cfg, db)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to start: %v", err)
	}
	if err := a.scheduler.Start(); err != nil {
		utils.ErrorLogger.Fatalf("Failed to start reminder scheduler: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	<-ctx.Done()
	utils.InfoLogger.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Errorf("Server shutdown: %v", err)
	}
	a.close()
}
