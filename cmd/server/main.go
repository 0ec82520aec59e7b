package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/enigmateam/lovewidget/internal/bot"
	"github.com/enigmateam/lovewidget/internal/config"
	"github.com/enigmateam/lovewidget/internal/database"
	"github.com/enigmateam/lovewidget/internal/mail"
	"github.com/enigmateam/lovewidget/internal/notification"
	postgresrepo "github.com/enigmateam/lovewidget/internal/repository/postgres"
	redisrepo "github.com/enigmateam/lovewidget/internal/repository/redis"
	"github.com/enigmateam/lovewidget/internal/service"
	"github.com/enigmateam/lovewidget/internal/transport/http/handlers"
	"github.com/enigmateam/lovewidget/internal/transport/http/middleware"
	"github.com/enigmateam/lovewidget/internal/transport/ws"
	"github.com/enigmateam/lovewidget/internal/upload"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	if err := run(cfg, log); err != nil {
		log.Fatalw("server exited", "error", err)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}
	log.Infow("connected to database")

	// Redis holds the password reset codes
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("unable to ping redis: %w", err)
	}
	log.Infow("connected to redis")

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	widgetRepo := postgresrepo.NewWidgetRepo(pool)
	resetRepo := redisrepo.NewResetCodeRepo(rdb)

	// Uploads
	uploads, err := upload.NewStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	// Push delivery: live WebSocket connections plus the mobile provider
	hub := ws.NewHub(log)
	dispatcher := service.NewPushDispatcher(log, 5*time.Second,
		ws.NewHubNotifier(hub),
		notification.NewClient(cfg.OneSignalAppID, cfg.OneSignalAPIKey, userRepo),
	)

	opsBot := bot.NewTelegramClient(cfg.TelegramBotToken, cfg.TelegramChannelID)
	mailer := mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)

	// Services
	authService := service.NewAuthService(userRepo, widgetRepo, resetRepo, mailer, opsBot, cfg.JWTSecret, log)
	userService := service.NewUserService(userRepo, dispatcher)
	widgetService := service.NewWidgetService(widgetRepo, userRepo, dispatcher)
	contentService := service.NewContentService(widgetRepo, userRepo, dispatcher, cfg.BaseURL)
	reactionService := service.NewReactionService(widgetRepo, userRepo, dispatcher)
	timelineService := service.NewTimelineService(widgetRepo)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, log)
	userHandler := handlers.NewUserHandler(userService, uploads, log)
	widgetHandler := handlers.NewWidgetHandler(widgetService, contentService, reactionService, timelineService, uploads, log)

	// Auth middleware
	auth := middleware.Auth(cfg.JWTSecret)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("POST /auth/signup", authHandler.Signup)
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.HandleFunc("POST /auth/skip-login", authHandler.SkipLogin)
	mux.HandleFunc("POST /auth/send-forget-email", authHandler.SendForgetEmail)
	mux.HandleFunc("POST /auth/forget-password", authHandler.ForgetPassword)
	mux.Handle("GET /upload/", http.StripPrefix("/upload/", http.FileServer(http.Dir(uploads.Dir()))))

	// Protected - Account
	mux.Handle("POST /auth/login-token", auth(http.HandlerFunc(authHandler.LoginToken)))
	mux.Handle("PATCH /auth/edit-password", auth(http.HandlerFunc(authHandler.EditPassword)))
	mux.Handle("DELETE /auth/delete-account", auth(http.HandlerFunc(authHandler.DeleteAccount)))
	mux.Handle("POST /auth/log-out", auth(http.HandlerFunc(authHandler.LogOut)))

	// Protected - Profile and friends
	mux.Handle("GET /user/me", auth(http.HandlerFunc(userHandler.GetMe)))
	mux.Handle("PATCH /user/edit-username", auth(http.HandlerFunc(userHandler.EditUsername)))
	mux.Handle("PATCH /user/profile-image", auth(http.HandlerFunc(userHandler.UpdateProfileImage)))
	mux.Handle("PATCH /user/add-friend/{code}", auth(http.HandlerFunc(userHandler.AddFriend)))
	mux.Handle("GET /user/show-friends", auth(http.HandlerFunc(userHandler.ShowFriends)))
	mux.Handle("DELETE /user/delete-friend/{friendId}", auth(http.HandlerFunc(userHandler.DeleteFriend)))
	mux.Handle("GET /user/search/{code}", auth(http.HandlerFunc(userHandler.Search)))
	mux.Handle("POST /user/send-notif", auth(http.HandlerFunc(userHandler.SendNotif)))

	// Protected - Widgets
	mux.Handle("POST /widget/create", auth(http.HandlerFunc(widgetHandler.Create)))
	mux.Handle("DELETE /widget/delete/{widgetId}", auth(http.HandlerFunc(widgetHandler.Delete)))
	mux.Handle("GET /widget/home", auth(http.HandlerFunc(widgetHandler.Home)))
	mux.Handle("GET /widget/single/{widgetId}", auth(http.HandlerFunc(widgetHandler.Single)))
	mux.Handle("GET /widget/history/app/{widgetId}", auth(http.HandlerFunc(widgetHandler.AppHistory)))
	mux.Handle("GET /widget/history/widget/{widgetId}", auth(http.HandlerFunc(widgetHandler.WidgetHistory)))
	mux.Handle("PATCH /widget/add-user/{widgetId}", auth(http.HandlerFunc(widgetHandler.AddUser)))
	mux.Handle("PATCH /widget/add-reaction/{widgetId}/{contentId}", auth(http.HandlerFunc(widgetHandler.AddReaction)))
	mux.Handle("PATCH /widget/show-reaction/{widgetId}/{contentId}", auth(http.HandlerFunc(widgetHandler.ShowReaction)))
	mux.Handle("POST /widget/add-content/{widgetId}", auth(http.HandlerFunc(widgetHandler.AddContent)))
	mux.Handle("POST /widget/miss-you/{widgetId}", auth(http.HandlerFunc(widgetHandler.MissYou)))

	// Protected - Live push channel
	mux.Handle("GET /ws", auth(ws.Handler(hub)))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: middleware.CORS(mux),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := hub.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		log.Infow("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
