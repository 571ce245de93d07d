package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ampflux/config"
	"ampflux/internal/auth"
	"ampflux/internal/authz"
	"ampflux/internal/circuits"
	"ampflux/internal/db"
	"ampflux/internal/health"
	"ampflux/internal/logs"
	"ampflux/internal/middleware"
	"ampflux/internal/models"
	"ampflux/internal/notify"
	"ampflux/internal/projects"
	"ampflux/internal/repo"
	"ampflux/internal/tasks"
	"ampflux/internal/users"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	httpServer *http.Server
	gateway    *tasks.Gateway

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	/* 1) logging */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB */
	d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	a.db = d

	if err := a.db.AutoMigrate(
		&models.Company{},
		&models.License{},
		&models.Account{},
		&models.Project{},
		&models.ProjectMember{},
		&models.ProjectShare{},
		&models.CircuitVersion{},
		&models.Simulation{},
		&models.AuditLog{},
	); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	/* 3) services and stores */
	accounts := repo.NewAccountStore(a.db)
	projectStore := repo.NewProjectStore(a.db)
	circuitStore := repo.NewCircuitStore(a.db)
	audit := repo.NewAuditStore(a.db)
	resolver := authz.NewResolver(a.db)
	mailer := notify.New(notify.SMTPConfig{
		Host:     a.cfg.SMTP.Host,
		Port:     a.cfg.SMTP.Port,
		Username: a.cfg.SMTP.Username,
		Password: a.cfg.SMTP.Password,
		From:     a.cfg.SMTP.From,
	})

	tokens, err := auth.NewTokenService(a.cfg.Auth.Secret, auth.NewMemRevocationSet())
	if err != nil {
		log.Fatalf("token service init failed: %v", err)
	}
	cookies := auth.CookieOptions{
		Secure:     a.cfg.Auth.CookieSecure,
		AccessTTL:  time.Duration(a.cfg.Auth.AccessTTLMinutes) * time.Minute,
		RefreshTTL: time.Duration(a.cfg.Auth.RefreshTTLDays) * 24 * time.Hour,
	}

	a.gateway = tasks.New(
		a.cfg.Tasks.Workers,
		a.cfg.Tasks.QueueSize,
		time.Duration(a.cfg.Tasks.RetentionMinutes)*time.Minute,
	)

	/* 4) Router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
		mux.MiddlewareFunc(cors.Handler(cors.Options{
			AllowedOrigins:   a.cfg.CORS.Origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		})),
	)

	/* 5) Health */
	health.RegisterRoutesWithDB(a.Router, a.db) // /healthz, /readyz

	/* 6) public auth routes, rate limited */
	authHandler := &auth.Handler{
		Accounts: accounts,
		Tokens:   tokens,
		Cookies:  cookies,
		Mailer:   mailer,
	}
	auth.RegisterRoutes(a.Router, authHandler,
		middleware.RateLimit(middleware.RateLimitConfig{RequestsPerSecond: 5, Burst: 10}))

	/* 7) session-gated API */
	session := &auth.SessionMiddleware{Tokens: tokens, Accounts: accounts}
	api := a.Router.PathPrefix("").Subrouter()
	api.Use(session.Require)

	users.RegisterRoutes(api, &users.Handler{Accounts: accounts, Mailer: mailer})
	projects.RegisterRoutes(api, &projects.Handler{
		Projects: projectStore,
		Accounts: accounts,
		Authz:    resolver,
		Audit:    audit,
		Mailer:   mailer,
	})
	circuits.RegisterRoutes(api, &circuits.Handler{
		Projects: projectStore,
		Circuits: circuitStore,
		Authz:    resolver,
		Audit:    audit,
		Tasks:    a.gateway,
	})

	/* (optional) log the known routes at startup */
	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	// Hard timeouts matter in production
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	// let queued simulations drain within the same deadline
	if err := a.gateway.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("task gateway shutdown: %v", err)
	}
	return nil
}
