package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SpaghettiHub/maas-sub001/config"
	"github.com/SpaghettiHub/maas-sub001/internal/db"
	"github.com/SpaghettiHub/maas-sub001/internal/dnssync"
	"github.com/SpaghettiHub/maas-sub001/internal/health"
	"github.com/SpaghettiHub/maas-sub001/internal/ipam"
	"github.com/SpaghettiHub/maas-sub001/internal/logs"
	"github.com/SpaghettiHub/maas-sub001/internal/middleware"
	"github.com/SpaghettiHub/maas-sub001/internal/models"
	"github.com/SpaghettiHub/maas-sub001/internal/workflow"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type App struct {
	cfg        *config.Config
	Router     *mux.Router
	httpServer *http.Server

	db     *gorm.DB
	flows  *workflow.Coalescer
	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	// 1) Логи
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	// 2) БД
	d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	a.db = d

	// ---- DB migrations ----
	if err := a.db.AutoMigrate(
		// ipam
		&models.VLAN{},
		&models.Subnet{},
		&models.IPRange{},
		&models.StaticIPAddress{},
		&models.Node{},
		&models.Interface{},
		&models.InterfaceIP{},

		// dns
		&models.Domain{},
		&models.DNSResource{},
		&models.DNSResourceIP{},
		&models.DNSPublication{},
	); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}
	if err := db.MigrateStaticIPUniqueIndex(a.db); err != nil {
		logs.Logger.Warnf("static ip unique index migration: %v", err)
	}

	// 3) Роутер + middleware
	a.Router = mux.NewRouter()
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.LoggerMW)

	// 4) Health маршруты
	health.RegisterRoutesWithDB(a.Router, a.db) // /healthz и /readyz

	// 5) Доменные сервисы и их HTTP-ручки
	dnsRepo := dnssync.NewRepo(a.db)
	if _, err := dnsRepo.EnsureDefaultDomain(a.cfg.DNS.DefaultDomain); err != nil {
		log.Fatalf("default dns domain: %v", err)
	}
	dnsSvc := dnssync.NewService(dnsRepo)

	// раннер воркфлоу внешний; пока заданий некому отдавать — логируем
	// TODO: заменить на клиента temporal, когда появится раннер
	a.flows = workflow.NewCoalescer(workflow.ClientFunc(func(jobName string, param any) error {
		logs.Logger.WithField("job", jobName).Infof("workflow submit: %+v", param)
		return nil
	}), a.cfg.Workflow.Window)

	ipamRepo := ipam.NewRepo(a.db)
	util := ipam.NewEngine(ipamRepo)
	alloc := ipam.NewAllocator(ipamRepo, util, dnsSvc, a.flows)

	ipamHTTP := ipam.NewHTTP(ipamRepo, util, alloc)
	ipamHTTP.RegisterRoutes(a.Router)

	dnsHTTP := dnssync.NewHTTP(dnsRepo, dnsSvc, a.db)
	dnsHTTP.RegisterRoutes(a.Router)

	a.Router.Walk(func(rt *mux.Route, r *mux.Router, ancestors []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return ErrNotInitialized
	}
	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigs; a.cancel() }()

	a.httpServer = &http.Server{
		Addr:         bind,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()
	// не теряем накопленные в окне задания при остановке
	a.flows.Drain()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.httpServer.Shutdown(ctx)
	return nil
}

var ErrNotInitialized = &initError{"server not initialized (call Initialize(cfg) first)"}

type initError struct{ s string }

func (e *initError) Error() string { return e.s }
