// Package httpserver manages server creation and api routing.
package httpserver

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/go-petr/splitfx/internal/balancedelivery"
	"github.com/go-petr/splitfx/internal/balanceservice"
	"github.com/go-petr/splitfx/internal/conversiondelivery"
	"github.com/go-petr/splitfx/internal/conversionservice"
	"github.com/go-petr/splitfx/internal/expensedelivery"
	"github.com/go-petr/splitfx/internal/expenserepo"
	"github.com/go-petr/splitfx/internal/expenseservice"
	"github.com/go-petr/splitfx/internal/groupdelivery"
	"github.com/go-petr/splitfx/internal/grouprepo"
	"github.com/go-petr/splitfx/internal/groupservice"
	"github.com/go-petr/splitfx/internal/middleware"
	"github.com/go-petr/splitfx/internal/paymentdelivery"
	"github.com/go-petr/splitfx/internal/paymentrepo"
	"github.com/go-petr/splitfx/internal/paymentservice"
	"github.com/go-petr/splitfx/internal/ratecache"
	"github.com/go-petr/splitfx/internal/rateprovider"
	"github.com/go-petr/splitfx/internal/raterepo"
	"github.com/go-petr/splitfx/pkg/configpkg"
	"github.com/go-petr/splitfx/pkg/currencypkg"
)

// Rate cache drivers.
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

// Server holds db connection, handlers router and configuration.
type Server struct {
	DB       *sql.DB
	Engine   *gin.Engine
	Config   configpkg.Config
	Registry *prometheus.Registry
	Rates    ratecache.Store
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// NewRateStore returns the rate cache backend selected by config.RateCacheDriver.
func NewRateStore(ctx context.Context, conn *sql.DB, config configpkg.Config) (ratecache.Store, error) {
	switch config.RateCacheDriver {
	case CacheMemory, "":
		return ratecache.NewMemory(), nil
	case CacheRedis:
		client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("cannot connect to redis at %s: %w", config.RedisAddr, err)
		}

		return ratecache.NewRedis(client, "splitfx:rates"), nil
	case CachePostgres:
		return raterepo.NewRepoPGS(conn), nil
	default:
		return nil, fmt.Errorf("unknown rate cache driver %q", config.RateCacheDriver)
	}
}

func corsConfig(origins string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, middleware.RequestIDHeader)
	c.ExposeHeaders = []string{middleware.RequestIDHeader}

	var allowed []string

	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}

	if len(allowed) == 0 || (len(allowed) == 1 && allowed[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = allowed
	}

	return c
}

// New creates Server type with instantiated domains and routes.
func New(conn *sql.DB, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	rates, err := NewRateStore(context.Background(), conn, config)
	if err != nil {
		return nil, err
	}

	providers, err := rateprovider.FromConfig(config, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("cannot configure rate providers: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	chain := rateprovider.NewChain(rates, providers,
		rateprovider.WithTimeout(config.ProviderTimeout),
		rateprovider.WithRetryAfter(config.RateRetryAfter),
		rateprovider.WithMetrics(rateprovider.NewMetrics(registry)),
	)

	groupRepo := grouprepo.NewRepoPGS(conn)
	expenseRepo := expenserepo.NewRepoPGS(conn)
	paymentRepo := paymentrepo.NewRepoPGS(conn)

	conversionService := conversionservice.New(rates, chain,
		conversionservice.WithMaxAge(config.RateMaxAge),
		conversionservice.WithPivot(config.DefaultBaseCurrency),
	)
	groupService := groupservice.New(groupRepo, groupservice.WithRecoveryWindow(config.GroupRecoveryWindow))
	expenseService := expenseservice.New(expenseRepo, groupService)
	paymentService := paymentservice.New(paymentRepo, groupService)
	balanceService := balanceservice.New(groupService, expenseRepo, paymentRepo, conversionService)

	conversionHandler := conversiondelivery.NewHandler(conversionService, config.DefaultBaseCurrency)
	groupHandler := groupdelivery.NewHandler(groupService)
	expenseHandler := expensedelivery.NewHandler(expenseService)
	paymentHandler := paymentdelivery.NewHandler(paymentService)
	balanceHandler := balancedelivery.NewHandler(balanceService)

	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(cors.New(corsConfig(config.CORSAllowedOrigins)))

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	engine.POST("/currency/convert", conversionHandler.Convert)
	engine.GET("/currency/convert", conversionHandler.ConvertQuery)
	engine.POST("/currency/update", conversionHandler.Update)
	engine.GET("/currency/update", conversionHandler.Status)

	engine.POST("/groups", groupHandler.Create)
	engine.POST("/groups/join", groupHandler.Join)
	engine.GET("/groups/:id", groupHandler.Get)
	engine.DELETE("/groups/:id", groupHandler.Delete)
	engine.POST("/groups/:id/recover", groupHandler.Recover)
	engine.GET("/groups/:id/members", groupHandler.ListMembers)
	engine.DELETE("/groups/:id/members/:memberID", groupHandler.Leave)

	engine.POST("/groups/:id/expenses", expenseHandler.Create)
	engine.GET("/groups/:id/expenses", expenseHandler.List)
	engine.DELETE("/groups/:id/expenses/:expenseID", expenseHandler.Delete)
	engine.PUT("/groups/:id/expenses/:expenseID/participants/:memberID/settled", expenseHandler.SetSettled)

	engine.POST("/groups/:id/payments", paymentHandler.Create)
	engine.GET("/groups/:id/payments", paymentHandler.List)

	engine.GET("/groups/:id/balances", balanceHandler.Get)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		err := v.RegisterValidation("currency", currencypkg.ValidCurrency)
		if err != nil {
			return nil, fmt.Errorf("cannot register currency validator: %w", err)
		}
	}

	server := &Server{
		DB:       conn,
		Engine:   engine,
		Config:   config,
		Registry: registry,
		Rates:    rates,
	}

	return server, nil
}
