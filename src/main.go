package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"regexp"
	"syscall"
	"ticketing/src/boot"
	"ticketing/src/config"
	"ticketing/src/metrics"
	"ticketing/src/middlewares"
	"time"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	apiPrefix string = "/api/v1"
)

var currencyCodePattern = regexp.MustCompile(`^[A-Za-z]{3}$`)

var currencyCodeValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	code, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return currencyCodePattern.MatchString(code)
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("currencycode", currencyCodeValidatorFunc)
	}
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

func maintenanceModeMiddleware(g *gin.Engine, enabled func() bool) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		if enabled() {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
			return
		}
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	if cfg.IsLocal() {
		return cors.Default()
	}
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "HEAD")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
	cc.AllowOriginFunc = func(origin string) bool {
		if cfg.AppHost == "" {
			return false
		}
		match, _ := regexp.MatchString(cfg.AppHost, origin)
		log.Printf("Origin matches %s: %v\n", origin, match)
		return match
	}
	cc.AllowCredentials = true
	cc.AllowAllOrigins = false
	return cors.New(cc)
}

func initLogger(dir string) {
	cwd, _ := os.Getwd()
	logDir := path.Join(cwd, dir)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.Printf("Could not create log dir %s: %s\n", logDir, err.Error())
		return
	}
	serverLogs := path.Join(logDir, "server.log")
	apiLogs := path.Join(logDir, "api.log")
	gin.ForceConsoleColor()

	f, err := os.Create(apiLogs)
	if err == nil {
		gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	if os.Getenv("API_ENV") == "" || os.Getenv("API_ENV") == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			log.Printf("No .env loaded: %s\n", err.Error())
		}
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %s", err)
	}
	initLogger(cfg.LogDir)
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_db, err := boot.InitDb(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %s", err)
	}
	app, err := boot.InitApp(ctx, cfg, _db)
	if err != nil {
		log.Fatalf("Failed to initialize: %s", err)
	}
	sched, err := boot.InitScheduler(app)
	if err != nil {
		log.Fatalf("Failed to start scheduler: %s", err)
	}

	registerValidators()
	router := setupRouter()
	router.Use(corsMiddleware(cfg))
	router = maintenanceModeMiddleware(router, func() bool { return cfg.MaintenanceMode })
	bookingHandlers(apiv1Group(router), app)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %s", err)
		}
	}()
	log.Printf("Listening on :%s\n", cfg.Port)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %s\n", err.Error())
	}
	if err := sched.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown: %s\n", err.Error())
	}
}
