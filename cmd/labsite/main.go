package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"labsite/site/auth"
	"labsite/site/ratelimit"
	"labsite/site/schema"
	"labsite/site/services"
	"labsite/site/storage"

	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type labsiteEnv struct {
	DatabaseUri string `env:"DATABASE_URI,required"`
	UploadDir   string `env:"UPLOAD_DIR,required"`
	JwtSecret   string `env:"JWT_SECRET,required"`

	AdminUsername string `env:"ADMIN_USERNAME,required"`
	AdminEmail    string `env:"ADMIN_EMAIL,required"`
	AdminPassword string `env:"ADMIN_PASSWORD,required"`

	AllowSignup      bool `env:"ALLOW_SIGNUP" envDefault:"false"`
	TokenExpiryHours int  `env:"TOKEN_EXPIRY_HOURS" envDefault:"24"`

	PublicOrigin string `env:"PUBLIC_ORIGIN" envDefault:"http://localhost:3000"`
	Environment  string `env:"ENVIRONMENT" envDefault:"development"`

	SeedFile string `env:"SEED_FILE"`
	LogDir   string `env:"LOG_DIR" envDefault:"logs"`

	// Budget of requests each client ip may spend against the public api.
	RateLimitWindowMinutes int `env:"RATE_LIMIT_WINDOW_MINUTES" envDefault:"15"`
	RateLimitRequests      int `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
}

func loadEnv(envFile string) labsiteEnv {
	if envFile != "" {
		slog.Info(fmt.Sprintf("loading env from file %v", envFile))
		if err := godotenv.Load(envFile); err != nil {
			log.Fatalf("error loading .env file '%v': %v", envFile, err)
		}
	}

	cfg := labsiteEnv{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing environment variables: %v", err)
	}
	return cfg
}

func (env *labsiteEnv) postgresDsn() string {
	parts, err := url.Parse(env.DatabaseUri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func initLogging(logFile *os.File) {
	log.SetFlags(log.Lshortfile | log.Ltime | log.Ldate)
	log.SetOutput(io.MultiWriter(logFile, os.Stderr))
	slog.Info("logging initialized", "log_file", logFile.Name())
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	err = db.AutoMigrate(schema.AllEntities()...)
	if err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 8000, "Port to run server on")
	skipSeed := flag.Bool("skip_seed", false, "If specified will not insert the default content blocks on startup.")

	flag.Parse()

	cfg := loadEnv(*envFile)

	err := os.MkdirAll(cfg.LogDir, 0777)
	if err != nil {
		log.Fatalf("error creating log dir: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.LogDir, "labsite.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer logFile.Close()

	auditLog, err := os.OpenFile(filepath.Join(cfg.LogDir, "audit.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening audit log file: %v", err)
	}
	defer auditLog.Close()

	initLogging(logFile)

	db := initDb(cfg.postgresDsn())

	store := storage.NewLocalDisk(cfg.UploadDir)

	identityProvider, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(auditLog),
		auth.BasicProviderArgs{
			Secret:            []byte(cfg.JwtSecret),
			TokenExpiry:       time.Duration(cfg.TokenExpiryHours) * time.Hour,
			AllowDirectSignup: cfg.AllowSignup,
			AdminUsername:     cfg.AdminUsername,
			AdminEmail:        cfg.AdminEmail,
			AdminPassword:     cfg.AdminPassword,
		},
	)
	if err != nil {
		log.Fatalf("error creating identity provider: %v", err)
	}

	if !*skipSeed {
		if err := services.SeedContent(db, cfg.SeedFile); err != nil {
			log.Fatalf("error seeding default content: %v", err)
		}
	}

	site := services.NewSite(db, store, identityProvider, cfg.Environment)

	window := time.Duration(cfg.RateLimitWindowMinutes) * time.Minute
	limiter := ratelimit.New(float64(cfg.RateLimitRequests)/window.Seconds(), cfg.RateLimitRequests/10)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.PublicOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(limiter.Middleware)

	r.Mount("/api", site.Routes())

	r.Handle("/metrics", promhttp.Handler())

	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(store.Location()))))

	slog.Info("starting server", "port", *port, "environment", cfg.Environment)
	err = http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
}
