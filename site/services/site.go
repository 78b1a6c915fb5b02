package services

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"labsite/site/auth"
	"labsite/site/storage"
	"labsite/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type Site struct {
	auth        AuthService
	content     ContentService
	team        TeamService
	project     ProjectService
	publication PublicationService
	contact     ContactService
	upload      UploadService

	db          *gorm.DB
	environment string
}

func NewSite(db *gorm.DB, store storage.Storage, userAuth auth.IdentityProvider, environment string) Site {
	return Site{
		auth:        AuthService{db: db, userAuth: userAuth},
		content:     ContentService{db: db, userAuth: userAuth},
		team:        TeamService{db: db, userAuth: userAuth},
		project:     ProjectService{db: db, userAuth: userAuth},
		publication: PublicationService{db: db, userAuth: userAuth},
		contact:     ContactService{db: db, userAuth: userAuth},
		upload:      UploadService{storage: store, userAuth: userAuth},

		db:          db,
		environment: environment,
	}
}

func (s *Site) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/auth", s.auth.Routes())
	r.Mount("/content", s.content.Routes())
	r.Mount("/team", s.team.Routes())
	r.Mount("/projects", s.project.Routes())
	r.Mount("/publications", s.publication.Routes())
	r.Mount("/contact", s.contact.Routes())
	r.Mount("/upload", s.upload.Routes())

	r.Get("/health", s.Health)

	return r
}

type healthInfo struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
}

func (s *Site) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if sqlDb, err := s.db.DB(); err != nil || sqlDb.Ping() != nil {
		slog.Error("health check: database unreachable", "error", err)
		status = "degraded"
	}

	utils.WriteJsonResponse(w, healthInfo{
		Status:      status,
		Timestamp:   time.Now().UTC(),
		Environment: s.environment,
	})
}
