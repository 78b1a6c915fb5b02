package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"labsite/site/auth"
	"labsite/site/schema"
	"labsite/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PublicationService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *PublicationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Get("/", s.List)
		r.Get("/{publication_id}", s.Get)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.EditorOnly())

		r.Get("/admin/all", s.ListAll)
		r.Post("/", s.Create)
		r.Put("/{publication_id}", s.Update)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly())

		r.Delete("/{publication_id}", s.Delete)
	})

	return r
}

type ProjectSummary struct {
	Id       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Category string    `json:"category"`
}

type PublicationInfo struct {
	Id       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Authors  []string  `json:"authors"`
	Journal  string    `json:"journal,omitempty"`
	Year     int       `json:"year"`
	Volume   string    `json:"volume,omitempty"`
	Issue    string    `json:"issue,omitempty"`
	Pages    string    `json:"pages,omitempty"`
	Doi      string    `json:"doi,omitempty"`
	Url      string    `json:"url,omitempty"`
	Abstract string    `json:"abstract,omitempty"`
	Type     string    `json:"type"`
	Tags     []string  `json:"tags,omitempty"`

	Projects []ProjectSummary `json:"projects"`

	IsActive   bool      `json:"is_active"`
	IsFeatured bool      `json:"is_featured"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func convertToPublicationInfo(pub *schema.Publication) PublicationInfo {
	info := PublicationInfo{
		Id:         pub.Id,
		Title:      pub.Title,
		Authors:    pub.Authors,
		Journal:    pub.Journal,
		Year:       pub.Year,
		Volume:     pub.Volume,
		Issue:      pub.Issue,
		Pages:      pub.Pages,
		Doi:        pub.Doi,
		Url:        pub.Url,
		Abstract:   pub.Abstract,
		Type:       pub.Type,
		Tags:       pub.Tags,
		Projects:   make([]ProjectSummary, 0, len(pub.Projects)),
		IsActive:   pub.IsActive,
		IsFeatured: pub.IsFeatured,
		UpdatedAt:  pub.UpdatedAt,
	}

	for _, project := range pub.Projects {
		info.Projects = append(info.Projects, ProjectSummary{
			Id: project.Id, Title: project.Title, Category: project.Category,
		})
	}

	return info
}

func (s *PublicationService) publicationListQuery(r *http.Request, publicOnly bool) (*gorm.DB, error) {
	query := s.db.Preload("Projects")

	if publicOnly {
		query = query.Where("is_active = ?", true)
	}

	if pubType := r.URL.Query().Get("type"); pubType != "" {
		if err := schema.CheckPublicationType(pubType); err != nil {
			return nil, err
		}
		query = query.Where("type = ?", pubType)
	}
	if yearRaw := r.URL.Query().Get("year"); yearRaw != "" {
		year, err := strconv.Atoi(yearRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid year '%v'", yearRaw)
		}
		query = query.Where("year = ?", year)
	}
	if r.URL.Query().Get("featured") == "true" {
		query = query.Where("is_featured = ?", true)
	}

	return query.Order("year desc, title"), nil
}

func (s *PublicationService) List(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, true)
}

func (s *PublicationService) ListAll(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, false)
}

func (s *PublicationService) list(w http.ResponseWriter, r *http.Request, publicOnly bool) {
	query, err := s.publicationListQuery(r, publicOnly)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var pubs []schema.Publication
	result := query.Find(&pubs)
	if result.Error != nil {
		slog.Error("sql error listing publications", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing publications: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]PublicationInfo, 0, len(pubs))
	for i := range pubs {
		infos = append(infos, convertToPublicationInfo(&pubs[i]))
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *PublicationService) Get(w http.ResponseWriter, r *http.Request) {
	pubId, err := utils.URLParamUUID(r, "publication_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pub, err := schema.GetPublication(pubId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrPublicationNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting publication: %v", err), http.StatusInternalServerError)
		return
	}

	if !pub.IsActive {
		http.Error(w, schema.ErrPublicationNotFound.Error(), http.StatusNotFound)
		return
	}

	utils.WriteJsonResponse(w, convertToPublicationInfo(&pub))
}

type publicationRequest struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Journal  string   `json:"journal"`
	Year     int      `json:"year"`
	Volume   string   `json:"volume"`
	Issue    string   `json:"issue"`
	Pages    string   `json:"pages"`
	Doi      string   `json:"doi"`
	Url      string   `json:"url"`
	Abstract string   `json:"abstract"`
	Type     string   `json:"type"`
	Tags     []string `json:"tags"`

	IsFeatured bool `json:"is_featured"`
}

func (s *PublicationService) Create(w http.ResponseWriter, r *http.Request) {
	var params publicationRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Type == "" {
		params.Type = schema.PubJournal
	}

	v := fieldValidator{}
	v.Require("title", params.Title)
	if len(params.Authors) == 0 {
		v.Add("authors", "at least one author is required")
	}
	if params.Year < 1900 || params.Year > time.Now().Year()+1 {
		v.Add("year", fmt.Sprintf("year %v is out of range", params.Year))
	}
	v.Check("type", schema.CheckPublicationType(params.Type))
	if !v.Ok() {
		v.WriteErrors(w)
		return
	}

	pub := schema.Publication{
		Id:         uuid.New(),
		Title:      params.Title,
		Authors:    params.Authors,
		Journal:    params.Journal,
		Year:       params.Year,
		Volume:     params.Volume,
		Issue:      params.Issue,
		Pages:      params.Pages,
		Doi:        params.Doi,
		Url:        params.Url,
		Abstract:   params.Abstract,
		Type:       params.Type,
		Tags:       params.Tags,
		IsActive:   true,
		IsFeatured: params.IsFeatured,
	}

	result := s.db.Create(&pub)
	if result.Error != nil {
		slog.Error("sql error creating publication", "error", result.Error)
		http.Error(w, fmt.Sprintf("error creating publication: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	entityWritesMetric.WithLabelValues("publication", "create").Inc()

	utils.WriteJsonResponseStatus(w, http.StatusCreated, convertToPublicationInfo(&pub))
}

type publicationUpdateRequest struct {
	Title    *string   `json:"title"`
	Authors  *[]string `json:"authors"`
	Journal  *string   `json:"journal"`
	Year     *int      `json:"year"`
	Volume   *string   `json:"volume"`
	Issue    *string   `json:"issue"`
	Pages    *string   `json:"pages"`
	Doi      *string   `json:"doi"`
	Url      *string   `json:"url"`
	Abstract *string   `json:"abstract"`
	Type     *string   `json:"type"`
	Tags     *[]string `json:"tags"`

	Active   *bool `json:"is_active"`
	Featured *bool `json:"is_featured"`
}

func (s *PublicationService) Update(w http.ResponseWriter, r *http.Request) {
	pubId, err := utils.URLParamUUID(r, "publication_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params publicationUpdateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	v := fieldValidator{}
	if params.Title != nil {
		v.Require("title", *params.Title)
	}
	if params.Authors != nil && len(*params.Authors) == 0 {
		v.Add("authors", "at least one author is required")
	}
	if params.Year != nil && (*params.Year < 1900 || *params.Year > time.Now().Year()+1) {
		v.Add("year", fmt.Sprintf("year %v is out of range", *params.Year))
	}
	if params.Type != nil {
		v.Check("type", schema.CheckPublicationType(*params.Type))
	}
	if !v.Ok() {
		v.WriteErrors(w)
		return
	}

	if !checkVisibilityPermission(w, r, params.Active) {
		return
	}

	var pub schema.Publication
	err = s.db.Transaction(func(txn *gorm.DB) error {
		pub, err = schema.GetPublication(pubId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrPublicationNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if params.Title != nil {
			pub.Title = *params.Title
		}
		if params.Authors != nil {
			pub.Authors = *params.Authors
		}
		if params.Journal != nil {
			pub.Journal = *params.Journal
		}
		if params.Year != nil {
			pub.Year = *params.Year
		}
		if params.Volume != nil {
			pub.Volume = *params.Volume
		}
		if params.Issue != nil {
			pub.Issue = *params.Issue
		}
		if params.Pages != nil {
			pub.Pages = *params.Pages
		}
		if params.Doi != nil {
			pub.Doi = *params.Doi
		}
		if params.Url != nil {
			pub.Url = *params.Url
		}
		if params.Abstract != nil {
			pub.Abstract = *params.Abstract
		}
		if params.Type != nil {
			pub.Type = *params.Type
		}
		if params.Tags != nil {
			pub.Tags = *params.Tags
		}
		if params.Active != nil {
			pub.IsActive = *params.Active
		}
		if params.Featured != nil {
			pub.IsFeatured = *params.Featured
		}

		result := txn.Omit("Projects").Save(&pub)
		if result.Error != nil {
			slog.Error("sql error updating publication", "publication_id", pubId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating publication: %v", err), GetResponseCode(err))
		return
	}

	entityWritesMetric.WithLabelValues("publication", "update").Inc()

	utils.WriteJsonResponse(w, convertToPublicationInfo(&pub))
}

func (s *PublicationService) Delete(w http.ResponseWriter, r *http.Request) {
	pubId, err := utils.URLParamUUID(r, "publication_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = softDelete(s.db, &schema.Publication{}, pubId, schema.ErrPublicationNotFound)
	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting publication: %v", err), GetResponseCode(err))
		return
	}

	entityWritesMetric.WithLabelValues("publication", "delete").Inc()

	utils.WriteSuccess(w)
}
