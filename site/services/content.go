package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"labsite/site/auth"
	"labsite/site/render"
	"labsite/site/schema"
	"labsite/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContentService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ContentService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Get("/", s.List)
		r.Get("/{content_id}", s.Get)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.EditorOnly())

		r.Get("/admin/all", s.ListAll)
		r.Post("/", s.Create)
		r.Put("/{content_id}", s.Update)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly())

		r.Delete("/{content_id}", s.Delete)
	})

	return r
}

type ContentInfo struct {
	Id        uuid.UUID `json:"id"`
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Html      string    `json:"html,omitempty"`
	Type      string    `json:"type"`
	Section   string    `json:"section"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

func convertToContentInfo(content *schema.Content, renderHtml bool) (ContentInfo, error) {
	info := ContentInfo{
		Id:        content.Id,
		Key:       content.Key,
		Title:     content.Title,
		Body:      content.Body,
		Type:      content.Type,
		Section:   content.Section,
		IsActive:  content.IsActive,
		UpdatedAt: content.UpdatedAt,
	}

	if renderHtml {
		html, err := render.ToHtml(content.Type, content.Body)
		if err != nil {
			return info, err
		}
		info.Html = html
		contentRenderMetric.Observe(float64(len(html)))
	}

	return info, nil
}

func wantsHtml(r *http.Request) bool {
	return r.URL.Query().Get("format") == "html"
}

func (s *ContentService) List(w http.ResponseWriter, r *http.Request) {
	query := s.db.Where("is_active = ?", true)

	if section := r.URL.Query().Get("section"); section != "" {
		query = query.Where("section = ?", section)
	}
	if key := r.URL.Query().Get("key"); key != "" {
		query = query.Where("key = ?", key)
	}

	var contents []schema.Content
	result := query.Order("section, key").Find(&contents)
	if result.Error != nil {
		slog.Error("sql error listing content", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing content: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	s.writeContentList(w, r, contents)
}

func (s *ContentService) ListAll(w http.ResponseWriter, r *http.Request) {
	var contents []schema.Content
	result := s.db.Order("section, key").Find(&contents)
	if result.Error != nil {
		slog.Error("sql error listing all content", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing content: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	s.writeContentList(w, r, contents)
}

func (s *ContentService) writeContentList(w http.ResponseWriter, r *http.Request, contents []schema.Content) {
	renderHtml := wantsHtml(r)

	infos := make([]ContentInfo, 0, len(contents))
	for i := range contents {
		info, err := convertToContentInfo(&contents[i], renderHtml)
		if err != nil {
			http.Error(w, fmt.Sprintf("error rendering content %v: %v", contents[i].Key, err), http.StatusInternalServerError)
			return
		}
		infos = append(infos, info)
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *ContentService) Get(w http.ResponseWriter, r *http.Request) {
	contentId, err := utils.URLParamUUID(r, "content_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	content, err := schema.GetContent(contentId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrContentNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting content: %v", err), http.StatusInternalServerError)
		return
	}

	if !content.IsActive {
		http.Error(w, schema.ErrContentNotFound.Error(), http.StatusNotFound)
		return
	}

	info, err := convertToContentInfo(&content, wantsHtml(r))
	if err != nil {
		http.Error(w, fmt.Sprintf("error rendering content: %v", err), http.StatusInternalServerError)
		return
	}
	utils.WriteJsonResponse(w, info)
}

type contentRequest struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Type    string `json:"type"`
	Section string `json:"section"`
}

func (s *ContentService) Create(w http.ResponseWriter, r *http.Request) {
	var params contentRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Type == "" {
		params.Type = schema.ContentText
	}
	if params.Section == "" {
		params.Section = schema.SectionGeneral
	}

	v := fieldValidator{}
	v.Require("key", params.Key)
	v.Require("title", params.Title)
	v.Require("body", params.Body)
	v.Check("type", schema.CheckContentType(params.Type))
	v.Check("section", schema.CheckContentSection(params.Section))
	if !v.Ok() {
		v.WriteErrors(w)
		return
	}

	content := schema.Content{
		Id:       uuid.New(),
		Key:      params.Key,
		Title:    params.Title,
		Body:     params.Body,
		Type:     params.Type,
		Section:  params.Section,
		IsActive: true,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Content
		result := txn.Limit(1).Find(&existing, "key = ?", params.Key)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate content key", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("content with key '%v' already exists", params.Key), http.StatusBadRequest)
		}

		result = txn.Create(&content)
		if result.Error != nil {
			slog.Error("sql error creating content", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		if GetResponseCode(err) == http.StatusBadRequest {
			v := fieldValidator{}
			v.Add("key", err.Error())
			v.WriteErrors(w)
			return
		}
		http.Error(w, fmt.Sprintf("error creating content: %v", err), GetResponseCode(err))
		return
	}

	entityWritesMetric.WithLabelValues("content", "create").Inc()

	info, _ := convertToContentInfo(&content, false)
	utils.WriteJsonResponseStatus(w, http.StatusCreated, info)
}

type contentUpdateRequest struct {
	Title   *string `json:"title"`
	Body    *string `json:"body"`
	Type    *string `json:"type"`
	Section *string `json:"section"`
	Active  *bool   `json:"is_active"`
}

func (s *ContentService) Update(w http.ResponseWriter, r *http.Request) {
	contentId, err := utils.URLParamUUID(r, "content_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params contentUpdateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	v := fieldValidator{}
	if params.Title != nil {
		v.Require("title", *params.Title)
	}
	if params.Type != nil {
		v.Check("type", schema.CheckContentType(*params.Type))
	}
	if params.Section != nil {
		v.Check("section", schema.CheckContentSection(*params.Section))
	}
	if !v.Ok() {
		v.WriteErrors(w)
		return
	}

	if !checkVisibilityPermission(w, r, params.Active) {
		return
	}

	var content schema.Content
	err = s.db.Transaction(func(txn *gorm.DB) error {
		content, err = schema.GetContent(contentId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrContentNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if params.Title != nil {
			content.Title = *params.Title
		}
		if params.Body != nil {
			content.Body = *params.Body
		}
		if params.Type != nil {
			content.Type = *params.Type
		}
		if params.Section != nil {
			content.Section = *params.Section
		}
		if params.Active != nil {
			content.IsActive = *params.Active
		}

		result := txn.Save(&content)
		if result.Error != nil {
			slog.Error("sql error updating content", "content_id", contentId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating content: %v", err), GetResponseCode(err))
		return
	}

	entityWritesMetric.WithLabelValues("content", "update").Inc()

	info, _ := convertToContentInfo(&content, false)
	utils.WriteJsonResponse(w, info)
}

func (s *ContentService) Delete(w http.ResponseWriter, r *http.Request) {
	contentId, err := utils.URLParamUUID(r, "content_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = softDelete(s.db, &schema.Content{}, contentId, schema.ErrContentNotFound)
	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting content: %v", err), GetResponseCode(err))
		return
	}

	entityWritesMetric.WithLabelValues("content", "delete").Inc()

	utils.WriteSuccess(w)
}
