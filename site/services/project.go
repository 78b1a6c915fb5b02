package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"labsite/site/auth"
	"labsite/site/schema"
	"labsite/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ProjectService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Get("/", s.List)
		r.Get("/{project_id}", s.Get)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.EditorOnly())

		r.Get("/admin/all", s.ListAll)
		r.Post("/", s.Create)
		r.Put("/{project_id}", s.Update)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly())

		r.Delete("/{project_id}", s.Delete)
	})

	return r
}

type ProjectImageInfo struct {
	Url     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

type TeamMemberSummary struct {
	Id       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Position string    `json:"position"`
}

type PublicationSummary struct {
	Id      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Journal string    `json:"journal,omitempty"`
	Year    int       `json:"year"`
}

type ProjectInfo struct {
	Id          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category"`
	Status      string     `json:"status"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`

	TeamMembers  []TeamMemberSummary  `json:"team_members"`
	Publications []PublicationSummary `json:"publications"`
	Images       []ProjectImageInfo   `json:"images"`

	Tags []string `json:"tags,omitempty"`

	IsActive   bool      `json:"is_active"`
	IsFeatured bool      `json:"is_featured"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func convertToProjectInfo(project *schema.Project) ProjectInfo {
	info := ProjectInfo{
		Id:           project.Id,
		Title:        project.Title,
		Description:  project.Description,
		Category:     project.Category,
		Status:       project.Status,
		StartDate:    project.StartDate,
		EndDate:      project.EndDate,
		TeamMembers:  make([]TeamMemberSummary, 0, len(project.TeamMembers)),
		Publications: make([]PublicationSummary, 0, len(project.Publications)),
		Images:       make([]ProjectImageInfo, 0, len(project.Images)),
		Tags:         project.Tags,
		IsActive:     project.IsActive,
		IsFeatured:   project.IsFeatured,
		UpdatedAt:    project.UpdatedAt,
	}

	for _, member := range project.TeamMembers {
		info.TeamMembers = append(info.TeamMembers, TeamMemberSummary{
			Id: member.Id, Name: member.Name, Position: member.Position,
		})
	}
	for _, pub := range project.Publications {
		info.Publications = append(info.Publications, PublicationSummary{
			Id: pub.Id, Title: pub.Title, Journal: pub.Journal, Year: pub.Year,
		})
	}
	for _, img := range project.Images {
		info.Images = append(info.Images, ProjectImageInfo{Url: img.Url, Caption: img.Caption})
	}

	return info
}

func (s *ProjectService) projectListQuery(r *http.Request, publicOnly bool) (*gorm.DB, error) {
	query := s.db.Preload("TeamMembers").Preload("Publications").Preload("Images")

	if publicOnly {
		query = query.Where("is_active = ?", true)
	}

	if category := r.URL.Query().Get("category"); category != "" {
		if err := schema.CheckProjectCategory(category); err != nil {
			return nil, err
		}
		query = query.Where("category = ?", category)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		if err := schema.CheckProjectStatus(status); err != nil {
			return nil, err
		}
		query = query.Where("status = ?", status)
	}
	if r.URL.Query().Get("featured") == "true" {
		query = query.Where("is_featured = ?", true)
	}

	return query.Order("start_date desc"), nil
}

func (s *ProjectService) List(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, true)
}

func (s *ProjectService) ListAll(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, false)
}

func (s *ProjectService) list(w http.ResponseWriter, r *http.Request, publicOnly bool) {
	query, err := s.projectListQuery(r, publicOnly)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var projects []schema.Project
	result := query.Find(&projects)
	if result.Error != nil {
		slog.Error("sql error listing projects", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing projects: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]ProjectInfo, 0, len(projects))
	for i := range projects {
		infos = append(infos, convertToProjectInfo(&projects[i]))
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *ProjectService) Get(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	project, err := schema.GetProject(projectId, s.db, true)
	if err != nil {
		if errors.Is(err, schema.ErrProjectNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting project: %v", err), http.StatusInternalServerError)
		return
	}

	if !project.IsActive {
		http.Error(w, schema.ErrProjectNotFound.Error(), http.StatusNotFound)
		return
	}

	utils.WriteJsonResponse(w, convertToProjectInfo(&project))
}

type projectImageRequest struct {
	Url     string `json:"url"`
	Caption string `json:"caption"`
}

type projectRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Status      string     `json:"status"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`

	TeamMemberIds  []uuid.UUID           `json:"team_member_ids"`
	PublicationIds []uuid.UUID           `json:"publication_ids"`
	Images         []projectImageRequest `json:"images"`

	Tags []string `json:"tags"`

	IsFeatured bool `json:"is_featured"`
}

// loadRelations resolves referenced team member and publication ids so that
// a request naming a nonexistent id fails with a field error instead of a
// dangling join-table row.
func loadRelations(txn *gorm.DB, memberIds, pubIds []uuid.UUID) ([]schema.TeamMember, []schema.Publication, error) {
	var members []schema.TeamMember
	if len(memberIds) > 0 {
		result := txn.Find(&members, "id in ?", memberIds)
		if result.Error != nil {
			slog.Error("sql error loading project team members", "error", result.Error)
			return nil, nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if len(members) != len(memberIds) {
			return nil, nil, CodedError(errors.New("one or more team member ids do not exist"), http.StatusBadRequest)
		}
	}

	var pubs []schema.Publication
	if len(pubIds) > 0 {
		result := txn.Find(&pubs, "id in ?", pubIds)
		if result.Error != nil {
			slog.Error("sql error loading project publications", "error", result.Error)
			return nil, nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if len(pubs) != len(pubIds) {
			return nil, nil, CodedError(errors.New("one or more publication ids do not exist"), http.StatusBadRequest)
		}
	}

	return members, pubs, nil
}

func buildProjectImages(projectId uuid.UUID, images []projectImageRequest) []schema.ProjectImage {
	out := make([]schema.ProjectImage, 0, len(images))
	for i, img := range images {
		out = append(out, schema.ProjectImage{
			ProjectId: projectId, Position: i, Url: img.Url, Caption: img.Caption,
		})
	}
	return out
}

func (s *ProjectService) Create(w http.ResponseWriter, r *http.Request) {
	var params projectRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Status == "" {
		params.Status = schema.StatusActive
	}
	if params.StartDate.IsZero() {
		params.StartDate = time.Now().UTC()
	}

	v := fieldValidator{}
	v.Require("title", params.Title)
	v.Check("category", schema.CheckProjectCategory(params.Category))
	v.Check("status", schema.CheckProjectStatus(params.Status))
	for _, img := range params.Images {
		v.Require("images.url", img.Url)
	}
	if !v.Ok() {
		v.WriteErrors(w)
		return
	}

	project := schema.Project{
		Id:          uuid.New(),
		Title:       params.Title,
		Description: params.Description,
		Category:    params.Category,
		Status:      params.Status,
		StartDate:   params.StartDate,
		EndDate:     params.EndDate,
		Tags:        params.Tags,
		IsActive:    true,
		IsFeatured:  params.IsFeatured,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		members, pubs, err := loadRelations(txn, params.TeamMemberIds, params.PublicationIds)
		if err != nil {
			return err
		}
		project.TeamMembers = members
		project.Publications = pubs
		project.Images = buildProjectImages(project.Id, params.Images)

		result := txn.Create(&project)
		if result.Error != nil {
			slog.Error("sql error creating project", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating project: %v", err), GetResponseCode(err))
		return
	}

	entityWritesMetric.WithLabelValues("project", "create").Inc()

	utils.WriteJsonResponseStatus(w, http.StatusCreated, convertToProjectInfo(&project))
}

type projectUpdateRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Status      *string    `json:"status"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`

	TeamMemberIds  *[]uuid.UUID           `json:"team_member_ids"`
	PublicationIds *[]uuid.UUID           `json:"publication_ids"`
	Images         *[]projectImageRequest `json:"images"`

	Tags *[]string `json:"tags"`

	Active   *bool `json:"is_active"`
	Featured *bool `json:"is_featured"`
}

func (s *ProjectService) Update(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params projectUpdateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	v := fieldValidator{}
	if params.Title != nil {
		v.Require("title", *params.Title)
	}
	if params.Category != nil {
		v.Check("category", schema.CheckProjectCategory(*params.Category))
	}
	if params.Status != nil {
		v.Check("status", schema.CheckProjectStatus(*params.Status))
	}
	if !v.Ok() {
		v.WriteErrors(w)
		return
	}

	if !checkVisibilityPermission(w, r, params.Active) {
		return
	}

	var project schema.Project
	err = s.db.Transaction(func(txn *gorm.DB) error {
		project, err = schema.GetProject(projectId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrProjectNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if params.Title != nil {
			project.Title = *params.Title
		}
		if params.Description != nil {
			project.Description = *params.Description
		}
		if params.Category != nil {
			project.Category = *params.Category
		}
		if params.Status != nil {
			project.Status = *params.Status
		}
		if params.StartDate != nil {
			project.StartDate = *params.StartDate
		}
		if params.EndDate != nil {
			project.EndDate = params.EndDate
		}
		if params.Tags != nil {
			project.Tags = *params.Tags
		}
		if params.Active != nil {
			project.IsActive = *params.Active
		}
		if params.Featured != nil {
			project.IsFeatured = *params.Featured
		}

		result := txn.Omit("TeamMembers", "Publications", "Images").Save(&project)
		if result.Error != nil {
			slog.Error("sql error updating project", "project_id", projectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if params.TeamMemberIds != nil || params.PublicationIds != nil {
			var memberIds, pubIds []uuid.UUID
			if params.TeamMemberIds != nil {
				memberIds = *params.TeamMemberIds
			}
			if params.PublicationIds != nil {
				pubIds = *params.PublicationIds
			}
			members, pubs, err := loadRelations(txn, memberIds, pubIds)
			if err != nil {
				return err
			}
			if params.TeamMemberIds != nil {
				if err := txn.Model(&project).Association("TeamMembers").Replace(members); err != nil {
					slog.Error("sql error replacing project team members", "project_id", projectId, "error", err)
					return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
				}
			}
			if params.PublicationIds != nil {
				if err := txn.Model(&project).Association("Publications").Replace(pubs); err != nil {
					slog.Error("sql error replacing project publications", "project_id", projectId, "error", err)
					return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
				}
			}
		}

		if params.Images != nil {
			result := txn.Where("project_id = ?", projectId).Delete(&schema.ProjectImage{})
			if result.Error != nil {
				slog.Error("sql error clearing project images", "project_id", projectId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
			images := buildProjectImages(projectId, *params.Images)
			if len(images) > 0 {
				result = txn.Create(&images)
				if result.Error != nil {
					slog.Error("sql error saving project images", "project_id", projectId, "error", result.Error)
					return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
				}
			}
		}

		project, err = schema.GetProject(projectId, txn, true)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating project: %v", err), GetResponseCode(err))
		return
	}

	entityWritesMetric.WithLabelValues("project", "update").Inc()

	utils.WriteJsonResponse(w, convertToProjectInfo(&project))
}

func (s *ProjectService) Delete(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = softDelete(s.db, &schema.Project{}, projectId, schema.ErrProjectNotFound)
	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting project: %v", err), GetResponseCode(err))
		return
	}

	entityWritesMetric.WithLabelValues("project", "delete").Inc()

	utils.WriteSuccess(w)
}
