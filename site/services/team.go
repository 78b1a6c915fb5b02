package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"labsite/site/auth"
	"labsite/site/schema"
	"labsite/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TeamService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *TeamService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Get("/", s.List)
		r.Get("/{member_id}", s.Get)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.EditorOnly())

		r.Get("/admin/all", s.ListAll)
		r.Post("/", s.Create)
		r.Put("/{member_id}", s.Update)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly())

		r.Delete("/{member_id}", s.Delete)
	})

	return r
}

type TeamMemberInfo struct {
	Id           uuid.UUID         `json:"id"`
	Name         string            `json:"name"`
	Position     string            `json:"position"`
	Bio          string            `json:"bio,omitempty"`
	Email        string            `json:"email,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	ImageUrl     string            `json:"image_url,omitempty"`
	Expertise    []string          `json:"expertise,omitempty"`
	SocialLinks  map[string]string `json:"social_links,omitempty"`
	DisplayOrder int               `json:"display_order"`
	IsActive     bool              `json:"is_active"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func convertToTeamMemberInfo(member *schema.TeamMember) TeamMemberInfo {
	return TeamMemberInfo{
		Id:           member.Id,
		Name:         member.Name,
		Position:     member.Position,
		Bio:          member.Bio,
		Email:        member.Email,
		Phone:        member.Phone,
		ImageUrl:     member.ImageUrl,
		Expertise:    member.Expertise,
		SocialLinks:  member.SocialLinks,
		DisplayOrder: member.DisplayOrder,
		IsActive:     member.IsActive,
		UpdatedAt:    member.UpdatedAt,
	}
}

func (s *TeamService) List(w http.ResponseWriter, r *http.Request) {
	var members []schema.TeamMember
	result := s.db.Where("is_active = ?", true).Order("display_order, name").Find(&members)
	if result.Error != nil {
		slog.Error("sql error listing team members", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing team members: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	writeTeamMemberList(w, members)
}

func (s *TeamService) ListAll(w http.ResponseWriter, r *http.Request) {
	var members []schema.TeamMember
	result := s.db.Order("display_order, name").Find(&members)
	if result.Error != nil {
		slog.Error("sql error listing all team members", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing team members: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	writeTeamMemberList(w, members)
}

func writeTeamMemberList(w http.ResponseWriter, members []schema.TeamMember) {
	infos := make([]TeamMemberInfo, 0, len(members))
	for i := range members {
		infos = append(infos, convertToTeamMemberInfo(&members[i]))
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *TeamService) Get(w http.ResponseWriter, r *http.Request) {
	memberId, err := utils.URLParamUUID(r, "member_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	member, err := schema.GetTeamMember(memberId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrTeamMemberNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting team member: %v", err), http.StatusInternalServerError)
		return
	}

	if !member.IsActive {
		http.Error(w, schema.ErrTeamMemberNotFound.Error(), http.StatusNotFound)
		return
	}

	utils.WriteJsonResponse(w, convertToTeamMemberInfo(&member))
}

type teamMemberRequest struct {
	Name         string            `json:"name"`
	Position     string            `json:"position"`
	Bio          string            `json:"bio"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone"`
	ImageUrl     string            `json:"image_url"`
	Expertise    []string          `json:"expertise"`
	SocialLinks  map[string]string `json:"social_links"`
	DisplayOrder int               `json:"display_order"`
}

func (s *TeamService) Create(w http.ResponseWriter, r *http.Request) {
	var params teamMemberRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	v := fieldValidator{}
	v.Require("name", params.Name)
	v.Require("position", params.Position)
	if params.Email != "" {
		if _, err := mail.ParseAddress(params.Email); err != nil {
			v.Add("email", "invalid email address")
		}
	}
	if !v.Ok() {
		v.WriteErrors(w)
		return
	}

	member := schema.TeamMember{
		Id:           uuid.New(),
		Name:         params.Name,
		Position:     params.Position,
		Bio:          params.Bio,
		Email:        params.Email,
		Phone:        params.Phone,
		ImageUrl:     params.ImageUrl,
		Expertise:    params.Expertise,
		SocialLinks:  params.SocialLinks,
		DisplayOrder: params.DisplayOrder,
		IsActive:     true,
	}

	result := s.db.Create(&member)
	if result.Error != nil {
		slog.Error("sql error creating team member", "error", result.Error)
		http.Error(w, fmt.Sprintf("error creating team member: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	entityWritesMetric.WithLabelValues("team_member", "create").Inc()

	utils.WriteJsonResponseStatus(w, http.StatusCreated, convertToTeamMemberInfo(&member))
}

type teamMemberUpdateRequest struct {
	Name         *string            `json:"name"`
	Position     *string            `json:"position"`
	Bio          *string            `json:"bio"`
	Email        *string            `json:"email"`
	Phone        *string            `json:"phone"`
	ImageUrl     *string            `json:"image_url"`
	Expertise    *[]string          `json:"expertise"`
	SocialLinks  *map[string]string `json:"social_links"`
	DisplayOrder *int               `json:"display_order"`
	Active       *bool              `json:"is_active"`
}

func (s *TeamService) Update(w http.ResponseWriter, r *http.Request) {
	memberId, err := utils.URLParamUUID(r, "member_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params teamMemberUpdateRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	v := fieldValidator{}
	if params.Name != nil {
		v.Require("name", *params.Name)
	}
	if params.Position != nil {
		v.Require("position", *params.Position)
	}
	if params.Email != nil && *params.Email != "" {
		if _, err := mail.ParseAddress(*params.Email); err != nil {
			v.Add("email", "invalid email address")
		}
	}
	if !v.Ok() {
		v.WriteErrors(w)
		return
	}

	if !checkVisibilityPermission(w, r, params.Active) {
		return
	}

	var member schema.TeamMember
	err = s.db.Transaction(func(txn *gorm.DB) error {
		member, err = schema.GetTeamMember(memberId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrTeamMemberNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if params.Name != nil {
			member.Name = *params.Name
		}
		if params.Position != nil {
			member.Position = *params.Position
		}
		if params.Bio != nil {
			member.Bio = *params.Bio
		}
		if params.Email != nil {
			member.Email = *params.Email
		}
		if params.Phone != nil {
			member.Phone = *params.Phone
		}
		if params.ImageUrl != nil {
			member.ImageUrl = *params.ImageUrl
		}
		if params.Expertise != nil {
			member.Expertise = *params.Expertise
		}
		if params.SocialLinks != nil {
			member.SocialLinks = *params.SocialLinks
		}
		if params.DisplayOrder != nil {
			member.DisplayOrder = *params.DisplayOrder
		}
		if params.Active != nil {
			member.IsActive = *params.Active
		}

		result := txn.Save(&member)
		if result.Error != nil {
			slog.Error("sql error updating team member", "member_id", memberId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating team member: %v", err), GetResponseCode(err))
		return
	}

	entityWritesMetric.WithLabelValues("team_member", "update").Inc()

	utils.WriteJsonResponse(w, convertToTeamMemberInfo(&member))
}

func (s *TeamService) Delete(w http.ResponseWriter, r *http.Request) {
	memberId, err := utils.URLParamUUID(r, "member_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = softDelete(s.db, &schema.TeamMember{}, memberId, schema.ErrTeamMemberNotFound)
	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting team member: %v", err), GetResponseCode(err))
		return
	}

	entityWritesMetric.WithLabelValues("team_member", "delete").Inc()

	utils.WriteSuccess(w)
}
