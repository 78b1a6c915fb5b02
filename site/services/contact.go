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

type ContactService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ContactService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", s.Submit)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.EditorOnly())

		r.Get("/messages", s.ListMessages)
		r.Get("/messages/{message_id}", s.GetMessage)
		r.Put("/messages/{message_id}/read", s.MarkRead)
		r.Put("/messages/{message_id}/respond", s.Respond)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly())

		r.Delete("/messages/{message_id}", s.DeleteMessage)
	})

	return r
}

type ContactMessageInfo struct {
	Id      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Subject string    `json:"subject"`
	Message string    `json:"message"`

	IsRead bool `json:"is_read"`

	Response    string     `json:"response,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	RespondedBy *string    `json:"responded_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func convertToContactMessageInfo(msg *schema.ContactMessage) ContactMessageInfo {
	info := ContactMessageInfo{
		Id:          msg.Id,
		Name:        msg.Name,
		Email:       msg.Email,
		Subject:     msg.Subject,
		Message:     msg.Message,
		IsRead:      msg.IsRead,
		Response:    msg.Response,
		RespondedAt: msg.RespondedAt,
		CreatedAt:   msg.CreatedAt,
	}

	if msg.RespondedBy != nil {
		info.RespondedBy = &msg.RespondedBy.Username
	}

	return info
}

type contactSubmitRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (s *ContactService) Submit(w http.ResponseWriter, r *http.Request) {
	var params contactSubmitRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	v := fieldValidator{}
	v.Require("name", params.Name)
	v.Require("subject", params.Subject)
	v.Require("message", params.Message)
	if params.Email == "" {
		v.Add("email", "email is required")
	} else if _, err := mail.ParseAddress(params.Email); err != nil {
		v.Add("email", "invalid email address")
	}
	if !v.Ok() {
		v.WriteErrors(w)
		return
	}

	msg := schema.ContactMessage{
		Id:      uuid.New(),
		Name:    params.Name,
		Email:   params.Email,
		Subject: params.Subject,
		Message: params.Message,
	}

	result := s.db.Create(&msg)
	if result.Error != nil {
		slog.Error("sql error saving contact message", "error", result.Error)
		http.Error(w, fmt.Sprintf("error saving message: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	contactMessagesMetric.Inc()
	slog.Info("contact message received", "message_id", msg.Id, "subject", msg.Subject)

	utils.WriteJsonResponseStatus(w, http.StatusCreated, convertToContactMessageInfo(&msg))
}

type contactMessageList struct {
	Messages []ContactMessageInfo `json:"messages"`
	Total    int64                `json:"total"`
	Unread   int64                `json:"unread"`
	Limit    int                  `json:"limit"`
	Offset   int                  `json:"offset"`
}

func (s *ContactService) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r)

	query := s.db.Model(&schema.ContactMessage{})
	if isRead := r.URL.Query().Get("is_read"); isRead != "" {
		query = query.Where("is_read = ?", isRead == "true")
	}

	var total int64
	if result := query.Count(&total); result.Error != nil {
		slog.Error("sql error counting contact messages", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing messages: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	var unread int64
	result := s.db.Model(&schema.ContactMessage{}).Where("is_read = ?", false).Count(&unread)
	if result.Error != nil {
		slog.Error("sql error counting unread contact messages", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing messages: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	var messages []schema.ContactMessage
	result = query.Preload("RespondedBy").Order("created_at desc").Limit(limit).Offset(offset).Find(&messages)
	if result.Error != nil {
		slog.Error("sql error listing contact messages", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing messages: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	list := contactMessageList{
		Messages: make([]ContactMessageInfo, 0, len(messages)),
		Total:    total,
		Unread:   unread,
		Limit:    limit,
		Offset:   offset,
	}
	for i := range messages {
		list.Messages = append(list.Messages, convertToContactMessageInfo(&messages[i]))
	}
	utils.WriteJsonResponse(w, list)
}

func (s *ContactService) GetMessage(w http.ResponseWriter, r *http.Request) {
	messageId, err := utils.URLParamUUID(r, "message_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := schema.GetContactMessage(messageId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrMessageNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error getting message: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, convertToContactMessageInfo(&msg))
}

// MarkRead is idempotent, re-marking an already read message is not an error.
func (s *ContactService) MarkRead(w http.ResponseWriter, r *http.Request) {
	messageId, err := utils.URLParamUUID(r, "message_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Model(&schema.ContactMessage{}).Where("id = ?", messageId).Update("is_read", true)
		if result.Error != nil {
			slog.Error("sql error marking message read", "message_id", messageId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(schema.ErrMessageNotFound, http.StatusNotFound)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error marking message read: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type respondRequest struct {
	Response string `json:"response"`
}

func (s *ContactService) Respond(w http.ResponseWriter, r *http.Request) {
	messageId, err := utils.URLParamUUID(r, "message_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var params respondRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	v := fieldValidator{}
	v.Require("response", params.Response)
	if !v.Ok() {
		v.WriteErrors(w)
		return
	}

	var msg schema.ContactMessage
	err = s.db.Transaction(func(txn *gorm.DB) error {
		msg, err = schema.GetContactMessage(messageId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrMessageNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		now := time.Now().UTC()
		msg.Response = params.Response
		msg.RespondedAt = &now
		msg.RespondedById = &user.Id
		msg.IsRead = true

		result := txn.Save(&msg)
		if result.Error != nil {
			slog.Error("sql error saving message response", "message_id", messageId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		msg.RespondedBy = &user
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error responding to message: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("contact message responded", "message_id", messageId, "user", user.Username)

	utils.WriteJsonResponse(w, convertToContactMessageInfo(&msg))
}

func (s *ContactService) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageId, err := utils.URLParamUUID(r, "message_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Delete(&schema.ContactMessage{}, "id = ?", messageId)
		if result.Error != nil {
			slog.Error("sql error deleting contact message", "message_id", messageId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(schema.ErrMessageNotFound, http.StatusNotFound)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting message: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
