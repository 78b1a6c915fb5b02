package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"labsite/site/auth"
	"labsite/site/schema"
	"labsite/site/storage"
	"labsite/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// fieldValidator collects field-level validation failures so a single 400
// response can report all of them.
type fieldValidator struct {
	errors []FieldError
}

func (v *fieldValidator) Require(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.errors = append(v.errors, FieldError{Field: field, Message: field + " is required"})
	}
}

func (v *fieldValidator) Check(field string, err error) {
	if err != nil {
		v.errors = append(v.errors, FieldError{Field: field, Message: err.Error()})
	}
}

func (v *fieldValidator) Add(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

func (v *fieldValidator) Ok() bool {
	return len(v.errors) == 0
}

type validationResponse struct {
	Error  string       `json:"error"`
	Errors []FieldError `json:"errors"`
}

func (v *fieldValidator) WriteErrors(w http.ResponseWriter) {
	utils.WriteJsonResponseStatus(w, http.StatusBadRequest, validationResponse{
		Error:  "validation failed",
		Errors: v.errors,
	})
}

func checkDiskUsage(store storage.Storage) error {
	stats, err := store.Usage()
	if err != nil {
		slog.Error("unable to get disk usage from storage", "error", err)
		return CodedError(errors.New("unable to get disk usage"), http.StatusInternalServerError)
	}
	oneMib := uint64(1024 * 1024)
	// Either 10% of the disk or 2Gb must be free (in case the disk is very large)
	threshold := min(stats.TotalBytes/10, 2*1024*oneMib)
	if stats.FreeBytes < threshold {
		used := (stats.TotalBytes - stats.FreeBytes) / oneMib
		total := stats.TotalBytes / oneMib
		delta := (threshold - stats.FreeBytes) / oneMib
		return CodedError(fmt.Errorf("insufficient disk space available, usage: %d/%d Mib, please clear %d Mib", used, total, delta), http.StatusInsufficientStorage)
	}
	return nil
}

func checkSufficientStorage(store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			if err := checkDiskUsage(store); err != nil {
				slog.Error(err.Error())
				http.Error(w, err.Error(), GetResponseCode(err))
				return
			}
			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(handler)
	}
}

// softDelete flips the is_active flag instead of removing the row, so
// public queries stop returning the record while admins keep its history.
// Toggling is_active hides or restores an entity on the public site, the
// same effect as the admin-only delete routes, so it carries the same gate
// even though the surrounding update route is open to editors.
func checkVisibilityPermission(w http.ResponseWriter, r *http.Request, active *bool) bool {
	if active == nil {
		return true
	}
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return false
	}
	if !user.Role.AtLeast(schema.RoleAdmin) {
		http.Error(w, "changing is_active requires admin permissions", http.StatusForbidden)
		return false
	}
	return true
}

func softDelete(db *gorm.DB, model interface{}, id uuid.UUID, notFound error) error {
	return db.Transaction(func(txn *gorm.DB) error {
		result := txn.Model(model).Where("id = ?", id).Update("is_active", false)
		if result.Error != nil {
			slog.Error("sql error during soft delete", "id", id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(notFound, http.StatusNotFound)
		}
		return nil
	})
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func parseLimitOffset(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxPageLimit)
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
