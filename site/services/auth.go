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
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *AuthService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if s.userAuth.AllowDirectSignup() {
			r.Post("/register", s.Register)
		}

		r.Post("/login", s.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/me", s.Me)
		r.Put("/profile", s.UpdateProfile)
	})

	return r
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	UserId uuid.UUID `json:"user_id"`
}

func checkEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	var params registerRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	v := fieldValidator{}
	v.Require("username", params.Username)
	v.Require("email", params.Email)
	v.Require("password", params.Password)
	if params.Email != "" {
		v.Check("email", checkEmail(params.Email))
	}
	if !v.Ok() {
		v.WriteErrors(w)
		return
	}

	userId, err := s.userAuth.CreateUser(params.Username, params.Email, params.Password, schema.RoleViewer)
	if err != nil {
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrEmailAlreadyInUse):
			responseCode = http.StatusConflict
		case errors.Is(err, auth.ErrUsernameAlreadyInUse):
			responseCode = http.StatusConflict
		}
		http.Error(w, err.Error(), responseCode)
		return
	}

	utils.WriteJsonResponseStatus(w, http.StatusCreated, registerResponse{UserId: userId})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserId      uuid.UUID   `json:"user_id"`
	Role        schema.Role `json:"role"`
	AccessToken string      `json:"access_token"`
}

func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	var params loginRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	login, err := s.userAuth.LoginWithEmail(params.Email, params.Password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrUserNotFoundWithEmail):
			responseCode = http.StatusUnauthorized
		case errors.Is(err, auth.ErrInvalidCredentials):
			responseCode = http.StatusUnauthorized
		case errors.Is(err, auth.ErrInactiveAccount):
			responseCode = http.StatusUnauthorized
		}
		http.Error(w, fmt.Sprintf("login failed: %v", err), responseCode)
		return
	}

	utils.WriteJsonResponse(w, loginResponse{UserId: login.UserId, Role: login.Role, AccessToken: login.AccessToken})
}

type UserInfo struct {
	Id       uuid.UUID   `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     schema.Role `json:"role"`
	IsActive bool        `json:"is_active"`
}

func convertToUserInfo(user *schema.User) UserInfo {
	return UserInfo{
		Id:       user.Id,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		IsActive: user.IsActive,
	}
}

type meResponse struct {
	UserInfo
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

func (s *AuthService) Me(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	expiry, err := s.userAuth.GetTokenExpiration(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, meResponse{UserInfo: convertToUserInfo(&user), TokenExpiresAt: expiry})
}

type updateProfileRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (s *AuthService) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params updateProfileRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	v := fieldValidator{}
	if params.Username != nil {
		v.Require("username", *params.Username)
	}
	if params.Email != nil {
		v.Require("email", *params.Email)
		if *params.Email != "" {
			v.Check("email", checkEmail(*params.Email))
		}
	}
	if params.Password != nil {
		v.Require("password", *params.Password)
	}
	if !v.Ok() {
		v.WriteErrors(w)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if params.Username != nil && *params.Username != user.Username {
			var count int64
			result := txn.Model(&schema.User{}).Where("username = ? and id <> ?", *params.Username, user.Id).Count(&count)
			if result.Error != nil {
				slog.Error("sql error checking username uniqueness", "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
			if count > 0 {
				return CodedError(auth.ErrUsernameAlreadyInUse, http.StatusConflict)
			}
			user.Username = *params.Username
		}

		if params.Email != nil && *params.Email != user.Email {
			var count int64
			result := txn.Model(&schema.User{}).Where("email = ? and id <> ?", *params.Email, user.Id).Count(&count)
			if result.Error != nil {
				slog.Error("sql error checking email uniqueness", "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
			if count > 0 {
				return CodedError(auth.ErrEmailAlreadyInUse, http.StatusConflict)
			}
			user.Email = *params.Email
		}

		if params.Password != nil {
			hashed, err := bcrypt.GenerateFromPassword([]byte(*params.Password), 10)
			if err != nil {
				return CodedError(fmt.Errorf("error hashing password: %w", err), http.StatusInternalServerError)
			}
			user.Password = hashed
		}

		result := txn.Save(&user)
		if result.Error != nil {
			slog.Error("sql error updating user profile", "user_id", user.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating profile: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, convertToUserInfo(&user))
}
