package client

import (
	"fmt"

	"labsite/site/schema"
	"labsite/site/services"
)

// Session tracks the logged in user and their token so that callers can make
// authenticated requests and check permissions without re-fetching the user.
type Session struct {
	BaseClient

	userId string
	role   schema.Role
}

func NewSession(baseUrl string) *Session {
	return &Session{BaseClient: BaseClient{baseUrl: baseUrl}}
}

func (s *Session) Register(username, email, password string) error {
	body := map[string]string{
		"username": username, "email": email, "password": password,
	}
	return s.Post("/api/auth/register").Json(body).Do(nil)
}

func (s *Session) Login(email, password string) error {
	body := map[string]string{"email": email, "password": password}

	var data map[string]string
	err := s.Post("/api/auth/login").Json(body).Do(&data)
	if err != nil {
		return err
	}

	s.authToken = data["access_token"]
	s.userId = data["user_id"]
	s.role = schema.Role(data["role"])

	return nil
}

func (s *Session) Logout() {
	s.authToken = ""
	s.userId = ""
	s.role = ""
}

func (s *Session) IsAuthenticated() bool {
	return s.authToken != ""
}

func (s *Session) UserId() string {
	return s.userId
}

func (s *Session) Role() schema.Role {
	return s.role
}

// HasPermission applies the same role ordering as the server, so callers can
// hide actions the api would reject anyway.
func (s *Session) HasPermission(minRole schema.Role) bool {
	return s.IsAuthenticated() && s.role.AtLeast(minRole)
}

func (s *Session) Me() (services.UserInfo, error) {
	var info services.UserInfo
	err := s.Get("/api/auth/me").Do(&info)
	if err != nil {
		return services.UserInfo{}, fmt.Errorf("error fetching current user: %w", err)
	}
	return info, nil
}

type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

func (s *Session) UpdateProfile(update ProfileUpdate) (services.UserInfo, error) {
	var info services.UserInfo
	err := s.Put("/api/auth/profile").Json(update).Do(&info)
	if err != nil {
		return services.UserInfo{}, fmt.Errorf("error updating profile: %w", err)
	}
	return info, nil
}
