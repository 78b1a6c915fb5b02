package tests

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"labsite/site/schema"
	"labsite/site/services"
)

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	for i := 0; i < 3; i++ {
		username := fmt.Sprintf("user%d", i)
		email := fmt.Sprintf("user%d@mail.com", i)
		password := fmt.Sprintf("user%d_password", i)

		client := env.newClient()
		login, err := client.register(username, email, password)
		if err != nil {
			t.Fatal(err)
		}

		_, err = client.register(username, email, password)
		if err == nil {
			t.Fatal("duplicate registration should fail")
		}

		err = client.login(loginInfo{Email: "wrong@mail.com", Password: password})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatal("login should fail with wrong email")
		}

		err = client.login(loginInfo{Email: email, Password: "wrong"})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatal("login should fail with wrong password")
		}

		err = client.login(login)
		if err != nil {
			t.Fatal(err)
		}

		var info services.UserInfo
		err = client.Get("/auth/me").Do(&info)
		if err != nil {
			t.Fatal(err)
		}

		if info.Username != username || info.Email != email || info.Id.String() != client.userId || info.Role != schema.RoleViewer {
			t.Fatalf("invalid info %v", info)
		}
	}
}

func TestLoginReturnsRole(t *testing.T) {
	env := setupTestEnv(t)

	client := env.newClient()

	var res map[string]string
	err := client.Post("/auth/login").Json(loginInfo{Email: adminEmail, Password: adminPassword}).Do(&res)
	if err != nil {
		t.Fatal(err)
	}

	if res["role"] != "admin" {
		t.Fatalf("expected admin role, got %v", res["role"])
	}
	if res["access_token"] == "" || res["user_id"] == "" {
		t.Fatal("login response missing token or user id")
	}
}

func TestRegisterValidation(t *testing.T) {
	env := setupTestEnv(t)

	client := env.newClient()

	status, body := client.Post("/auth/register").Json(map[string]string{
		"username": "", "email": "not-an-email", "password": "",
	}).Raw()

	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}

	res, err := parseFieldErrors(body)
	if err != nil {
		t.Fatal(err)
	}
	if res.Error != "validation failed" || len(res.Errors) == 0 {
		t.Fatalf("expected field errors, got %v", body)
	}
}

func TestInactiveUserCannotAuthenticate(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("deactivated")
	if err != nil {
		t.Fatal(err)
	}

	result := env.db.Model(&schema.User{}).Where("username = ?", "deactivated").Update("is_active", false)
	if result.Error != nil {
		t.Fatal(result.Error)
	}

	err = user.Get("/auth/me").Do(nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("inactive user should get 401, got %v", err)
	}

	err = user.login(loginInfo{Email: "deactivated@mail.com", Password: "deactivated_password"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("inactive user should not be able to login, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("original")
	if err != nil {
		t.Fatal(err)
	}

	newName := "renamed"
	var info services.UserInfo
	err = user.Put("/auth/profile").Json(map[string]string{"username": newName}).Do(&info)
	if err != nil {
		t.Fatal(err)
	}
	if info.Username != newName {
		t.Fatalf("expected username %v, got %v", newName, info.Username)
	}

	// taking another user's name should conflict
	_, err = env.newUser("taken")
	if err != nil {
		t.Fatal(err)
	}

	status, body := user.Put("/auth/profile").Json(map[string]string{"username": "taken"}).Raw()
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %v", status, body)
	}

	// setting your own current name is not a conflict
	err = user.Put("/auth/profile").Json(map[string]string{"username": newName}).Do(nil)
	if err != nil {
		t.Fatal(err)
	}
}

func TestRegisterClosedWithoutDirectSignup(t *testing.T) {
	env := setupTestEnvWithSignup(t, false)

	client := env.newClient()

	body := map[string]string{
		"username": "newcomer", "email": "newcomer@mail.com", "password": "newcomer_password",
	}
	status, _ := client.Post("/auth/register").Json(body).Raw()
	if status != http.StatusNotFound && status != http.StatusMethodNotAllowed {
		t.Fatalf("register should not be routable, got %d", status)
	}

	// existing accounts still log in
	err := client.login(loginInfo{Email: adminEmail, Password: adminPassword})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMeReportsTokenExpiration(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("expiring")
	if err != nil {
		t.Fatal(err)
	}

	var info struct {
		services.UserInfo
		TokenExpiresAt time.Time `json:"token_expires_at"`
	}
	err = user.Get("/auth/me").Do(&info)
	if err != nil {
		t.Fatal(err)
	}

	if info.TokenExpiresAt.IsZero() || !info.TokenExpiresAt.After(time.Now()) {
		t.Fatalf("token expiration should be in the future, got %v", info.TokenExpiresAt)
	}
	if info.TokenExpiresAt.After(time.Now().Add(2 * time.Hour)) {
		t.Fatalf("token expiration exceeds the configured expiry, got %v", info.TokenExpiresAt)
	}
}

func TestUpdateProfilePassword(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("rotating")
	if err != nil {
		t.Fatal(err)
	}

	status, body := user.Put("/auth/profile").Json(map[string]string{"password": ""}).Raw()
	if status != http.StatusBadRequest {
		t.Fatalf("empty password should 400, got %d: %v", status, body)
	}

	err = user.Put("/auth/profile").Json(map[string]string{"password": "rotating_password_v2"}).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	fresh := env.newClient()
	err = fresh.login(loginInfo{Email: "rotating@mail.com", Password: "rotating_password"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("old password should be rejected, got %v", err)
	}

	err = fresh.login(loginInfo{Email: "rotating@mail.com", Password: "rotating_password_v2"})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMissingTokenRejected(t *testing.T) {
	env := setupTestEnv(t)

	client := env.newClient()

	err := client.Get("/auth/me").Do(nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected 401, got %v", err)
	}

	client.authToken = "not.a.token"
	err = client.Get("/auth/me").Do(nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected 401 for garbage token, got %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	client := env.newClient()

	var res map[string]interface{}
	err := client.Get("/health").Do(&res)
	if err != nil {
		t.Fatal(err)
	}

	if res["status"] != "ok" {
		t.Fatalf("unexpected health status %v", res["status"])
	}
	if env, ok := res["environment"].(string); !ok || !strings.Contains(env, "test") {
		t.Fatalf("unexpected environment %v", res["environment"])
	}
}
