package tests

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"labsite/site/auth"
	"labsite/site/schema"
	"labsite/site/services"
	"labsite/site/storage"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	site     services.Site
	api      chi.Router
	db       *gorm.DB
	storage  storage.Storage
	userAuth auth.IdentityProvider
}

const (
	adminUsername = "admin123"
	adminEmail    = "admin@fluidlab.com"
	adminPassword = "admin_password123"
)

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWithSignup(t, true)
}

func setupTestEnvWithSignup(t *testing.T, allowSignup bool) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(schema.AllEntities()...)
	if err != nil {
		t.Fatal(err)
	}

	storagePath := filepath.Join(t.TempDir(), "storage")
	err = os.MkdirAll(storagePath, 0777)
	if err != nil {
		t.Fatalf("error creating storage directory: %v", err)
	}

	store := storage.NewLocalDisk(storagePath)

	userAuth, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(new(bytes.Buffer)),
		auth.BasicProviderArgs{
			Secret:            []byte("290zcv02ai249"),
			TokenExpiry:       time.Hour,
			AllowDirectSignup: allowSignup,
			AdminUsername:     adminUsername,
			AdminEmail:        adminEmail,
			AdminPassword:     adminPassword,
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	site := services.NewSite(db, store, userAuth, "test")

	return &testEnv{site: site, api: site.Routes(), db: db, storage: store, userAuth: userAuth}
}

func (t *testEnv) newClient() client {
	return client{api: t.api}
}

// newUser registers a viewer through the public signup route and logs in.
func (t *testEnv) newUser(username string) (client, error) {
	c := t.newClient()
	login, err := c.register(username, username+"@mail.com", username+"_password")
	if err != nil {
		return client{}, err
	}

	err = c.login(login)
	if err != nil {
		return client{}, err
	}

	return c, nil
}

// newUserWithRole creates a user directly through the identity provider, since
// roles above viewer are not self-assignable over the api.
func (t *testEnv) newUserWithRole(test *testing.T, username string, role schema.Role) client {
	_, err := t.userAuth.CreateUser(username, username+"@mail.com", username+"_password", role)
	if err != nil {
		test.Fatal(err)
	}

	c := t.newClient()
	err = c.login(loginInfo{Email: username + "@mail.com", Password: username + "_password"})
	if err != nil {
		test.Fatal(err)
	}

	return c
}

func (t *testEnv) adminClient() (client, error) {
	c := t.newClient()
	err := c.login(loginInfo{Email: adminEmail, Password: adminPassword})
	return c, err
}
