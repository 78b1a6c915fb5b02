package tests

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"labsite/site/schema"
	"labsite/site/services"
)

func createContent(c client, key, title, body, contentType, section string) (services.ContentInfo, error) {
	req := map[string]string{
		"key": key, "title": title, "body": body,
		"type": contentType, "section": section,
	}
	var info services.ContentInfo
	err := c.Post("/content").Json(req).Do(&info)
	return info, err
}

func TestContentCrud(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	created, err := createContent(editor, "hero-title", "Hero", "Welcome to the lab", "text", "hero")
	if err != nil {
		t.Fatal(err)
	}
	if created.Key != "hero-title" || !created.IsActive {
		t.Fatalf("unexpected created content %v", created)
	}

	public := env.newClient()

	var listed []services.ContentInfo
	err = public.Get("/content?section=hero").Do(&listed)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].Id != created.Id {
		t.Fatalf("expected 1 content block, got %v", listed)
	}

	var fetched services.ContentInfo
	err = public.Get(fmt.Sprintf("/content/%v", created.Id)).Do(&fetched)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Body != "Welcome to the lab" {
		t.Fatalf("unexpected body %v", fetched.Body)
	}

	var updated services.ContentInfo
	err = editor.Put(fmt.Sprintf("/content/%v", created.Id)).Json(map[string]string{"body": "Updated welcome"}).Do(&updated)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Body != "Updated welcome" || updated.Title != "Hero" {
		t.Fatalf("partial update went wrong: %v", updated)
	}
}

func TestContentDuplicateKey(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	_, err := createContent(editor, "about-text", "About", "first", "text", "about")
	if err != nil {
		t.Fatal(err)
	}

	status, body := editor.Post("/content").Json(map[string]string{
		"key": "about-text", "title": "About again", "body": "second",
	}).Raw()

	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate key, got %d", status)
	}

	res, err := parseFieldErrors(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) == 0 || res.Errors[0].Field != "key" {
		t.Fatalf("expected field error on key, got %v", body)
	}
}

func TestContentValidation(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	status, body := editor.Post("/content").Json(map[string]string{
		"key": "", "title": "", "body": "something", "type": "video",
	}).Raw()

	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}

	res, err := parseFieldErrors(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) < 3 {
		t.Fatalf("expected errors for key, title, and type, got %v", body)
	}
}

func TestContentSoftDeleteVisibility(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	created, err := createContent(editor, "footer-note", "Footer", "note", "text", "footer")
	if err != nil {
		t.Fatal(err)
	}

	// editors cannot delete
	err = editor.Delete(fmt.Sprintf("/content/%v", created.Id)).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("editor delete should be forbidden, got %v", err)
	}

	err = admin.Delete(fmt.Sprintf("/content/%v", created.Id)).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	public := env.newClient()

	var listed []services.ContentInfo
	err = public.Get("/content").Do(&listed)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 0 {
		t.Fatalf("soft deleted content should not be listed, got %v", listed)
	}

	status, _ := public.Get(fmt.Sprintf("/content/%v", created.Id)).Raw()
	if status != http.StatusNotFound {
		t.Fatalf("soft deleted content should 404, got %d", status)
	}

	// still visible through the admin listing
	var all []services.ContentInfo
	err = editor.Get("/content/admin/all").Do(&all)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].IsActive {
		t.Fatalf("admin listing should include the inactive block, got %v", all)
	}
}

func TestContentVisibilityRequiresAdmin(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	created, err := createContent(editor, "hero-title", "Hero", "Welcome", "text", "hero")
	if err != nil {
		t.Fatal(err)
	}

	// hiding a block through update is equivalent to deleting it, so the
	// same admin gate applies
	err = editor.Put(fmt.Sprintf("/content/%v", created.Id)).Json(map[string]bool{"is_active": false}).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("editor visibility change should be forbidden, got %v", err)
	}

	public := env.newClient()

	var listed []services.ContentInfo
	err = public.Get("/content").Do(&listed)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 {
		t.Fatalf("block should still be public, got %v", listed)
	}

	// editors can still update other fields
	var updated services.ContentInfo
	err = editor.Put(fmt.Sprintf("/content/%v", created.Id)).Json(map[string]string{"title": "Hero v2"}).Do(&updated)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != "Hero v2" || !updated.IsActive {
		t.Fatalf("unexpected updated content %v", updated)
	}

	var hidden services.ContentInfo
	err = admin.Put(fmt.Sprintf("/content/%v", created.Id)).Json(map[string]bool{"is_active": false}).Do(&hidden)
	if err != nil {
		t.Fatal(err)
	}
	if hidden.IsActive {
		t.Fatal("admin visibility change should apply")
	}

	err = public.Get("/content").Do(&listed)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 0 {
		t.Fatalf("hidden block should not be public, got %v", listed)
	}
}

func TestContentRendering(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	markdown, err := createContent(editor, "mission", "Mission", "## Mission\n\nOur *work*.", "markdown", "about")
	if err != nil {
		t.Fatal(err)
	}

	text, err := createContent(editor, "plain", "Plain", "a < b & c", "text", "general")
	if err != nil {
		t.Fatal(err)
	}

	html, err := createContent(editor, "rich", "Rich", `<p>hi</p><script>alert(1)</script>`, "html", "general")
	if err != nil {
		t.Fatal(err)
	}

	public := env.newClient()

	fetch := func(id interface{}) services.ContentInfo {
		var info services.ContentInfo
		err := public.Get(fmt.Sprintf("/content/%v?format=html", id)).Do(&info)
		if err != nil {
			t.Fatal(err)
		}
		return info
	}

	if rendered := fetch(markdown.Id); !strings.Contains(rendered.Html, "<h2") || !strings.Contains(rendered.Html, "<em>") {
		t.Fatalf("markdown not rendered: %v", rendered.Html)
	}

	if rendered := fetch(text.Id); !strings.Contains(rendered.Html, "&lt; b") {
		t.Fatalf("text not escaped: %v", rendered.Html)
	}

	if rendered := fetch(html.Id); strings.Contains(rendered.Html, "<script>") || !strings.Contains(rendered.Html, "<p>hi</p>") {
		t.Fatalf("html not sanitized: %v", rendered.Html)
	}
}

func TestContentRoleMatrix(t *testing.T) {
	env := setupTestEnv(t)

	viewer, err := env.newUser("viewer1")
	if err != nil {
		t.Fatal(err)
	}

	_, err = createContent(viewer, "nope", "Nope", "body", "text", "general")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("viewer create should be forbidden, got %v", err)
	}

	err = viewer.Get("/content/admin/all").Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("viewer admin listing should be forbidden, got %v", err)
	}

	public := env.newClient()
	err = public.Get("/content/admin/all").Do(nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous admin listing should be unauthorized, got %v", err)
	}
}
