package tests

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"labsite/site/schema"
	"labsite/site/services"
)

func createPublication(c client, title string, year int, extra map[string]interface{}) (services.PublicationInfo, error) {
	req := map[string]interface{}{
		"title": title, "year": year,
		"authors": []string{"A. Author", "B. Author"},
	}
	for k, v := range extra {
		req[k] = v
	}
	var info services.PublicationInfo
	err := c.Post("/publications").Json(req).Do(&info)
	return info, err
}

func TestPublicationCrud(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	pub, err := createPublication(editor, "Transition in pipe flow", 2023, map[string]interface{}{
		"journal": "J. Fluid Mech.", "doi": "10.1000/jfm.2023.1", "type": "journal",
	})
	if err != nil {
		t.Fatal(err)
	}
	if pub.Type != "journal" || len(pub.Authors) != 2 {
		t.Fatalf("unexpected publication %v", pub)
	}

	var updated services.PublicationInfo
	err = editor.Put(fmt.Sprintf("/publications/%v", pub.Id)).Json(map[string]interface{}{
		"pages": "101-125",
	}).Do(&updated)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Pages != "101-125" || updated.Journal != "J. Fluid Mech." {
		t.Fatalf("partial update went wrong: %v", updated)
	}
}

func TestPublicationFilters(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	if _, err := createPublication(editor, "Conference paper", 2022, map[string]interface{}{"type": "conference"}); err != nil {
		t.Fatal(err)
	}
	if _, err := createPublication(editor, "Journal paper", 2024, map[string]interface{}{"is_featured": true}); err != nil {
		t.Fatal(err)
	}

	public := env.newClient()

	var byType []services.PublicationInfo
	if err := public.Get("/publications?type=conference").Do(&byType); err != nil {
		t.Fatal(err)
	}
	if len(byType) != 1 || byType[0].Title != "Conference paper" {
		t.Fatalf("type filter failed: %v", byType)
	}

	var byYear []services.PublicationInfo
	if err := public.Get("/publications?year=2024").Do(&byYear); err != nil {
		t.Fatal(err)
	}
	if len(byYear) != 1 || byYear[0].Title != "Journal paper" {
		t.Fatalf("year filter failed: %v", byYear)
	}

	var featured []services.PublicationInfo
	if err := public.Get("/publications?featured=true").Do(&featured); err != nil {
		t.Fatal(err)
	}
	if len(featured) != 1 || !featured[0].IsFeatured {
		t.Fatalf("featured filter failed: %v", featured)
	}

	status, _ := public.Get("/publications?type=blog").Raw()
	if status != http.StatusBadRequest {
		t.Fatalf("unknown type should 400, got %d", status)
	}
}

func TestPublicationValidation(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	status, body := editor.Post("/publications").Json(map[string]interface{}{
		"title": "", "year": 1200, "authors": []string{},
	}).Raw()

	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}

	res, err := parseFieldErrors(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 3 {
		t.Fatalf("expected errors for title, authors, and year, got %v", body)
	}
}

func TestPublicationSoftDelete(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	pub, err := createPublication(editor, "Retracted result", 2021, nil)
	if err != nil {
		t.Fatal(err)
	}

	err = editor.Put(fmt.Sprintf("/publications/%v", pub.Id)).Json(map[string]bool{"is_active": false}).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("editor visibility change should be forbidden, got %v", err)
	}

	if err := admin.Delete(fmt.Sprintf("/publications/%v", pub.Id)).Do(nil); err != nil {
		t.Fatal(err)
	}

	public := env.newClient()

	var pubs []services.PublicationInfo
	if err := public.Get("/publications").Do(&pubs); err != nil {
		t.Fatal(err)
	}
	if len(pubs) != 0 {
		t.Fatalf("deleted publication should not be listed, got %v", pubs)
	}

	status, _ := public.Get(fmt.Sprintf("/publications/%v", pub.Id)).Raw()
	if status != http.StatusNotFound {
		t.Fatalf("deleted publication should 404, got %d", status)
	}
}
