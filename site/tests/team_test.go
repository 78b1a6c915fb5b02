package tests

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"labsite/site/schema"
	"labsite/site/services"
)

func createTeamMember(c client, name, position string, order int) (services.TeamMemberInfo, error) {
	req := map[string]interface{}{
		"name": name, "position": position, "display_order": order,
		"expertise":    []string{"turbulence", "piv"},
		"social_links": map[string]string{"scholar": "https://scholar.example/" + name},
	}
	var info services.TeamMemberInfo
	err := c.Post("/team").Json(req).Do(&info)
	return info, err
}

func TestTeamListOrdering(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	if _, err := createTeamMember(editor, "Charlie", "Postdoc", 3); err != nil {
		t.Fatal(err)
	}
	if _, err := createTeamMember(editor, "Alice", "Principal Investigator", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := createTeamMember(editor, "Bob", "PhD Student", 2); err != nil {
		t.Fatal(err)
	}

	public := env.newClient()

	var members []services.TeamMemberInfo
	err := public.Get("/team").Do(&members)
	if err != nil {
		t.Fatal(err)
	}

	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}
	for i, expected := range []string{"Alice", "Bob", "Charlie"} {
		if members[i].Name != expected {
			t.Fatalf("expected %v at position %d, got %v", expected, i, members[i].Name)
		}
	}

	if len(members[0].Expertise) != 2 {
		t.Fatalf("expertise array not round tripped: %v", members[0].Expertise)
	}
	if members[0].SocialLinks["scholar"] == "" {
		t.Fatalf("social links not round tripped: %v", members[0].SocialLinks)
	}
}

func TestTeamMemberValidation(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	status, body := editor.Post("/team").Json(map[string]string{
		"name": "", "position": "", "email": "not-an-email",
	}).Raw()

	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}

	res, err := parseFieldErrors(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 3 {
		t.Fatalf("expected 3 field errors, got %v", body)
	}
}

// Mirrors the full editor/admin delete scenario: an editor delete is refused,
// an admin delete succeeds, and the member disappears from the public list.
func TestTeamMemberDeleteScenario(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	member, err := createTeamMember(editor, "Dana", "Lab Manager", 1)
	if err != nil {
		t.Fatal(err)
	}

	err = editor.Delete(fmt.Sprintf("/team/%v", member.Id)).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("editor delete should be forbidden, got %v", err)
	}

	err = admin.Delete(fmt.Sprintf("/team/%v", member.Id)).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	public := env.newClient()

	var members []services.TeamMemberInfo
	err = public.Get("/team").Do(&members)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 0 {
		t.Fatalf("deleted member should not be listed, got %v", members)
	}

	status, _ := public.Get(fmt.Sprintf("/team/%v", member.Id)).Raw()
	if status != http.StatusNotFound {
		t.Fatalf("deleted member should 404, got %d", status)
	}

	// only admins may restore visibility
	err = editor.Put(fmt.Sprintf("/team/%v", member.Id)).Json(map[string]bool{"is_active": true}).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("editor reactivation should be forbidden, got %v", err)
	}

	var restored services.TeamMemberInfo
	err = admin.Put(fmt.Sprintf("/team/%v", member.Id)).Json(map[string]bool{"is_active": true}).Do(&restored)
	if err != nil {
		t.Fatal(err)
	}
	if !restored.IsActive {
		t.Fatal("member should be active again")
	}

	err = public.Get("/team").Do(&members)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 {
		t.Fatalf("restored member should be listed, got %v", members)
	}
}

func TestTeamPartialUpdate(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	member, err := createTeamMember(editor, "Erin", "Research Engineer", 5)
	if err != nil {
		t.Fatal(err)
	}

	var updated services.TeamMemberInfo
	err = editor.Put(fmt.Sprintf("/team/%v", member.Id)).Json(map[string]interface{}{
		"bio": "Builds the rigs.", "display_order": 2,
	}).Do(&updated)
	if err != nil {
		t.Fatal(err)
	}

	if updated.Bio != "Builds the rigs." || updated.DisplayOrder != 2 {
		t.Fatalf("update not applied: %v", updated)
	}
	if updated.Name != "Erin" || updated.Position != "Research Engineer" {
		t.Fatalf("untouched fields changed: %v", updated)
	}
}
