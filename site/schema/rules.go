package schema

import (
	"fmt"
	"slices"
)

const (
	ContentText     = "text"
	ContentHtml     = "html"
	ContentMarkdown = "markdown"
)

const (
	SectionHero     = "hero"
	SectionAbout    = "about"
	SectionServices = "services"
	SectionFooter   = "footer"
	SectionGeneral  = "general"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusPlanned   = "planned"
)

const (
	PubJournal    = "journal"
	PubConference = "conference"
	PubBook       = "book"
	PubThesis     = "thesis"
	PubPreprint   = "preprint"
)

var (
	ContentTypes    = []string{ContentText, ContentHtml, ContentMarkdown}
	ContentSections = []string{SectionHero, SectionAbout, SectionServices, SectionFooter, SectionGeneral}
	ProjectStatuses = []string{StatusActive, StatusCompleted, StatusPlanned}

	ProjectCategories = []string{
		"fluid-dynamics", "turbulence", "microfluidics",
		"heat-transfer", "aerodynamics", "multiphase-flow",
		"computational", "experimental", "instrumentation",
	}

	PublicationTypes = []string{PubJournal, PubConference, PubBook, PubThesis, PubPreprint}

	Roles = []Role{RoleViewer, RoleEditor, RoleAdmin}
)

func CheckContentType(t string) error {
	if !slices.Contains(ContentTypes, t) {
		return fmt.Errorf("invalid content type '%v', must be one of %v", t, ContentTypes)
	}
	return nil
}

func CheckContentSection(s string) error {
	if !slices.Contains(ContentSections, s) {
		return fmt.Errorf("invalid content section '%v', must be one of %v", s, ContentSections)
	}
	return nil
}

func CheckProjectStatus(s string) error {
	if !slices.Contains(ProjectStatuses, s) {
		return fmt.Errorf("invalid project status '%v', must be one of %v", s, ProjectStatuses)
	}
	return nil
}

func CheckProjectCategory(c string) error {
	if !slices.Contains(ProjectCategories, c) {
		return fmt.Errorf("invalid project category '%v', must be one of %v", c, ProjectCategories)
	}
	return nil
}

func CheckPublicationType(t string) error {
	if !slices.Contains(PublicationTypes, t) {
		return fmt.Errorf("invalid publication type '%v', must be one of %v", t, PublicationTypes)
	}
	return nil
}

func CheckRole(r Role) error {
	if !slices.Contains(Roles, r) {
		return fmt.Errorf("invalid role '%v', must be one of %v", r, Roles)
	}
	return nil
}
