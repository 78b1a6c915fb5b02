package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleOrdering(t *testing.T) {
	assert.Equal(t, 0, RoleViewer.Ordinal())
	assert.Equal(t, 1, RoleEditor.Ordinal())
	assert.Equal(t, 2, RoleAdmin.Ordinal())

	assert.True(t, RoleAdmin.AtLeast(RoleViewer))
	assert.True(t, RoleAdmin.AtLeast(RoleEditor))
	assert.True(t, RoleAdmin.AtLeast(RoleAdmin))
	assert.True(t, RoleEditor.AtLeast(RoleEditor))
	assert.False(t, RoleEditor.AtLeast(RoleAdmin))
	assert.False(t, RoleViewer.AtLeast(RoleEditor))
}

func TestUnknownRoleRanksBelowViewer(t *testing.T) {
	corrupted := Role("superuser")
	assert.Equal(t, -1, corrupted.Ordinal())
	assert.False(t, corrupted.AtLeast(RoleViewer))
}

func TestEnumChecks(t *testing.T) {
	assert.NoError(t, CheckContentType(ContentMarkdown))
	assert.Error(t, CheckContentType("video"))

	assert.NoError(t, CheckContentSection(SectionHero))
	assert.Error(t, CheckContentSection("sidebar"))

	assert.NoError(t, CheckProjectStatus(StatusCompleted))
	assert.Error(t, CheckProjectStatus("paused"))

	assert.NoError(t, CheckProjectCategory("microfluidics"))
	assert.Error(t, CheckProjectCategory("astrology"))

	assert.NoError(t, CheckPublicationType(PubPreprint))
	assert.Error(t, CheckPublicationType("blog"))

	assert.NoError(t, CheckRole(RoleEditor))
	assert.Error(t, CheckRole(Role("superuser")))
}
