package schema

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Ordinal returns the rank of a role for >= comparisons. Unknown roles rank
// below viewer so that a corrupted role value never grants access.
func (r Role) Ordinal() int {
	switch r {
	case RoleViewer:
		return 0
	case RoleEditor:
		return 1
	case RoleAdmin:
		return 2
	default:
		return -1
	}
}

func (r Role) AtLeast(min Role) bool {
	return r.Ordinal() >= min.Ordinal()
}

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Username string `gorm:"unique;size:50;not null"`
	Email    string `gorm:"unique;size:254;not null"`
	Password []byte

	Role Role `gorm:"size:20;not null;default:'viewer'"`

	IsActive bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Content struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Key   string `gorm:"unique;size:100;not null"`
	Title string `gorm:"size:200;not null"`
	Body  string

	Type    string `gorm:"size:20;not null;default:'text'"`
	Section string `gorm:"size:20;not null;default:'general'"`

	IsActive bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type TeamMember struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name     string `gorm:"size:100;not null"`
	Position string `gorm:"size:100;not null"`
	Bio      string
	Email    string `gorm:"size:254"`
	Phone    string `gorm:"size:50"`
	ImageUrl string `gorm:"size:500"`

	Expertise   []string          `gorm:"serializer:json"`
	SocialLinks map[string]string `gorm:"serializer:json"`

	DisplayOrder int `gorm:"not null;default:0"`

	IsActive bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Project struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Title       string `gorm:"size:200;not null"`
	Description string

	Category string `gorm:"size:50;not null"`
	Status   string `gorm:"size:20;not null;default:'active'"`

	StartDate time.Time
	EndDate   *time.Time

	TeamMembers  []TeamMember   `gorm:"many2many:project_team_members;"`
	Publications []Publication  `gorm:"many2many:project_publications;"`
	Images       []ProjectImage `gorm:"constraint:OnDelete:CASCADE"`

	Tags []string `gorm:"serializer:json"`

	IsActive   bool `gorm:"not null;default:true"`
	IsFeatured bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProjectImage struct {
	ProjectId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position  int       `gorm:"primaryKey"`

	Url     string `gorm:"size:500;not null"`
	Caption string `gorm:"size:200"`
}

type Publication struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Title   string   `gorm:"size:300;not null"`
	Authors []string `gorm:"serializer:json"`

	Journal  string `gorm:"size:200"`
	Year     int    `gorm:"not null"`
	Volume   string `gorm:"size:50"`
	Issue    string `gorm:"size:50"`
	Pages    string `gorm:"size:50"`
	Doi      string `gorm:"size:100"`
	Url      string `gorm:"size:500"`
	Abstract string

	Type string `gorm:"size:20;not null;default:'journal'"`

	Tags []string `gorm:"serializer:json"`

	Projects []Project `gorm:"many2many:project_publications;"`

	IsActive   bool `gorm:"not null;default:true"`
	IsFeatured bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type ContactMessage struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name    string `gorm:"size:100;not null"`
	Email   string `gorm:"size:254;not null"`
	Subject string `gorm:"size:200;not null"`
	Message string `gorm:"not null"`

	IsRead bool `gorm:"not null;default:false"`

	Response      string
	RespondedAt   *time.Time
	RespondedById *uuid.UUID `gorm:"type:uuid"`
	RespondedBy   *User      `gorm:"foreignKey:RespondedById"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllEntities is the AutoMigrate list shared by main, the migration tool,
// and the test setup.
func AllEntities() []interface{} {
	return []interface{}{
		&User{}, &Content{}, &TeamMember{},
		&Project{}, &ProjectImage{}, &Publication{},
		&ContactMessage{},
	}
}
