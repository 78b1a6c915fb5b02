package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrContentNotFound     = errors.New("content not found")
	ErrTeamMemberNotFound  = errors.New("team member not found")
	ErrProjectNotFound     = errors.New("project not found")
	ErrPublicationNotFound = errors.New("publication not found")
	ErrMessageNotFound     = errors.New("contact message not found")
	ErrDbAccessFailed      = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetUserByEmail(email string, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user by email", "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetContent(contentId uuid.UUID, db *gorm.DB) (Content, error) {
	var content Content

	result := db.First(&content, "id = ?", contentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return content, ErrContentNotFound
		}
		slog.Error("sql error in get content", "content_id", contentId, "error", result.Error)
		return content, ErrDbAccessFailed
	}

	return content, nil
}

func GetTeamMember(memberId uuid.UUID, db *gorm.DB) (TeamMember, error) {
	var member TeamMember

	result := db.First(&member, "id = ?", memberId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return member, ErrTeamMemberNotFound
		}
		slog.Error("sql error in get team member", "member_id", memberId, "error", result.Error)
		return member, ErrDbAccessFailed
	}

	return member, nil
}

// GetProject loads a project, optionally with its team member, publication,
// and image relations populated.
func GetProject(projectId uuid.UUID, db *gorm.DB, loadRelations bool) (Project, error) {
	var project Project

	query := db
	if loadRelations {
		query = query.Preload("TeamMembers").Preload("Publications").Preload("Images")
	}

	result := query.First(&project, "id = ?", projectId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return project, ErrProjectNotFound
		}
		slog.Error("sql error in get project", "project_id", projectId, "error", result.Error)
		return project, ErrDbAccessFailed
	}

	return project, nil
}

func GetPublication(publicationId uuid.UUID, db *gorm.DB, loadProjects bool) (Publication, error) {
	var publication Publication

	query := db
	if loadProjects {
		query = query.Preload("Projects")
	}

	result := query.First(&publication, "id = ?", publicationId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return publication, ErrPublicationNotFound
		}
		slog.Error("sql error in get publication", "publication_id", publicationId, "error", result.Error)
		return publication, ErrDbAccessFailed
	}

	return publication, nil
}

func GetContactMessage(messageId uuid.UUID, db *gorm.DB) (ContactMessage, error) {
	var message ContactMessage

	result := db.Preload("RespondedBy").First(&message, "id = ?", messageId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return message, ErrMessageNotFound
		}
		slog.Error("sql error in get contact message", "message_id", messageId, "error", result.Error)
		return message, ErrDbAccessFailed
	}

	return message, nil
}
