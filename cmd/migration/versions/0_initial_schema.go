package versions

import (
	"labsite/site/schema"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// InitialSchema creates every table from the current entity definitions. Later
// migrations must alter tables explicitly rather than relying on AutoMigrate.
func InitialSchema() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "0_initial_schema",
		Migrate: func(txn *gorm.DB) error {
			return txn.AutoMigrate(schema.AllEntities()...)
		},
		Rollback: func(txn *gorm.DB) error {
			tables := []interface{}{
				&schema.ContactMessage{}, &schema.ProjectImage{},
			}
			for _, table := range tables {
				if err := txn.Migrator().DropTable(table); err != nil {
					return err
				}
			}
			joinTables := []string{"project_team_members", "project_publications"}
			for _, table := range joinTables {
				if err := txn.Migrator().DropTable(table); err != nil {
					return err
				}
			}
			remaining := []interface{}{
				&schema.Publication{}, &schema.Project{}, &schema.TeamMember{},
				&schema.Content{}, &schema.User{},
			}
			for _, table := range remaining {
				if err := txn.Migrator().DropTable(table); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
