package services

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"labsite/site/schema"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed seed_content.yaml
var defaultSeedContent []byte

type seedBlock struct {
	Key     string `yaml:"key"`
	Title   string `yaml:"title"`
	Body    string `yaml:"body"`
	Type    string `yaml:"type"`
	Section string `yaml:"section"`
}

// SeedContent inserts the default content blocks so that public pages always
// resolve their content keys on a fresh database. Existing keys are never
// overwritten. If path is empty the embedded defaults are used.
func SeedContent(db *gorm.DB, path string) error {
	data := defaultSeedContent
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("error reading seed file %v: %w", path, err)
		}
	}

	var blocks []seedBlock
	if err := yaml.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("error parsing seed content: %w", err)
	}

	created := 0
	err := db.Transaction(func(txn *gorm.DB) error {
		for _, block := range blocks {
			if block.Type == "" {
				block.Type = schema.ContentText
			}
			if block.Section == "" {
				block.Section = schema.SectionGeneral
			}
			if err := schema.CheckContentType(block.Type); err != nil {
				return fmt.Errorf("seed block '%v': %w", block.Key, err)
			}
			if err := schema.CheckContentSection(block.Section); err != nil {
				return fmt.Errorf("seed block '%v': %w", block.Key, err)
			}

			var existing schema.Content
			result := txn.Limit(1).Find(&existing, "key = ?", block.Key)
			if result.Error != nil {
				slog.Error("sql error checking for seed content", "key", block.Key, "error", result.Error)
				return schema.ErrDbAccessFailed
			}
			if result.RowsAffected != 0 {
				continue
			}

			content := schema.Content{
				Id:       uuid.New(),
				Key:      block.Key,
				Title:    block.Title,
				Body:     block.Body,
				Type:     block.Type,
				Section:  block.Section,
				IsActive: true,
			}
			if result := txn.Create(&content); result.Error != nil {
				slog.Error("sql error creating seed content", "key", block.Key, "error", result.Error)
				return schema.ErrDbAccessFailed
			}
			created++
		}
		return nil
	})
	if err != nil {
		return err
	}

	if created > 0 {
		slog.Info("seeded default content blocks", "created", created)
	}

	return nil
}
