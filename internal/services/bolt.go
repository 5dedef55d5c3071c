package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lionrocklabs/chat-widget/internal/models"
	bolt "go.etcd.io/bbolt"
)

const templatesBucket = "templates"

// defaultTemplates seed the catalog on first open so the widget's template
// picker is never empty.
var defaultTemplates = []models.PromptTemplate{
	{Label: "general", Title: "General question"},
	{Label: "market-research", Title: "Market research summary"},
	{Label: "pain-points", Title: "Customer pain points"},
}

// BoltDB implements the prompt-template catalog using a BoltDB backend. Only
// labels and titles live here; template substitution happens on the backend.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB creates a new BoltDB instance with the specified file path. It
// initializes the catalog bucket, seeds the default templates when they are
// absent, and returns an error if the database cannot be opened or
// initialized. The database file is created with 0600 permissions if it
// doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(templatesBucket))
		if err != nil {
			return err
		}
		for _, t := range defaultTemplates {
			if b.Get([]byte(t.Label)) != nil {
				continue
			}
			v, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("failed to marshal template: %w", err)
			}
			if err := b.Put([]byte(t.Label), v); err != nil {
				return err
			}
		}
		return nil
	})

	return BoltDB{db: db}, err
}

// Templates retrieves the full catalog in label order. It returns a slice of
// PromptTemplate models or an error if the database operation fails.
func (b BoltDB) Templates(context.Context) ([]models.PromptTemplate, error) {
	var templates []models.PromptTemplate
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(templatesBucket))
		if bk == nil {
			return nil
		}

		return bk.ForEach(func(_, v []byte) error {
			var t models.PromptTemplate
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("failed to unmarshal template: %w", err)
			}
			templates = append(templates, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return templates, nil
}

// AddTemplate stores a template keyed by its label, overwriting any previous
// entry with the same label.
func (b BoltDB) AddTemplate(_ context.Context, t models.PromptTemplate) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(templatesBucket))
		if bk == nil {
			return fmt.Errorf("bucket %s is missing", templatesBucket)
		}

		v, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal template: %w", err)
		}
		return bk.Put([]byte(t.Label), v)
	})
}

// Close releases the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}
