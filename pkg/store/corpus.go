package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/queryglass/queryglass/pkg/models"
)

type corpusFile struct {
	Entries []corpusEntry `yaml:"entries"`
}

type corpusEntry struct {
	ID       string                       `yaml:"id"`
	Title    string                       `yaml:"title"`
	Content  string                       `yaml:"content"`
	Metadata models.DocumentationMetadata `yaml:"metadata"`
}

// LoadCorpus reads curated documentation entries (business rules and
// query templates) from a YAML file. A missing file is not an error;
// the engine just runs with schema-derived entries only.
func LoadCorpus(path string) ([]models.DocumentationEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading corpus file %s: %w", path, err)
	}

	var file corpusFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing corpus file %s: %w", path, err)
	}

	docs := make([]models.DocumentationEntry, 0, len(file.Entries))
	for i, e := range file.Entries {
		if e.ID == "" {
			return nil, fmt.Errorf("corpus entry %d in %s has no id", i, path)
		}
		docs = append(docs, models.DocumentationEntry{
			ID:       e.ID,
			Title:    e.Title,
			Content:  e.Content,
			Metadata: e.Metadata,
		})
	}
	return docs, nil
}
