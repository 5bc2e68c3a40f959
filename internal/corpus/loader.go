// Package corpus reads the curated document tree produced by the scraping
// scripts: data/categories/<category>/<name>.txt, one UTF-8 file per page.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/JanhviHarwani/access-ed-backend/internal/model"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Load walks the corpus directory and returns one SourceDocument per .txt
// file. Document ids are slugs of category and filename, so re-running a
// scrape produces the same ids and ingestion replaces rather than appends.
func Load(dir string) ([]model.SourceDocument, error) {
	categories, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir %s failed: %w", dir, err)
	}

	var docs []model.SourceDocument
	for _, category := range categories {
		if !category.IsDir() {
			continue
		}
		categoryDir := filepath.Join(dir, category.Name())
		files, err := os.ReadDir(categoryDir)
		if err != nil {
			return nil, fmt.Errorf("read category dir %s failed: %w", categoryDir, err)
		}

		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".txt") {
				continue
			}
			path := filepath.Join(categoryDir, file.Name())
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read corpus file %s failed: %w", path, err)
			}

			name := strings.TrimSuffix(file.Name(), ".txt")
			docs = append(docs, model.SourceDocument{
				ID:       Slug(category.Name()) + "-" + Slug(name),
				Source:   path,
				Title:    Title(name),
				Category: category.Name(),
				Content:  string(content),
			})
		}
	}
	return docs, nil
}

// Slug normalizes a name into a stable lowercase identifier segment.
func Slug(name string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// Title turns a file name like "extended_time-accommodations" into a
// readable title.
func Title(name string) string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.Join(strings.Fields(s), " ")
}
