package items

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// frontmatterPattern matches a leading YAML frontmatter block delimited by
// --- lines.
var frontmatterPattern = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---\s*\n?`)

type rawKnowledgeMeta struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	Category  string `yaml:"category"`
	Version   string `yaml:"version"`
	Author    string `yaml:"author"`
	CreatedAt string `yaml:"created_at"`
}

// ParseKnowledge parses a knowledge item's signature-stripped content,
// requiring id, title, category, version, author, created_at in the
// frontmatter, and returns the parsed meta plus the id/category/version
// triad (which the loader uses to validate against the resolved path).
func ParseKnowledge(content []byte) (meta *ryemodels.KnowledgeMeta, id, category, version string, err error) {
	m := frontmatterPattern.FindSubmatch(content)
	if m == nil {
		return nil, "", "", "", ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("no YAML frontmatter found"))
	}

	var raw rawKnowledgeMeta
	if err := yaml.Unmarshal(m[1], &raw); err != nil {
		return nil, "", "", "", ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("parse knowledge frontmatter: %w", err))
	}

	var missing []string
	for _, f := range []struct{ name, val string }{
		{"id", raw.ID}, {"title", raw.Title}, {"category", raw.Category},
		{"version", raw.Version}, {"author", raw.Author}, {"created_at", raw.CreatedAt},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, "", "", "", ryemodels.NewRyeError(ryemodels.ErrValidation,
			fmt.Errorf("knowledge frontmatter missing required field(s): %s", strings.Join(missing, ", ")))
	}

	createdAt, err := time.Parse(time.RFC3339, raw.CreatedAt)
	if err != nil {
		createdAt, err = time.Parse("2006-01-02", raw.CreatedAt)
		if err != nil {
			return nil, "", "", "", ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("invalid created_at: %w", err))
		}
	}

	body := frontmatterPattern.ReplaceAll(content, nil)
	return &ryemodels.KnowledgeMeta{
		Title:     raw.Title,
		Author:    raw.Author,
		CreatedAt: createdAt,
		Body:      strings.TrimSpace(string(body)),
	}, raw.ID, raw.Category, raw.Version, nil
}
