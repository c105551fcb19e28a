package items

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leolilley/ryeos/internal/integrity"
	"github.com/leolilley/ryeos/internal/resolver"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// Loader resolves and parses directive/tool/knowledge items, verifying
// their signature unless running in authoring mode (used only by creation
// and sign paths, per spec.md §4.C).
type Loader struct {
	resolver *resolver.Resolver
	verifier *integrity.Verifier
}

// New builds a Loader over the given resolver and verifier.
func New(res *resolver.Resolver, verifier *integrity.Verifier) *Loader {
	return &Loader{resolver: res, verifier: verifier}
}

// Resolve locates (itemType, id) via the resolver's search order without
// reading, verifying, or parsing the file, per spec.md §4.B's "return
// (path, space)" contract — the lightweight lookup backing the rye_search
// dispatch tool, distinct from Load's full verify-and-parse.
func (l *Loader) Resolve(itemType ryemodels.ItemType, id string) (path string, space ryemodels.Space, err error) {
	return l.resolver.Resolve(itemType, id)
}

// Load resolves (itemType, id), verifies it (unless authoring), and parses
// its metadata into a populated ryemodels.Item.
func (l *Loader) Load(itemType ryemodels.ItemType, id string, authoring bool) (*ryemodels.Item, error) {
	path, space, err := l.resolver.Resolve(itemType, id)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ryemodels.NewRyeError(ryemodels.ErrResolution, fmt.Errorf("read item file: %w", err)).WithItem(id)
	}

	item := &ryemodels.Item{
		ID:         id,
		Type:       itemType,
		Space:      space,
		Path:       path,
		RawContent: raw,
	}

	if !authoring {
		if err := l.verifier.VerifyItem(item); err != nil {
			return nil, err
		}
	} else {
		item.ContentWithoutSig = raw
	}

	if err := l.parse(item); err != nil {
		return nil, err
	}
	return item, nil
}

func (l *Loader) parse(item *ryemodels.Item) error {
	switch item.Type {
	case ryemodels.ItemDirective:
		meta, err := ParseDirective(item.ContentWithoutSig)
		if err != nil {
			return errWithItem(err, item.ID)
		}
		item.Directive = meta
		item.Category = categoryFromID(item.ID)
		return nil

	case ryemodels.ItemTool:
		ext := strings.TrimPrefix(filepath.Ext(item.Path), ".")
		meta, version, category, err := ParseTool(item.ContentWithoutSig, ext)
		if err != nil {
			return errWithItem(err, item.ID)
		}
		item.Tool = meta
		item.Version = version
		item.Category = category
		return nil

	case ryemodels.ItemKnowledge:
		meta, id, category, version, err := ParseKnowledge(item.ContentWithoutSig)
		if err != nil {
			return errWithItem(err, item.ID)
		}
		if id != "" && id != item.ID {
			return ryemodels.NewRyeError(ryemodels.ErrValidation,
				fmt.Errorf("knowledge frontmatter id %q does not match resolved id %q", id, item.ID)).WithItem(item.ID)
		}
		item.Knowledge = meta
		item.Category = category
		item.Version = version
		return nil

	default:
		return ryemodels.NewRyeError(ryemodels.ErrValidation, fmt.Errorf("unknown item type %q", item.Type)).WithItem(item.ID)
	}
}

func errWithItem(err error, id string) error {
	if rerr, ok := ryemodels.GetRyeError(err); ok {
		return rerr.WithItem(id)
	}
	return ryemodels.NewRyeError(ryemodels.ErrValidation, err).WithItem(id)
}

func categoryFromID(id string) string {
	if idx := strings.IndexByte(id, '/'); idx >= 0 {
		return id[:idx]
	}
	return id
}
