// Package bundler builds and verifies a signed manifest over a bundle
// root's .ai/ tree: a sha256 per file plus whether that file carries its
// own inline signature, generalized from the teacher's single-artifact
// checksum/signature pair to a whole-tree manifest.
package bundler

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leolilley/ryeos/internal/integrity"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// manifestMarker is the comment marker the manifest's own signature line
// is appended under, matching every other signed artifact in this tree.
const manifestMarker = "#"

// trackedDirs are the subtrees of a bundle root's .ai/ directory a
// manifest covers. trusted_keys/ (identity documents, not bundle content)
// and bundles/ (the manifest's own directory, which would otherwise
// self-reference) are intentionally excluded.
var trackedDirs = []string{"directives", "tools", "knowledge"}

// Entry is one file's record in a manifest.
type Entry struct {
	SHA256       string `yaml:"sha256"`
	InlineSigned bool   `yaml:"inline_signed"`
	ItemType     string `yaml:"item_type,omitempty"`
}

// Manifest is the parsed, unsigned shape of a bundle manifest: a relative
// path (from the bundle root) to its Entry.
type Manifest struct {
	BundleID string           `yaml:"bundle_id"`
	Entries  map[string]Entry `yaml:"entries"`
}

// Create walks root's .ai/{directives,tools,knowledge} tree, hashes every
// file, detects whether it carries an inline rye:signed: comment, and
// signs the resulting manifest, writing it to
// root/.ai/bundles/<bundleID>/manifest.yaml.
func Create(root, bundleID string, priv ed25519.PrivateKey, now time.Time) (string, error) {
	manifest := Manifest{BundleID: bundleID, Entries: map[string]Entry{}}

	for _, dir := range trackedDirs {
		base := filepath.Join(root, ".ai", dir)
		err := filepath.WalkDir(base, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				if os.IsNotExist(walkErr) {
					return nil
				}
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			_, signed := integrity.ExtractSignature(raw)
			manifest.Entries[rel] = Entry{
				SHA256:       integrity.ContentHash(raw),
				InlineSigned: signed,
				ItemType:     dir,
			}
			return nil
		})
		if err != nil {
			return "", ryemodels.NewRyeError(ryemodels.ErrIntegrity, fmt.Errorf("walk %s: %w", base, err))
		}
	}

	unsigned, err := yaml.Marshal(manifest)
	if err != nil {
		return "", ryemodels.NewRyeError(ryemodels.ErrIntegrity, fmt.Errorf("marshal manifest: %w", err))
	}
	signed, _ := integrity.SignContent(unsigned, manifestMarker, priv, now)

	outPath := filepath.Join(root, ".ai", "bundles", bundleID, "manifest.yaml")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", ryemodels.NewRyeError(ryemodels.ErrIntegrity, fmt.Errorf("create bundle dir: %w", err))
	}
	if err := os.WriteFile(outPath, signed, 0o644); err != nil {
		return "", ryemodels.NewRyeError(ryemodels.ErrIntegrity, fmt.Errorf("write manifest: %w", err))
	}
	return outPath, nil
}

// Failure is one mismatch found during Verify.
type Failure struct {
	Path   string
	Reason string
}

// Report is the outcome of verifying a bundle manifest.
type Report struct {
	Pass     bool
	Failures []Failure
}

// Verify re-verifies a manifest's own signature, then for every entry
// recomputes its sha256 and (if inline_signed) its own signature,
// reporting every missing file, extra file, hash mismatch, and signature
// mismatch. Pass requires zero failures.
func Verify(root, bundleID string, verifier *integrity.Verifier) (*Report, error) {
	manifestPath := filepath.Join(root, ".ai", "bundles", bundleID, "manifest.yaml")
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, ryemodels.NewRyeError(ryemodels.ErrIntegrity, fmt.Errorf("read manifest: %w", err))
	}

	report := &Report{}

	if _, err := verifier.Verify(raw); err != nil {
		report.Failures = append(report.Failures, Failure{Path: manifestPath, Reason: err.Error()})
		return report, nil
	}

	withoutSig := integrity.StripAuthoritativeLine(raw)
	var manifest Manifest
	if err := yaml.Unmarshal(withoutSig, &manifest); err != nil {
		return nil, ryemodels.NewRyeError(ryemodels.ErrIntegrity, fmt.Errorf("parse manifest: %w", err))
	}

	seen := make(map[string]bool, len(manifest.Entries))
	for rel, entry := range manifest.Entries {
		seen[rel] = true
		path := filepath.Join(root, filepath.FromSlash(rel))
		fileRaw, err := os.ReadFile(path)
		if err != nil {
			report.Failures = append(report.Failures, Failure{Path: rel, Reason: "file missing"})
			continue
		}
		if got := integrity.ContentHash(fileRaw); got != entry.SHA256 {
			report.Failures = append(report.Failures, Failure{Path: rel, Reason: fmt.Sprintf("hash mismatch: expected %s, got %s", entry.SHA256, got)})
			continue
		}
		if entry.InlineSigned {
			if _, err := verifier.Verify(fileRaw); err != nil {
				report.Failures = append(report.Failures, Failure{Path: rel, Reason: "inline signature invalid: " + err.Error()})
			}
		}
	}

	extras, err := extraFiles(root, seen)
	if err != nil {
		return nil, err
	}
	for _, rel := range extras {
		report.Failures = append(report.Failures, Failure{Path: rel, Reason: "file present but not in manifest"})
	}

	report.Pass = len(report.Failures) == 0
	return report, nil
}

func extraFiles(root string, seen map[string]bool) ([]string, error) {
	var extras []string
	for _, dir := range trackedDirs {
		base := filepath.Join(root, ".ai", dir)
		err := filepath.WalkDir(base, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				if os.IsNotExist(walkErr) {
					return nil
				}
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if !seen[rel] {
				extras = append(extras, rel)
			}
			return nil
		})
		if err != nil {
			return nil, ryemodels.NewRyeError(ryemodels.ErrIntegrity, fmt.Errorf("walk %s: %w", base, err))
		}
	}
	sort.Strings(extras)
	return extras, nil
}
