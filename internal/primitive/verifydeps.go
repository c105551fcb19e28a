package primitive

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/leolilley/ryeos/internal/integrity"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// VerifyDeps walks the configured scope root and runs integrity
// verification over every file matching cfg.Extensions not under an
// excluded directory, halting at the first failure.
func VerifyDeps(cfg ryemodels.VerifyDepsConfig, scopeRoot string, verifier *integrity.Verifier) error {
	if !cfg.Enabled {
		return nil
	}

	info, err := os.Stat(scopeRoot)
	if err != nil {
		return ryemodels.NewRyeError(ryemodels.ErrIntegrity, err).WithMessage("verify_deps scope root not found")
	}
	if !info.IsDir() {
		return verifyFile(scopeRoot, cfg, verifier)
	}

	return filepath.WalkDir(scopeRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if isExcluded(d.Name(), cfg.ExcludeDirs) {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasExtension(path, cfg.Extensions) {
			return nil
		}
		return verifyFile(path, cfg, verifier)
	})
}

func verifyFile(path string, cfg ryemodels.VerifyDepsConfig, verifier *integrity.Verifier) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ryemodels.NewRyeError(ryemodels.ErrIntegrity, err).WithItem(path)
	}
	if _, err := verifier.Verify(raw); err != nil {
		if rerr, ok := ryemodels.GetRyeError(err); ok {
			return rerr.WithItem(path)
		}
		return ryemodels.NewRyeError(ryemodels.ErrIntegrity, err).WithItem(path)
	}
	return nil
}

func isExcluded(name string, excludeDirs []string) bool {
	for _, ex := range excludeDirs {
		if name == ex {
			return true
		}
	}
	return false
}

func hasExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	for _, e := range extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
