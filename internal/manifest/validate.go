package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/AnyUserName/sizefit/internal/hasher"
)

// Validate checks the manifest against the files under baseDir and
// returns one message per problem. verifyHash rehashes every output.
func Validate(m *Manifest, baseDir string, verifyHash bool) []string {
	var errs []string

	if m.Version != SupportedManifestVersion {
		errs = append(errs, fmt.Sprintf("unsupported manifest version: %d", m.Version))
	}
	if m.TargetBytes <= 0 {
		errs = append(errs, fmt.Sprintf("invalid target_bytes: %d", m.TargetBytes))
	}
	if err := m.Params.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	keys := make([]string, 0, len(m.Files))
	for k := range m.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seenPaths := map[string]string{}
	for _, key := range keys {
		out := m.Files[key].Output

		if out.Format == "" {
			errs = append(errs, fmt.Sprintf("file %q: empty output format", key))
		}
		if out.Hash == "" {
			errs = append(errs, fmt.Sprintf("file %q: missing hash", key))
		}
		if out.WithinBudget != (out.Size <= m.TargetBytes) {
			errs = append(errs, fmt.Sprintf("file %q: within_budget=%t contradicts size %d vs target %d",
				key, out.WithinBudget, out.Size, m.TargetBytes))
		}
		if out.Path == "" {
			errs = append(errs, fmt.Sprintf("file %q: missing output path", key))
			continue
		}

		// Two sources must never share an output.
		if other, dup := seenPaths[out.Path]; dup {
			errs = append(errs, fmt.Sprintf("file %q: output %q also claimed by %q", key, out.Path, other))
		}
		seenPaths[out.Path] = key

		fullPath := filepath.Join(baseDir, filepath.FromSlash(out.Path))
		info, err := os.Stat(fullPath)
		if err != nil {
			errs = append(errs, fmt.Sprintf("file %q: output not found: %s", key, out.Path))
			continue
		}
		if info.Size() != out.Size {
			errs = append(errs, fmt.Sprintf("file %q: size mismatch: manifest=%d, disk=%d",
				key, out.Size, info.Size()))
		}
		if verifyHash && out.Hash != "" {
			got, err := hasher.FileHash(fullPath, len(out.Hash))
			if err != nil {
				errs = append(errs, fmt.Sprintf("file %q: hash %s: %v", key, out.Path, err))
			} else if got != out.Hash {
				errs = append(errs, fmt.Sprintf("file %q: hash mismatch: manifest=%s, disk=%s",
					key, out.Hash, got))
			}
		}
	}

	// Verify stats consistency.
	if m.Stats.TotalFiles != len(m.Files) {
		errs = append(errs, fmt.Sprintf("stats.total_files mismatch: %d != %d", m.Stats.TotalFiles, len(m.Files)))
	}

	return errs
}
