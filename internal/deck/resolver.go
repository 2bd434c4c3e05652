package deck

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps a cited source name back to a file under the data
// directory. Citations come out of model text, so the name may differ
// from the stored file in case or extension.
type Resolver struct {
	dataDir string
}

func NewResolver(dataDir string) *Resolver {
	return &Resolver{dataDir: dataDir}
}

// Find locates the file for name among files with one of the allowed
// extensions. Strategies, in order: exact path, case-insensitive name
// equality, substring containment either way, then stem equality.
func (r *Resolver) Find(name string, allowedExts []string) (string, bool) {
	exact := filepath.Join(r.dataDir, name)
	if info, err := os.Stat(exact); err == nil && !info.IsDir() && hasExt(exact, allowedExts) {
		return exact, true
	}

	lowerName := strings.ToLower(name)
	lowerStem := strings.ToLower(stem(name))
	var found string
	_ = filepath.WalkDir(r.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || found != "" {
			return nil
		}
		if !hasExt(path, allowedExts) {
			return nil
		}
		base := strings.ToLower(d.Name())
		if base == lowerName ||
			strings.Contains(base, lowerName) ||
			strings.Contains(lowerName, base) ||
			strings.ToLower(stem(d.Name())) == lowerStem {
			found = path
		}
		return nil
	})
	return found, found != ""
}

func hasExt(path string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
