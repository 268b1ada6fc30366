// Package pathutil provides path and name validation utilities for docseal.
package pathutil

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/docseal/docseal/pkg/errclass"
)

var tagRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateTag validates a snapshot tag.
func ValidateTag(tag string) error {
	if tag == "" {
		return errclass.ErrNameInvalid.WithMessage("tag must not be empty")
	}
	for _, r := range tag {
		if unicode.IsControl(r) {
			return errclass.ErrNameInvalid.WithMessagef("tag must not contain control characters: %q", tag)
		}
	}
	if !tagRegex.MatchString(tag) {
		return errclass.ErrNameInvalid.WithMessagef("tag must match [a-zA-Z0-9._-]+: %s", tag)
	}
	return nil
}

// NormalizeRel turns a project-relative path into its canonical key:
// NFC-normalized, forward slashes, cleaned. Absolute paths and paths that
// climb out of the project are rejected with ErrPathEscape.
func NormalizeRel(rel string) (string, error) {
	if rel == "" {
		return "", errclass.ErrPathEscape.WithMessage("empty path")
	}
	p := norm.NFC.String(filepath.ToSlash(rel))
	if path.IsAbs(p) || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", errclass.ErrPathEscape.WithMessagef("absolute path not allowed: %s", rel)
	}
	p = path.Clean(p)
	if p == "." {
		return "", errclass.ErrPathEscape.WithMessage("path names the project root")
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", errclass.ErrPathEscape.WithMessagef("path escapes project root: %s", rel)
	}
	for _, r := range p {
		if unicode.IsControl(r) {
			return "", errclass.ErrNameInvalid.WithMessagef("path contains control characters: %q", rel)
		}
	}
	return p, nil
}

// Resolve normalizes rel and returns its absolute location under root,
// refusing anything that escapes root lexically or through symlinks.
func Resolve(root, rel string) (string, error) {
	key, err := NormalizeRel(rel)
	if err != nil {
		return "", err
	}
	abs := filepath.Join(root, filepath.FromSlash(key))
	if err := ValidatePathSafety(root, abs); err != nil {
		return "", err
	}
	return abs, nil
}

// ResolveOnDisk is Resolve for a name read back from the filesystem. It
// applies the same escape checks but keeps rel's own Unicode spelling, so
// the returned path opens the file even when its name is not NFC. key is
// the normalized form used in records and archives.
func ResolveOnDisk(root, rel string) (abs, key string, err error) {
	key, err = NormalizeRel(rel)
	if err != nil {
		return "", "", err
	}
	abs = filepath.Join(root, filepath.FromSlash(path.Clean(filepath.ToSlash(rel))))
	if err := ValidatePathSafety(root, abs); err != nil {
		return "", "", err
	}
	return abs, key, nil
}

// ValidatePathSafety verifies target path does not escape the project root.
func ValidatePathSafety(root, targetPath string) error {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return errclass.ErrPathEscape.WithMessagef("cannot resolve project root: %v", err)
	}

	// Try resolving target; if it doesn't exist, resolve closest ancestor
	resolvedTarget, err := filepath.EvalSymlinks(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			resolvedTarget = resolveClosestAncestor(targetPath)
		} else {
			return errclass.ErrPathEscape.WithMessagef("cannot resolve target: %v", err)
		}
	}

	sep := string(filepath.Separator)
	if !strings.HasPrefix(resolvedTarget+sep, resolvedRoot+sep) && resolvedTarget != resolvedRoot {
		return errclass.ErrPathEscape.WithMessagef("path escapes project root: %s", targetPath)
	}
	return nil
}

// resolveClosestAncestor walks up from path to find the closest existing
// ancestor, resolves it, then appends the remaining components.
func resolveClosestAncestor(p string) string {
	dir := filepath.Dir(p)
	if dir == p {
		return filepath.Clean(p)
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = resolveClosestAncestor(dir)
		} else {
			return filepath.Clean(p)
		}
	}
	return filepath.Join(resolved, filepath.Base(p))
}
