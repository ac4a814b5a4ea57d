package merge

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/hashicorp/go-multierror"

	"github.com/dfe-analytical-services/robot-rerun/types"
)

// referencePattern matches src and href attributes in test messages and in
// the escaped HTML of keyword messages
var referencePattern = regexp.MustCompile(`((?:src|href)=(?:"|'|&quot;|&#34;|&#39;))([^"'<>&]+)`)

// RelocateReferences prefixes the relative src and href references found in
// the messages, keyword bodies and suite fixtures of tree for which keep
// returns true, so they resolve from the parent of the directory they were
// written in. keep receives the cleaned slash separated reference. The tree
// is modified in place and the number of rewritten references returned.
func RelocateReferences(tree *types.ResultTree, prefix string, keep func(ref string) bool) int {
	if tree.IsEmpty() || prefix == "" {
		return 0
	}
	prefix = filepath.ToSlash(prefix)
	n := 0
	rewrite := func(s string) string {
		return referencePattern.ReplaceAllStringFunc(s, func(m string) string {
			sub := referencePattern.FindStringSubmatch(m)
			ref := sub[2]
			if !isRelativeReference(ref) || !keep(path.Clean(ref)) {
				return m
			}
			n++
			return sub[1] + path.Join(prefix, ref)
		})
	}
	rewriteBytes := func(b []byte) []byte {
		if len(b) == 0 {
			return b
		}
		return []byte(rewrite(string(b)))
	}

	tree.WalkSuites(func(_ string, s *types.Suite) bool {
		s.Message = rewrite(s.Message)
		s.Setup = rewriteBytes(s.Setup)
		s.Teardown = rewriteBytes(s.Teardown)
		for _, t := range s.Tests {
			t.Message = rewrite(t.Message)
			t.Body = rewriteBytes(t.Body)
		}
		return true
	})
	return n
}

func isRelativeReference(ref string) bool {
	switch {
	case ref == "", strings.Contains(ref, ":"), strings.HasPrefix(ref, "/"), strings.HasPrefix(ref, "#"):
		return false
	}
	clean := path.Clean(ref)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

// ArtifactExists returns a keep function for RelocateReferences accepting
// references to regular files below dir
func ArtifactExists(dir string) func(ref string) bool {
	return func(ref string) bool {
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(ref)))
		return err == nil && info.Mode().IsRegular()
	}
}

// artifactDir returns the directory, relative to dst, from which the
// artifacts of attemptDir are served once merged, and whether they still
// have to be copied there. An attempt directory below dst is served in
// place; any other gets a fresh directory named after it.
func artifactDir(dst, attemptDir string) (string, bool, error) {
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return "", false, err
	}
	absAttempt, err := filepath.Abs(attemptDir)
	if err != nil {
		return "", false, err
	}
	rel, err := filepath.Rel(absDst, absAttempt)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		if rel == "." {
			return "", false, nil
		}
		return rel, false, nil
	}

	base := filepath.Base(absAttempt)
	name := base
	for i := 2; ; i++ {
		if _, err := os.Stat(filepath.Join(dst, name)); errors.Is(err, fs.ErrNotExist) {
			return name, true, nil
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}

// CopyArtifacts copies every file below src matching one of the artifact
// globs into dst, keeping its path relative to src.
func (m *Merger) CopyArtifacts(src, dst string) (int, error) {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return 0, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	var result *multierror.Error
	copied := 0
	walkErr := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			result = multierror.Append(result, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			result = multierror.Append(result, err)
			return nil
		}
		if !m.matches(filepath.ToSlash(rel)) {
			return nil
		}
		target := filepath.Join(dst, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			result = multierror.Append(result, fmt.Errorf("copy %s: %w", rel, err))
			return nil
		}
		if err := copyFile(p, target); err != nil {
			result = multierror.Append(result, fmt.Errorf("copy %s: %w", rel, err))
			return nil
		}
		copied++
		return nil
	})
	if walkErr != nil {
		result = multierror.Append(result, walkErr)
	}
	return copied, result.ErrorOrNil()
}

func (m *Merger) matches(rel string) bool {
	for _, glob := range m.globs {
		ok, err := doublestar.PathMatch(glob, rel)
		if err != nil {
			m.log.Warn("Invalid artifact pattern", "pattern", glob, "error", err)
			continue
		}
		// **/ requires a directory; files at the root of the attempt
		// directory should match too
		if !ok && strings.HasPrefix(glob, "**/") {
			ok, _ = doublestar.PathMatch(strings.TrimPrefix(glob, "**/"), rel)
		}
		if ok {
			return true
		}
	}
	return false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
