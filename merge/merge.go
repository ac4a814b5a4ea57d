// Package merge folds the result of one execution attempt into the
// cumulative report of a run.
package merge

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dfe-analytical-services/robot-rerun/types"
)

// notePrefix starts the message of every test whose result was merged
const notePrefix = "Test has been " + types.MergedMarker

// Merge returns a new cumulative tree with next folded into cumulative.
// Neither input is modified. A nil or empty cumulative tree yields a copy of
// next with every test history seeded from its own status.
//
// Suites are matched by name at each level, tests by name within their
// suite. Suites and tests that only exist in cumulative are kept as they are.
func Merge(cumulative, next *types.ResultTree) *types.ResultTree {
	if next.IsEmpty() {
		if cumulative.IsEmpty() {
			return &types.ResultTree{}
		}
		out := cumulative.Clone()
		out.Finalize()
		return out
	}
	if cumulative.IsEmpty() {
		out := next.Clone()
		seedSuite(out.Suite)
		out.Finalize()
		return out
	}

	out := cumulative.Clone()
	out.Generated = next.Generated
	if next.Generator != "" {
		out.Generator = next.Generator
	}
	out.Errors = append(out.Errors, next.Errors...)

	src := next.Suite.Clone()
	seedSuite(src)
	switch target := findTarget(out, src.Name); {
	case target != nil:
		mergeSuite(target, src)
	default:
		// A scoped run rooted somewhere we have never seen
		out.Suite.Suites = append(out.Suite.Suites, src)
	}

	out.Finalize()
	return out
}

// findTarget locates the cumulative suite a scoped attempt's root belongs
// to. Robot keeps the original root when suites are selected with --suite,
// but a worker that ran a single file reports that file as its root.
func findTarget(tree *types.ResultTree, name string) *types.Suite {
	if tree.Suite.Name == name {
		return tree.Suite
	}
	var found *types.Suite
	tree.WalkSuites(func(_ string, s *types.Suite) bool {
		if found != nil {
			return false
		}
		if s.Name == name {
			found = s
			return false
		}
		return true
	})
	return found
}

func mergeSuite(dst, src *types.Suite) {
	for _, child := range src.Suites {
		if existing := dst.Child(child.Name); existing != nil {
			mergeSuite(existing, child)
			continue
		}
		dst.Suites = append(dst.Suites, child)
	}

	if hasRealTests(src) {
		dst.Tests = slices.DeleteFunc(dst.Tests, (*types.Test).IsPlaceholder)
	} else if hasRealTests(dst) {
		// The attempt produced no results for a suite we already know;
		// keep the known results and only record why
		src.Tests = slices.DeleteFunc(src.Tests, (*types.Test).IsPlaceholder)
	}

	for _, test := range src.Tests {
		idx := -1
		for i, existing := range dst.Tests {
			if existing.Name == test.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			dst.Tests = append(dst.Tests, test)
			continue
		}
		dst.Tests[idx] = mergeTest(dst.Tests[idx], test)
	}

	if src.Source != "" {
		dst.Source = src.Source
	}
	if len(src.Setup) > 0 {
		dst.Setup = src.Setup
	}
	if len(src.Teardown) > 0 {
		dst.Teardown = src.Teardown
	}
	if src.Doc != "" {
		dst.Doc = src.Doc
	}
	if len(src.Metadata) > 0 {
		dst.Metadata = src.Metadata
	}
	dst.Message = src.Message
	dst.Times = src.Times
}

// mergeTest combines two results of the same test. The returned test carries
// the content of whichever attempt decided the final status.
func mergeTest(old, next *types.Test) *types.Test {
	history := make([]types.TestStatus, 0, len(old.History)+len(next.History))
	history = append(history, old.History...)
	history = append(history, next.History...)
	status := types.ReduceStatus(history)

	winner := next
	if next.Status != status && old.Status == status {
		winner = old
	}

	merged := winner.Clone()
	merged.History = history
	merged.Status = status
	merged.Message = mergeMessage(history, stripNote(winner.Message))
	return merged
}

// hasRealTests reports whether the suite or any descendant holds a test
// that actually ran
func hasRealTests(s *types.Suite) bool {
	for _, t := range s.Tests {
		if !t.IsPlaceholder() {
			return true
		}
	}
	for _, child := range s.Suites {
		if hasRealTests(child) {
			return true
		}
	}
	return false
}

func seedSuite(s *types.Suite) {
	for _, test := range s.Tests {
		if len(test.History) == 0 {
			test.History = []types.TestStatus{test.Status}
		}
	}
	for _, child := range s.Suites {
		seedSuite(child)
	}
}

// htmlMarker makes the rest of a message render as HTML. It only counts at
// the very start of the message.
const htmlMarker = "*HTML*"

func mergeMessage(history []types.TestStatus, message string) string {
	parts := make([]string, 0, len(history))
	for _, s := range history {
		parts = append(parts, s.String())
	}
	note := fmt.Sprintf("%s (attempts: %s).", notePrefix, strings.Join(parts, ", "))
	if body, ok := strings.CutPrefix(message, htmlMarker); ok {
		body = strings.TrimLeft(body, " ")
		if body == "" {
			return htmlMarker + " " + note
		}
		return htmlMarker + " " + note + "<br>\n" + body
	}
	if message == "" {
		return note
	}
	return note + "\n" + message
}

// stripNote removes a note added by an earlier merge so notes never stack
func stripNote(message string) string {
	html := false
	text := message
	if body, ok := strings.CutPrefix(message, htmlMarker); ok {
		html = true
		text = strings.TrimLeft(body, " ")
	}
	if !strings.HasPrefix(text, notePrefix) {
		return message
	}
	_, rest, ok := strings.Cut(text, "\n")
	switch {
	case !ok || rest == "":
		return ""
	case html:
		return htmlMarker + " " + rest
	default:
		return rest
	}
}
