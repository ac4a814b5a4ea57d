// Package filter reduces a result tree to the suites that still fail.
package filter

import (
	"github.com/dfe-analytical-services/robot-rerun/types"
)

// FilterToFailing returns a copy of tree holding only the suites whose
// statistics record at least one failure, with their tests intact. The
// result is an empty tree when nothing fails. Statistics are computed first
// when the tree carries none.
func FilterToFailing(tree *types.ResultTree) *types.ResultTree {
	if tree.IsEmpty() {
		return &types.ResultTree{}
	}

	stats := tree.Statistics
	if len(stats.Suites) == 0 {
		stats = types.ComputeStatistics(tree)
	}
	failing := make(map[string]bool)
	for _, st := range stats.Suites {
		if st.Fail > 0 {
			failing[st.Name] = true
		}
	}
	if !failing[tree.Suite.Name] {
		return &types.ResultTree{}
	}

	out := tree.Clone()
	out.Suite = prune(tree.Suite.Name, out.Suite, failing)
	out.Finalize()
	return out
}

func prune(longName string, s *types.Suite, failing map[string]bool) *types.Suite {
	kept := s.Suites[:0]
	for _, child := range s.Suites {
		childName := types.JoinLongName(longName, child.Name)
		if !failing[childName] {
			continue
		}
		kept = append(kept, prune(childName, child, failing))
	}
	s.Suites = kept
	return s
}

// FailingSuites returns the long names of the suites that directly contain
// a failing test, in document order.
func FailingSuites(tree *types.ResultTree) []string {
	return types.LongNames(FailingSuitePaths(tree))
}

// FailingSuitePaths returns the paths of the suites that directly contain a
// failing test, in document order. These are the suites handed to the next
// attempt.
func FailingSuitePaths(tree *types.ResultTree) []types.SuitePath {
	var paths []types.SuitePath
	FilterToFailing(tree).WalkSuitePaths(func(path types.SuitePath, s *types.Suite) bool {
		for _, t := range s.Tests {
			if t.Status == types.TestStatusFail {
				paths = append(paths, path)
				break
			}
		}
		return true
	})
	return paths
}
