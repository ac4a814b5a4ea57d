package types

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LongNameSeparator joins suite and test names into Robot long names
const LongNameSeparator = "."

// MergedMarker appears in the message of a test whose result was merged
// from more than one attempt.
const MergedMarker = "re-executed and results merged"

// ResultTree is the structured outcome of one execution attempt, or the
// cumulative merge of several. A nil Suite means the tree is empty.
type ResultTree struct {
	Generator     string
	Generated     string
	SchemaVersion string
	RPA           bool
	Suite         *Suite
	Statistics    Statistics
	Errors        []Message
}

// Message is an execution error or warning recorded outside of any test
type Message struct {
	Time  string
	Level string
	Text  string
}

// Times holds the timing attributes of a status element as written by the
// producer. Both the pre-7.0 (starttime/endtime) and the 7.0 (start/elapsed)
// layouts are kept verbatim.
type Times struct {
	StartTime string
	EndTime   string
	Start     string
	Elapsed   string
}

// MetadataItem is a single suite metadata entry
type MetadataItem struct {
	Name  string
	Value string
}

// Suite is a named group of tests, possibly nested
type Suite struct {
	ID       string // positional id (s1-s2), regenerated by Finalize
	Name     string
	Source   string
	Doc      string
	Metadata []MetadataItem
	Setup    []byte // raw setup keyword, if any
	Teardown []byte // raw teardown keyword, if any
	Suites   []*Suite
	Tests    []*Test
	Status   TestStatus
	Message  string
	Times    Times
}

// Test is a single test case inside a suite
type Test struct {
	ID      string
	Name    string
	Line    string
	Doc     string
	Tags    []string
	Timeout string
	Body    []byte // raw keywords and control structures
	Status  TestStatus
	Message string
	Times   Times

	// History is the status recorded by every attempt that executed the
	// test, oldest first.
	History []TestStatus
}

// Statistics mirrors the aggregate statistics section of a result tree
type Statistics struct {
	Total  StatEntry
	Tags   []StatEntry
	Suites []SuiteStat
}

// StatEntry holds pass/fail/skip counts for a named aggregate
type StatEntry struct {
	Name string
	Pass int
	Fail int
	Skip int
}

// SuiteStat holds the aggregate counts of every test below a suite
type SuiteStat struct {
	ID   string
	Name string // long name
	Pass int
	Fail int
	Skip int
}

// ResultStats tracks test counts for a tree or subtree
type ResultStats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// TestRef pairs a test with the long name of the suite that owns it
type TestRef struct {
	SuiteName string
	Test      *Test
}

// LongName returns the dotted long name of the test
func (r TestRef) LongName() string {
	return JoinLongName(r.SuiteName, r.Test.Name)
}

// JoinLongName appends name to a parent long name
func JoinLongName(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + LongNameSeparator + name
}

// IsEmpty reports whether the tree has no root suite
func (t *ResultTree) IsEmpty() bool {
	return t == nil || t.Suite == nil
}

// SuitePath locates a suite by the names from the root suite down to it.
// Suite names may themselves contain the long name separator, so a path
// cannot in general be recovered from a long name.
type SuitePath []string

// LongName returns the dotted long name of the suite
func (p SuitePath) LongName() string {
	return strings.Join(p, LongNameSeparator)
}

// Child returns a new path naming the child suite name below p
func (p SuitePath) Child(name string) SuitePath {
	return append(slices.Clip(p), name)
}

// SplitLongName splits a long name on every separator. It is only exact
// for names whose suites contain no separator; paths taken from a tree with
// WalkSuitePaths are always exact.
func SplitLongName(longName string) SuitePath {
	return strings.Split(longName, LongNameSeparator)
}

// LongNames returns the long names of paths
func LongNames(paths []SuitePath) []string {
	if paths == nil {
		return nil
	}
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = p.LongName()
	}
	return names
}

// WalkSuites visits every suite depth-first with its long name. Returning
// false from fn skips the suite's children.
func (t *ResultTree) WalkSuites(fn func(longName string, s *Suite) bool) {
	t.WalkSuitePaths(func(path SuitePath, s *Suite) bool {
		return fn(path.LongName(), s)
	})
}

// WalkSuitePaths is WalkSuites with the path of each suite. fn may keep
// the path.
func (t *ResultTree) WalkSuitePaths(fn func(path SuitePath, s *Suite) bool) {
	if t.IsEmpty() {
		return
	}
	walkSuite(nil, t.Suite, fn)
}

func walkSuite(parent SuitePath, s *Suite, fn func(SuitePath, *Suite) bool) {
	path := parent.Child(s.Name)
	if !fn(path, s) {
		return
	}
	for _, child := range s.Suites {
		walkSuite(path, child, fn)
	}
}

// Tests returns every test in the tree in document order
func (t *ResultTree) Tests() []TestRef {
	var refs []TestRef
	t.WalkSuites(func(longName string, s *Suite) bool {
		for _, test := range s.Tests {
			refs = append(refs, TestRef{SuiteName: longName, Test: test})
		}
		return true
	})
	return refs
}

// FindSuite returns the suite with the given long name, or nil
func (t *ResultTree) FindSuite(longName string) *Suite {
	var found *Suite
	t.WalkSuites(func(name string, s *Suite) bool {
		if found != nil {
			return false
		}
		if name == longName {
			found = s
			return false
		}
		return true
	})
	return found
}

// Counts returns the pass/fail/skip totals across all tests
func (t *ResultTree) Counts() ResultStats {
	var stats ResultStats
	for _, ref := range t.Tests() {
		stats.add(ref.Test.Status)
	}
	return stats
}

// Status returns the status of the root suite, SKIP for an empty tree
func (t *ResultTree) Status() TestStatus {
	if t.IsEmpty() {
		return TestStatusSkip
	}
	return t.Suite.Status
}

func (s *ResultStats) add(status TestStatus) {
	s.Total++
	switch status {
	case TestStatusPass:
		s.Passed++
	case TestStatusFail:
		s.Failed++
	case TestStatusSkip:
		s.Skipped++
	}
}

// Finalize regenerates positional ids, suite statuses and statistics after
// the tree has been built or modified.
func (t *ResultTree) Finalize() {
	if t.IsEmpty() {
		t.Statistics = Statistics{Total: StatEntry{Name: "All Tests"}}
		return
	}
	assignIDs(t.Suite, "s1")
	t.Suite.UpdateStatus()
	t.Statistics = ComputeStatistics(t)
}

func assignIDs(s *Suite, id string) {
	s.ID = id
	for i, child := range s.Suites {
		assignIDs(child, fmt.Sprintf("%s-s%d", id, i+1))
	}
	for i, test := range s.Tests {
		test.ID = fmt.Sprintf("%s-t%d", id, i+1)
	}
}

// UpdateStatus recomputes the status of the suite and all of its children
// from the statuses of their tests.
func (s *Suite) UpdateStatus() TestStatus {
	allSkipped := true
	anyFailed := false

	for _, child := range s.Suites {
		status := child.UpdateStatus()
		if status != TestStatusSkip {
			allSkipped = false
		}
		if status == TestStatusFail {
			anyFailed = true
		}
	}

	for _, test := range s.Tests {
		if test.Status != TestStatusSkip && test.Status != TestStatusNotRun {
			allSkipped = false
		}
		if test.Status == TestStatusFail {
			anyFailed = true
		}
	}

	s.Status = determineStatusFromFlags(allSkipped, anyFailed)
	return s.Status
}

// TestCount returns the number of tests in the suite and its descendants
func (s *Suite) TestCount() int {
	n := len(s.Tests)
	for _, child := range s.Suites {
		n += child.TestCount()
	}
	return n
}

// ComputeStatistics builds the aggregate statistics of a tree from its tests
func ComputeStatistics(t *ResultTree) Statistics {
	stats := Statistics{Total: StatEntry{Name: "All Tests"}}
	if t.IsEmpty() {
		return stats
	}

	tags := make(map[string]*StatEntry)
	var suiteStat func(longName string, s *Suite) SuiteStat
	suiteStat = func(longName string, s *Suite) SuiteStat {
		st := SuiteStat{ID: s.ID, Name: longName}
		// Reserve this suite's slot so the list stays in document order
		idx := len(stats.Suites)
		stats.Suites = append(stats.Suites, st)

		for _, test := range s.Tests {
			countInto(&st.Pass, &st.Fail, &st.Skip, test.Status)
			countInto(&stats.Total.Pass, &stats.Total.Fail, &stats.Total.Skip, test.Status)
			for _, tag := range test.Tags {
				entry, ok := tags[tag]
				if !ok {
					entry = &StatEntry{Name: tag}
					tags[tag] = entry
				}
				countInto(&entry.Pass, &entry.Fail, &entry.Skip, test.Status)
			}
		}
		for _, child := range s.Suites {
			cs := suiteStat(JoinLongName(longName, child.Name), child)
			st.Pass += cs.Pass
			st.Fail += cs.Fail
			st.Skip += cs.Skip
		}
		stats.Suites[idx] = st
		return st
	}
	suiteStat(t.Suite.Name, t.Suite)

	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats.Tags = append(stats.Tags, *tags[name])
	}
	return stats
}

func countInto(pass, fail, skip *int, status TestStatus) {
	switch status {
	case TestStatusPass:
		*pass++
	case TestStatusFail:
		*fail++
	case TestStatusSkip:
		*skip++
	}
}

// Clone returns a deep copy of the tree
func (t *ResultTree) Clone() *ResultTree {
	if t == nil {
		return nil
	}
	c := *t
	if t.Suite != nil {
		c.Suite = t.Suite.Clone()
	}
	c.Statistics = Statistics{
		Total:  t.Statistics.Total,
		Tags:   slices.Clone(t.Statistics.Tags),
		Suites: slices.Clone(t.Statistics.Suites),
	}
	c.Errors = slices.Clone(t.Errors)
	return &c
}

// Clone returns a deep copy of the suite
func (s *Suite) Clone() *Suite {
	c := *s
	c.Metadata = slices.Clone(s.Metadata)
	c.Setup = slices.Clone(s.Setup)
	c.Teardown = slices.Clone(s.Teardown)
	c.Suites = make([]*Suite, 0, len(s.Suites))
	for _, child := range s.Suites {
		c.Suites = append(c.Suites, child.Clone())
	}
	c.Tests = make([]*Test, 0, len(s.Tests))
	for _, test := range s.Tests {
		c.Tests = append(c.Tests, test.Clone())
	}
	return &c
}

// Clone returns a deep copy of the test
func (t *Test) Clone() *Test {
	c := *t
	c.Tags = slices.Clone(t.Tags)
	c.Body = slices.Clone(t.Body)
	c.History = slices.Clone(t.History)
	return &c
}

// Combine joins trees produced by independent workers of the same attempt
// into one tree. Root suites with the same name are unified; otherwise the
// roots become children of a synthetic root called rootName.
func Combine(rootName string, trees ...*ResultTree) *ResultTree {
	var nonEmpty []*ResultTree
	for _, t := range trees {
		if !t.IsEmpty() {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) == 0 {
		return &ResultTree{}
	}

	combined := nonEmpty[0].Clone()
	sameRoot := true
	for _, t := range nonEmpty[1:] {
		if t.Suite.Name != combined.Suite.Name {
			sameRoot = false
			break
		}
	}
	if !sameRoot {
		root := &Suite{Name: rootName}
		for _, t := range nonEmpty {
			root.Suites = append(root.Suites, t.Suite.Clone())
		}
		combined.Suite = root
	} else {
		for _, t := range nonEmpty[1:] {
			unionSuite(combined.Suite, t.Suite)
		}
	}
	for _, t := range nonEmpty[1:] {
		combined.Errors = append(combined.Errors, t.Errors...)
	}
	combined.Finalize()
	return combined
}

// unionSuite adds the children of src to dst. Tests present in both keep the
// copy from src since it is the one that was selected for execution.
func unionSuite(dst, src *Suite) {
	for _, srcChild := range src.Suites {
		if dstChild := dst.Child(srcChild.Name); dstChild != nil {
			unionSuite(dstChild, srcChild)
			continue
		}
		dst.Suites = append(dst.Suites, srcChild.Clone())
	}
	for _, srcTest := range src.Tests {
		replaced := false
		for i, dstTest := range dst.Tests {
			if dstTest.Name == srcTest.Name {
				dst.Tests[i] = srcTest.Clone()
				replaced = true
				break
			}
		}
		if !replaced {
			dst.Tests = append(dst.Tests, srcTest.Clone())
		}
	}
	if len(dst.Setup) == 0 {
		dst.Setup = slices.Clone(src.Setup)
	}
	if len(dst.Teardown) == 0 {
		dst.Teardown = slices.Clone(src.Teardown)
	}
}

// Child returns the direct child suite with the given name, or nil
func (s *Suite) Child(name string) *Suite {
	for _, child := range s.Suites {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// Robot timestamps before 7.0 use this layout
const legacyTimestampLayout = "20060102 15:04:05.000"

// Duration returns the elapsed time recorded by the status element, or zero
// when it cannot be determined.
func (t Times) Duration() time.Duration {
	if t.Elapsed != "" {
		if secs, err := strconv.ParseFloat(t.Elapsed, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	if t.StartTime == "" || t.EndTime == "" || t.StartTime == "N/A" || t.EndTime == "N/A" {
		return 0
	}
	start, err := time.Parse(legacyTimestampLayout, t.StartTime)
	if err != nil {
		return 0
	}
	end, err := time.Parse(legacyTimestampLayout, t.EndTime)
	if err != nil || end.Before(start) {
		return 0
	}
	return end.Sub(start)
}

// NoResultsTag marks the placeholder test recorded for a suite whose
// execution produced no result document.
const NoResultsTag = "robot-rerun:no-results"

// NoResultsTestName names the placeholder test of a suite without results
const NoResultsTestName = "Suite Execution"

// IsPlaceholder reports whether the test stands in for a suite that
// produced no results.
func (t *Test) IsPlaceholder() bool {
	return slices.Contains(t.Tags, NoResultsTag)
}

// SynthesizeFailure builds a tree in which every listed suite holds a single
// failing placeholder test carrying reason. All paths share the first
// path's root suite. The tree is finalized.
func SynthesizeFailure(paths []SuitePath, reason string) *ResultTree {
	tree := &ResultTree{Generator: "robot-rerun"}
	for _, path := range paths {
		if len(path) == 0 {
			continue
		}
		if tree.Suite == nil {
			tree.Suite = &Suite{Name: path[0]}
		}
		if path[0] == tree.Suite.Name {
			path = path[1:]
		}

		s := tree.Suite
		for _, name := range path {
			child := s.Child(name)
			if child == nil {
				child = &Suite{Name: name}
				s.Suites = append(s.Suites, child)
			}
			s = child
		}
		s.Message = reason
		if len(s.Tests) == 0 {
			s.Tests = []*Test{{
				Name:    NoResultsTestName,
				Tags:    []string{NoResultsTag},
				Status:  TestStatusFail,
				Message: reason,
				History: []TestStatus{TestStatusFail},
			}}
		}
	}
	tree.Errors = append(tree.Errors, Message{Level: "ERROR", Text: reason})
	tree.Finalize()
	return tree
}
