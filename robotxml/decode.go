// Package robotxml reads and writes Robot Framework result documents.
package robotxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/dfe-analytical-services/robot-rerun/types"
)

// ErrNoRootSuite is returned when a document parses but holds no suite
var ErrNoRootSuite = errors.New("result document has no root suite")

type xmlRobot struct {
	XMLName       xml.Name      `xml:"robot"`
	Generator     string        `xml:"generator,attr"`
	Generated     string        `xml:"generated,attr"`
	RPA           string        `xml:"rpa,attr"`
	SchemaVersion string        `xml:"schemaversion,attr"`
	Suite         *xmlSuite     `xml:"suite"`
	Statistics    xmlStatistics `xml:"statistics"`
	Errors        []xmlMsg      `xml:"errors>msg"`
}

type xmlSuite struct {
	ID     string      `xml:"id,attr"`
	Name   string      `xml:"name,attr"`
	Source string      `xml:"source,attr"`
	Suites []*xmlSuite `xml:"suite"`
	Tests  []*xmlTest  `xml:"test"`
	Doc    string      `xml:"doc"`
	Meta   []xmlMeta   `xml:"meta"`
	Status xmlStatus   `xml:"status"`
	Body   []rawElem   `xml:",any"`
}

type xmlTest struct {
	ID      string     `xml:"id,attr"`
	Name    string     `xml:"name,attr"`
	Line    string     `xml:"line,attr"`
	History string     `xml:"history,attr"`
	Doc     string     `xml:"doc"`
	Tags    []string   `xml:"tag"`
	Timeout xmlTimeout `xml:"timeout"`
	Status  xmlStatus  `xml:"status"`
	Body    []rawElem  `xml:",any"`
}

type xmlTimeout struct {
	Value string `xml:"value,attr"`
}

type xmlMeta struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlStatus struct {
	Status    string `xml:"status,attr"`
	StartTime string `xml:"starttime,attr"`
	EndTime   string `xml:"endtime,attr"`
	Start     string `xml:"start,attr"`
	Elapsed   string `xml:"elapsed,attr"`
	Message   string `xml:",chardata"`
}

type xmlStatistics struct {
	Total  []xmlStat `xml:"total>stat"`
	Tags   []xmlStat `xml:"tag>stat"`
	Suites []xmlStat `xml:"suite>stat"`
}

type xmlStat struct {
	Pass  int    `xml:"pass,attr"`
	Fail  int    `xml:"fail,attr"`
	Skip  int    `xml:"skip,attr"`
	ID    string `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Label string `xml:",chardata"`
}

type xmlMsg struct {
	Timestamp string `xml:"timestamp,attr"`
	Time      string `xml:"time,attr"`
	Level     string `xml:"level,attr"`
	Text      string `xml:",chardata"`
}

// rawElem captures an element verbatim so it can be written back unchanged
type rawElem struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   []byte     `xml:",innerxml"`
}

func (r rawElem) attr(name string) string {
	for _, a := range r.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// ReadFile decodes a result tree from an output.xml file
func ReadFile(path string) (*types.ResultTree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result file: %w", err)
	}
	defer func() { _ = f.Close() }()

	tree, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return tree, nil
}

// Decode parses a Robot output.xml document. Statistics are taken from the
// document as written; call Finalize on the result to recompute them.
func Decode(r io.Reader) (*types.ResultTree, error) {
	var doc xmlRobot
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing result xml: %w", err)
	}
	if doc.Suite == nil {
		return nil, ErrNoRootSuite
	}

	tree := &types.ResultTree{
		Generator:     doc.Generator,
		Generated:     doc.Generated,
		SchemaVersion: doc.SchemaVersion,
		RPA:           doc.RPA == "true",
	}

	suite, err := decodeSuite(doc.Suite)
	if err != nil {
		return nil, err
	}
	tree.Suite = suite
	tree.Statistics = decodeStatistics(doc.Statistics)

	for _, m := range doc.Errors {
		ts := m.Time
		if ts == "" {
			ts = m.Timestamp
		}
		tree.Errors = append(tree.Errors, types.Message{Time: ts, Level: m.Level, Text: m.Text})
	}

	return tree, nil
}

func decodeSuite(xs *xmlSuite) (*types.Suite, error) {
	status, err := decodeStatus(xs.Status.Status, types.TestStatusSkip)
	if err != nil {
		return nil, fmt.Errorf("suite %q: %w", xs.Name, err)
	}

	s := &types.Suite{
		ID:      xs.ID,
		Name:    xs.Name,
		Source:  xs.Source,
		Doc:     xs.Doc,
		Status:  status,
		Message: xs.Status.Message,
		Times:   decodeTimes(xs.Status),
	}
	for _, m := range xs.Meta {
		s.Metadata = append(s.Metadata, types.MetadataItem{Name: m.Name, Value: m.Value})
	}
	for _, elem := range xs.Body {
		raw, err := xml.Marshal(elem)
		if err != nil {
			return nil, fmt.Errorf("suite %q: re-encoding %s: %w", xs.Name, elem.XMLName.Local, err)
		}
		// Older schemas mark fixtures with type="setup"
		switch strings.ToUpper(elem.attr("type")) {
		case "SETUP":
			s.Setup = append(s.Setup, raw...)
		case "TEARDOWN":
			s.Teardown = append(s.Teardown, raw...)
		}
	}

	for _, child := range xs.Suites {
		cs, err := decodeSuite(child)
		if err != nil {
			return nil, err
		}
		s.Suites = append(s.Suites, cs)
	}
	for _, xt := range xs.Tests {
		t, err := decodeTest(xt)
		if err != nil {
			return nil, fmt.Errorf("suite %q: %w", xs.Name, err)
		}
		s.Tests = append(s.Tests, t)
	}
	return s, nil
}

func decodeTest(xt *xmlTest) (*types.Test, error) {
	status, err := decodeStatus(xt.Status.Status, types.TestStatusNotRun)
	if err != nil {
		return nil, fmt.Errorf("test %q: %w", xt.Name, err)
	}

	t := &types.Test{
		ID:      xt.ID,
		Name:    xt.Name,
		Line:    xt.Line,
		Doc:     xt.Doc,
		Tags:    slices.Clone(xt.Tags),
		Timeout: xt.Timeout.Value,
		Status:  status,
		Message: xt.Status.Message,
		Times:   decodeTimes(xt.Status),
	}
	for _, elem := range xt.Body {
		raw, err := xml.Marshal(elem)
		if err != nil {
			return nil, fmt.Errorf("test %q: re-encoding %s: %w", xt.Name, elem.XMLName.Local, err)
		}
		t.Body = append(t.Body, raw...)
	}

	if xt.History != "" {
		history, err := decodeHistory(xt.History)
		if err != nil {
			return nil, fmt.Errorf("test %q: %w", xt.Name, err)
		}
		t.History = history
	} else {
		t.History = legacyHistory(status, t.Message)
	}
	return t, nil
}

func decodeStatus(s string, fallback types.TestStatus) (types.TestStatus, error) {
	if s == "" {
		return fallback, nil
	}
	return types.ParseTestStatus(s)
}

func decodeTimes(xs xmlStatus) types.Times {
	return types.Times{
		StartTime: xs.StartTime,
		EndTime:   xs.EndTime,
		Start:     xs.Start,
		Elapsed:   xs.Elapsed,
	}
}

func decodeHistory(attr string) ([]types.TestStatus, error) {
	var history []types.TestStatus
	for _, part := range strings.Split(attr, historySeparator) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		status, err := types.ParseTestStatus(part)
		if err != nil {
			return nil, fmt.Errorf("invalid history: %w", err)
		}
		history = append(history, status)
	}
	return history, nil
}

func decodeStatistics(xs xmlStatistics) types.Statistics {
	var stats types.Statistics
	if len(xs.Total) > 0 {
		// Robot 3 wrote separate critical and all-tests totals; the last one is all tests
		last := xs.Total[len(xs.Total)-1]
		stats.Total = types.StatEntry{Name: last.Label, Pass: last.Pass, Fail: last.Fail, Skip: last.Skip}
	}
	for _, st := range xs.Tags {
		stats.Tags = append(stats.Tags, types.StatEntry{Name: st.Label, Pass: st.Pass, Fail: st.Fail, Skip: st.Skip})
	}
	for _, st := range xs.Suites {
		name := st.Label
		if name == "" {
			name = st.Name
		}
		stats.Suites = append(stats.Suites, types.SuiteStat{ID: st.ID, Name: name, Pass: st.Pass, Fail: st.Fail, Skip: st.Skip})
	}
	return stats
}

var legacyStatusRegex = regexp.MustCompile(`(?i)(?:old|new) status:\s*(?:</span>\s*)?(?:<span[^>]*>\s*)?(PASS|FAIL|SKIP|NOT RUN)`)

// legacyHistory recovers the attempt history of a test merged by tooling
// that only recorded it in the free-text message. Statuses appear newest
// first in such messages.
func legacyHistory(current types.TestStatus, message string) []types.TestStatus {
	if !strings.Contains(message, types.MergedMarker) {
		return []types.TestStatus{current}
	}

	matches := legacyStatusRegex.FindAllStringSubmatch(message, -1)
	history := make([]types.TestStatus, 0, len(matches)+1)
	for i := len(matches) - 1; i >= 0; i-- {
		status, err := types.ParseTestStatus(matches[i][1])
		if err != nil {
			continue
		}
		history = append(history, status)
	}
	if len(history) == 0 || history[len(history)-1] != current {
		history = append(history, current)
	}
	return history
}
