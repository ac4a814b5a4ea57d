package robotxml

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/acarl005/stripansi"

	"github.com/dfe-analytical-services/robot-rerun/types"
)

type xunitSuite struct {
	XMLName  xml.Name     `xml:"testsuite"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Errors   int          `xml:"errors,attr"`
	Failures int          `xml:"failures,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     string       `xml:"time,attr"`
	Cases    []xunitCase  `xml:"testcase"`
	Suites   []xunitSuite `xml:"testsuite"`
}

type xunitCase struct {
	ClassName string        `xml:"classname,attr"`
	Name      string        `xml:"name,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *xunitFailure `xml:"failure,omitempty"`
	Skipped   *xunitFailure `xml:"skipped,omitempty"`
}

type xunitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
}

// WriteXUnitFile writes the xUnit summary of the tree to path
func WriteXUnitFile(path string, tree *types.ResultTree) error {
	return writeAtomic(path, func(w io.Writer) error { return EncodeXUnit(w, tree) })
}

// EncodeXUnit writes an xUnit compatible summary of the tree. Suites nest
// the same way they do in the result tree.
func EncodeXUnit(w io.Writer, tree *types.ResultTree) error {
	if tree.IsEmpty() {
		return ErrNoRootSuite
	}
	doc := xunitFromSuite("", tree.Suite)

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding xunit: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func xunitFromSuite(parent string, s *types.Suite) xunitSuite {
	longName := types.JoinLongName(parent, s.Name)
	xs := xunitSuite{
		Name: s.Name,
		Time: seconds(s.Times),
	}
	for _, t := range s.Tests {
		tc := xunitCase{ClassName: longName, Name: t.Name, Time: seconds(t.Times)}
		xs.Tests++
		switch t.Status {
		case types.TestStatusFail:
			xs.Failures++
			tc.Failure = &xunitFailure{Message: stripansi.Strip(t.Message), Type: "AssertionError"}
		case types.TestStatusSkip, types.TestStatusNotRun:
			xs.Skipped++
			tc.Skipped = &xunitFailure{Message: stripansi.Strip(t.Message)}
		}
		xs.Cases = append(xs.Cases, tc)
	}
	for _, child := range s.Suites {
		cs := xunitFromSuite(longName, child)
		xs.Tests += cs.Tests
		xs.Failures += cs.Failures
		xs.Skipped += cs.Skipped
		xs.Suites = append(xs.Suites, cs)
	}
	return xs
}

func seconds(t types.Times) string {
	return fmt.Sprintf("%.3f", t.Duration().Seconds())
}
