package robotxml

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dfe-analytical-services/robot-rerun/types"
)

const (
	// OutputFile is the name of the result document inside an attempt directory
	OutputFile = "output.xml"
	// XUnitFile is the name of the xUnit summary written next to the result document
	XUnitFile = "xunit.xml"

	historySeparator = ","
)

// WriteFile encodes the tree to path, creating parent directories as needed.
// The file is written to a temporary sibling first and renamed into place.
func WriteFile(path string, tree *types.ResultTree) error {
	return writeAtomic(path, func(w io.Writer) error { return Encode(w, tree) })
}

func writeAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// Encode writes the tree as a Robot output.xml document. Positional ids and
// statistics are written as they are on the tree.
func Encode(w io.Writer, tree *types.ResultTree) error {
	if tree.IsEmpty() {
		return ErrNoRootSuite
	}

	bw := bufio.NewWriter(w)
	e := &encoder{w: bw, enc: xml.NewEncoder(bw)}

	if _, err := bw.WriteString(xml.Header); err != nil {
		return err
	}

	rpa := "false"
	if tree.RPA {
		rpa = "true"
	}
	root := start("robot",
		"generator", tree.Generator,
		"generated", tree.Generated,
		"rpa", rpa,
		"schemaversion", tree.SchemaVersion,
	)
	e.token(root)
	e.suite(tree.Suite)
	e.statistics(tree.Statistics)
	e.token(xml.StartElement{Name: xml.Name{Local: "errors"}})
	for _, m := range tree.Errors {
		e.element(start("msg", "time", m.Time, "level", m.Level), m.Text)
	}
	e.token(xml.EndElement{Name: xml.Name{Local: "errors"}})
	e.token(root.End())

	if e.err != nil {
		return fmt.Errorf("encoding result xml: %w", e.err)
	}
	if err := e.enc.Flush(); err != nil {
		return err
	}
	return bw.Flush()
}

// encoder streams tokens and raw keyword bodies to the same writer. The
// first error sticks and later calls become no-ops.
type encoder struct {
	w   *bufio.Writer
	enc *xml.Encoder
	err error
}

func (e *encoder) token(t xml.Token) {
	if e.err != nil {
		return
	}
	e.err = e.enc.EncodeToken(t)
}

func (e *encoder) raw(b []byte) {
	if e.err != nil || len(b) == 0 {
		return
	}
	if e.err = e.enc.Flush(); e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *encoder) element(s xml.StartElement, text string) {
	e.token(s)
	if text != "" {
		e.token(xml.CharData(text))
	}
	e.token(s.End())
}

func (e *encoder) suite(s *types.Suite) {
	el := start("suite", "id", s.ID, "name", s.Name, "source", s.Source)
	e.token(el)
	e.raw(s.Setup)
	for _, child := range s.Suites {
		e.suite(child)
	}
	for _, t := range s.Tests {
		e.test(t)
	}
	e.raw(s.Teardown)
	if s.Doc != "" {
		e.element(start("doc"), s.Doc)
	}
	for _, m := range s.Metadata {
		e.element(start("meta", "name", m.Name), m.Value)
	}
	e.status(s.Status, s.Message, s.Times)
	e.token(el.End())
}

func (e *encoder) test(t *types.Test) {
	el := start("test", "id", t.ID, "name", t.Name, "line", t.Line, "history", encodeHistory(t.History))
	e.token(el)
	e.raw(t.Body)
	if t.Doc != "" {
		e.element(start("doc"), t.Doc)
	}
	for _, tag := range t.Tags {
		e.element(start("tag"), tag)
	}
	if t.Timeout != "" {
		e.element(start("timeout", "value", t.Timeout), "")
	}
	e.status(t.Status, t.Message, t.Times)
	e.token(el.End())
}

func (e *encoder) status(status types.TestStatus, message string, times types.Times) {
	e.element(start("status",
		"status", string(status),
		"starttime", times.StartTime,
		"endtime", times.EndTime,
		"start", times.Start,
		"elapsed", times.Elapsed,
	), message)
}

func (e *encoder) statistics(stats types.Statistics) {
	statistics := start("statistics")
	e.token(statistics)

	total := start("total")
	e.token(total)
	e.stat(stats.Total, "", "")
	e.token(total.End())

	tag := start("tag")
	e.token(tag)
	for _, st := range stats.Tags {
		e.stat(st, "", "")
	}
	e.token(tag.End())

	suite := start("suite")
	e.token(suite)
	for _, st := range stats.Suites {
		e.stat(types.StatEntry{Name: st.Name, Pass: st.Pass, Fail: st.Fail, Skip: st.Skip}, st.ID, shortName(st.Name))
	}
	e.token(suite.End())

	e.token(statistics.End())
}

func (e *encoder) stat(st types.StatEntry, id, name string) {
	e.element(start("stat",
		"pass", strconv.Itoa(st.Pass),
		"fail", strconv.Itoa(st.Fail),
		"skip", strconv.Itoa(st.Skip),
		"id", id,
		"name", name,
	), st.Name)
}

// start builds a start element from name/value pairs, dropping empty values
func start(name string, attrs ...string) xml.StartElement {
	el := xml.StartElement{Name: xml.Name{Local: name}}
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i+1] == "" {
			continue
		}
		el.Attr = append(el.Attr, xml.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
	}
	return el
}

func encodeHistory(history []types.TestStatus) string {
	parts := make([]string, 0, len(history))
	for _, s := range history {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, historySeparator)
}

func shortName(longName string) string {
	if idx := strings.LastIndex(longName, types.LongNameSeparator); idx >= 0 {
		return longName[idx+1:]
	}
	return longName
}
