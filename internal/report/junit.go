package report

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mrz1836/herald/internal/domain"
)

type junitMessage struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Text    string `xml:",chardata"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitMessage `xml:"failure"`
	Error     *junitMessage `xml:"error"`
	Skipped   *junitMessage `xml:"skipped"`
}

type junitSuite struct {
	Name   string       `xml:"name,attr"`
	Time   string       `xml:"time,attr"`
	Cases  []junitCase  `xml:"testcase"`
	Suites []junitSuite `xml:"testsuite"`
}

type junitDocument struct {
	XMLName xml.Name
	junitSuite
}

// Results is a parsed test result file.
type Results struct {
	Summary domain.TestSummary
	Cases   []domain.TestCase
}

// ParseJUnitFile reads and parses a junit XML file.
func ParseJUnitFile(path string) (*Results, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- results path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return ParseJUnit(data)
}

// ParseJUnit parses a junit document whose root is either <testsuites> or
// a single <testsuite>. Counts are derived from the test cases themselves.
func ParseJUnit(data []byte) (*Results, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("results file is empty")
	}

	var doc junitDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse junit xml: %w", err)
	}

	var suites []junitSuite
	switch doc.XMLName.Local {
	case "testsuites":
		suites = doc.Suites
	case "testsuite":
		suites = []junitSuite{doc.junitSuite}
	default:
		return nil, fmt.Errorf("unexpected junit root element <%s>", doc.XMLName.Local)
	}

	res := &Results{}
	for _, s := range suites {
		collect(res, s)
	}
	if res.Summary.Total == 0 {
		return nil, fmt.Errorf("results file contains no test cases")
	}
	return res, nil
}

func collect(res *Results, s junitSuite) {
	if len(s.Cases) > 0 {
		res.Summary.Suites++
	}
	for _, c := range s.Cases {
		tc := domain.TestCase{
			Suite:     s.Name,
			Name:      c.Name,
			ClassName: c.ClassName,
			Duration:  parseSeconds(c.Time),
		}
		switch {
		case c.Failure != nil:
			tc.Status = domain.TestCaseFailed
			tc.Message = firstNonEmpty(c.Failure.Message, c.Failure.Text)
			res.Summary.Failed++
		case c.Error != nil:
			tc.Status = domain.TestCaseError
			tc.Message = firstNonEmpty(c.Error.Message, c.Error.Text)
			res.Summary.Errors++
		case c.Skipped != nil:
			tc.Status = domain.TestCaseSkipped
			tc.Message = firstNonEmpty(c.Skipped.Message, c.Skipped.Text)
			res.Summary.Skipped++
		default:
			tc.Status = domain.TestCasePassed
			res.Summary.Passed++
		}
		res.Summary.Total++
		res.Summary.Duration += tc.Duration
		res.Cases = append(res.Cases, tc)
	}
	for _, nested := range s.Suites {
		collect(res, nested)
	}
}

func parseSeconds(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			if i := strings.IndexByte(v, '\n'); i >= 0 {
				v = v[:i]
			}
			return v
		}
	}
	return ""
}
