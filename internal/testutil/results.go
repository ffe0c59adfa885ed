package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// JUnitXML builds a single-suite junit document with the given counts.
func JUnitXML(passed, failed int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<testsuites>
  <testsuite name="smoke" tests="%d" failures="%d" errors="0" skipped="0" time="1.5">
`, passed+failed, failed)
	for i := 0; i < passed; i++ {
		fmt.Fprintf(&b, "    <testcase classname=\"test_app\" name=\"test_pass_%d\" time=\"0.1\"/>\n", i)
	}
	for i := 0; i < failed; i++ {
		fmt.Fprintf(&b, "    <testcase classname=\"test_app\" name=\"test_fail_%d\" time=\"0.2\"><failure message=\"assert 1 == 2\">trace</failure></testcase>\n", i)
	}
	b.WriteString("  </testsuite>\n</testsuites>\n")
	return b.String()
}

// WriteResults writes junit.xml into dir and returns its path.
func WriteResults(tb testing.TB, dir string, passed, failed int) string {
	tb.Helper()
	require.NoError(tb, os.MkdirAll(dir, 0o750))
	path := filepath.Join(dir, "junit.xml")
	require.NoError(tb, os.WriteFile(path, []byte(JUnitXML(passed, failed)), 0o600))
	return path
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(tb testing.TB, dir, name, content string) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	require.NoError(tb, os.WriteFile(path, []byte(content), 0o600))
	return path
}
