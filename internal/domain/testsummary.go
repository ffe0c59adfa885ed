package domain

// TestSummary aggregates a test result file.
type TestSummary struct {
	Suites   int     `json:"suites"`
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Errors   int     `json:"errors"`
	Skipped  int     `json:"skipped"`
	Duration float64 `json:"duration_seconds"`
}

// OK reports the overall verdict: no failures and no errors.
func (s TestSummary) OK() bool {
	return s.Failed == 0 && s.Errors == 0
}

// Status returns "PASS" or "FAIL".
func (s TestSummary) Status() string {
	if s.OK() {
		return "PASS"
	}
	return "FAIL"
}

// PassRate returns the percentage of executed (non-skipped) tests that passed.
func (s TestSummary) PassRate() float64 {
	executed := s.Total - s.Skipped
	if executed <= 0 {
		return 0
	}
	return float64(s.Passed) / float64(executed) * 100
}

// TestCase is one row of the per-test table.
type TestCase struct {
	Suite     string  `json:"suite"`
	Name      string  `json:"name"`
	ClassName string  `json:"class_name,omitempty"`
	Status    string  `json:"status"`
	Duration  float64 `json:"duration_seconds"`
	Message   string  `json:"message,omitempty"`
}

// TestCase statuses.
const (
	TestCasePassed  = "passed"
	TestCaseFailed  = "failed"
	TestCaseError   = "error"
	TestCaseSkipped = "skipped"
)
