package api

import "fmt"

// Status is the lifecycle status of a submission's report.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// CompileVerdict classifies the compilation stage.
type CompileVerdict string

const (
	CompilePending CompileVerdict = "pending"
	CompileSuccess CompileVerdict = "success"
	CompileFailed  CompileVerdict = "error"
)

// OverallVerdict classifies the whole submission.
type OverallVerdict string

const (
	VerdictPending       OverallVerdict = "pending"
	VerdictNoTests       OverallVerdict = "no_tests"
	VerdictSuccess       OverallVerdict = "success"
	VerdictPartial       OverallVerdict = "partial"
	VerdictCompileError  OverallVerdict = "compile_error"
	VerdictInternalError OverallVerdict = "internal_error"
)

// TestKind distinguishes public tests, whose output is shown to the
// submitter, from hidden ones, whose output is redacted.
type TestKind string

const (
	TestPublic TestKind = "public"
	TestHidden TestKind = "hidden"
)

// TestVerdict is the outcome of a single test run.
type TestVerdict string

const (
	TestPass TestVerdict = "pass"
	TestFail TestVerdict = "fail"
)

// TestOutcome is the result of running a submission against one test case.
// Got and Reason are empty for hidden tests.
type TestOutcome struct {
	Kind    TestKind    `json:"kind"`
	Ordinal int         `json:"ordinal"`
	Verdict TestVerdict `json:"verdict"`

	Got         string `json:"got,omitempty"`
	Reason      string `json:"reason,omitempty"`
	MemoryBytes uint64 `json:"memory_bytes"`
}

// Report is the full per-submission grading result. Snapshots handed to
// status readers are value copies and never mutated afterwards.
type Report struct {
	SubmID   string `json:"submission_id"`
	Filename string `json:"filename"`
	Status   Status `json:"status"`

	Compile    CompileVerdict `json:"compile_status"`
	CompileErr string         `json:"compile_error,omitempty"`

	Outcomes []TestOutcome `json:"test_results"`

	PublicPassed int `json:"public_passed"`
	PublicTotal  int `json:"public_total"`
	HiddenPassed int `json:"hidden_passed"`
	HiddenTotal  int `json:"hidden_total"`

	Overall OverallVerdict `json:"overall_status"`

	// Error is set only for internal_error reports.
	Error string `json:"error,omitempty"`
}

// Score formats the overall score as "passed/total". An empty catalog
// yields "0/0".
func (r Report) Score() string {
	return fmt.Sprintf("%d/%d",
		r.PublicPassed+r.HiddenPassed, r.PublicTotal+r.HiddenTotal)
}

// PublicScore formats the public-test score, or "N/A" when there are none.
func (r Report) PublicScore() string {
	if r.PublicTotal == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%d/%d", r.PublicPassed, r.PublicTotal)
}

// HiddenScore formats the hidden-test score, or "N/A" when there are none.
func (r Report) HiddenScore() string {
	if r.HiddenTotal == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%d/%d", r.HiddenPassed, r.HiddenTotal)
}

// Clone returns a deep copy so the owning worker can keep appending
// outcomes without aliasing snapshots already handed out.
func (r Report) Clone() Report {
	cp := r
	cp.Outcomes = make([]TestOutcome, len(r.Outcomes))
	copy(cp.Outcomes, r.Outcomes)
	return cp
}
