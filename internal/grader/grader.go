package grader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/programme-lv/grader/api"
	"github.com/programme-lv/grader/internal/compare"
	"github.com/programme-lv/grader/internal/config"
	"github.com/programme-lv/grader/internal/runner"
	"github.com/programme-lv/grader/internal/testcase"
)

// Job is one submission handed to the pipeline by a worker.
type Job struct {
	SubmID     string
	SourcePath string
	Filename   string
}

// Compiler turns a source file into an executable artifact at outPath.
type Compiler interface {
	Compile(ctx context.Context, srcPath, outPath string) (ok bool, diagnostic string)
}

// Grader runs the grading pipeline for one submission at a time:
// compile, enumerate tests, run each under limits, judge, aggregate.
type Grader struct {
	compiler   Compiler
	catalog    *testcase.Catalog
	runner     *runner.Runner
	limits     config.Limits
	scratchDir string
	logger     *slog.Logger
}

func New(compiler Compiler, catalog *testcase.Catalog, run *runner.Runner,
	limits config.Limits, scratchDir string, logger *slog.Logger) *Grader {

	return &Grader{
		compiler:   compiler,
		catalog:    catalog,
		runner:     run,
		limits:     limits,
		scratchDir: scratchDir,
		logger:     logger,
	}
}

// Grade drives the submission through the state machine and reports every
// transition to gath. A panic anywhere in the pipeline is recovered into a
// terminal internal_error report so one submission can never wedge the
// worker that owns it.
func (g *Grader) Grade(ctx context.Context, job Job, gath Gatherer) {
	defer func() {
		if p := recover(); p != nil {
			g.logger.Error("grading panicked", "submission", job.SubmID, "panic", p)
			gath.InternalError(fmt.Sprintf("grading failed: %v", p))
		}
	}()

	gath.StartJob()

	scratch, err := os.MkdirTemp(g.scratchDir, "grader-"+job.SubmID+"-")
	if err != nil {
		gath.InternalError(fmt.Sprintf("failed to create scratch dir: %v", err))
		return
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			g.logger.Warn("failed to remove scratch dir", "dir", scratch, "error", err)
		}
	}()

	artifact := filepath.Join(scratch, "user.out")

	gath.StartCompile()
	ok, diagnostic := g.compiler.Compile(ctx, job.SourcePath, artifact)
	if !ok {
		g.logger.Info("compile error", "submission", job.SubmID)
		gath.CompileError(diagnostic)
		return
	}
	gath.FinishCompile()

	public, err := g.catalog.Public()
	if err != nil {
		gath.InternalError(fmt.Sprintf("failed to list public tests: %v", err))
		return
	}
	hidden, err := g.catalog.Hidden()
	if err != nil {
		gath.InternalError(fmt.Sprintf("failed to list hidden tests: %v", err))
		return
	}

	passed, total := 0, 0
	for _, tc := range append(public, hidden...) {
		gath.ReachTest(tc.Kind, tc.Ordinal)
		outcome := g.runTest(ctx, tc, artifact, scratch)
		gath.FinishTest(outcome)
		total++
		if outcome.Verdict == api.TestPass {
			passed++
		}
	}

	overall := api.VerdictPartial
	switch {
	case total == 0:
		overall = api.VerdictNoTests
	case passed == total:
		overall = api.VerdictSuccess
	}
	g.logger.Info("grading finished",
		"submission", job.SubmID, "passed", passed, "total", total, "overall", overall)
	gath.FinishJob(overall)
}

// runTest executes one test case and classifies the result. Every failure
// mode becomes a fail outcome; nothing here may abort the remaining tests.
func (g *Grader) runTest(ctx context.Context, tc testcase.TestCase,
	artifact, workDir string) api.TestOutcome {

	outcome := api.TestOutcome{
		Kind:    tc.Kind,
		Ordinal: tc.Ordinal,
		Verdict: api.TestFail,
	}

	input, err := testcase.ReadPayload(tc.InputPath)
	if err != nil {
		outcome.Reason = "test case files not found"
		return g.redact(outcome)
	}
	answer, err := testcase.ReadPayload(tc.AnswerPath)
	if err != nil {
		outcome.Reason = "test case files not found"
		return g.redact(outcome)
	}

	res := g.runner.Run(ctx, []string{artifact}, workDir, input,
		g.limits.TestTimeout, g.limits.MemoryBytes)

	outcome.MemoryBytes = res.MemoryBytes
	switch {
	case res.SpawnErr != "":
		outcome.Reason = res.SpawnErr
	case res.TimedOut:
		outcome.Reason = "time limit exceeded"
	case res.MemExceeded:
		outcome.Reason = fmt.Sprintf("memory limit exceeded (%d bytes)", res.MemoryBytes)
	case res.ExitCode != 0:
		outcome.Reason = fmt.Sprintf("runtime error (exit code %d): %s",
			res.ExitCode, strings.TrimSpace(res.Stderr))
	default:
		outcome.Got = strings.TrimSpace(res.Stdout)
		if compare.Equal(res.Stdout, string(answer)) {
			outcome.Verdict = api.TestPass
		}
	}
	return g.redact(outcome)
}

// redact strips output and diagnostics from hidden-test outcomes; only
// the verdict and memory figure are shown to the submitter.
func (g *Grader) redact(outcome api.TestOutcome) api.TestOutcome {
	if outcome.Kind == api.TestHidden {
		outcome.Got = ""
		outcome.Reason = ""
	}
	return outcome
}
