package grader

import "github.com/programme-lv/grader/api"

// Gatherer receives grading progress events for one submission. The
// pipeline calls it from a single goroutine, in order: StartJob,
// StartCompile, then either CompileError (terminal) or FinishCompile
// followed by ReachTest/FinishTest pairs and a final FinishJob.
// InternalError may arrive instead of any of the above and is terminal.
type Gatherer interface {
	StartJob()

	StartCompile()
	FinishCompile()

	ReachTest(kind api.TestKind, ordinal int)
	FinishTest(outcome api.TestOutcome)

	CompileError(diagnostic string)
	InternalError(msg string)
	FinishJob(overall api.OverallVerdict)
}

// Fanout replicates events to several gatherers, e.g. the results store
// plus a remote progress publisher.
type Fanout []Gatherer

func (f Fanout) StartJob() {
	for _, g := range f {
		g.StartJob()
	}
}

func (f Fanout) StartCompile() {
	for _, g := range f {
		g.StartCompile()
	}
}

func (f Fanout) FinishCompile() {
	for _, g := range f {
		g.FinishCompile()
	}
}

func (f Fanout) ReachTest(kind api.TestKind, ordinal int) {
	for _, g := range f {
		g.ReachTest(kind, ordinal)
	}
}

func (f Fanout) FinishTest(outcome api.TestOutcome) {
	for _, g := range f {
		g.FinishTest(outcome)
	}
}

func (f Fanout) CompileError(diagnostic string) {
	for _, g := range f {
		g.CompileError(diagnostic)
	}
}

func (f Fanout) InternalError(msg string) {
	for _, g := range f {
		g.InternalError(msg)
	}
}

func (f Fanout) FinishJob(overall api.OverallVerdict) {
	for _, g := range f {
		g.FinishJob(overall)
	}
}
