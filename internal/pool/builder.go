package pool

import (
	"github.com/programme-lv/grader/api"
)

// reportBuilder turns pipeline events into report snapshots published to
// the store. It is owned by a single worker; the snapshots it publishes
// are clones, so readers never see a half-applied update.
type reportBuilder struct {
	store *Store
	rep   api.Report
	done  bool
}

// newReportBuilder registers the initial pending report at intake time so
// status queries see the submission before a worker picks it up.
func newReportBuilder(store *Store, submID, filename string) *reportBuilder {
	b := &reportBuilder{
		store: store,
		rep: api.Report{
			SubmID:   submID,
			Filename: filename,
			Status:   api.StatusProcessing,
			Compile:  api.CompilePending,
			Overall:  api.VerdictPending,
			Outcomes: []api.TestOutcome{},
		},
	}
	b.publish()
	return b
}

func (b *reportBuilder) publish() {
	b.store.Put(b.rep.Clone())
}

func (b *reportBuilder) StartJob()     {}
func (b *reportBuilder) StartCompile() {}

func (b *reportBuilder) FinishCompile() {
	if b.done {
		return
	}
	b.rep.Compile = api.CompileSuccess
	b.publish()
}

func (b *reportBuilder) ReachTest(kind api.TestKind, ordinal int) {}

func (b *reportBuilder) FinishTest(outcome api.TestOutcome) {
	if b.done {
		return
	}
	b.rep.Outcomes = append(b.rep.Outcomes, outcome)
	switch outcome.Kind {
	case api.TestPublic:
		b.rep.PublicTotal++
		if outcome.Verdict == api.TestPass {
			b.rep.PublicPassed++
		}
	case api.TestHidden:
		b.rep.HiddenTotal++
		if outcome.Verdict == api.TestPass {
			b.rep.HiddenPassed++
		}
	}
	b.publish()
}

func (b *reportBuilder) CompileError(diagnostic string) {
	if b.done {
		return
	}
	b.rep.Compile = api.CompileFailed
	b.rep.CompileErr = diagnostic
	b.complete(api.VerdictCompileError)
}

func (b *reportBuilder) InternalError(msg string) {
	if b.done {
		return
	}
	b.rep.Error = msg
	b.complete(api.VerdictInternalError)
}

func (b *reportBuilder) FinishJob(overall api.OverallVerdict) {
	b.complete(overall)
}

// complete freezes the report. Events arriving after completion are
// dropped so a terminal verdict can never be overwritten.
func (b *reportBuilder) complete(overall api.OverallVerdict) {
	if b.done {
		return
	}
	b.rep.Overall = overall
	b.rep.Status = api.StatusCompleted
	b.done = true
	b.publish()
}
