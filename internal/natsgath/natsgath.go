package natsgath

import (
	"encoding/json"
	"log"

	"github.com/nats-io/nats.go"
	"github.com/programme-lv/grader/api"
)

type natsGatherer struct {
	nc       *nats.Conn
	subject  string
	submID   string
	filename string
}

// New creates a NATS gatherer that streams grading progress for one
// submission to the given subject.
func New(nc *nats.Conn, subject, submID, filename string) *natsGatherer {
	return &natsGatherer{
		nc:       nc,
		subject:  subject,
		submID:   submID,
		filename: filename,
	}
}

func (s *natsGatherer) send(msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to marshal message: %v", err)
		return
	}
	if err := s.nc.Publish(s.subject, b); err != nil {
		log.Printf("failed to publish message to NATS: %v", err)
	}
}

func (s *natsGatherer) StartJob() {
	s.send(api.StartJob{
		Header:   api.NewHeader(s.submID, api.StartJobMsg),
		Filename: s.filename,
	})
}

func (s *natsGatherer) StartCompile() {
	s.send(api.StartCompile{Header: api.NewHeader(s.submID, api.StartCompileMsg)})
}

func (s *natsGatherer) FinishCompile() {
	s.send(api.FinishCompile{
		Header:  api.NewHeader(s.submID, api.FinishCompileMsg),
		Success: true,
	})
}

func (s *natsGatherer) ReachTest(kind api.TestKind, ordinal int) {
	s.send(api.ReachTest{
		Header:  api.NewHeader(s.submID, api.ReachTestMsg),
		Kind:    kind,
		Ordinal: ordinal,
	})
}

func (s *natsGatherer) FinishTest(outcome api.TestOutcome) {
	outcome.Got = api.TrimToRect(outcome.Got, api.MaxOutputHeight, api.MaxOutputWidth)
	outcome.Reason = api.TrimToRect(outcome.Reason, api.MaxOutputHeight, api.MaxOutputWidth)
	s.send(api.FinishTest{
		Header:  api.NewHeader(s.submID, api.FinishTestMsg),
		Outcome: outcome,
	})
}

func (s *natsGatherer) CompileError(diagnostic string) {
	s.send(api.FinishCompile{
		Header:     api.NewHeader(s.submID, api.FinishCompileMsg),
		Success:    false,
		Diagnostic: api.TrimToRect(diagnostic, api.MaxOutputHeight, api.MaxOutputWidth),
	})
	s.send(api.FinishJob{
		Header:  api.NewHeader(s.submID, api.FinishJobMsg),
		Overall: api.VerdictCompileError,
	})
}

func (s *natsGatherer) InternalError(msg string) {
	s.send(api.FinishJob{
		Header:  api.NewHeader(s.submID, api.FinishJobMsg),
		Overall: api.VerdictInternalError,
		Error:   api.TrimToRect(msg, api.MaxOutputHeight, api.MaxOutputWidth),
	})
}

func (s *natsGatherer) FinishJob(overall api.OverallVerdict) {
	s.send(api.FinishJob{
		Header:  api.NewHeader(s.submID, api.FinishJobMsg),
		Overall: overall,
	})
}
