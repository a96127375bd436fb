package sqsgath

import (
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/programme-lv/grader/api"
)

type sqsProgressGatherer struct {
	sqsClient *sqs.Client
	queueUrl  string
	submID    string
	filename  string
}

// New creates an SQS gatherer that streams grading progress for one
// submission to the given queue.
func New(sqsClient *sqs.Client, queueUrl, submID, filename string) *sqsProgressGatherer {
	return &sqsProgressGatherer{
		sqsClient: sqsClient,
		queueUrl:  queueUrl,
		submID:    submID,
		filename:  filename,
	}
}

func (s *sqsProgressGatherer) StartJob() {
	s.send(api.StartJob{
		Header:   api.NewHeader(s.submID, api.StartJobMsg),
		Filename: s.filename,
	})
}

func (s *sqsProgressGatherer) StartCompile() {
	s.send(api.StartCompile{Header: api.NewHeader(s.submID, api.StartCompileMsg)})
}

func (s *sqsProgressGatherer) FinishCompile() {
	s.send(api.FinishCompile{
		Header:  api.NewHeader(s.submID, api.FinishCompileMsg),
		Success: true,
	})
}

func (s *sqsProgressGatherer) ReachTest(kind api.TestKind, ordinal int) {
	s.send(api.ReachTest{
		Header:  api.NewHeader(s.submID, api.ReachTestMsg),
		Kind:    kind,
		Ordinal: ordinal,
	})
}

func (s *sqsProgressGatherer) FinishTest(outcome api.TestOutcome) {
	outcome.Got = api.TrimToRect(outcome.Got, api.MaxOutputHeight, api.MaxOutputWidth)
	outcome.Reason = api.TrimToRect(outcome.Reason, api.MaxOutputHeight, api.MaxOutputWidth)
	s.send(api.FinishTest{
		Header:  api.NewHeader(s.submID, api.FinishTestMsg),
		Outcome: outcome,
	})
}

func (s *sqsProgressGatherer) CompileError(diagnostic string) {
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

func (s *sqsProgressGatherer) InternalError(msg string) {
	s.send(api.FinishJob{
		Header:  api.NewHeader(s.submID, api.FinishJobMsg),
		Overall: api.VerdictInternalError,
		Error:   api.TrimToRect(msg, api.MaxOutputHeight, api.MaxOutputWidth),
	})
}

func (s *sqsProgressGatherer) FinishJob(overall api.OverallVerdict) {
	s.send(api.FinishJob{
		Header:  api.NewHeader(s.submID, api.FinishJobMsg),
		Overall: overall,
	})
}
