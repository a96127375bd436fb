package api

import "strings"

// MsgType is a message type for streamed progress messages.
type MsgType string

const (
	StartJobMsg      MsgType = "job_start"
	StartCompileMsg  MsgType = "compile_start"
	FinishCompileMsg MsgType = "compile_finish"
	ReachTestMsg     MsgType = "test_reach"
	FinishTestMsg    MsgType = "test_finish"
	FinishJobMsg     MsgType = "job_finish"
)

// Captured output embedded in progress messages is trimmed to a rectangle
// so a hostile submission cannot flood the transport.
const (
	MaxOutputHeight = 40
	MaxOutputWidth  = 80
)

// Header is the common header for all progress messages.
type Header struct {
	SubmID  string  `json:"submission_id"`
	MsgType MsgType `json:"msg_type"`
}

// StartJob is sent when a worker picks the submission up.
type StartJob struct {
	Header
	Filename string `json:"filename"`
}

// StartCompile is sent when compilation begins.
type StartCompile struct {
	Header
}

// FinishCompile is sent when compilation completes, either way.
type FinishCompile struct {
	Header
	Success    bool   `json:"success"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// ReachTest is sent just before a test case executes.
type ReachTest struct {
	Header
	Kind    TestKind `json:"kind"`
	Ordinal int      `json:"ordinal"`
}

// FinishTest is sent after a test case has been judged.
type FinishTest struct {
	Header
	Outcome TestOutcome `json:"outcome"`
}

// FinishJob is sent exactly once, when the report is frozen.
type FinishJob struct {
	Header
	Overall OverallVerdict `json:"overall_status"`
	Error   string         `json:"error,omitempty"`
}

func NewHeader(submID string, msgType MsgType) Header {
	return Header{SubmID: submID, MsgType: msgType}
}

// TrimToRect cuts s to at most maxHeight lines of maxWidth characters,
// marking elisions with "[...]".
func TrimToRect(s string, maxHeight, maxWidth int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
		lines = append(lines, "[...]")
	}
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		if len(line) > maxWidth {
			b.WriteString(line[:maxWidth] + "[...]")
		} else {
			b.WriteString(line)
		}
	}
	return b.String()
}
