package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

const (
	// captured streams are capped so a malicious submission cannot grow
	// the grader's memory without bound
	maxCaptureBytes = 64 * 1024

	memoryPollInterval = 20 * time.Millisecond

	// after a kill, cmd.Wait can still block on the output pipes if an
	// orphaned descendant escaped the process group and holds them open;
	// past this bound the pipes are abandoned
	pipeDrainTimeout = 2 * time.Second
)

// Result describes a single execution of the compiled artifact.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int

	TimedOut    bool
	MemExceeded bool
	MemoryBytes uint64

	// SpawnErr is set when the child could not be started or awaited;
	// the run never produces usable output in that case.
	SpawnErr string
}

// Runner executes a compiled artifact once per test case with piped
// standard streams, a wall-clock timeout and a best-effort memory ceiling.
// Memory is sampled by polling the resident set of the child and its
// descendants; the recorded peak is an approximation, not a guarantee.
type Runner struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run feeds input to the child's stdin and waits for it to exit or for
// the wall-clock timeout to elapse, whichever comes first. It never
// returns an error: every failure mode is folded into the Result so one
// bad test run cannot abort the rest of the submission.
func (r *Runner) Run(ctx context.Context, argv []string, dir string, input []byte,
	wallTimeout time.Duration, memLimitBytes uint64) *Result {

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdin = bytes.NewReader(input)
	// own process group, so a forking submission can be killed whole
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout := &capBuffer{max: maxCaptureBytes}
	stderr := &capBuffer{max: maxCaptureBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return &Result{SpawnErr: fmt.Sprintf("failed to start program: %v", err)}
	}
	pid := int32(cmd.Process.Pid)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var peakRSS atomic.Uint64
	var memExceeded atomic.Bool
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	go r.monitorMemory(monitorCtx, pid, memLimitBytes, &peakRSS, &memExceeded,
		func() { killGroup(cmd) })

	res := &Result{}
	select {
	case err := <-waitCh:
		stopMonitor()
		res.ExitCode = exitCode(cmd, err)

	case <-time.After(wallTimeout):
		stopMonitor()
		killGroup(cmd)
		r.awaitExit(waitCh, pid)
		res.TimedOut = true
		res.ExitCode = -1

	case <-ctx.Done():
		stopMonitor()
		killGroup(cmd)
		r.awaitExit(waitCh, pid)
		return &Result{SpawnErr: "execution aborted"}
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.MemoryBytes = peakRSS.Load()
	res.MemExceeded = memExceeded.Load() ||
		(memLimitBytes > 0 && res.MemoryBytes > memLimitBytes)

	r.logger.Debug("run finished",
		"pid", pid,
		"exit_code", res.ExitCode,
		"timed_out", res.TimedOut,
		"mem_exceeded", res.MemExceeded,
		"peak_rss", res.MemoryBytes)
	return res
}

// monitorMemory polls the resident set of the child and its descendants.
// Sampling failures (process already reaped, permission denied) are
// ignored; the peak then simply undercounts.
func (r *Runner) monitorMemory(ctx context.Context, pid int32, limit uint64,
	peak *atomic.Uint64, exceeded *atomic.Bool, kill func()) {

	ticker := time.NewTicker(memoryPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rss := sampleTreeRSS(pid)
			if rss > peak.Load() {
				peak.Store(rss)
			}
			if limit > 0 && rss > limit {
				exceeded.Store(true)
				kill()
				return
			}
		}
	}
}

// killGroup forcibly terminates the child and everything left in its
// process group, so forked descendants cannot keep the output pipes open.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}

// awaitExit drains cmd.Wait after a kill. The drain is bounded: a
// descendant that re-parented out of the process group could otherwise
// hold the pipes, and with them the worker, forever.
func (r *Runner) awaitExit(waitCh <-chan error, pid int32) {
	select {
	case <-waitCh:
	case <-time.After(pipeDrainTimeout):
		r.logger.Warn("child exit not observed after kill, abandoning pipes", "pid", pid)
	}
}

func sampleTreeRSS(pid int32) uint64 {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return 0
	}
	var total uint64
	if mi, err := proc.MemoryInfo(); err == nil {
		total += mi.RSS
	}
	children, err := proc.Children()
	if err != nil {
		return total
	}
	for _, child := range children {
		if mi, err := child.MemoryInfo(); err == nil {
			total += mi.RSS
		}
	}
	return total
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}

// capBuffer is a bytes.Buffer that silently stops accepting writes past
// its cap while still reporting full consumption to the writer. It is
// locked because after an abandoned pipe drain the exec copier goroutine
// may still be writing when the result is read.
type capBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *capBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.max - b.buf.Len()
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.truncated = true
		b.buf.Write(p[:room])
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *capBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return b.buf.String() + "\n[...]"
	}
	return b.buf.String()
}
