package compiler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

const maxDiagnosticBytes = 64 * 1024

// Gcc invokes the g++ toolchain to turn a C++ source file into an
// executable artifact. The whole compilation is bounded by a hard
// wall-clock timeout; on expiry the compiler process is killed.
type Gcc struct {
	timeout time.Duration
	logger  *slog.Logger
}

func NewGcc(timeout time.Duration, logger *slog.Logger) *Gcc {
	return &Gcc{timeout: timeout, logger: logger}
}

// Compile builds srcPath into outPath. It reports ok=false with a
// human-readable diagnostic on any failure; it never returns an error to
// distinguish toolchain rejection from orchestration faults — both are a
// failed compile from the caller's point of view.
func (g *Gcc) Compile(ctx context.Context, srcPath, outPath string) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "g++", srcPath, "-o", outPath, "-std=c++17", "-O2")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		g.logger.Warn("compilation timed out", "src", srcPath, "timeout", g.timeout)
		return false, fmt.Sprintf("compilation timed out (%s)", g.timeout)
	}
	if err != nil {
		diag := stderr.String()
		if len(diag) > maxDiagnosticBytes {
			diag = diag[:maxDiagnosticBytes] + "\n[...]"
		}
		if diag == "" {
			diag = fmt.Sprintf("failed to run compiler: %v", err)
		}
		g.logger.Info("compilation failed", "src", srcPath, "duration", elapsed)
		return false, diag
	}

	g.logger.Debug("compilation succeeded", "src", srcPath, "out", outPath, "duration", elapsed)
	return true, ""
}
