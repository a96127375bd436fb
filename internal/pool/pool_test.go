package pool_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/programme-lv/grader/api"
	"github.com/programme-lv/grader/internal/config"
	"github.com/programme-lv/grader/internal/grader"
	"github.com/programme-lv/grader/internal/pool"
	"github.com/programme-lv/grader/internal/runner"
	"github.com/programme-lv/grader/internal/testcase"
	"github.com/stretchr/testify/require"
)

// markerCompiler fails any source containing "BAD" and otherwise writes a
// cat shell script as the artifact.
type markerCompiler struct{}

func (markerCompiler) Compile(_ context.Context, srcPath, outPath string) (bool, string) {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return false, err.Error()
	}
	if strings.Contains(string(src), "BAD") {
		return false, "marker compiler: refusing BAD source"
	}
	if err := os.WriteFile(outPath, []byte("#!/bin/sh\ncat\n"), 0o755); err != nil {
		return false, err.Error()
	}
	return true, ""
}

func newPool(t *testing.T, testDir string, maxSourceBytes int64) *pool.Pool {
	t.Helper()
	limits := config.Default().Limits
	limits.TestTimeout = 5 * time.Second
	limits.MaxSourceBytes = maxSourceBytes

	g := grader.New(markerCompiler{}, testcase.NewCatalog(testDir),
		runner.New(slog.Default()), limits, t.TempDir(), slog.Default())
	p := pool.New(g, 2, 16, maxSourceBytes, nil, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = p.Run(ctx) }()
	return p
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func awaitCompleted(t *testing.T, p *pool.Pool, id string) api.Report {
	t.Helper()
	var rep api.Report
	require.Eventually(t, func() bool {
		rep = p.Status(id)
		return rep.Status == api.StatusCompleted
	}, 10*time.Second, 20*time.Millisecond)
	return rep
}

func TestSubmitValidation(t *testing.T) {
	dir := t.TempDir()
	p := newPool(t, t.TempDir(), 64)

	_, err := p.Submit(writeSource(t, dir, "main.py", "print(1)"))
	require.Error(t, err)

	_, err = p.Submit(filepath.Join(dir, "missing.cpp"))
	require.Error(t, err)

	big := strings.Repeat("x", 100)
	_, err = p.Submit(writeSource(t, dir, "big.cpp", big))
	require.Error(t, err)
}

func TestStatusUnknownIdIsQueuedSnapshot(t *testing.T) {
	p := newPool(t, t.TempDir(), 1<<20)

	rep := p.Status("never-submitted")
	require.Equal(t, api.StatusProcessing, rep.Status)
	require.Equal(t, api.CompilePending, rep.Compile)
	require.Equal(t, api.VerdictPending, rep.Overall)
}

func TestSubmissionsGradedIndependently(t *testing.T) {
	testDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(testDir, "public-input-1"), []byte("ping\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(testDir, "public-output-1"), []byte("ping\n"), 0o644))

	srcDir := t.TempDir()
	p := newPool(t, testDir, 1<<20)

	badID, err := p.Submit(writeSource(t, srcDir, "bad.cpp", "BAD source"))
	require.NoError(t, err)
	goodID, err := p.Submit(writeSource(t, srcDir, "good.cpp", "int main() {}"))
	require.NoError(t, err)

	badRep := awaitCompleted(t, p, badID)
	require.Equal(t, api.VerdictCompileError, badRep.Overall)
	require.Equal(t, api.CompileFailed, badRep.Compile)
	require.Contains(t, badRep.CompileErr, "BAD")
	require.Empty(t, badRep.Outcomes)
	require.Equal(t, "0/0", badRep.Score())

	goodRep := awaitCompleted(t, p, goodID)
	require.Equal(t, api.VerdictSuccess, goodRep.Overall)
	require.Equal(t, api.CompileSuccess, goodRep.Compile)
	require.Equal(t, "1/1", goodRep.Score())
	require.Equal(t, "1/1", goodRep.PublicScore())
	require.Equal(t, "N/A", goodRep.HiddenScore())
}

func TestAggregateCountInvariants(t *testing.T) {
	testDir := t.TempDir()
	for i := 1; i <= 3; i++ {
		in := fmt.Sprintf("v%d\n", i)
		ans := in
		if i == 2 {
			ans = "mismatch\n"
		}
		require.NoError(t, os.WriteFile(
			filepath.Join(testDir, fmt.Sprintf("public-input-%d", i)), []byte(in), 0o644))
		require.NoError(t, os.WriteFile(
			filepath.Join(testDir, fmt.Sprintf("public-output-%d", i)), []byte(ans), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(testDir, "hidden-input-1"), []byte("h\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(testDir, "hidden-output-1"), []byte("h\n"), 0o644))

	p := newPool(t, testDir, 1<<20)
	id, err := p.Submit(writeSource(t, t.TempDir(), "subm.cpp", "int main() {}"))
	require.NoError(t, err)

	rep := awaitCompleted(t, p, id)
	require.Equal(t, api.VerdictPartial, rep.Overall)
	require.Equal(t, len(rep.Outcomes), rep.PublicTotal+rep.HiddenTotal)
	require.LessOrEqual(t, rep.PublicPassed, rep.PublicTotal)
	require.LessOrEqual(t, rep.HiddenPassed, rep.HiddenTotal)
	require.Equal(t, "3/4", rep.Score())
}

func TestNoTestsVerdict(t *testing.T) {
	p := newPool(t, t.TempDir(), 1<<20)
	id, err := p.Submit(writeSource(t, t.TempDir(), "subm.cpp", "int main() {}"))
	require.NoError(t, err)

	rep := awaitCompleted(t, p, id)
	require.Equal(t, api.VerdictNoTests, rep.Overall)
	require.Equal(t, "0/0", rep.Score())
	require.Equal(t, "N/A", rep.PublicScore())
	require.Equal(t, "N/A", rep.HiddenScore())
}

func TestSubmitBatch(t *testing.T) {
	srcDir := t.TempDir()
	p := newPool(t, t.TempDir(), 1<<20)

	paths := []string{
		writeSource(t, srcDir, "a.cpp", "int main() {}"),
		writeSource(t, srcDir, "nope.txt", "not a submission"),
		writeSource(t, srcDir, "b.cc", "int main() {}"),
	}
	ids := p.SubmitBatch(paths)
	require.Len(t, ids, 2)
	for _, id := range ids {
		rep := awaitCompleted(t, p, id)
		require.Equal(t, api.VerdictNoTests, rep.Overall)
	}
}
