package compiler_test

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/programme-lv/grader/internal/compiler"
	"github.com/stretchr/testify/require"
)

const helloWorldCpp = `
#include <iostream>
int main() {
	std::cout << "Hello, World!" << std::endl;
	return 0;
}
`

func requireGpp(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("g++"); err != nil {
		t.Skip("g++ not available")
	}
}

func TestCompileSuccess(t *testing.T) {
	requireGpp(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "main.cpp")
	require.NoError(t, os.WriteFile(src, []byte(helloWorldCpp), 0o644))

	gcc := compiler.NewGcc(30*time.Second, slog.Default())
	out := filepath.Join(dir, "user.out")
	ok, diag := gcc.Compile(context.Background(), src, out)

	require.True(t, ok, "diagnostic: %s", diag)
	require.FileExists(t, out)
}

func TestCompileErrorCarriesDiagnostic(t *testing.T) {
	requireGpp(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.cpp")
	require.NoError(t, os.WriteFile(src, []byte("int main( { not c++ }"), 0o644))

	gcc := compiler.NewGcc(30*time.Second, slog.Default())
	ok, diag := gcc.Compile(context.Background(), src, filepath.Join(dir, "user.out"))

	require.False(t, ok)
	require.NotEmpty(t, diag)
}

func TestCompileMissingSource(t *testing.T) {
	requireGpp(t)
	dir := t.TempDir()

	gcc := compiler.NewGcc(30*time.Second, slog.Default())
	ok, diag := gcc.Compile(context.Background(),
		filepath.Join(dir, "nope.cpp"), filepath.Join(dir, "user.out"))

	require.False(t, ok)
	require.NotEmpty(t, diag)
}
