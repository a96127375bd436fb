package testcase

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/programme-lv/grader/api"
)

// TestCase is one input/answer pair discovered in the testcase directory.
type TestCase struct {
	Kind    api.TestKind
	Ordinal int

	InputPath  string
	AnswerPath string
}

// Catalog enumerates test cases from a directory laid out as
// {public|hidden}-input-N / {public|hidden}-output-N, each optionally
// compressed with a .zst suffix. Discovery is read-only and deterministic,
// so a single Catalog may be shared by concurrent submissions.
type Catalog struct {
	dir string
}

func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir}
}

func (c *Catalog) Public() ([]TestCase, error) {
	return c.list(api.TestPublic)
}

func (c *Catalog) Hidden() ([]TestCase, error) {
	return c.list(api.TestHidden)
}

func (c *Catalog) list(kind api.TestKind) ([]TestCase, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read testcase dir %s: %w", c.dir, err)
	}

	inputs := map[int]string{}
	answers := map[int]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".zst")
		if n, ok := parseOrdinal(name, string(kind)+"-input-"); ok {
			inputs[n] = filepath.Join(c.dir, e.Name())
		} else if n, ok := parseOrdinal(name, string(kind)+"-output-"); ok {
			answers[n] = filepath.Join(c.dir, e.Name())
		}
	}

	// a test case exists only when both sides of the pair are present
	inSet := mapset.NewThreadUnsafeSet[int]()
	for n := range inputs {
		inSet.Add(n)
	}
	ansSet := mapset.NewThreadUnsafeSet[int]()
	for n := range answers {
		ansSet.Add(n)
	}
	ordinals := inSet.Intersect(ansSet).ToSlice()
	sort.Ints(ordinals)

	cases := make([]TestCase, 0, len(ordinals))
	for _, n := range ordinals {
		cases = append(cases, TestCase{
			Kind:       kind,
			Ordinal:    n,
			InputPath:  inputs[n],
			AnswerPath: answers[n],
		})
	}
	return cases, nil
}

func parseOrdinal(name, prefix string) (int, bool) {
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ReadPayload reads a test payload, transparently decompressing files
// stored with a .zst suffix.
func ReadPayload(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload %s: %w", path, err)
	}
	defer f.Close()

	if strings.HasSuffix(path, ".zst") {
		d, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader for %s: %w", path, err)
		}
		defer d.Close()
		data, err := io.ReadAll(d)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress payload %s: %w", path, err)
		}
		return data, nil
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload %s: %w", path, err)
	}
	return data, nil
}
