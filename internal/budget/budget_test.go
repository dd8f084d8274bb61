package budget

import (
	"errors"
	"strings"
	"testing"

	"codebrief/internal/tester"
	types "codebrief/internal/types"
)

func candidates(n int, size int) []types.CandidateFile {
	files := make([]types.CandidateFile, n)
	for i := range files {
		files[i] = types.CandidateFile{
			Path:      string(rune('a'+i)) + ".go",
			SizeBytes: int64(size),
			Content:   strings.Repeat("x", size),
		}
	}
	return files
}

func TestAllocateProportionalShares(t *testing.T) {
	out, err := Allocate(candidates(12, 100), 1000)
	tester.NoErr(t, err)
	tester.Eq(t, len(out), 12)

	sum := 0
	for _, af := range out {
		if af.TokenBudget < 0 {
			t.Fatalf("negative budget for %s", af.Path)
		}
		sum += af.TokenBudget
	}
	// Integer division floors each share, so the sum may fall short of the
	// ceiling by less than one token per file, never exceed it.
	tester.True(t, sum <= 1000, "sum over ceiling")
	tester.True(t, 1000-sum < 12, "rounding loss too large")
	tester.Eq(t, out[0].TokenBudget, 83)
}

func TestAllocatePreservesOrder(t *testing.T) {
	files := candidates(5, 10)
	out, err := Allocate(files, 100)
	tester.NoErr(t, err)
	for i := range out {
		tester.Eq(t, out[i].Path, files[i].Path)
	}
}

func TestAllocateTruncatesToShare(t *testing.T) {
	files := []types.CandidateFile{
		{Path: "big.go", SizeBytes: 900, Content: strings.Repeat("b", 900)},
		{Path: "small.go", SizeBytes: 100, Content: strings.Repeat("s", 100)},
	}
	out, err := Allocate(files, 100)
	tester.NoErr(t, err)

	// big.go: 90 tokens -> 360 bytes, shorter than its 900-byte content.
	big := out[0]
	tester.Eq(t, big.TokenBudget, 90)
	tester.True(t, big.Truncated)
	tester.Eq(t, len(big.Excerpt), 360)
	tester.True(t, strings.HasPrefix(big.Content, big.Excerpt), "excerpt not a prefix")

	// small.go: 10 tokens -> 40 bytes, but only 100 bytes of content and a
	// 40-byte cap applies, so it is truncated too.
	small := out[1]
	tester.Eq(t, small.TokenBudget, 10)
	tester.True(t, small.Truncated)
	tester.Eq(t, small.Excerpt, strings.Repeat("s", 40))
}

func TestAllocateKeepsShortFilesIntact(t *testing.T) {
	files := []types.CandidateFile{
		{Path: "a.go", SizeBytes: 10, Content: "short"},
		{Path: "b.go", SizeBytes: 10, Content: "also short"},
	}
	out, err := Allocate(files, 1000)
	tester.NoErr(t, err)
	for _, af := range out {
		tester.False(t, af.Truncated, af.Path)
		tester.Eq(t, af.Excerpt, af.Content)
	}
}

func TestAllocateRuneBoundary(t *testing.T) {
	// 1 ASCII byte then 2-byte runes: a 10-token share cuts at byte 40,
	// the middle of a rune, and must back off to 39.
	content := "a" + strings.Repeat("é", 50)
	files := []types.CandidateFile{
		{Path: "uni.txt", SizeBytes: int64(len(content)), Content: content},
		{Path: "pad.txt", SizeBytes: 909, Content: strings.Repeat("p", 909)},
	}
	out, err := Allocate(files, 100)
	tester.NoErr(t, err)

	uni := out[0]
	tester.Eq(t, uni.TokenBudget, 10)
	tester.True(t, uni.Truncated)
	tester.Eq(t, len(uni.Excerpt), 39)
	tester.True(t, strings.HasPrefix(content, uni.Excerpt), "excerpt not a prefix")
	for _, r := range uni.Excerpt {
		if r == '�' {
			t.Fatal("excerpt split a rune")
		}
	}
}

func TestAllocateZeroSizeFileKept(t *testing.T) {
	files := []types.CandidateFile{
		{Path: "empty.go", SizeBytes: 0, Content: ""},
		{Path: "full.go", SizeBytes: 100, Content: strings.Repeat("f", 100)},
	}
	out, err := Allocate(files, 100)
	tester.NoErr(t, err)
	tester.Eq(t, len(out), 2)
	tester.Eq(t, out[0].TokenBudget, 0)
	tester.Eq(t, out[0].Excerpt, "")
	tester.False(t, out[0].Truncated)
}

func TestAllocateEmptyInput(t *testing.T) {
	out, err := Allocate(nil, 100)
	tester.NoErr(t, err)
	tester.Eq(t, len(out), 0)
}

func TestAllocateAllZeroSizes(t *testing.T) {
	files := []types.CandidateFile{
		{Path: "a", SizeBytes: 0},
		{Path: "b", SizeBytes: 0},
	}
	out, err := Allocate(files, 100)
	tester.NoErr(t, err)
	tester.Eq(t, len(out), 2)
	for _, af := range out {
		tester.Eq(t, af.TokenBudget, 0)
	}
}

func TestAllocateTinyCeiling(t *testing.T) {
	// Ceiling below the file count: zero budgets are legal, not an error.
	out, err := Allocate(candidates(10, 100), 5)
	tester.NoErr(t, err)
	tester.Eq(t, len(out), 10)
	for _, af := range out {
		tester.Eq(t, af.TokenBudget, 0)
		tester.Eq(t, af.Excerpt, "")
	}
}

func TestAllocateHardCap(t *testing.T) {
	huge := strings.Repeat("h", TruncationLimit*2)
	files := []types.CandidateFile{{Path: "huge.go", SizeBytes: int64(len(huge)), Content: huge}}
	out, err := Allocate(files, 1_000_000)
	tester.NoErr(t, err)
	tester.True(t, out[0].Truncated)
	tester.Eq(t, len(out[0].Excerpt), TruncationLimit)
}

func TestAllocateNegativeSize(t *testing.T) {
	files := []types.CandidateFile{{Path: "bad.go", SizeBytes: -1}}
	_, err := Allocate(files, 100)
	var ae *AllocationError
	tester.True(t, errors.As(err, &ae), "want AllocationError")
	tester.Eq(t, ae.Path, "bad.go")
}

func TestAllocateBadCeiling(t *testing.T) {
	_, err := Allocate(candidates(1, 10), 0)
	var ae *AllocationError
	tester.True(t, errors.As(err, &ae), "want AllocationError")
}
