package batch

import (
	"fmt"
	"testing"

	"codebrief/internal/tester"
	types "codebrief/internal/types"
)

func allocated(n int) []types.AllocatedFile {
	files := make([]types.AllocatedFile, n)
	for i := range files {
		files[i] = types.AllocatedFile{
			CandidateFile: types.CandidateFile{Path: fmt.Sprintf("f%02d.go", i)},
			TokenBudget:   10,
		}
	}
	return files
}

func TestSplitExactPartition(t *testing.T) {
	in := allocated(12)
	batches, err := Split(in, 5)
	tester.NoErr(t, err)
	tester.Eq(t, len(batches), 3)
	tester.Eq(t, len(batches[0].Members), 5)
	tester.Eq(t, len(batches[1].Members), 5)
	tester.Eq(t, len(batches[2].Members), 2)

	// Union of members, in order, is the input exactly once each.
	var got []string
	for i, b := range batches {
		tester.Eq(t, b.Ordinal, i)
		got = append(got, b.Paths()...)
	}
	tester.Eq(t, len(got), len(in))
	for i, p := range got {
		tester.Eq(t, p, in[i].Path)
	}
}

func TestSplitSingleShortBatch(t *testing.T) {
	batches, err := Split(allocated(3), 5)
	tester.NoErr(t, err)
	tester.Eq(t, len(batches), 1)
	tester.Eq(t, batches[0].Ordinal, 0)
	tester.Eq(t, len(batches[0].Members), 3)
}

func TestSplitEvenDivision(t *testing.T) {
	batches, err := Split(allocated(10), 5)
	tester.NoErr(t, err)
	tester.Eq(t, len(batches), 2)
	tester.Eq(t, len(batches[1].Members), 5)
}

func TestSplitEmptyInput(t *testing.T) {
	batches, err := Split(nil, 5)
	tester.NoErr(t, err)
	tester.Eq(t, len(batches), 0)
}

func TestSplitBadSize(t *testing.T) {
	_, err := Split(allocated(3), 0)
	tester.True(t, err != nil, "want error for size 0")
	_, err = Split(allocated(3), -2)
	tester.True(t, err != nil, "want error for negative size")
}

func TestBatchTokenBudgetSumsMembers(t *testing.T) {
	batches, err := Split(allocated(7), 3)
	tester.NoErr(t, err)
	tester.Eq(t, batches[0].TokenBudget(), 30)
	tester.Eq(t, batches[2].TokenBudget(), 10)
}
