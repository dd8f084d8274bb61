package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codebrief/internal/tester"
	types "codebrief/internal/types"
)

func analysis(purpose string) types.FileAnalysis {
	return types.FileAnalysis{FileType: "source", FilePurpose: purpose}
}

func TestKeyDistinguishesComponents(t *testing.T) {
	base := Key("a.go", "content", "Gemini:flash")
	tester.Eq(t, Key("a.go", "content", "Gemini:flash"), base)
	tester.True(t, Key("b.go", "content", "Gemini:flash") != base, "path must change the key")
	tester.True(t, Key("a.go", "changed", "Gemini:flash") != base, "content must change the key")
	tester.True(t, Key("a.go", "content", "OpenAI:gpt") != base, "model must change the key")
}

func TestMemoryOnlyStore(t *testing.T) {
	s, err := Open("", 0)
	tester.NoErr(t, err)

	s.Put("a.go", "content", "m", analysis("parses flags"))
	got, ok := s.Get("a.go", "content", "m")
	tester.True(t, ok, "want hit")
	tester.Eq(t, got.FilePurpose, "parses flags")

	_, ok = s.Get("a.go", "other content", "m")
	tester.False(t, ok, "different content must miss")
	tester.Eq(t, s.Len(), 0)
}

func TestDiskPersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 10)
	tester.NoErr(t, err)
	s.Put("a.go", "content", "m", analysis("reads config"))

	if _, err := os.Stat(filepath.Join(dir, "index.json")); err != nil {
		t.Fatalf("index not written: %v", err)
	}

	reopened, err := Open(dir, 10)
	tester.NoErr(t, err)
	got, ok := reopened.Get("a.go", "content", "m")
	tester.True(t, ok, "want disk hit after reopen")
	tester.Eq(t, got.FilePurpose, "reads config")
	tester.Eq(t, reopened.Len(), 1)
}

func TestPlaceholdersNeverStored(t *testing.T) {
	s, err := Open(t.TempDir(), 10)
	tester.NoErr(t, err)

	s.Put("a.go", "content", "m", types.NewPlaceholder("Analysis failed: api down", ""))
	_, ok := s.Get("a.go", "content", "m")
	tester.False(t, ok, "placeholders must not be cached")
	tester.Eq(t, s.Len(), 0)
}

func TestEvictionKeepsMostRecent(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 2)
	tester.NoErr(t, err)

	s.Put("a.go", "c", "m", analysis("first"))
	time.Sleep(5 * time.Millisecond)
	s.Put("b.go", "c", "m", analysis("second"))
	time.Sleep(5 * time.Millisecond)
	s.Put("c.go", "c", "m", analysis("third"))
	tester.Eq(t, s.Len(), 2)

	// Reopen to bypass the memory front.
	reopened, err := Open(dir, 2)
	tester.NoErr(t, err)
	_, ok := reopened.Get("a.go", "c", "m")
	tester.False(t, ok, "oldest entry must be evicted")
	_, ok = reopened.Get("b.go", "c", "m")
	tester.True(t, ok, "recent entry kept")
	_, ok = reopened.Get("c.go", "c", "m")
	tester.True(t, ok, "newest entry kept")
}

func TestByteBudgetEvicts(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSized(dir, 100, 100)
	tester.NoErr(t, err)

	// Each entry serializes to just over 40 bytes; the third breaks the
	// 100-byte budget and evicts the oldest.
	s.Put("a.go", "c", "m", analysis("one"))
	time.Sleep(5 * time.Millisecond)
	s.Put("b.go", "c", "m", analysis("two"))
	time.Sleep(5 * time.Millisecond)
	s.Put("c.go", "c", "m", analysis("three"))

	tester.Eq(t, s.Len(), 2)
	reopened, err := OpenSized(dir, 100, 100)
	tester.NoErr(t, err)
	_, ok := reopened.Get("a.go", "c", "m")
	tester.False(t, ok, "oldest entry must fall out of the byte budget")
}

func TestCorruptIndexRebuiltEmpty(t *testing.T) {
	dir := t.TempDir()
	tester.NoErr(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	tester.NoErr(t, os.WriteFile(filepath.Join(dir, "index.json"), []byte("not json"), 0o644))

	s, err := Open(dir, 10)
	tester.NoErr(t, err)
	tester.Eq(t, s.Len(), 0)
}

func TestCorruptDataFileDropped(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 10)
	tester.NoErr(t, err)
	s.Put("a.go", "content", "m", analysis("ok"))

	file := Key("a.go", "content", "m") + ".json"
	tester.NoErr(t, os.WriteFile(filepath.Join(dir, "data", file), []byte("garbage"), 0o644))

	reopened, err := Open(dir, 10)
	tester.NoErr(t, err)
	_, ok := reopened.Get("a.go", "content", "m")
	tester.False(t, ok, "corrupt entry must miss")
	tester.Eq(t, reopened.Len(), 0)
}
