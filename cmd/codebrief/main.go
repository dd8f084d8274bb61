package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"codebrief/internal/artifact"
	"codebrief/internal/batch"
	"codebrief/internal/budget"
	"codebrief/internal/cache"
	"codebrief/internal/config"
	"codebrief/internal/document"
	"codebrief/internal/llm"
	"codebrief/internal/pipeline"
	"codebrief/internal/runstore"
	"codebrief/internal/scan"
	t "codebrief/internal/types"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	defaultOpenAIModel = "gpt-4.1-nano-2025-04-14"
)

func main() {
	dir := flag.String("dir", "", "directory containing the codebase to analyze")
	output := flag.String("output", "", "output file path (default: timestamped processed-codebase_*.json)")
	model := flag.String("model", "", "backend model id (default depends on the backend)")
	maxTokens := flag.Int("max-tokens", 50000, "token ceiling for the entire output document")
	batchSize := flag.Int("batch-size", 5, "files per backend call")
	pause := flag.Duration("pause", 0, "pause between backend calls, e.g. 2s")
	rps := flag.Float64("rps", 0, "backend requests per second, 0 disables rate limiting")
	optimize := flag.Bool("optimize", false, "run the compaction pass after analysis")
	optimizeModel := flag.String("optimize-model", "", "model for the compaction pass (default: analysis model)")
	useFake := flag.Bool("fake", false, "use the offline fake backend")
	verbosity := flag.Int("v", 1, "verbosity: 0 quiet, 1 progress, 2 debug")
	yes := flag.Bool("yes", false, "skip the pre-dispatch confirmation")
	flag.Parse()
	if *dir == "" {
		log.Fatal("-dir is required")
	}
	if *output == "" {
		*output = fmt.Sprintf("processed-codebase_%s.json", time.Now().Format("20060102_150405"))
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if *verbosity == 0 {
		logger.SetOutput(io.Discard)
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	raw, err := newClient(ctx, cfg, *useFake, *model)
	if err != nil {
		log.Fatal(err)
	}
	cli := llm.Wrap(raw, llm.WithLogging(logger), llm.Retry(3, 5*time.Second), llm.RateLimit(*rps, 1))
	defer cli.Close()

	files, err := scan.Discover(*dir)
	if err != nil {
		log.Fatal(err)
	}
	totalSize := scan.TotalSize(files)
	tree := scan.RenderTree(*dir, candidatePaths(files))
	logger.Printf("scanned %d files (%d bytes) in %s", len(files), totalSize, *dir)

	allocated, err := budget.Allocate(files, *maxTokens)
	if err != nil {
		// A contract violation aborts before any dispatch, but the run
		// still leaves a document behind.
		doc := document.New(*dir, tree, len(files), totalSize, *maxTokens, 0)
		document.MarkFailed(doc)
		if werr := document.Write(*output, doc); werr != nil {
			logger.Printf("write %s: %v", *output, werr)
		}
		log.Fatalf("allocation failed: %v", err)
	}
	batches, err := batch.Split(allocated, *batchSize)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Files: %d  Size: %d bytes  Batches: %d  Token ceiling: %d  Backend: %s\n",
		len(files), totalSize, len(batches), *maxTokens, cli.Name())
	if *verbosity >= 2 {
		fmt.Println(tree)
	}
	if !*yes && !confirm() {
		fmt.Println("aborted")
		return
	}

	runID := runstore.NewRunID()
	startedAt := time.Now().UTC()
	doc := document.New(*dir, tree, len(files), totalSize, *maxTokens, len(batches))

	disp := &pipeline.Dispatcher{
		Analyzer:  &pipeline.Analyzer{LLM: cli, Directory: *dir},
		SizeGuard: *maxTokens,
		Pause:     *pause,
		OnBatch: func(doc *t.RunDocument, state t.RunState) error {
			return document.Write(*output, doc)
		},
		Log:     logger,
		Verbose: *verbosity >= 2,
	}
	if store, cerr := cache.Open(cfg.CacheDir, 512); cerr != nil {
		logger.Printf("analysis cache disabled: %v", cerr)
	} else {
		disp.Cache = store
	}

	state := disp.Run(ctx, doc, batches)
	document.Finalize(doc, state)
	if err := document.Write(*output, doc); err != nil {
		log.Fatalf("write %s: %v", *output, err)
	}
	logger.Printf("analysis %s: %d/%d files, %d batches, ~%d tokens -> %s",
		doc.Metadata.CompletionStatus, state.FilesProcessed, len(files),
		state.BatchesCompleted, state.EstimatedTokens, *output)
	if state.Halted {
		logger.Printf("run halted early (%s)", state.HaltReason)
	}
	for _, be := range state.Errors {
		logger.Printf("batch %d degraded to placeholders (%s): %v", be.Ordinal, be.Kind, be.Err)
	}

	outputs := []string{*output}
	if *optimize {
		optCli := cli
		if *optimizeModel != "" && !*useFake {
			optRaw, oerr := newClient(ctx, cfg, false, *optimizeModel)
			if oerr != nil {
				logger.Printf("optimizer client: %v; reusing analysis client", oerr)
			} else {
				optCli = llm.Wrap(optRaw, llm.WithLogging(logger), llm.Retry(3, 5*time.Second), llm.RateLimit(*rps, 1))
				defer optCli.Close()
			}
		}
		opt := &pipeline.Optimizer{
			LLM:       optCli,
			MaxTokens: *maxTokens,
			BatchSize: *batchSize,
			Log:       logger,
			DumpPath:  *output + ".error.json",
		}
		if compacted, ok := opt.Run(ctx, doc); ok {
			optPath := optimizedPath(*output)
			if err := document.Write(optPath, compacted); err != nil {
				logger.Printf("write %s: %v", optPath, err)
			} else {
				logger.Printf("optimized document -> %s", optPath)
				outputs = append(outputs, optPath)
			}
		}
	}

	// Bookkeeping runs on a fresh context so an interrupted run is still
	// uploaded and recorded.
	bg := context.Background()
	if up, uerr := artifact.NewFromEnv(); uerr != nil {
		logger.Printf("artifact upload disabled: %v", uerr)
	} else if up != nil {
		for _, p := range outputs {
			uploadArtifact(bg, logger, up, runID, p)
		}
	}

	ledger := runstore.NewFromEnv(ledgerPath(cfg.CacheDir))
	rec := runstore.RunRecord{
		ID:               runID,
		Directory:        *dir,
		OutputPath:       *output,
		Status:           doc.Metadata.CompletionStatus,
		Model:            cli.Name(),
		TotalFiles:       len(files),
		FilesAnalyzed:    doc.Metadata.FilesAnalyzed,
		TotalBatches:     len(batches),
		CompletedBatches: state.BatchesCompleted,
		EstimatedTokens:  state.EstimatedTokens,
		StartedAt:        startedAt,
		FinishedAt:       time.Now().UTC(),
	}
	if err := ledger.Append(rec); err != nil {
		logger.Printf("run ledger: %v", err)
	}
	if err := ledger.Close(); err != nil {
		logger.Printf("run ledger close: %v", err)
	}
}

// newClient picks the backend: fake when asked for, Gemini when its key is
// present, otherwise an OpenAI-compatible endpoint.
func newClient(ctx context.Context, cfg config.Config, fake bool, model string) (llm.Client, error) {
	if fake {
		return &llm.FakeClient{}, nil
	}
	if cfg.GeminiKey != "" {
		if model == "" {
			model = defaultGeminiModel
		}
		return llm.NewGeminiClient(ctx, cfg.GeminiKey, model)
	}
	if cfg.OpenAIKey != "" {
		if model == "" {
			model = defaultOpenAIModel
		}
		return llm.NewOpenAIClient(cfg.OpenAIKey, model, cfg.OpenAIBaseURL), nil
	}
	return nil, errors.New("no backend configured: set GEMINI_API_KEY or OPENAI_API_KEY, or pass -fake")
}

func confirm() bool {
	fmt.Print("Proceed? [y/N] ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func candidatePaths(files []t.CandidateFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func optimizedPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + "_optimized" + ext
}

func ledgerPath(cacheDir string) string {
	base := cacheDir
	if base == "" {
		if ucd, err := os.UserCacheDir(); err == nil {
			base = filepath.Join(ucd, "codebrief")
		} else {
			base = "."
		}
	}
	_ = os.MkdirAll(base, 0o755)
	return filepath.Join(base, "runs.json")
}

func uploadArtifact(ctx context.Context, logger *log.Logger, up *artifact.Uploader, runID, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Printf("artifact read %s: %v", path, err)
		return
	}
	if err := up.Put(ctx, runID, filepath.Base(path), data); err != nil {
		logger.Printf("artifact upload %s: %v", path, err)
		return
	}
	logger.Printf("artifact uploaded: %s/%s", runID, filepath.Base(path))
}
