package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/bmatcuk/doublestar"
	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"

	"github.com/dfe-analytical-services/robot-rerun/merge"
	"github.com/dfe-analytical-services/robot-rerun/robotxml"
	"github.com/dfe-analytical-services/robot-rerun/types"
)

var _ Backend = (*PoolBackend)(nil)

// suiteWork is one suite handed to a pool worker
type suiteWork struct {
	index int
	suite types.SuitePath
}

// suiteWorkResult contains the result of executing a suiteWork
type suiteWorkResult struct {
	work  suiteWork
	dir   string
	tree  *types.ResultTree
	error error
}

// PoolBackend runs suites of an attempt in parallel, each through its own
// invocation of the wrapped backend, and combines their trees.
type PoolBackend struct {
	backend     Backend
	concurrency int
	log         log.Logger
}

// NewPoolBackend creates a pool of concurrency workers over backend
func NewPoolBackend(logger log.Logger, backend Backend, concurrency int) (*PoolBackend, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", concurrency)
	}
	if concurrency > MaxReasonableConcurrency {
		logger.Warn("Very high concurrency requested", "concurrency", concurrency,
			"recommendation", "Each worker starts its own browser; consider lower values")
	}
	return &PoolBackend{
		backend:     backend,
		concurrency: concurrency,
		log:         logger.New("component", "pool-backend"),
	}, nil
}

// Execute distributes the suites of spec across the workers. A full run is
// split into the top level suites found below the target path. With fail
// fast set, no further suites are dispatched once one has failed; suites
// already running are left to finish.
func (p *PoolBackend) Execute(ctx context.Context, spec types.RunSpec) (*types.ResultTree, error) {
	start := time.Now()
	rootName := SuiteName(spec.TargetPath)

	suites := spec.ScopePaths()
	if spec.Scope != types.RunScopeFailing || len(suites) == 0 {
		discovered, err := DiscoverSuites(spec.TargetPath)
		if err != nil {
			return nil, err
		}
		suites = discovered
	}
	if p.concurrency == 1 || len(suites) <= 1 {
		return p.backend.Execute(ctx, spec)
	}

	concurrency := min(p.concurrency, len(suites))
	p.log.Info("Starting parallel attempt", "attempt", spec.Attempt, "suites", len(suites), "concurrency", concurrency)

	workChan := make(chan suiteWork, concurrency)
	resultChan := make(chan suiteWorkResult, concurrency)
	var stop atomic.Bool
	var skipped atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go p.worker(ctx, &wg, spec, &stop, workChan, resultChan)
	}

	go func() {
		defer close(workChan)
		for i, suite := range suites {
			if stop.Load() {
				skipped.Add(int32(len(suites) - i))
				p.log.Info("Fail fast: not dispatching remaining suites", "remaining", len(suites)-i)
				return
			}
			select {
			case workChan <- suiteWork{index: i, suite: suite}:
			case <-ctx.Done():
				p.log.Debug("Context cancelled while dispatching suites")
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	trees := make([]*types.ResultTree, len(suites))
	var errs *multierror.Error
	for res := range resultChan {
		if res.error != nil {
			p.log.Error("Suite execution failed", "suite", res.work.suite.LongName(), "error", res.error)
			errs = multierror.Append(errs, fmt.Errorf("suite %s: %w", res.work.suite.LongName(), res.error))
			continue
		}
		// Worker artifacts stay in the worker directory; point at them from
		// the attempt directory the combined document is written to
		merge.RelocateReferences(res.tree, filepath.Base(res.dir), merge.ArtifactExists(res.dir))
		trees[res.work.index] = res.tree
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("attempt %d interrupted: %w", spec.Attempt, ctx.Err())
	}

	combined := types.Combine(rootName, trees...)
	if combined.IsEmpty() {
		if err := errs.ErrorOrNil(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("attempt %d produced no results", spec.Attempt)
	}
	if errs != nil {
		// Suites without results fail so the next attempt picks them up
		for _, err := range errs.Errors {
			p.log.Warn("Recording suite without results as failed", "error", err)
		}
		var failed []types.SuitePath
		for i, tree := range trees {
			if tree == nil && int32(i) < int32(len(suites))-skipped.Load() {
				failed = append(failed, suites[i])
			}
		}
		combined = types.Combine(rootName, combined, types.SynthesizeFailure(failed, errs.Error()))
	}

	if err := robotxml.WriteFile(filepath.Join(spec.OutputDir, robotxml.OutputFile), combined); err != nil {
		return nil, fmt.Errorf("failed to write combined results: %w", err)
	}

	counts := combined.Counts()
	p.log.Info("Parallel attempt completed",
		"attempt", spec.Attempt,
		"duration", time.Since(start),
		"suites", len(suites),
		"skipped", skipped.Load(),
		"passed", counts.Passed,
		"failed", counts.Failed)
	return combined, nil
}

// worker processes suites until the work channel closes
func (p *PoolBackend) worker(ctx context.Context, wg *sync.WaitGroup, spec types.RunSpec, stop *atomic.Bool,
	workChan <-chan suiteWork, resultChan chan<- suiteWorkResult) {
	defer wg.Done()

	for {
		select {
		case work, ok := <-workChan:
			if !ok {
				return
			}

			sub := spec
			sub.OutputDir = filepath.Join(spec.OutputDir, fmt.Sprintf("worker-%d", work.index+1))
			sub.Scope = types.RunScopeFailing
			sub.Suites = []string{work.suite.LongName()}
			sub.SuitePaths = []types.SuitePath{work.suite}

			p.log.Debug("Worker running suite", "suite", sub.Suites[0], "outputDir", sub.OutputDir)
			tree, err := p.backend.Execute(ctx, sub)
			if err == nil && spec.FailFast && tree.Status() == types.TestStatusFail {
				stop.Store(true)
			}

			select {
			case resultChan <- suiteWorkResult{work: work, dir: sub.OutputDir, tree: tree, error: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// DiscoverSuites lists the paths of the top level suites below a target
// directory. A target file is a single suite.
func DiscoverSuites(target string) ([]types.SuitePath, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read tests path: %w", err)
	}
	rootName := SuiteName(target)
	if !info.IsDir() {
		return []types.SuitePath{{rootName}}, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read tests path: %w", err)
	}
	var suites []types.SuitePath
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		path := filepath.Join(target, name)
		if entry.IsDir() {
			files, err := doublestar.Glob(filepath.Join(path, "**", "*.robot"))
			if err != nil {
				return nil, fmt.Errorf("failed to search %s: %w", path, err)
			}
			if len(files) == 0 {
				continue
			}
		} else if filepath.Ext(name) != ".robot" {
			continue
		}
		suites = append(suites, types.SuitePath{rootName, SuiteName(path)})
	}
	return suites, nil
}

var suitePrefix = regexp.MustCompile(`^\d+__`)

// SuiteName returns the name Robot gives the suite created from path
func SuiteName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if ext := filepath.Ext(base); ext == ".robot" {
		base = strings.TrimSuffix(base, ext)
	}
	base = suitePrefix.ReplaceAllString(base, "")
	name := strings.TrimSpace(strings.ReplaceAll(base, "_", " "))
	if name != strings.ToLower(name) {
		return name
	}

	words := strings.Fields(name)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
