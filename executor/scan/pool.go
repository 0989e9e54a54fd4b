// Package scan evaluates batches of shots in parallel.
//
// A scan splits its shots into fixed-size chunks and hands them to a bounded
// set of worker goroutines. Results land in a buffer indexed by the original
// shot order, so the caller never sees scheduling effects. Cancellation is
// cooperative: workers poll a Token between samples and before each chunk.
package scan

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brensch/gravbot/ballistics"
)

const DefaultChunkSize = 200

// Token is a one-way cancellation flag shared by every worker of a scan.
type Token struct {
	cancelled atomic.Bool
}

func NewToken() *Token { return &Token{} }

// Cancel flips the token. Calling it more than once is harmless.
func (t *Token) Cancel() { t.cancelled.Store(true) }

func (t *Token) Cancelled() bool { return t.cancelled.Load() }

// Job is one scan: a set of shots flown against the same bodies and params.
type Job struct {
	Bodies *ballistics.Bodies
	Params ballistics.Params
	Shots  []ballistics.Shot

	// StopOnHit cancels the rest of the scan once any shot hits.
	StopOnHit bool
}

// Result holds one outcome per shot. Slots skipped after cancellation keep
// the NotEvaluated zero value.
type Result struct {
	Outcomes  []ballistics.Outcome
	Evaluated int
	Cancelled bool
	Duration  time.Duration
}

type Config struct {
	Workers   int
	ChunkSize int
}

func DefaultConfig() Config {
	return Config{Workers: runtime.NumCPU(), ChunkSize: DefaultChunkSize}
}

type RuntimeStats struct {
	TotalScans     int64
	TotalSamples   int64
	TotalCancelled int64
	TotalRunNanos  int64
	AvgSamples     float64
	AvgRunMs       float64
}

// Pool runs scans on a fixed number of workers. Run may be called from
// several goroutines, but each call blocks until its own workers are done.
type Pool struct {
	sim       *ballistics.Simulator
	workers   int
	chunkSize int

	scans     atomic.Int64
	samples   atomic.Int64
	cancelled atomic.Int64
	runNanos  atomic.Int64
}

func NewPool(sim *ballistics.Simulator, cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Pool{sim: sim, workers: cfg.Workers, chunkSize: cfg.ChunkSize}
}

func (p *Pool) Workers() int { return p.workers }

type chunk struct {
	lo, hi int
}

// Run evaluates every shot in job unless tok is cancelled first, either by
// the caller, by ctx, or by a hit when StopOnHit is set. A nil tok gets a
// private token. Run returns only once all workers have exited.
func (p *Pool) Run(ctx context.Context, job *Job, tok *Token) Result {
	start := time.Now()
	if tok == nil {
		tok = NewToken()
	}
	if ctx.Err() != nil {
		tok.Cancel()
	}
	stop := context.AfterFunc(ctx, tok.Cancel)
	defer stop()

	res := Result{Outcomes: make([]ballistics.Outcome, len(job.Shots))}
	if len(job.Shots) == 0 {
		return res
	}

	numChunks := (len(job.Shots) + p.chunkSize - 1) / p.chunkSize
	chunks := make(chan chunk, numChunks)
	for lo := 0; lo < len(job.Shots); lo += p.chunkSize {
		chunks <- chunk{lo: lo, hi: min(lo+p.chunkSize, len(job.Shots))}
	}
	close(chunks)

	var evaluated atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < min(p.workers, numChunks); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := p.worker(job, tok, chunks, res.Outcomes)
			evaluated.Add(int64(n))
		}()
	}
	wg.Wait()

	res.Evaluated = int(evaluated.Load())
	res.Cancelled = tok.Cancelled()
	res.Duration = time.Since(start)

	p.scans.Add(1)
	p.samples.Add(int64(res.Evaluated))
	p.runNanos.Add(res.Duration.Nanoseconds())
	if res.Cancelled {
		p.cancelled.Add(1)
	}
	return res
}

func (p *Pool) worker(job *Job, tok *Token, chunks <-chan chunk, out []ballistics.Outcome) int {
	n := 0
	for c := range chunks {
		// Keep draining so the channel empties, but start nothing new.
		if tok.Cancelled() {
			continue
		}
		for i := c.lo; i < c.hi; i++ {
			if tok.Cancelled() {
				break
			}
			o := p.sim.Simulate(job.Bodies, &job.Params, job.Shots[i])
			out[i] = o
			n++
			if job.StopOnHit && o.Kind == ballistics.Hit {
				tok.Cancel()
			}
		}
	}
	return n
}

func (p *Pool) Stats() RuntimeStats {
	scans := p.scans.Load()
	samples := p.samples.Load()
	runNanos := p.runNanos.Load()

	avgSamples := 0.0
	avgRunMs := 0.0
	if scans > 0 {
		avgSamples = float64(samples) / float64(scans)
		avgRunMs = (float64(runNanos) / 1e6) / float64(scans)
	}

	return RuntimeStats{
		TotalScans:     scans,
		TotalSamples:   samples,
		TotalCancelled: p.cancelled.Load(),
		TotalRunNanos:  runNanos,
		AvgSamples:     avgSamples,
		AvgRunMs:       avgRunMs,
	}
}
