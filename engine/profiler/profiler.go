package profiler

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-outline/common"
)

// nodeStats accumulates run timings of one render graph node between reports.
type nodeStats struct {
	runs  int
	total time.Duration
	max   time.Duration
}

// NodeReport is the summary of one node's timings over a report interval.
type NodeReport struct {
	Name  string
	Runs  int
	Mean  time.Duration
	Max   time.Duration
	Total time.Duration
}

// Report is the summary produced each time the update interval elapses.
type Report struct {
	FPS         float64
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	Nodes       []NodeReport
}

// Profiler tracks frame rate, memory statistics and per-node render graph timings.
// Outputs stats to the engine logger at a configurable interval.
type Profiler struct {
	mu             sync.Mutex
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	now            func() time.Time
	memStats       runtime.MemStats
	lastTotalAlloc uint64
	nodes          map[string]*nodeStats
	last           *Report
}

// ProfilerOption is a functional option used to configure a Profiler during construction.
type ProfilerOption func(*Profiler)

// WithInterval sets how often statistics are reported.
//
// Parameters:
//   - d: the report interval
//
// Returns:
//   - ProfilerOption: a function that sets the report interval
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithClock replaces the time source, used by tests.
//
// Parameters:
//   - now: the function returning the current time
//
// Returns:
//   - ProfilerOption: a function that sets the clock
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second.
//
// Parameters:
//   - opts: a variadic list of ProfilerOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(opts ...ProfilerOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
		nodes:          make(map[string]*nodeStats),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// NodeTiming records one run of a render graph node.
//
// Parameters:
//   - name: the node name
//   - d: how long the node's Run took
func (p *Profiler) NodeTiming(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.nodes[name]
	if !ok {
		s = &nodeStats{}
		p.nodes[name] = s
	}
	s.runs++
	s.total += d
	s.max = max(s.max, d)
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
//
// Returns:
//   - bool: true if stats were reported this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	report := &Report{
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB: float64(allocDelta) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
	}
	for name, s := range p.nodes {
		report.Nodes = append(report.Nodes, NodeReport{
			Name:  name,
			Runs:  s.runs,
			Mean:  s.total / time.Duration(s.runs),
			Max:   s.max,
			Total: s.total,
		})
	}
	sort.Slice(report.Nodes, func(i, j int) bool { return report.Nodes[i].Name < report.Nodes[j].Name })

	log := common.Logger()
	log.Info("profiler",
		"fps", report.FPS, "heap_mb", report.HeapMB, "alloc_rate_mb", report.AllocRateMB, "gc", report.GCCount)
	for _, n := range report.Nodes {
		log.Info("profiler node", "node", n.Name, "runs", n.Runs, "mean", n.Mean, "max", n.Max)
	}

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.nodes = make(map[string]*nodeStats)
	p.last = report
	return true
}

// LastReport returns the most recent report, or nil before the first interval elapsed.
func (p *Profiler) LastReport() *Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
