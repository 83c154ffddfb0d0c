package main

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shenjiangwei/tilerAllocator/container"
	"github.com/shenjiangwei/tilerAllocator/reserve"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var simOpts struct {
	iterations int
	ops        int
	workers    int
	groups     int
	seed       int64
}

func init() {
	cmd := newSimulateCmd()
	cmd.Flags().IntVar(&simOpts.iterations, "iterations", 3, "Number of test iterations")
	cmd.Flags().IntVar(&simOpts.ops, "ops", 20000, "Allocate or free operations per iteration")
	cmd.Flags().IntVar(&simOpts.workers, "workers", 10, "Concurrent workers")
	cmd.Flags().IntVar(&simOpts.groups, "groups", 16, "Buffer groups, each with its own reservation")
	cmd.Flags().Int64Var(&simOpts.seed, "seed", 0, "Random seed, 0 for the current time")
	rootCmd.AddCommand(cmd)
}

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Run a randomized allocation workload",
		Long: `The simulate command reserves a batch of buffers for every group and
then lets concurrent workers allocate and free buffers of the groups' shapes
at random, reporting how many were served from the reservations.

Example:
  tilerctl simulate --iterations 3 --ops 20000 --groups 16`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := simOpts.seed
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			return runSimulate(cmd.OutOrStdout(), seed)
		},
	}
}

// shape is the buffer kind a group allocates
type shape struct {
	nv12   bool
	format reserve.Format
	width  int
	height int
	align  int
	offset int
}

var shapes = []shape{
	{nv12: true, width: 1920, height: 1080, align: 256},
	{nv12: true, width: 640, height: 480, align: 256, offset: 128},
	{nv12: true, width: 176, height: 144, align: 128},
	{format: reserve.Format8Bit, width: 256, height: 256, align: 256},
	{format: reserve.Format16Bit, width: 640, height: 480, align: 256},
	{format: reserve.Format32Bit, width: 320, height: 240, align: 128},
}

// SimResult stores simulation iteration results
type SimResult struct {
	Iteration     int
	Requested     int
	Reserved      int
	Allocations   uint64
	Failures      uint64
	Frees         uint64
	Pool          container.PoolStats
	PeakUsage     float64
	FinalUsage    float64
	TotalDuration time.Duration
}

type simGroup struct {
	gid   uint32
	shape shape
}

func runSimulation(iteration int, seed int64) (SimResult, error) {
	res := SimResult{Iteration: iteration}
	c, r, err := newReserver()
	if err != nil {
		return res, err
	}
	rnd := rand.New(rand.NewSource(seed))
	total := float64(c.Width() * c.Height())

	groups := make([]simGroup, simOpts.groups)
	for i := range groups {
		g := simGroup{gid: uint32(i + 1), shape: shapes[rnd.Intn(len(shapes))]}
		req := reserve.Request{
			Count:    rnd.Intn(8) + 2,
			Format:   g.shape.format,
			Width:    g.shape.width,
			Height:   g.shape.height,
			Align:    g.shape.align,
			Offset:   g.shape.offset,
			Group:    g.gid,
			Process:  1,
			Together: true,
		}
		var rr reserve.Result
		if g.shape.nv12 {
			rr, err = r.ReserveNV12(req)
		} else {
			rr, err = r.Reserve(req)
		}
		if err != nil {
			return res, errors.Wrapf(err, "group %d", g.gid)
		}
		res.Requested += rr.Requested
		res.Reserved += rr.Reserved
		groups[i] = g
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		ops     int
		nextID  int
		buffers = make(map[int]container.NV12Buffer)
	)

	startTime := time.Now()
	for w := 0; w < simOpts.workers; w++ {
		wg.Add(1)
		go func(rnd *rand.Rand) {
			defer wg.Done()
			for {
				mu.Lock()
				if ops >= simOpts.ops {
					mu.Unlock()
					return
				}
				ops++
				sample := ops%100 == 0
				mu.Unlock()

				// Randomly decide whether to allocate or free
				if rnd.Float64() < 0.7 {
					g := groups[rnd.Intn(len(groups))]
					nb, err := allocShape(c, g)
					mu.Lock()
					if err != nil {
						res.Failures++
					} else {
						res.Allocations++
						nextID++
						buffers[nextID] = nb
					}
					mu.Unlock()
				} else {
					mu.Lock()
					nb, ok := pickBuffer(buffers, rnd)
					if ok {
						res.Frees++
					}
					mu.Unlock()
					if ok {
						freeBuffer(c, nb)
					}
				}

				if sample {
					usage := float64(c.Used()) / total * 100
					mu.Lock()
					res.PeakUsage = max(res.PeakUsage, usage)
					mu.Unlock()
				}
			}
		}(rand.New(rand.NewSource(seed + int64(w) + 1)))
	}
	wg.Wait()
	res.TotalDuration = time.Since(startTime)
	res.FinalUsage = float64(c.Used()) / total * 100
	res.PeakUsage = max(res.PeakUsage, res.FinalUsage)
	res.Pool = c.PoolStats()

	for _, nb := range buffers {
		freeBuffer(c, nb)
	}
	for _, g := range groups {
		r.Unreserve(1, g.gid)
	}
	if used := c.Used(); used != 0 {
		return res, errors.Newf("%d slots still used after cleanup", used)
	}
	return res, nil
}

func allocShape(c *container.Container, g simGroup) (container.NV12Buffer, error) {
	s := g.shape
	if s.nv12 {
		return c.AllocNV12(1, g.gid, s.width, s.height, s.align, s.offset)
	}
	buf, err := c.Alloc(1, g.gid, s.format, s.width, s.height, s.align, s.offset)
	return container.NV12Buffer{Luma: buf}, err
}

func freeBuffer(c *container.Container, nb container.NV12Buffer) {
	var err error
	if nb.Chroma == nil {
		err = c.Free(nb.Luma)
	} else {
		err = c.FreeNV12(nb)
	}
	if err != nil {
		reserve.Error("Free failed: %v", err)
	}
}

// pickBuffer removes a random buffer from the map
func pickBuffer(buffers map[int]container.NV12Buffer, rnd *rand.Rand) (container.NV12Buffer, bool) {
	if len(buffers) == 0 {
		return container.NV12Buffer{}, false
	}
	keys := make([]int, 0, len(buffers))
	for k := range buffers {
		keys = append(keys, k)
	}
	k := keys[rnd.Intn(len(keys))]
	nb := buffers[k]
	delete(buffers, k)
	return nb, true
}

func runSimulate(w io.Writer, seed int64) error {
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "Starting tiler simulation with %d iterations\n", simOpts.iterations)
	p.Fprintf(w, "Container: %dx%d slots, page size %d bytes\n", cfg.Width, cfg.Height, cfg.PageSize)
	p.Fprintf(w, "Groups: %d, operations: %d, workers: %d\n\n", simOpts.groups, simOpts.ops, simOpts.workers)

	var results []SimResult
	for i := 0; i < simOpts.iterations; i++ {
		p.Fprintf(w, "Running iteration %d...\n", i+1)
		result, err := runSimulation(i+1, seed+int64(i)*1000)
		if err != nil {
			return errors.Wrapf(err, "iteration %d", i+1)
		}
		results = append(results, result)

		p.Fprintf(w, "Iteration %d results:\n", i+1)
		p.Fprintf(w, "  Reserved: %d of %d buffers\n", result.Reserved, result.Requested)
		p.Fprintf(w, "  Allocations: %d (%d failed)\n", result.Allocations, result.Failures)
		p.Fprintf(w, "  Frees: %d\n", result.Frees)
		p.Fprintf(w, "  Pool hits: %d (%.2f%%)\n", result.Pool.PoolHits, percent(result.Pool.PoolHits, result.Pool.TotalAllocations))
		p.Fprintf(w, "  Pool misses: %d (%.2f%%)\n", result.Pool.PoolMisses, percent(result.Pool.PoolMisses, result.Pool.TotalAllocations))
		p.Fprintf(w, "  Peak usage: %.2f%%\n", result.PeakUsage)
		p.Fprintf(w, "  Final usage: %.2f%%\n", result.FinalUsage)
		p.Fprintf(w, "  Duration: %v\n\n", result.TotalDuration)
	}
	if len(results) == 0 {
		return nil
	}

	// Calculate averages
	var avgHits, avgPeak, avgDuration float64
	for _, r := range results {
		avgHits += percent(r.Pool.PoolHits, r.Pool.TotalAllocations)
		avgPeak += r.PeakUsage
		avgDuration += r.TotalDuration.Seconds()
	}
	n := float64(len(results))
	p.Fprintf(w, "Average results:\n")
	p.Fprintf(w, "  Average pool hits: %.2f%%\n", avgHits/n)
	p.Fprintf(w, "  Average peak usage: %.2f%%\n", avgPeak/n)
	p.Fprintf(w, "  Average duration: %.3f seconds\n", avgDuration/n)
	return nil
}

func percent(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
