// Package pipeline converts a property-graph text stream into node and edge
// tables using a pool of workers.
//
// A job runs in two phases separated by barriers. During discovery the
// coordinator deals batches of lines to the workers round-robin and each
// worker builds local property schemas. Once every worker has reported, the
// coordinator merges the schemas in worker order, writes both header rows and
// sends every worker a copy of the global schema. During the dump phase the
// workers replay their shards and stream formatted rows back in chunks, which
// the coordinator appends to the sinks as they arrive. Row order in the
// sinks is therefore unspecified.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/g2gml/pg/neo"
	"github.com/g2gml/pg/schema"
	"github.com/g2gml/pg/staging"
)

// Defaults applied to zero Options fields
const (
	DefaultBatchLines = 1000
	DefaultChunkBytes = 1_000_000
)

// Options configures a Coordinator
type Options struct {
	// Workers is the size of the pool; zero or less means one per CPU
	Workers int
	// BatchLines is the number of input lines dealt to a worker at a time
	BatchLines int
	// ChunkBytes is the buffered row size at which a worker flushes to the coordinator
	ChunkBytes int
	// Staging selects where workers keep parsed records between the phases.
	// staging.None keeps the raw lines in memory and parses them twice.
	Staging    staging.Kind
	StagingDir string
	Sniffer    schema.Sniffer
	Logger     *logrus.Logger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.BatchLines <= 0 {
		o.BatchLines = DefaultBatchLines
	}
	if o.ChunkBytes <= 0 {
		o.ChunkBytes = DefaultChunkBytes
	}
	if o.Staging == "" {
		o.Staging = staging.File
	}
	if o.Sniffer == nil {
		o.Sniffer = schema.Sniff
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

// Coordinator drives conversion jobs. A Coordinator runs one job at a time.
type Coordinator struct {
	opts  Options
	state State
}

// New creates a coordinator
func New(opts Options) *Coordinator {
	return &Coordinator{opts: opts.withDefaults()}
}

// State returns the state the last job reached
func (c *Coordinator) State() State {
	return c.state
}

// job holds the per-run state of the coordinator
type job struct {
	c       *Coordinator
	id      string
	log     *logrus.Entry
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	workers []*worker
	events  chan event

	nodes *bufio.Writer
	edges *bufio.Writer

	reports   []*schemaReport
	reported  int
	dumped    []bool
	numDumped int
	report    Report
}

// Run converts input into the node and edge sinks. Nothing is written to the
// sinks unless every line parses. On failure the sinks may hold a partial
// result and should be discarded.
func (c *Coordinator) Run(ctx context.Context, input io.Reader, nodes, edges io.Writer) (*Report, error) {
	start := time.Now()
	id := uuid.NewString()
	log := c.opts.Logger.WithFields(logrus.Fields{
		"component": "Coordinator",
		"job":       id,
	})

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, gctx := errgroup.WithContext(jobCtx)

	n := c.opts.Workers
	j := &job{
		c:       c,
		id:      id,
		log:     log,
		ctx:     gctx,
		cancel:  cancel,
		group:   group,
		workers: make([]*worker, n),
		events:  make(chan event),
		nodes:   bufio.NewWriterSize(nodes, 64<<10),
		edges:   bufio.NewWriterSize(edges, 64<<10),
		reports: make([]*schemaReport, n),
		dumped:  make([]bool, n),
		report: Report{
			JobID:      id,
			Workers:    n,
			NodeLabels: make(map[string]int),
			EdgeLabels: make(map[string]int),
		},
	}
	c.state = Idle
	log.WithFields(logrus.Fields{
		"workers":     n,
		"batch_lines": c.opts.BatchLines,
		"staging":     c.opts.Staging,
	}).Info("Starting conversion")

	for i := range j.workers {
		w := newWorker(i, &c.opts, log)
		j.workers[i] = w
		group.Go(func() error { return w.run(gctx) })
		group.Go(func() error { return j.forward(w) })
	}

	if err := j.execute(input); err != nil {
		return nil, j.fail(err)
	}

	j.report.Elapsed = time.Since(start)
	log.WithFields(logrus.Fields{
		"lines":   j.report.Lines,
		"nodes":   j.report.Nodes,
		"edges":   j.report.Edges,
		"elapsed": j.report.Elapsed,
	}).Info("Conversion finished")
	return &j.report, nil
}

// execute walks the job through its states up to Finalized
func (j *job) execute(input io.Reader) error {
	j.transition(Sharding)
	if err := j.shard(input); err != nil {
		return err
	}

	j.transition(AwaitingSchemas)
	if err := j.await(func() bool { return j.reported == len(j.workers) }); err != nil {
		return err
	}

	j.transition(Merging)
	if err := j.merge(); err != nil {
		return err
	}

	j.transition(Broadcasting)
	for i := range j.workers {
		msg := dumpMsg{nodes: j.report.NodeSchema.Clone(), edges: j.report.EdgeSchema.Clone()}
		if err := j.send(i, msg); err != nil {
			return err
		}
	}

	j.transition(AwaitingDumps)
	if err := j.await(func() bool { return j.numDumped == len(j.workers) }); err != nil {
		return err
	}
	if err := j.nodes.Flush(); err != nil {
		return resourceError("failed to write node table: %v", err)
	}
	if err := j.edges.Flush(); err != nil {
		return resourceError("failed to write edge table: %v", err)
	}

	for i := range j.workers {
		if err := j.send(i, exitMsg{}); err != nil {
			return err
		}
	}
	if err := j.group.Wait(); err != nil {
		return err
	}
	j.transition(Finalized)
	return nil
}

func (j *job) transition(s State) {
	j.log.WithFields(logrus.Fields{
		"from": j.c.state,
		"to":   s,
	}).Debug("State transition")
	j.c.state = s
}

// shard deals the input to the workers in batches, round-robin
func (j *job) shard(input io.Reader) error {
	size := j.c.opts.BatchLines
	r := bufio.NewReaderSize(input, 64<<10)
	batch := linesMsg{first: 1, lines: make([]string, 0, size)}
	next := 0
	lineNo := 0

	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			lineNo++
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			batch.lines = append(batch.lines, line)
			if len(batch.lines) == size {
				if err := j.send(next, batch); err != nil {
					return err
				}
				next = (next + 1) % len(j.workers)
				batch = linesMsg{first: lineNo + 1, lines: make([]string, 0, size)}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return resourceError("failed to read input at line %d: %v", lineNo+1, err)
		}
	}
	if len(batch.lines) > 0 {
		if err := j.send(next, batch); err != nil {
			return err
		}
	}
	j.report.Lines = lineNo

	for i := range j.workers {
		if err := j.send(i, endOfShardMsg{}); err != nil {
			return err
		}
	}
	j.log.WithField("lines", lineNo).Debug("Input dealt to workers")
	return nil
}

// merge folds the local schemas in worker order and writes the headers
func (j *job) merge() error {
	nodeSchemas := make([]*schema.Schema, len(j.reports))
	edgeSchemas := make([]*schema.Schema, len(j.reports))
	for i, r := range j.reports {
		nodeSchemas[i] = r.nodes
		edgeSchemas[i] = r.edges
		j.report.Nodes += r.nodeCount
		j.report.Edges += r.edgeCount
		addCounts(j.report.NodeLabels, r.nodeLabels)
		addCounts(j.report.EdgeLabels, r.edgeLabels)
	}
	j.report.NodeSchema = schema.Merge(nodeSchemas...)
	j.report.EdgeSchema = schema.Merge(edgeSchemas...)
	j.log.WithFields(logrus.Fields{
		"node_columns": j.report.NodeSchema.Len(),
		"edge_columns": j.report.EdgeSchema.Len(),
	}).Info("Schema merged")

	if _, err := j.nodes.Write(neo.NodeHeader(j.report.NodeSchema)); err != nil {
		return resourceError("failed to write node header: %v", err)
	}
	if _, err := j.edges.Write(neo.EdgeHeader(j.report.EdgeSchema)); err != nil {
		return resourceError("failed to write edge header: %v", err)
	}
	return nil
}

// send delivers a request to worker i, handling any events that arrive
// while the worker's inbox is full
func (j *job) send(i int, msg request) error {
	for {
		select {
		case j.workers[i].inbox <- msg:
			return nil
		case ev := <-j.events:
			if err := j.handle(ev); err != nil {
				return err
			}
		case <-j.ctx.Done():
			return j.ctx.Err()
		}
	}
}

// await handles events until done reports true
func (j *job) await(done func() bool) error {
	for !done() {
		select {
		case ev := <-j.events:
			if err := j.handle(ev); err != nil {
				return err
			}
		case <-j.ctx.Done():
			return j.ctx.Err()
		}
	}
	return nil
}

// handle applies one worker event to the job
func (j *job) handle(ev event) error {
	state := j.c.state
	switch m := ev.msg.(type) {
	case failed:
		return m.err
	case schemaReport:
		if state != Sharding && state != AwaitingSchemas || j.reports[ev.worker] != nil {
			return &protocolError{worker: ev.worker, msg: m, state: state}
		}
		j.reports[ev.worker] = &m
		j.reported++
	case chunk:
		if state != Broadcasting && state != AwaitingDumps || j.dumped[ev.worker] {
			return &protocolError{worker: ev.worker, msg: m, state: state}
		}
		sink, name := j.nodes, "node"
		if m.table == edgeTable {
			sink, name = j.edges, "edge"
		}
		if _, err := sink.Write(m.data); err != nil {
			return resourceError("failed to write %s table: %v", name, err)
		}
	case dumpDone:
		if state != Broadcasting && state != AwaitingDumps || j.dumped[ev.worker] {
			return &protocolError{worker: ev.worker, msg: m, state: state}
		}
		j.dumped[ev.worker] = true
		j.numDumped++
	default:
		return &protocolError{worker: ev.worker, msg: m, state: state}
	}
	return nil
}

// forward moves a worker's responses onto the shared event channel until the
// worker closes its outbox
func (j *job) forward(w *worker) error {
	for msg := range w.outbox {
		select {
		case j.events <- event{worker: w.id, msg: msg}:
		case <-j.ctx.Done():
			return nil
		}
	}
	return nil
}

// fail cancels the job, waits for every worker and returns the root cause
func (j *job) fail(err error) error {
	j.transition(Failed)
	j.cancel()
	if werr := j.group.Wait(); werr != nil && errors.Is(err, context.Canceled) {
		err = werr
	}
	j.log.WithError(err).Error("Conversion failed")
	return err
}
