package pipeline

import (
	"context"
	"fmt"
	"maps"

	"github.com/sirupsen/logrus"

	"github.com/g2gml/pg/neo"
	"github.com/g2gml/pg/pg"
	"github.com/g2gml/pg/schema"
	"github.com/g2gml/pg/staging"
)

// worker owns one shard of the input. It shares nothing with other workers
// and talks only to the coordinator through its inbox and outbox.
type worker struct {
	id     int
	opts   *Options
	log    *logrus.Entry
	inbox  chan request
	outbox chan response

	nodes      *schema.Schema
	edges      *schema.Schema
	nodeCount  int
	edgeCount  int
	nodeLabels map[string]int
	edgeLabels map[string]int

	// exactly one of store and kept holds the shard for the dump phase
	store staging.Store
	kept  []linesMsg

	nodeBuf []byte
	edgeBuf []byte
}

func newWorker(id int, opts *Options, log *logrus.Entry) *worker {
	return &worker{
		id:         id,
		opts:       opts,
		log:        log.WithFields(logrus.Fields{"component": "Worker", "worker": id}),
		inbox:      make(chan request, 2),
		outbox:     make(chan response, 2),
		nodes:      schema.New(),
		edges:      schema.New(),
		nodeLabels: make(map[string]int),
		edgeLabels: make(map[string]int),
	}
}

// run is the worker's message loop. Failures are reported to the coordinator
// before run returns them.
func (w *worker) run(ctx context.Context) (err error) {
	defer close(w.outbox)
	defer w.release()
	defer func() {
		if err != nil && ctx.Err() == nil {
			w.log.WithError(err).Error("Worker failed")
			w.send(ctx, failed{err: err})
		}
	}()

	w.log.Debug("Worker started")
	if w.opts.Staging != staging.None {
		if w.store, err = staging.Open(w.opts.Staging, w.opts.StagingDir, w.id, w.log); err != nil {
			return resourceError("worker %d: %v", w.id, err)
		}
	}

	for {
		var req request
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req = <-w.inbox:
		}

		switch m := req.(type) {
		case linesMsg:
			if err := w.ingest(m); err != nil {
				return err
			}
		case endOfShardMsg:
			if err := w.reportSchema(ctx); err != nil {
				return err
			}
		case dumpMsg:
			if err := w.dump(ctx, m.nodes, m.edges); err != nil {
				return err
			}
		case exitMsg:
			w.log.Debug("Worker finished")
			return nil
		default:
			return fmt.Errorf("worker %d: unexpected request %T", w.id, req)
		}
	}
}

// ingest parses a batch, records its property types and keeps the records
// for the dump phase
func (w *worker) ingest(m linesMsg) error {
	for i, line := range m.lines {
		rec, err := pg.Parse(line)
		if err != nil {
			return &LineError{Line: m.first + i, Err: err}
		}
		if rec.Empty() {
			continue
		}
		w.observe(rec, m.first+i)
		if w.store != nil {
			if err := w.store.Append(rec); err != nil {
				return resourceError("worker %d: failed to stage line %d: %v", w.id, m.first+i, err)
			}
		}
	}
	if w.store == nil {
		w.kept = append(w.kept, m)
	}
	return nil
}

func (w *worker) observe(rec pg.Record, line int) {
	var conflicts []schema.Conflict
	if n := rec.Node; n != nil {
		w.nodeCount++
		for _, l := range n.Labels {
			w.nodeLabels[l]++
		}
		conflicts = schema.Observe(w.nodes, &n.Properties, w.opts.Sniffer)
	} else {
		e := rec.Edge
		w.edgeCount++
		for _, l := range e.Labels {
			w.edgeLabels[l]++
		}
		conflicts = schema.Observe(w.edges, &e.Properties, w.opts.Sniffer)
	}
	for _, c := range conflicts {
		w.log.WithFields(logrus.Fields{
			"line":  line,
			"key":   c.Key,
			"first": c.First,
			"other": c.Other,
		}).Warn("List values have different types; keeping the first")
	}
}

// reportSchema sends copies of the local schemas, ending discovery
func (w *worker) reportSchema(ctx context.Context) error {
	w.log.WithFields(logrus.Fields{
		"nodes": w.nodeCount,
		"edges": w.edgeCount,
	}).Debug("Shard exhausted, reporting schema")
	return w.send(ctx, schemaReport{
		nodes:      w.nodes.Clone(),
		edges:      w.edges.Clone(),
		nodeCount:  w.nodeCount,
		edgeCount:  w.edgeCount,
		nodeLabels: maps.Clone(w.nodeLabels),
		edgeLabels: maps.Clone(w.edgeLabels),
	})
}

// dump replays the shard and streams its rows to the coordinator in chunks
func (w *worker) dump(ctx context.Context, nodes, edges *schema.Schema) error {
	emit := func(rec pg.Record) error {
		if rec.Node != nil {
			w.nodeBuf = neo.AppendNodeRow(w.nodeBuf, rec.Node, nodes)
			if len(w.nodeBuf) >= w.opts.ChunkBytes {
				return w.flush(ctx, nodeTable)
			}
			return nil
		}
		w.edgeBuf = neo.AppendEdgeRow(w.edgeBuf, rec.Edge, edges)
		if len(w.edgeBuf) >= w.opts.ChunkBytes {
			return w.flush(ctx, edgeTable)
		}
		return nil
	}

	if w.store != nil {
		w.log.WithField("records", w.store.Len()).Debug("Replaying staged records")
		if err := w.store.Replay(emit); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return resourceError("worker %d: failed to replay staged records: %v", w.id, err)
		}
	} else {
		for _, m := range w.kept {
			for i, line := range m.lines {
				rec, err := pg.Parse(line)
				if err != nil {
					return &LineError{Line: m.first + i, Err: err}
				}
				if rec.Empty() {
					continue
				}
				if err := emit(rec); err != nil {
					return err
				}
			}
		}
	}

	if err := w.flush(ctx, nodeTable); err != nil {
		return err
	}
	if err := w.flush(ctx, edgeTable); err != nil {
		return err
	}
	return w.send(ctx, dumpDone{})
}

// flush hands the buffered rows of one table to the coordinator
func (w *worker) flush(ctx context.Context, t table) error {
	buf := &w.nodeBuf
	if t == edgeTable {
		buf = &w.edgeBuf
	}
	if len(*buf) == 0 {
		return nil
	}
	data := *buf
	*buf = nil
	return w.send(ctx, chunk{table: t, data: data})
}

func (w *worker) send(ctx context.Context, msg response) error {
	select {
	case w.outbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release closes the staging store, deleting its backing data
func (w *worker) release() {
	if w.store == nil {
		return
	}
	if err := w.store.Close(); err != nil {
		w.log.WithError(err).Warn("Failed to release staging store")
	}
}
