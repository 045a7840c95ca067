package pipeline

import "github.com/g2gml/pg/schema"

// request is a message from the coordinator to one worker
type request interface {
	isRequest()
}

// linesMsg carries a batch of raw input lines; first is the 1-based input
// line number of lines[0]
type linesMsg struct {
	first int
	lines []string
}

// endOfShardMsg tells a worker no more lines will come
type endOfShardMsg struct{}

// dumpMsg carries the worker's private copy of the global schema
type dumpMsg struct {
	nodes *schema.Schema
	edges *schema.Schema
}

type exitMsg struct{}

func (linesMsg) isRequest()      {}
func (endOfShardMsg) isRequest() {}
func (dumpMsg) isRequest()       {}
func (exitMsg) isRequest()       {}

// response is a message from one worker to the coordinator
type response interface {
	kind() string
}

// schemaReport closes a worker's discovery phase
type schemaReport struct {
	nodes      *schema.Schema
	edges      *schema.Schema
	nodeCount  int
	edgeCount  int
	nodeLabels map[string]int
	edgeLabels map[string]int
}

type table int

const (
	nodeTable table = iota
	edgeTable
)

// chunk is a run of formatted rows destined for one table
type chunk struct {
	table table
	data  []byte
}

type dumpDone struct{}

type failed struct {
	err error
}

func (schemaReport) kind() string { return "schema report" }
func (chunk) kind() string        { return "chunk" }
func (dumpDone) kind() string     { return "dump done" }
func (failed) kind() string       { return "failure" }

// event is a response tagged with the index of the worker that sent it
type event struct {
	worker int
	msg    response
}
