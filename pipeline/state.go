package pipeline

// State is a step of the coordinator's job
type State int

const (
	Idle State = iota
	Sharding
	AwaitingSchemas
	Merging
	Broadcasting
	AwaitingDumps
	Finalized
	Failed
)

var stateNames = [...]string{
	Idle:            "Idle",
	Sharding:        "Sharding",
	AwaitingSchemas: "AwaitingSchemas",
	Merging:         "Merging",
	Broadcasting:    "Broadcasting",
	AwaitingDumps:   "AwaitingDumps",
	Finalized:       "Finalized",
	Failed:          "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}
