package dispatch

// State is the stage of the current query.
type State int32

const (
	Idle State = iota
	Dispatching
	AwaitingContent
	AwaitingToken
	InFlight
	Streaming
	Failed
)

var stateNames = [...]string{"idle", "dispatching", "awaiting_content", "awaiting_token", "in_flight", "streaming", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
