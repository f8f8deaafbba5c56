package job

// NodeResult is the outcome of one node's classify+abundance sequence.
// It is owned by the producing node until serialized; the coordinator owns
// the deserialized copy.
type NodeResult struct {
	Hostname       string
	Success        bool
	ResultFile     string
	AbundanceFile  string
	ElapsedSeconds float64
	ErrorMessage   string
}
