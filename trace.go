package resolver

import "encoding/json"

// Stage names the resolution step that produced a trace entry.
type Stage string

const (
	StageScopedCache Stage = "scoped-cache"
	StageDirect      Stage = "direct"
	StageMapping     Stage = "mapping"
	StageCache       Stage = "cache"
	StageToken       Stage = "relative-identifier"
	StageHook        Stage = "hook"
	StageSearchPath  Stage = "search-path"
)

// Trace records how an identifier was resolved.
type Trace struct {
	Identifier string `json:"identifier"`
	Resolved   string `json:"resolved"`
	Steps      []Step `json:"steps"`
}

// Step is one probe or lookup made while resolving.
type Step struct {
	Stage     Stage  `json:"stage"`
	Context   string `json:"context,omitempty"`
	Candidate string `json:"candidate"`
	Location  string `json:"location,omitempty"`
	Found     bool   `json:"found"`
}

func (t *Trace) add(step Step) {
	if t == nil {
		return
	}
	t.Steps = append(t.Steps, step)
}

// Stages lists the stage of every step in order.
func (t Trace) Stages() []Stage {
	out := make([]Stage, 0, len(t.Steps))
	for _, step := range t.Steps {
		out = append(out, step.Stage)
	}
	return out
}

// ToJSON serialises the trace for logging or transport.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON parses a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
