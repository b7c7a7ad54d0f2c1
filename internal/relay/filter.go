package relay

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/marcusmattus/gami-protocol-mcp/internal/envelope"
)

// Filter wraps a compiled CEL program evaluated against each envelope before
// it is queued for a subscriber. A nil *Filter passes everything.
type Filter struct {
	prog cel.Program
}

// NewFilter compiles expr into a Filter. An empty or blank expression returns
// (nil, nil), meaning no filtering.
func NewFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("event", cel.StringType),
		cel.Variable("origin", cel.StringType),
		cel.Variable("sequence", cel.IntType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		// Payload exposed as parsed JSON for field filtering
		cel.Variable("json", cel.DynType),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return nil, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return &Filter{prog: prog}, nil
}

// Eval evaluates the expression against e. Evaluation errors and non-boolean
// results count as a miss.
func (f *Filter) Eval(e envelope.Envelope) bool {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return false
	}
	var jsonObj any
	_ = json.Unmarshal(payload, &jsonObj)
	out, _, err := f.prog.Eval(map[string]any{
		"event":    e.Event,
		"origin":   e.Origin,
		"sequence": int64(e.Sequence),
		"ts_ms":    e.Timestamp,
		"size":     int64(len(payload)),
		"text":     string(payload),
		"json":     jsonObj,
		"now_ms":   time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
