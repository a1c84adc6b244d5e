package dag

import (
	"encoding/json"
	"fmt"
	"os"
)

// knownStepTypes mirrors the switch in BuildStep. LoadConfig checks
// declared types against it so an unrecognized type is reported as a
// configuration error rather than silently producing a step with no
// producer for its declared outputs later in validation.
var knownStepTypes = map[string]bool{
	"DataGenerator":  true,
	"CsvReader":      true,
	"Normalize":      true,
	"Encode":         true,
	"MLModel":        true,
	"StepJoinPoint":  true,
	"BatchPooler":    true,
	"Printer":        true,
	"ResponseSink":   true,
}

// LoadConfig reads and parses a graph configuration file. When httpMode
// is true it rewrites the parsed graph for request/response operation
// before returning it — see RewriteForHTTP. The result has not yet been
// validated; callers must still run Validate.
func LoadConfig(path string, httpMode bool) (GraphConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GraphConfig{}, fmt.Errorf("read config %q: %w", path, err)
	}

	var cfg GraphConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return GraphConfig{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	for _, decl := range cfg.Steps {
		if !knownStepTypes[decl.Type] {
			return GraphConfig{}, &ValidationError{Rule: "known_type", Detail: fmt.Sprintf("step %q declares unknown type %q", decl.Name, decl.Type)}
		}
	}

	if httpMode {
		cfg = RewriteForHTTP(cfg)
	}

	return cfg, nil
}

// RewriteForHTTP transforms a streaming-mode graph into a
// request/response graph: the single source step is removed, every
// step that consumed its output is rewired to consume http_input
// instead, the single sink is replaced with a ResponseSink, and any
// BatchPooler immediately upstream of that sink has its window forced
// to 1 so a single inbound request is not held waiting for siblings
// that will never arrive. It is a pure function: cfg is not mutated in
// place, a new GraphConfig is returned.
//
// This runs before Validate; Validate's httpMode producer-coverage
// exception only holds because http_input is never declared as a
// step's output here.
func RewriteForHTTP(cfg GraphConfig) GraphConfig {
	var sourceOutput, sinkInput string
	sourceIdx := -1
	sinkIdx := -1

	for i, decl := range cfg.Steps {
		if len(decl.Inputs) == 0 && sourceIdx == -1 {
			sourceIdx = i
			if len(decl.Outputs) > 0 {
				sourceOutput = decl.Outputs[0]
			}
		}
		if len(decl.Outputs) == 0 && sinkIdx == -1 {
			sinkIdx = i
		}
	}
	if sinkIdx != -1 && len(cfg.Steps[sinkIdx].Inputs) > 0 {
		sinkInput = cfg.Steps[sinkIdx].Inputs[0]
	}

	out := make([]StepDecl, 0, len(cfg.Steps))
	for i, decl := range cfg.Steps {
		if i == sourceIdx {
			continue
		}

		if i == sinkIdx {
			out = append(out, StepDecl{Name: decl.Name, Type: "ResponseSink", Inputs: decl.Inputs})
			continue
		}

		rewired := decl
		if sourceOutput != "" {
			rewired.Inputs = rewireInputs(decl.Inputs, sourceOutput, httpInputName)
		}

		if rewired.Type == "BatchPooler" && sinkInput != "" && containsString(rewired.Outputs, sinkInput) {
			params := make(map[string]interface{}, len(rewired.Params)+1)
			for k, v := range rewired.Params {
				params[k] = v
			}
			params["window_size"] = float64(1)
			rewired.Params = params
		}

		out = append(out, rewired)
	}

	return GraphConfig{Steps: out}
}

func rewireInputs(inputs []string, from, to string) []string {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		if in == from {
			out[i] = to
		} else {
			out[i] = in
		}
	}
	return out
}

func containsString(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
