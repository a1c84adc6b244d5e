package dag

import "fmt"

// httpInputName is the canonical virtual input name produced by the
// external HTTP ingress in request/response mode; it is the one input
// the validator permits to have no producer.
const httpInputName = "http_input"

// Validate runs every static check against a parsed graph and returns
// every violation found, not just the first. A non-empty return means
// the graph must not be instantiated.
//
// httpMode must reflect whether the graph has already been rewritten for
// request/response mode (see RewriteForHTTP) — rewriting happens before
// validation, so by the time Validate runs, httpMode changes two checks:
// http_input may lack a producer, and the graph must declare zero
// sources instead of exactly one.
func Validate(cfg GraphConfig, httpMode bool) []error {
	var errs []error

	errs = append(errs, checkUniqueNames(cfg)...)
	errs = append(errs, checkProducerCoverage(cfg, httpMode)...)
	errs = append(errs, checkAcyclic(cfg)...)
	errs = append(errs, checkShape(cfg, httpMode)...)
	errs = append(errs, checkPoolerConsistency(cfg)...)
	errs = append(errs, checkJoinOutputMode(cfg)...)

	return errs
}

func checkUniqueNames(cfg GraphConfig) []error {
	seen := make(map[string]bool)
	var errs []error
	for _, s := range cfg.Steps {
		if seen[s.Name] {
			errs = append(errs, &ValidationError{Rule: "unique_names", Detail: fmt.Sprintf("duplicate step name %q", s.Name)})
			continue
		}
		seen[s.Name] = true
	}
	return errs
}

// producedOutputs returns the set of every output name declared by any
// step in cfg.
func producedOutputs(cfg GraphConfig) map[string]bool {
	produced := make(map[string]bool)
	for _, s := range cfg.Steps {
		for _, out := range s.Outputs {
			produced[out] = true
		}
	}
	return produced
}

func checkProducerCoverage(cfg GraphConfig, httpMode bool) []error {
	produced := producedOutputs(cfg)
	var errs []error
	var unproduced []string

	for _, s := range cfg.Steps {
		for _, in := range s.Inputs {
			if !produced[in] {
				unproduced = append(unproduced, in)
			}
		}
	}

	for _, in := range unproduced {
		if httpMode && in == httpInputName {
			continue
		}
		errs = append(errs, &ValidationError{Rule: "producer_coverage", Detail: fmt.Sprintf("input %q has no producer", in)})
	}
	return errs
}

// checkAcyclic builds the output->step adjacency implied by the
// declarations and runs DFS with a recursion stack to detect cycles.
func checkAcyclic(cfg GraphConfig) []error {
	// edges: step name -> names of steps it feeds (via shared output/input names)
	producerOf := make(map[string]string) // output name -> producing step name
	for _, s := range cfg.Steps {
		for _, out := range s.Outputs {
			producerOf[out] = s.Name
		}
	}

	adj := make(map[string][]string)
	for _, s := range cfg.Steps {
		for _, in := range s.Inputs {
			if producer, ok := producerOf[in]; ok {
				adj[producer] = append(adj[producer], s.Name)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var cyclic bool

	var visit func(name string)
	visit = func(name string) {
		if cyclic {
			return
		}
		color[name] = gray
		for _, next := range adj[name] {
			switch color[next] {
			case gray:
				cyclic = true
				return
			case white:
				visit(next)
			}
		}
		color[name] = black
	}

	for _, s := range cfg.Steps {
		if color[s.Name] == white {
			visit(s.Name)
		}
		if cyclic {
			break
		}
	}

	if cyclic {
		return []error{&ValidationError{Rule: "acyclic", Detail: "graph contains a cycle"}}
	}
	return nil
}

func checkShape(cfg GraphConfig, httpMode bool) []error {
	var errs []error

	var sinks, sources int
	for _, s := range cfg.Steps {
		if len(s.Outputs) == 0 {
			sinks++
		}
		if len(s.Inputs) == 0 {
			sources++
		}
	}

	if sinks != 1 {
		errs = append(errs, &ValidationError{Rule: "shape", Detail: fmt.Sprintf("expected exactly one sink, found %d", sinks)})
	}

	if !httpMode && sources != 1 {
		errs = append(errs, &ValidationError{Rule: "shape", Detail: fmt.Sprintf("expected exactly one source, found %d", sources)})
	}
	if httpMode && sources != 0 {
		errs = append(errs, &ValidationError{Rule: "shape", Detail: "request/response mode expects no declared sources (http_input is virtual)"})
	}

	return errs
}

func checkPoolerConsistency(cfg GraphConfig) []error {
	var hasBatchCapableSource bool
	var hasBatchIDPooler bool

	for _, s := range cfg.Steps {
		switch s.Type {
		case "DataGenerator", "CsvReader":
			if b, _ := s.Params["batch_mode"].(bool); b {
				hasBatchCapableSource = true
			}
		case "BatchPooler":
			mode, _ := s.Params["mode"].(string)
			if mode == "BatchId" {
				hasBatchIDPooler = true
			}
		}
	}

	if hasBatchIDPooler && !hasBatchCapableSource {
		return []error{&ValidationError{Rule: "pooler_consistency", Detail: "a BatchPooler in BatchId mode requires at least one batch-capable source"}}
	}
	return nil
}

func checkJoinOutputMode(cfg GraphConfig) []error {
	var errs []error
	for _, s := range cfg.Steps {
		if s.Type != "StepJoinPoint" {
			continue
		}
		if mode, _ := s.Params["output_mode"].(string); mode == "Nest" {
			errs = append(errs, &ValidationError{Rule: "join_output_mode", Detail: fmt.Sprintf("step %q: %v", s.Name, ErrNestUnsupported)})
		}
	}
	return errs
}
