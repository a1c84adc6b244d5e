package dag

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// DOT renders a graph configuration's step-level dependency structure
// as a Graphviz DOT digraph: one node per step, one edge per
// output-name match between a producer and a consumer.
func DOT(cfg GraphConfig) string {
	var b strings.Builder
	b.WriteString("digraph dagflow {\n")
	b.WriteString("  rankdir=LR;\n")

	for _, decl := range cfg.Steps {
		b.WriteString(fmt.Sprintf("  %q [label=%q];\n", decl.Name, fmt.Sprintf("%s\\n(%s)", decl.Name, decl.Type)))
	}

	for _, producer := range cfg.Steps {
		for _, out := range producer.Outputs {
			for _, consumer := range cfg.Steps {
				if consumer.Name == producer.Name {
					continue
				}
				if containsString(consumer.Inputs, out) {
					b.WriteString(fmt.Sprintf("  %q -> %q [label=%q];\n", producer.Name, consumer.Name, out))
				}
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// ExportGraph writes cfg's DOT representation to outputPath+".dot" and,
// if the "dot" binary is available, renders it to outputPath+".png" via
// `dot -Tpng`. A missing dot binary is not an error: the DOT file is
// still written and a warning is logged, since the DOT source alone is
// useful without Graphviz installed.
func ExportGraph(cfg GraphConfig, outputPath string) error {
	dotPath := outputPath + ".dot"
	if err := os.WriteFile(dotPath, []byte(DOT(cfg)), 0o644); err != nil {
		return fmt.Errorf("write dot file: %w", err)
	}

	if _, err := exec.LookPath("dot"); err != nil {
		log.Warn().Str("path", dotPath).Msg("graphviz dot binary not found, PNG export skipped")
		return nil
	}

	pngPath := outputPath + ".png"
	cmd := exec.Command("dot", "-Tpng", dotPath, "-o", pngPath) // #nosec G204 -- fixed arg list, dotPath/pngPath are derived from a trusted CLI flag
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("run dot: %w: %s", err, string(out))
	}

	log.Info().Str("path", pngPath).Msg("graph exported")
	return nil
}
