package dag

import "fmt"

// BuildStep instantiates the concrete Step implementation named by
// decl.Type. It is the single dispatch point the coordinator uses to
// turn a validated graph's declarations into running steps.
func BuildStep(decl StepDecl, deps StepDeps) (Step, error) {
	switch decl.Type {
	case "DataGenerator":
		return NewDataGenerator(decl, deps.IDs)
	case "CsvReader":
		return NewCsvReader(decl, deps.IDs)
	case "Normalize":
		return NewNormalize(decl)
	case "Encode":
		return NewEncode(decl)
	case "MLModel":
		return NewMLModel(decl)
	case "StepJoinPoint":
		return NewStepJoinPoint(decl, deps.Metrics)
	case "BatchPooler":
		return NewBatchPooler(decl, deps.Metrics)
	case "Printer":
		return NewPrinter(decl)
	case "ResponseSink":
		return NewResponseSink(decl, deps.Registry)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStepType, decl.Type)
	}
}
