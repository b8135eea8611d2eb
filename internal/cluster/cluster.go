package cluster

import "fmt"

// Method names a clustering algorithm.
type Method string

const (
	MethodClique       Method = "clique"
	MethodHierarchical Method = "hierarchical"
)

// Options selects and parameterizes the clustering algorithm.
type Options struct {
	Method    Method
	Score     CliqueScore
	Ratio     float64
	Linkage   Linkage
	Threshold float64
}

// DefaultOptions returns max clique clustering ranked by average discrepancy.
func DefaultOptions() Options {
	return Options{
		Method:    MethodClique,
		Score:     ScoreAverage,
		Ratio:     DefaultRatio,
		Linkage:   LinkageAverage,
		Threshold: DefaultThreshold,
	}
}

// Validate checks the options are usable.
func (o Options) Validate() error {
	switch o.Method {
	case MethodClique:
		if o.Score != ScoreAverage && o.Score != ScoreMax {
			return fmt.Errorf("clique score must be %q or %q (got %q)", ScoreAverage, ScoreMax, o.Score)
		}
		if o.Ratio <= 0 || o.Ratio > 1 {
			return fmt.Errorf("clique ratio must be in (0, 1] (got %g)", o.Ratio)
		}
	case MethodHierarchical:
		if o.Linkage != LinkageAverage && o.Linkage != LinkageComplete {
			return fmt.Errorf("linkage must be %q or %q (got %q)", LinkageAverage, LinkageComplete, o.Linkage)
		}
		if o.Threshold <= 0 {
			return fmt.Errorf("linkage threshold must be positive (got %g)", o.Threshold)
		}
	default:
		return fmt.Errorf("unknown cluster method %q", o.Method)
	}
	return nil
}

// Cluster partitions the loops of m with the configured algorithm.
func Cluster(m *Matrices, opts Options) ([][]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Method == MethodHierarchical {
		return Hierarchical(m, opts.Linkage, opts.Threshold), nil
	}
	return MaxCliques(m, opts.Ratio, opts.Score), nil
}
