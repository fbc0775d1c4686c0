package schemas

// ScorerSpec describes a single quality/safety scorer attached to a deployed
// agent's experiment. SampleRate is the fraction of live traffic the scorer
// assesses. BuiltIn distinguishes platform-provided scorers from custom ones.
type ScorerSpec struct {
	Name       string  `yaml:"name" validate:"required"`
	SampleRate float64 `default:"1.0" yaml:"sample_rate" validate:"gte=0,lte=1"`
	BuiltIn    bool    `yaml:"-"`
}

// ScorerSpecs is the set of scorers registered against an experiment, keyed
// by scorer name so that built-in and custom sets can be merged without
// duplicates.
type ScorerSpecs map[string]ScorerSpec

// Names returns the scorer names of the set, in no particular order.
func (ss ScorerSpecs) Names() []string {
	names := make([]string, 0, len(ss))
	for name := range ss {
		names = append(names, name)
	}

	return names
}

// NewScorerSpecs builds a keyed set from a list of specs, marking each one
// built-in or custom as instructed.
func NewScorerSpecs(specs []ScorerSpec, builtIn bool) ScorerSpecs {
	out := make(ScorerSpecs, len(specs))
	for _, s := range specs {
		s.BuiltIn = builtIn
		out[s.Name] = s
	}

	return out
}
