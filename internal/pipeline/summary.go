package pipeline

// RunSummary aggregates per-step verdicts for one run. Succeeded never
// exceeds Total.
type RunSummary struct {
	Total     int
	Succeeded int
	Results   []StepResult
}

// Add appends a step result and updates the counters.
func (s *RunSummary) Add(r StepResult) {
	s.Total++
	if r.Succeeded {
		s.Succeeded++
	}
	s.Results = append(s.Results, r)
}

// Ratio returns the success ratio in [0,1]. An empty run counts as 0.
func (s RunSummary) Ratio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total)
}
