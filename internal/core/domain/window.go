package domain

import "fmt"

// TimeWindow is the inclusive wall-clock interval, in Unix seconds, during
// which events earn credit.
type TimeWindow struct {
	Start uint64 `yaml:"start"`
	End   uint64 `yaml:"end"`
}

// Validate checks Start <= End.
func (w TimeWindow) Validate() error {
	if w.Start > w.End {
		return fmt.Errorf("window start %d is after end %d", w.Start, w.End)
	}
	return nil
}
