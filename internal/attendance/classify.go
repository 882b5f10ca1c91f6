package attendance

import "fmt"

// Thresholds are inclusive upper bounds in minutes after the scheduled start.
type Thresholds struct {
	Present float64
	Late    float64
}

var DefaultThresholds = Thresholds{Present: 10, Late: 40}

func (t Thresholds) Validate() error {
	if t.Present < 0 {
		return fmt.Errorf("present threshold must not be negative, got %v", t.Present)
	}
	if t.Late < t.Present {
		return fmt.Errorf("late threshold %v is below present threshold %v", t.Late, t.Present)
	}
	return nil
}

// Decision is the outcome of classifying one request.
type Decision struct {
	Status   Status
	Category Category
	Rule     string
}

type rule struct {
	name   string
	match  func(requested Status, elapsed float64) bool
	decide func(requested Status) (Status, Category)
}

// Classifier evaluates its rules in order; the first match wins.
type Classifier struct {
	thresholds Thresholds
	rules      []rule
}

func NewClassifier(thresholds Thresholds) *Classifier {
	c := &Classifier{thresholds: thresholds}
	c.rules = []rule{
		{
			name:   "excused",
			match:  func(requested Status, _ float64) bool { return requested.Excused() },
			decide: func(requested Status) (Status, Category) { return requested, CategoryExcused },
		},
		{
			name:   "fixed-late",
			match:  func(requested Status, _ float64) bool { return requested == StatusFixedLate },
			decide: func(requested Status) (Status, Category) { return requested, CategoryFixedLate },
		},
		{
			name:   "on-time",
			match:  func(_ Status, elapsed float64) bool { return elapsed <= c.thresholds.Present },
			decide: func(Status) (Status, Category) { return StatusPresent, CategoryPresent },
		},
		{
			name:   "late",
			match:  func(_ Status, elapsed float64) bool { return elapsed <= c.thresholds.Late },
			decide: func(Status) (Status, Category) { return StatusLate, CategoryLate },
		},
		{
			name:   "absent",
			match:  func(Status, float64) bool { return true },
			decide: func(Status) (Status, Category) { return StatusAbsent, CategoryAbsent },
		},
	}
	return c
}

func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify maps a requested status and the elapsed minutes to a final status.
// The reason never changes the outcome; it is carried for the ledger only.
func (c *Classifier) Classify(requested Status, _ string, elapsed float64) Decision {
	for _, r := range c.rules {
		if r.match(requested, elapsed) {
			status, category := r.decide(requested)
			return Decision{Status: status, Category: category, Rule: r.name}
		}
	}
	return Decision{Status: StatusAbsent, Category: CategoryAbsent, Rule: "absent"}
}
