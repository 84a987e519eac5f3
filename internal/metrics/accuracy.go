package metrics

// Accuracy counts correct predictions, overall and per class.
type Accuracy struct {
	Correct      int
	Total        int
	ClassCorrect []int
	ClassTotal   []int
}

// NewAccuracy returns a counter for numClasses classes.
func NewAccuracy(numClasses int) *Accuracy {
	return &Accuracy{
		ClassCorrect: make([]int, numClasses),
		ClassTotal:   make([]int, numClasses),
	}
}

// Add records one prediction against its true label. Labels outside the
// configured classes only count towards the overall totals.
func (a *Accuracy) Add(predicted, label int) {
	a.Total++
	hit := predicted == label
	if hit {
		a.Correct++
	}
	if label >= 0 && label < len(a.ClassTotal) {
		a.ClassTotal[label]++
		if hit {
			a.ClassCorrect[label]++
		}
	}
}

// Value is Correct/Total, or 0 before any prediction.
func (a *Accuracy) Value() float64 {
	if a.Total == 0 {
		return 0
	}
	return float64(a.Correct) / float64(a.Total)
}

// ClassValue is the recall of class c.
func (a *Accuracy) ClassValue(c int) float64 {
	if c < 0 || c >= len(a.ClassTotal) || a.ClassTotal[c] == 0 {
		return 0
	}
	return float64(a.ClassCorrect[c]) / float64(a.ClassTotal[c])
}
