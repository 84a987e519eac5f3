package model

// Batch is a minibatch of flattened images and their class indices.
type Batch struct {
	Inputs [][]float64
	Labels []int
}

// Len returns the number of rows in the batch.
func (b Batch) Len() int { return len(b.Inputs) }

// Model is the classifier contract the trainer drives.
type Model interface {
	// TrainStep applies one optimisation step and returns the mean loss.
	TrainStep(batch Batch) float64
	// Predict returns the most likely class for input.
	Predict(input []float64) int
}
