package model

import (
	"math"
	"math/rand"
)

// SoftmaxClassifier is a linear classifier with softmax cross-entropy loss
// trained by plain SGD.
type SoftmaxClassifier struct {
	numClasses int
	inputSize  int
	weights    []float64
	bias       []float64
	lr         float64
}

// NewSoftmaxClassifier constructs the model with small random weights drawn
// from seed.
func NewSoftmaxClassifier(numClasses, inputSize int, lr float64, seed int64) *SoftmaxClassifier {
	if numClasses < 2 {
		numClasses = 2
	}
	if inputSize <= 0 {
		inputSize = 1
	}
	if lr <= 0 {
		lr = 0.01
	}
	rng := rand.New(rand.NewSource(seed))
	weights := make([]float64, numClasses*inputSize)
	for i := range weights {
		weights[i] = (rng.Float64()*2 - 1) * 0.01
	}
	return &SoftmaxClassifier{
		numClasses: numClasses,
		inputSize:  inputSize,
		weights:    weights,
		bias:       make([]float64, numClasses),
		lr:         lr,
	}
}

// NumClasses returns the width of the output layer.
func (m *SoftmaxClassifier) NumClasses() int { return m.numClasses }

// InputSize returns the expected input length.
func (m *SoftmaxClassifier) InputSize() int { return m.inputSize }

// TrainStep executes one SGD pass over batch and returns the mean loss of
// the rows it could use. Rows of the wrong length or with out-of-range labels
// are skipped.
func (m *SoftmaxClassifier) TrainStep(batch Batch) float64 {
	totalLoss := 0.0
	used := 0
	for i, input := range batch.Inputs {
		label := batch.Labels[i]
		if len(input) != m.inputSize || label < 0 || label >= m.numClasses {
			continue
		}
		probs := softmax(m.logits(input))
		totalLoss += -math.Log(math.Max(probs[label], 1e-9))
		used++

		probs[label] -= 1
		for c := 0; c < m.numClasses; c++ {
			grad := probs[c]
			m.bias[c] -= m.lr * grad
			row := m.weights[c*m.inputSize : (c+1)*m.inputSize]
			for j, x := range input {
				row[j] -= m.lr * grad * x
			}
		}
	}
	if used == 0 {
		return 0
	}
	return totalLoss / float64(used)
}

// Predict returns the arg-max class, or -1 when input has the wrong length.
func (m *SoftmaxClassifier) Predict(input []float64) int {
	if len(input) != m.inputSize {
		return -1
	}
	logits := m.logits(input)
	best := 0
	for c, v := range logits {
		if v > logits[best] {
			best = c
		}
	}
	return best
}

func (m *SoftmaxClassifier) logits(input []float64) []float64 {
	out := make([]float64, m.numClasses)
	for c := range out {
		sum := m.bias[c]
		row := m.weights[c*m.inputSize : (c+1)*m.inputSize]
		for j, x := range input {
			sum += row[j] * x
		}
		out[c] = sum
	}
	return out
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		exp := math.Exp(v - maxLogit)
		out[i] = exp
		sum += exp
	}
	inv := 1.0 / sum
	for i := range out {
		out[i] *= inv
	}
	return out
}
