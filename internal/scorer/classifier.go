package scorer

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/booking-risk/internal/model"
)

// Classifier returns the positive-class probability for each encoded row.
type Classifier interface {
	PredictProba(x [][]float64) ([]float64, error)
	NumFeatures() int
}

// Model types accepted in classifier artifacts.
const (
	ModelLogisticRegression = "logistic_regression"
	ModelRandomForest       = "random_forest"
	ModelGradientBoosting   = "gradient_boosting"
)

// classifierArtifact is the on-disk envelope of a classifier.
type classifierArtifact struct {
	Type         string    `json:"type"`
	NFeatures    int       `json:"n_features"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	Intercept    float64   `json:"intercept,omitempty"`
	BaseMargin   float64   `json:"base_margin,omitempty"`
	Trees        []Tree    `json:"trees,omitempty"`
}

// DecodeClassifier parses a classifier artifact.
func DecodeClassifier(data []byte) (Classifier, error) {
	var a classifierArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, eris.Wrap(err, "scorer: decode classifier")
	}
	if a.NFeatures <= 0 {
		return nil, eris.Errorf("scorer: classifier n_features must be > 0, got %d", a.NFeatures)
	}

	switch a.Type {
	case ModelLogisticRegression:
		if len(a.Coefficients) != a.NFeatures {
			return nil, eris.Errorf("scorer: %d coefficients for %d features", len(a.Coefficients), a.NFeatures)
		}
		return &LogisticRegression{Coefficients: a.Coefficients, Intercept: a.Intercept}, nil
	case ModelRandomForest, ModelGradientBoosting:
		if len(a.Trees) == 0 {
			return nil, eris.Errorf("scorer: %s has no trees", a.Type)
		}
		for i, t := range a.Trees {
			if err := t.validate(a.NFeatures); err != nil {
				return nil, eris.Wrapf(err, "scorer: tree %d", i)
			}
		}
		return &TreeEnsemble{
			Boosted:    a.Type == ModelGradientBoosting,
			Trees:      a.Trees,
			BaseMargin: a.BaseMargin,
			nFeatures:  a.NFeatures,
		}, nil
	default:
		return nil, eris.Errorf("scorer: unknown classifier type %q", a.Type)
	}
}

// LogisticRegression scores sigmoid(w·x + b).
type LogisticRegression struct {
	Coefficients []float64
	Intercept    float64
}

// NumFeatures implements Classifier.
func (m *LogisticRegression) NumFeatures() int { return len(m.Coefficients) }

// PredictProba implements Classifier.
func (m *LogisticRegression) PredictProba(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != len(m.Coefficients) {
			return nil, widthError(i, len(row), len(m.Coefficients))
		}
		z := m.Intercept
		for j, w := range m.Coefficients {
			z += w * row[j]
		}
		out[i] = sigmoid(z)
	}
	return out, nil
}

// Node is one node of a binary decision tree. Leaves have Left == Right == -1.
// Rows with x[Feature] <= Threshold go left.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

func (n Node) leaf() bool { return n.Left < 0 && n.Right < 0 }

// Tree is a flattened decision tree rooted at node 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) validate(nFeatures int) error {
	if len(t.Nodes) == 0 {
		return eris.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.leaf() {
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return eris.Errorf("node %d feature %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return eris.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// eval walks the tree. Children always have larger indexes than their parent,
// so the walk terminates.
func (t Tree) eval(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.leaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// TreeEnsemble is a random forest (mean of leaf probabilities) or a gradient
// boosted ensemble (sigmoid of base margin plus summed leaf margins).
type TreeEnsemble struct {
	Boosted    bool
	Trees      []Tree
	BaseMargin float64

	nFeatures int
}

// NumFeatures implements Classifier.
func (m *TreeEnsemble) NumFeatures() int { return m.nFeatures }

// PredictProba implements Classifier.
func (m *TreeEnsemble) PredictProba(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != m.nFeatures {
			return nil, widthError(i, len(row), m.nFeatures)
		}
		sum := 0.0
		for _, t := range m.Trees {
			sum += t.eval(row)
		}
		if m.Boosted {
			out[i] = sigmoid(m.BaseMargin + sum)
		} else {
			out[i] = clamp01(sum / float64(len(m.Trees)))
		}
	}
	return out, nil
}

func widthError(row, got, want int) error {
	return &model.EncodingError{Reason: fmt.Sprintf("row %d has %d columns, classifier expects %d", row, got, want)}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clamp01(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}
