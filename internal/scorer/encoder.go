package scorer

import (
	"fmt"
	"math"
	"slices"

	"github.com/sells-group/booking-risk/internal/features"
	"github.com/sells-group/booking-risk/internal/model"
)

// CategoricalColumn is a one-hot encoded column with its fitted categories.
type CategoricalColumn struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`

	index map[string]int
}

// NumericalColumn is a standardized column: (x - Mean) / Scale.
type NumericalColumn struct {
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
}

// Encoder turns prepared feature rows into the numeric matrix the classifiers
// were fitted on. Categorical blocks come first, then numerical columns.
type Encoder struct {
	Categorical []CategoricalColumn `json:"categorical"`
	Numerical   []NumericalColumn   `json:"numerical"`
}

// NewEncoder builds an encoder from fitted columns.
func NewEncoder(categorical []CategoricalColumn, numerical []NumericalColumn) (*Encoder, error) {
	e := &Encoder{Categorical: categorical, Numerical: numerical}
	if err := e.init(); err != nil {
		return nil, err
	}
	return e, nil
}

// init builds lookup indexes and checks the column layout against the feature
// set produced by features.Prepare.
func (e *Encoder) init() error {
	names := make([]string, len(e.Categorical))
	for i := range e.Categorical {
		c := &e.Categorical[i]
		names[i] = c.Name
		c.index = make(map[string]int, len(c.Categories))
		for j, cat := range c.Categories {
			if _, dup := c.index[cat]; !dup {
				c.index[cat] = j
			}
		}
	}
	if !slices.Equal(names, features.Categorical) {
		return &model.EncodingError{Reason: fmt.Sprintf("encoder categorical columns %v, want %v", names, features.Categorical)}
	}

	names = names[:0]
	for _, n := range e.Numerical {
		names = append(names, n.Name)
	}
	if !slices.Equal(names, features.Numerical) {
		return &model.EncodingError{Reason: fmt.Sprintf("encoder numerical columns %v, want %v", names, features.Numerical)}
	}
	return nil
}

// Width is the number of encoded columns.
func (e *Encoder) Width() int {
	w := len(e.Numerical)
	for _, c := range e.Categorical {
		w += len(c.Categories)
	}
	return w
}

// Transform encodes rows. Categories not seen during fitting encode as an
// all-zero block. A zero scale is treated as 1.
func (e *Encoder) Transform(rows []features.Row) ([][]float64, error) {
	width := e.Width()
	out := make([][]float64, len(rows))

	for i, row := range rows {
		if len(row.Categorical) != len(e.Categorical) || len(row.Numerical) != len(e.Numerical) {
			return nil, &model.EncodingError{Reason: fmt.Sprintf(
				"row %d has %d categorical and %d numerical features, encoder expects %d and %d",
				i, len(row.Categorical), len(row.Numerical), len(e.Categorical), len(e.Numerical))}
		}

		x := make([]float64, width)
		offset := 0
		for j, col := range e.Categorical {
			if k, ok := col.index[row.Categorical[j]]; ok {
				x[offset+k] = 1
			}
			offset += len(col.Categories)
		}
		for j, col := range e.Numerical {
			scale := col.Scale
			if scale == 0 || math.IsNaN(scale) {
				scale = 1
			}
			x[offset+j] = (row.Numerical[j] - col.Mean) / scale
		}
		out[i] = x
	}
	return out, nil
}
