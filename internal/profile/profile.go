// Package profile maps ingested columns onto semantic types and summary
// statistics used by role detection and planning.
package profile

import (
	"math"

	"dataplan/internal/frame"
)

// SemanticType is the coarse semantic classification of a column.
type SemanticType string

const (
	TypeDatetime SemanticType = "datetime"
	TypeBoolean  SemanticType = "boolean"
	TypeInteger  SemanticType = "integer"
	TypeFloat    SemanticType = "float"
	TypeString   SemanticType = "string"
	TypeOther    SemanticType = "other"
)

const (
	// likelyIDRatio marks a column as id-like when its distinct count
	// exceeds this fraction of the row count.
	likelyIDRatio = 0.9

	// categoricalMaxUnique bounds the distinct count for a string or
	// boolean column to still be treated as categorical.
	categoricalMaxUnique = 50

	// maxExamples caps the number of example values kept per column.
	maxExamples = 5
)

// ColumnProfile is the serializable per-column summary. One profile is
// produced per ingested column, in original column order, and is never
// mutated after creation.
type ColumnProfile struct {
	Name                string       `json:"name"`
	InferredType        SemanticType `json:"inferred_type"`
	StorageDtype        string       `json:"storage_dtype"`
	MissingRate         float64      `json:"missing_rate"`
	NUnique             int          `json:"n_unique"`
	IsLikelyID          bool         `json:"is_likely_id"`
	IsLikelyCategorical bool         `json:"is_likely_categorical"`
	ExampleValues       []string     `json:"example_values"`
}

// InferType classifies a column's semantic type from its storage dtype.
//
// The checks run in a fixed order: datetime, boolean, integer, float,
// string. Datetime and boolean must come before the numeric checks so a
// coerced numeric-looking boolean is never misread as an integer.
func InferType(d frame.Dtype) SemanticType {
	switch d {
	case frame.DtypeTimestamp:
		return TypeDatetime
	case frame.DtypeBool:
		return TypeBoolean
	case frame.DtypeInt:
		return TypeInteger
	case frame.DtypeFloat:
		return TypeFloat
	case frame.DtypeText:
		return TypeString
	default:
		return TypeOther
	}
}

// Columns profiles every column of the table, preserving table order.
func Columns(t *frame.Table) []ColumnProfile {
	if t == nil {
		return nil
	}

	n := t.NumRows()
	out := make([]ColumnProfile, 0, t.NumCols())

	for _, c := range t.Cols {
		seen := make(map[string]struct{})
		examples := make([]string, 0, maxExamples)
		missing := 0

		for i, v := range c.Values {
			if c.Missing[i] {
				missing++
				continue
			}
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				if len(examples) < maxExamples {
					examples = append(examples, v)
				}
			}
		}

		missingRate := 0.0
		if n > 0 {
			missingRate = float64(missing) / float64(n)
		}

		nUnique := len(seen)
		inferred := InferType(c.Dtype)

		denom := n
		if denom < 1 {
			denom = 1
		}

		out = append(out, ColumnProfile{
			Name:         c.Name,
			InferredType: inferred,
			StorageDtype: string(c.Dtype),
			MissingRate:  round4(missingRate),
			NUnique:      nUnique,
			IsLikelyID:   float64(nUnique) > likelyIDRatio*float64(denom),
			IsLikelyCategorical: (inferred == TypeString || inferred == TypeBoolean) &&
				nUnique <= categoricalMaxUnique,
			ExampleValues: examples,
		})
	}

	return out
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
