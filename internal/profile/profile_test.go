package profile

import (
	"reflect"
	"testing"

	"dataplan/internal/frame"
)

func TestInferType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dtype frame.Dtype
		want  SemanticType
	}{
		{frame.DtypeTimestamp, TypeDatetime},
		{frame.DtypeBool, TypeBoolean},
		{frame.DtypeInt, TypeInteger},
		{frame.DtypeFloat, TypeFloat},
		{frame.DtypeText, TypeString},
		{frame.Dtype("weird"), TypeOther},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.dtype), func(t *testing.T) {
			t.Parallel()
			if got := InferType(tt.dtype); got != tt.want {
				t.Fatalf("InferType(%q) = %q, want %q", tt.dtype, got, tt.want)
			}
		})
	}
}

func TestColumnsIDLikelihood(t *testing.T) {
	t.Parallel()

	// 10 rows, 10 distinct values: 10 > 0.9*10, so id-like. The second
	// column repeats a value (9 distinct), which is exactly at the bound
	// and therefore not id-like.
	rows := make([][]string, 10)
	missing := make([][]bool, 10)
	for i := range rows {
		v := string(rune('a' + i))
		w := v
		if i == 9 {
			w = "a"
		}
		rows[i] = []string{v, w}
		missing[i] = []bool{false, false}
	}

	tab := frame.NewTable([]string{"id", "near_id"}, rows, missing)
	profs := Columns(tab)

	if !profs[0].IsLikelyID {
		t.Fatalf("id column not flagged id-like: %+v", profs[0])
	}
	if profs[1].IsLikelyID {
		t.Fatalf("9-of-10 distinct column flagged id-like: %+v", profs[1])
	}
}

func TestColumnsCategorical(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []string
		want   bool
	}{
		{"low cardinality string", []string{"a", "b", "a", "b"}, true},
		{"boolean", []string{"true", "false", "true", "false"}, true},
		{"numeric never categorical", []string{"1", "2", "1", "2"}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rows := make([][]string, len(tt.values))
			missing := make([][]bool, len(tt.values))
			for i, v := range tt.values {
				rows[i] = []string{v}
				missing[i] = []bool{false}
			}
			tab := frame.NewTable([]string{"c"}, rows, missing)

			if got := Columns(tab)[0].IsLikelyCategorical; got != tt.want {
				t.Fatalf("is_likely_categorical = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestColumnsSummaryFields(t *testing.T) {
	t.Parallel()

	rows := [][]string{
		{"x"}, {"y"}, {"x"}, {""}, {""}, {"z"},
	}
	missing := [][]bool{
		{false}, {false}, {false}, {true}, {true}, {false},
	}
	tab := frame.NewTable([]string{"c"}, rows, missing)

	p := Columns(tab)[0]

	if p.NUnique != 3 {
		t.Fatalf("n_unique = %d, want 3", p.NUnique)
	}
	if p.MissingRate != 0.3333 {
		t.Fatalf("missing_rate = %v, want 0.3333", p.MissingRate)
	}
	// Examples are distinct values in first-seen order; missing cells
	// never appear.
	if !reflect.DeepEqual(p.ExampleValues, []string{"x", "y", "z"}) {
		t.Fatalf("example_values = %v", p.ExampleValues)
	}
	if p.StorageDtype != string(frame.DtypeText) {
		t.Fatalf("storage_dtype = %q", p.StorageDtype)
	}
}

func TestColumnsExampleCap(t *testing.T) {
	t.Parallel()

	rows := make([][]string, 8)
	missing := make([][]bool, 8)
	for i := range rows {
		rows[i] = []string{string(rune('a' + i))}
		missing[i] = []bool{false}
	}
	tab := frame.NewTable([]string{"c"}, rows, missing)

	p := Columns(tab)[0]
	if len(p.ExampleValues) != 5 {
		t.Fatalf("len(example_values) = %d, want 5", len(p.ExampleValues))
	}
	if p.NUnique != 8 {
		t.Fatalf("n_unique = %d, want 8", p.NUnique)
	}
}

func TestColumnsEmptyTable(t *testing.T) {
	t.Parallel()

	if got := Columns(nil); got != nil {
		t.Fatalf("Columns(nil) = %v, want nil", got)
	}

	tab := frame.NewTable([]string{"a"}, nil, nil)
	profs := Columns(tab)
	if len(profs) != 1 {
		t.Fatalf("len(profiles) = %d, want 1", len(profs))
	}
	if profs[0].MissingRate != 0 || profs[0].NUnique != 0 {
		t.Fatalf("empty column profile = %+v", profs[0])
	}
	if profs[0].IsLikelyID {
		t.Fatal("empty column flagged id-like")
	}
}
