package payload

import (
	"reflect"
	"testing"
)

func TestCoerceStringList(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{"nil", nil, nil},
		{"plain string", "KXA-1", []string{"KXA-1"}},
		{"string kept whole", "a,b", []string{"a,b"}},
		{"empty string", "  ", nil},
		{"json encoded list", `["111", "222"]`, []string{"111", "222"}},
		{"json encoded list of numbers", `[111, 222]`, []string{"111", "222"}},
		{"malformed json list treated as scalar", `["111",`, []string{`["111",`}},
		{"number", float64(42), []string{"42"}},
		{"list of mixed", []any{"a", float64(7), "", "b"}, []string{"a", "7", "b"}},
		{"unsupported type", map[string]any{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceStringList(tt.input)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDedupePreserve(t *testing.T) {
	got := DedupePreserve([]string{"a", "b", "a", "", "c", "b"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFirstString(t *testing.T) {
	first := map[string]any{"slug": ""}
	second := map[string]any{"slug": "some-market", "id": float64(7)}

	if got := FirstString([]string{"slug"}, first, second); got != "some-market" {
		t.Errorf("got %q, want some-market", got)
	}
	if got := FirstString([]string{"id"}, first, second); got != "7" {
		t.Errorf("got %q, want 7", got)
	}
	if got := FirstString([]string{"missing"}, first, second, nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestFirstInt(t *testing.T) {
	tests := []struct {
		name   string
		source map[string]any
		want   int64
		wantOK bool
	}{
		{"float", map[string]any{"id": float64(42)}, 42, true},
		{"numeric string", map[string]any{"id": "42"}, 42, true},
		{"float string", map[string]any{"id": "42.9"}, 42, true},
		{"garbage", map[string]any{"id": "x"}, 0, false},
		{"missing", map[string]any{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstInt([]string{"id"}, tt.source)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("got (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFirstFloat(t *testing.T) {
	sources := []map[string]any{
		{"lastTradePrice": nil},
		{"lastPrice": "0.42"},
	}
	got, ok := FirstFloat([]string{"lastTradePrice", "lastPrice"}, sources...)
	if !ok || got != 0.42 {
		t.Errorf("got (%v, %v), want (0.42, true)", got, ok)
	}
}

func TestTruthyFlag(t *testing.T) {
	truthy := []any{true, "1", "true", "YES", " on ", float64(1)}
	for _, v := range truthy {
		if !TruthyFlag(v) {
			t.Errorf("TruthyFlag(%v) = false, want true", v)
		}
	}
	falsy := []any{false, "0", "no", "", nil, float64(2)}
	for _, v := range falsy {
		if TruthyFlag(v) {
			t.Errorf("TruthyFlag(%v) = true, want false", v)
		}
	}
}
