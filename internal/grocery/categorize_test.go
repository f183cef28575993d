package grocery

import (
	"slices"
	"testing"

	"github.com/dukerupert/larder/internal/model"
)

func TestCategorizeExactMatch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"milk", FreshFood},
		{"Rice", Pantry},
		{"ice cream", Frozen},
		{"coffee", Beverages},
		{"bleach", Cleaning},
		{"ibuprofen", Medical},
		{"shampoo", PersonalCare},
		{"batteries", Accessories},
	}
	for _, tt := range tests {
		got := Categorize(tt.input)
		if got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCategorizeSubstringMatch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"frozen peas", Frozen},
		{"oat milk", FreshFood},
		{"liquid hand soap", PersonalCare},
		{"laundry pods", Cleaning},
		{"vitamin c tablets", Medical},
		{"AA battery pack", Accessories},
		{"orange juice", Beverages},
		{"canned soup", Pantry},
		{"free range eggs", FreshFood},
	}
	for _, tt := range tests {
		got := Categorize(tt.input)
		if got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCategorizeFallback(t *testing.T) {
	for _, input := range []string{"", "   ", "widget", "xyz123"} {
		if got := Categorize(input); got != model.DefaultCategory {
			t.Errorf("Categorize(%q) = %q, want %q", input, got, model.DefaultCategory)
		}
	}
}

func TestCategoriesCoverRules(t *testing.T) {
	for _, r := range rules {
		if !slices.Contains(Categories, r.category) {
			t.Errorf("rule category %q missing from Categories", r.category)
		}
	}
	if Categories[len(Categories)-1] != model.DefaultCategory {
		t.Errorf("last category = %q, want fallback %q", Categories[len(Categories)-1], model.DefaultCategory)
	}
}
