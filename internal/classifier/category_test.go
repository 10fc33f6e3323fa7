package classifier

import (
	"encoding/json"
	"testing"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"RED", Red, false},
		{"blue", Blue, false},
		{"Green", Green, false},
		{"YELLOW", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCategory(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseCategory(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestCategoryJSON(t *testing.T) {
	out, err := json.Marshal(map[string]Category{"team": Green})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"team":"GREEN"}` {
		t.Errorf("got %s", out)
	}

	if _, err := json.Marshal(Category(7)); err == nil {
		t.Error("expected error marshaling invalid category")
	}
	if Category(-1).String() != "Category(-1)" {
		t.Errorf("invalid String() = %q", Category(-1).String())
	}
}

func TestReferenceColorsAreDistinct(t *testing.T) {
	seen := map[string]Category{}
	for _, c := range Categories() {
		col := c.Color()
		key := string([]byte{col.R, col.G, col.B})
		if prev, ok := seen[key]; ok {
			t.Errorf("%s shares its color with %s", c, prev)
		}
		seen[key] = c
	}
}
