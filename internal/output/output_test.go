package output

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"a-long-policy-name", 10, "a-long-..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestBytes(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		3 * 1024 * 1024: "3.0 MiB",
	}
	for n, want := range tests {
		if got := Bytes(n); got != want {
			t.Errorf("Bytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestGridLayout(t *testing.T) {
	names := []string{"A", "Longest-Name", "B"}

	columns, cell := gridLayout(names, 80)
	if cell != len("Longest-Name")+2 {
		t.Errorf("cellWidth = %d", cell)
	}
	if columns != 80/cell {
		t.Errorf("columns = %d", columns)
	}

	if columns, _ := gridLayout([]string{strings.Repeat("x", 100)}, 40); columns != 1 {
		t.Errorf("columns = %d, want 1 for names wider than the terminal", columns)
	}
}

func TestBadgeUnknownStatus(t *testing.T) {
	if got := Badge("pending"); got != "pending" {
		t.Errorf("Badge(pending) = %q", got)
	}
	if got := Badge("ok"); !strings.Contains(got, "ok") {
		t.Errorf("Badge(ok) = %q", got)
	}
}

func TestKindColor(t *testing.T) {
	if KindColor("Javascript") != Magenta {
		t.Error("script kinds should use Magenta")
	}
	if KindColor("Quota") != Yellow {
		t.Error("traffic kinds should use Yellow")
	}
}
