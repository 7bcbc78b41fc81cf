package types

import "testing"

func TestCombinedLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		addr Address
		want string
	}{
		{
			name: "full",
			addr: Address{Street: "410 Glenwood Ave", City: "Raleigh", State: "NC", Zip: "27603"},
			want: "410 Glenwood Ave, Raleigh, NC 27603",
		},
		{
			name: "no zip",
			addr: Address{Street: "410 Glenwood Ave", City: "Raleigh", State: "NC"},
			want: "410 Glenwood Ave, Raleigh, NC",
		},
		{
			name: "street only",
			addr: Address{Street: "410 Glenwood Ave"},
			want: "410 Glenwood Ave",
		},
		{
			name: "empty",
			addr: Address{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.addr.CombinedLine(); got != tt.want {
				t.Errorf("CombinedLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseCombined(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		line  string
		state string
		want  Address
	}{
		{
			name: "street city state zip",
			line: "410 Glenwood Ave, Raleigh, NC 27603",
			want: Address{Street: "410 Glenwood Ave", City: "Raleigh", State: "NC", Zip: "27603"},
		},
		{
			name: "street city state",
			line: "410 Glenwood Ave, Raleigh, NC",
			want: Address{Street: "410 Glenwood Ave", City: "Raleigh", State: "NC"},
		},
		{
			name:  "region state wins over parsed state",
			line:  "12 Main St, Boone, VA 24060",
			state: "NC",
			want:  Address{Street: "12 Main St", City: "Boone", State: "NC", Zip: "24060"},
		},
		{
			name: "multi segment street",
			line: "Suite 4, 12 Main St, Durham, NC 27701",
			want: Address{Street: "Suite 4, 12 Main St", City: "Durham", State: "NC", Zip: "27701"},
		},
		{
			name: "street and city only",
			line: "12 Main St, Durham",
			want: Address{Street: "12 Main St", City: "Durham"},
		},
		{
			name:  "lowercase state normalized",
			line:  "12 Main St, Durham, nc 27701",
			state: "",
			want:  Address{Street: "12 Main St", City: "Durham", State: "NC", Zip: "27701"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCombined(tt.line, tt.state)
			if err != nil {
				t.Fatalf("ParseCombined(%q) error = %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("ParseCombined(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseCombinedEmpty(t *testing.T) {
	t.Parallel()

	if _, err := ParseCombined("  ,  , ", "NC"); err == nil {
		t.Fatal("ParseCombined accepted an empty line")
	}
}
