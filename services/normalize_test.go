package services

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want int // 0 means expect nil
	}{
		{"formatted euro string", "€ 450.000 k.k.", 450000},
		{"plain number", float64(650000), 650000},
		{"thousands shorthand", float64(450), 450000},
		{"thousands shorthand string", "450", 450000},
		{"nested amount", map[string]interface{}{"amount": float64(425000)}, 425000},
		{"below floor", float64(12), 0},
		{"above ceiling", float64(25_000_000), 0},
		{"garbage", "prijs op aanvraag", 0},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePrice(tt.in)
			if tt.want == 0 {
				if got != nil {
					t.Errorf("ParsePrice(%v) = %d, want nil", tt.in, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParsePrice(%v) = nil, want %d", tt.in, tt.want)
			}
			if *got != tt.want {
				t.Errorf("ParsePrice(%v) = %d, want %d", tt.in, *got, tt.want)
			}
		})
	}
}

func TestPriceFromItemPriority(t *testing.T) {
	item := map[string]interface{}{
		"price": map[string]interface{}{
			"sellingPrice": float64(500000),
		},
		"priceInfo": map[string]interface{}{
			"amount": float64(999000),
		},
	}
	got := PriceFromItem(item)
	if got == nil || *got != 500000 {
		t.Fatalf("expected nested price object to win, got %v", got)
	}

	flat := map[string]interface{}{
		"price":     float64(475000),
		"priceInfo": map[string]interface{}{"amount": float64(999000)},
	}
	got = PriceFromItem(flat)
	if got == nil || *got != 475000 {
		t.Fatalf("expected flat price to win, got %v", got)
	}
}

func TestParseIntField(t *testing.T) {
	if got := ParseIntField("3 slaapkamers"); got != 3 {
		t.Errorf("ParseIntField = %d, want 3", got)
	}
	if got := ParseIntField(float64(4)); got != 4 {
		t.Errorf("ParseIntField = %d, want 4", got)
	}
	if got := ParseIntField("geen"); got != 0 {
		t.Errorf("ParseIntField = %d, want 0", got)
	}
}

func TestParseSize(t *testing.T) {
	if got := ParseSize("85 m²"); got != 85 {
		t.Errorf("ParseSize = %d, want 85", got)
	}
	if got := ParseSize(float64(102)); got != 102 {
		t.Errorf("ParseSize = %d, want 102", got)
	}
}
