package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	Network string  `validate:"required"`
	Steps   int     `validate:"gte=0,lte=1000"`
	Node    string  `validate:"omitempty,netid"`
	Factor  float64 `validate:"gt=0"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name    string
		req     sampleRequest
		wantErr []string
	}{
		{"valid", sampleRequest{Network: "[JUNCTIONS]", Steps: 1, Node: "J-1", Factor: 1}, nil},
		{"missing network", sampleRequest{Factor: 1}, []string{"Network", "required"}},
		{"too many steps", sampleRequest{Network: "x", Steps: 5000, Factor: 1}, []string{"Steps", "1000"}},
		{"bad id and factor", sampleRequest{Network: "x", Node: "a b", Factor: 0}, []string{"identifier", "greater than"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.req)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q missing %q", err.Error(), want)
				}
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{"1", "J-10", "Tank_North"} {
		if err := ValidateID(id); err != nil {
			t.Errorf("ValidateID(%q) = %v", id, err)
		}
	}
	for _, id := range []string{"", "has space", "semi;colon", strings.Repeat("x", 32)} {
		if err := ValidateID(id); err == nil {
			t.Errorf("ValidateID(%q) should fail", id)
		}
	}
}
