package interaction

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/feedex/internal/domain"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"like", Like, false},
		{" Dislike ", Dislike, false},
		{"add_to_board", AddToBoard, false},
		{"unlike", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseType(%q) error = %v", tt.in, err)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultWeights_CoverKnownTypes(t *testing.T) {
	w := DefaultWeights()
	for typ := range known {
		if _, ok := w[typ]; !ok {
			t.Errorf("no default weight for %q", typ)
		}
	}
	if w[Dislike] >= 0 {
		t.Error("dislike must weigh negatively")
	}
}

func TestIsDefinitive(t *testing.T) {
	if !IsDefinitive(Dislike) {
		t.Error("dislike is definitive")
	}
	if IsDefinitive(Like) {
		t.Error("like is not definitive")
	}
}
