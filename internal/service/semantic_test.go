package service

import (
	"context"
	"testing"
)

func TestLexicalSimilarity(t *testing.T) {
	sim := LexicalSimilarity{}

	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{
			name: "identical annotations",
			a:    "High error rate on payment-api in prod",
			b:    "High error rate on payment-api in prod",
			min:  1.0, max: 1.0,
		},
		{
			name: "related annotations",
			a:    "Connection timeout to payment-api from checkout",
			b:    "payment-api pods restarting due to connection errors",
			min:  0.15, max: 0.6,
		},
		{
			name: "unrelated annotations",
			a:    "Disk usage above 90 percent on worker-3",
			b:    "Certificate expires in 7 days",
			min:  0.0, max: 0.05,
		},
		{
			name: "empty input",
			a:    "",
			b:    "anything at all",
			min:  0.0, max: 0.0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := sim.Compare(context.Background(), tc.a, tc.b)
			if err != nil {
				t.Fatalf("compare failed: %v", err)
			}
			if got < tc.min || got > tc.max {
				t.Errorf("similarity = %.3f, want within [%.2f, %.2f]", got, tc.min, tc.max)
			}
		})
	}
}

func TestLexicalSimilaritySymmetric(t *testing.T) {
	sim := LexicalSimilarity{}
	a := "BGP session down on core-sw-01"
	b := "Network partition detected in dc-east segment"

	ab, _ := sim.Compare(context.Background(), a, b)
	ba, _ := sim.Compare(context.Background(), b, a)
	if ab != ba {
		t.Errorf("similarity not symmetric: %.3f vs %.3f", ab, ba)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Errorf("identical vectors = %.3f, want 1.0", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got > 0.001 {
		t.Errorf("orthogonal vectors = %.3f, want 0.0", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Errorf("mismatched dimensions = %.3f, want 0", got)
	}
	if got := cosineSimilarity(nil, nil); got != 0 {
		t.Errorf("empty vectors = %.3f, want 0", got)
	}
}
