// annotation 텍스트 유사도 계산
// 임베딩 키가 설정되어 있으면 코사인 유사도, 아니면 토큰 Jaccard로 폴백

package service

import (
	"context"
	"math"
	"strings"
)

// Similarity - 두 텍스트의 유사도 [0,1] 반환
// 같은 입력에 대해 같은 값을 반환해야 함 (상관관계 점수의 결정성 유지)
type Similarity interface {
	Compare(ctx context.Context, a, b string) (float64, error)
}

// LexicalSimilarity - 토큰 집합 Jaccard 유사도
// 외부 의존성이 없는 폴백 구현
type LexicalSimilarity struct{}

func (LexicalSimilarity) Compare(_ context.Context, a, b string) (float64, error) {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0, nil
	}
	intersection := 0
	for token := range tokensA {
		if tokensB[token] {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	return float64(intersection) / float64(union), nil
}

func tokenize(text string) map[string]bool {
	tokens := map[string]bool{}
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	for _, field := range fields {
		if len(field) >= 2 {
			tokens[field] = true
		}
	}
	return tokens
}

// EmbeddingSimilarity - 임베딩 벡터 코사인 유사도
type EmbeddingSimilarity struct {
	client EmbeddingClient
}

func NewEmbeddingSimilarity(client EmbeddingClient) *EmbeddingSimilarity {
	return &EmbeddingSimilarity{client: client}
}

func (s *EmbeddingSimilarity) Compare(ctx context.Context, a, b string) (float64, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0, nil
	}
	vecA, _, err := s.client.EmbedText(ctx, a)
	if err != nil {
		return 0, err
	}
	vecB, _, err := s.client.EmbedText(ctx, b)
	if err != nil {
		return 0, err
	}
	return cosineSimilarity(vecA, vecB), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
