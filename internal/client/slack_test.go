package client

import (
	"context"
	"testing"
)

type fakeThreadStore struct {
	saved map[string]string
}

func (f *fakeThreadStore) SaveThreadTS(_ context.Context, incidentID, threadTS string) error {
	f.saved[incidentID] = threadTS
	return nil
}

func (f *fakeThreadStore) LoadThreadTS(_ context.Context, incidentID string) (string, error) {
	return f.saved[incidentID], nil
}

func TestThreadTSWriteThrough(t *testing.T) {
	store := &fakeThreadStore{saved: map[string]string{}}
	c := &SlackClient{}
	c.SetThreadStore(store)

	c.StoreThreadTS("INC-1", "1700000000.000100")
	if store.saved["INC-1"] != "1700000000.000100" {
		t.Fatalf("thread_ts not persisted: %q", store.saved["INC-1"])
	}

	// 메모리 맵이 비어도 저장소에서 복원
	fresh := &SlackClient{}
	fresh.SetThreadStore(store)
	got, ok := fresh.GetThreadTS("INC-1")
	if !ok || got != "1700000000.000100" {
		t.Fatalf("GetThreadTS() = %q, %v; want restored value", got, ok)
	}

	if _, ok := fresh.GetThreadTS("INC-unknown"); ok {
		t.Fatal("unexpected thread_ts for unknown incident")
	}
}

func TestToSlackMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bold-only",
			input: "This is **bold** text.",
			want:  "This is *bold* text.",
		},
		{
			name:  "inline-code-protected",
			input: "Use `2 ** 3` and **bold**.",
			want:  "Use `2 ** 3` and *bold*.",
		},
		{
			name:  "code-block-protected",
			input: "```python\n2 ** 3\n```\n**bold**",
			want:  "```python\n2 ** 3\n```\n*bold*",
		},
		{
			name:  "mixed-inline-and-bold",
			input: "**Bold** and `code **`",
			want:  "*Bold* and `code **`",
		},
		{
			name:  "heading-converted",
			input: "### 1) 요약 (Summary)\n내용",
			want:  "*1) 요약 (Summary)*\n내용",
		},
		{
			name:  "heading-protected-in-code-block",
			input: "```\n### 1) 요약 (Summary)\n```\n**bold**",
			want:  "```\n### 1) 요약 (Summary)\n```\n*bold*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toSlackMarkdown(tt.input); got != tt.want {
				t.Fatalf("toSlackMarkdown() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildLabelFilter(t *testing.T) {
	got := BuildLabelFilter(map[string]string{"service": "payment-api", "namespace": "prod"})
	want := `{namespace="prod", service="payment-api"}`
	if got != want {
		t.Fatalf("BuildLabelFilter() = %q, want %q", got, want)
	}

	if got := BuildLabelFilter(nil); got != "{}" {
		t.Fatalf("BuildLabelFilter(nil) = %q, want {}", got)
	}
}
