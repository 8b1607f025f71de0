package llm

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestResolveEmbeddingModel(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want openai.EmbeddingModel
	}{
		{
			name: "empty uses the default",
			in:   "",
			want: openai.AdaEmbeddingV2,
		},
		{
			name: "known model name",
			in:   "text-embedding-ada-002",
			want: openai.AdaEmbeddingV2,
		},
		{
			name: "unknown name falls back to ada",
			in:   "text-embedding-9000",
			want: openai.AdaEmbeddingV2,
		},
		{
			name: "legacy similarity model",
			in:   "text-similarity-ada-001",
			want: openai.AdaSimilarity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveEmbeddingModel(tt.in); got != tt.want {
				t.Errorf("resolveEmbeddingModel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
