package polish

import (
	"context"
	"reflect"
	"testing"

	"github.com/clarivox/clarivox/internal/polish/tone"
)

func TestAutoFormat_Apply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "adds period and capital",
			in:   "hello world",
			want: "Hello world.",
		},
		{
			name: "capitalises after boundary",
			in:   "hello. how are you",
			want: "Hello. How are you.",
		},
		{
			name: "exclamation preserved",
			in:   "stop!",
			want: "Stop!",
		},
		{
			name: "question preserved",
			in:   "are you sure?",
			want: "Are you sure?",
		},
		{
			name: "already formatted untouched",
			in:   "All good here.",
			want: "All good here.",
		},
		{
			name: "leading quote",
			in:   `"hello"`,
			want: `"Hello".`,
		},
		{
			name: "paragraphs formatted independently",
			in:   "first thought\n\nsecond thought",
			want: "First thought.\n\nSecond thought.",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	f := NewAutoFormat()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := f.Apply(context.Background(), tt.in, tone.ModeNeutral)
			if err != nil {
				t.Fatalf("Apply() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Apply(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "three sentences",
			in:   "One. Two! Three?",
			want: []string{"One.", "Two!", "Three?"},
		},
		{
			name: "single sentence",
			in:   "Just one.",
			want: []string{"Just one."},
		},
		{
			name: "no terminal punctuation",
			in:   "no punctuation here",
			want: []string{"no punctuation here"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SplitSentences(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitSentences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Hello World.", "hello world"},
		{"  spaced   out  text  ", "spaced out text"},
		{"Really?!", "really"},
		{"unchanged", "unchanged"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
