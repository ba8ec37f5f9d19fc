package cardhash

import (
	"testing"

	"github.com/conorfennell/recall/internal/domain"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		card domain.Card
		want string
	}{
		{
			name: "lowercases and trims",
			card: domain.Card{Front: "  What Is Go?  ", Back: "A Language", Context: " Basics "},
			want: "what is go?\na language\nbasics",
		},
		{
			name: "windows line endings",
			card: domain.Card{Front: "line one\r\nline two", Back: "b", Context: "c"},
			want: "line one\nline two\nb\nc",
		},
		{
			name: "empty context keeps the separator",
			card: domain.Card{Front: "q", Back: "a"},
			want: "q\na\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.card); got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHashStable(t *testing.T) {
	card := domain.Card{Front: "Q", Back: "A", Context: "C"}
	want := "eb2456c1ee4f36305069dd0f63a30e92d5443129f5e8fd9a5ec490fbc4d4d8a2"
	if got := Hash(card); got != want {
		t.Errorf("Hash() = %s, want %s", got, want)
	}
}

func TestHashIgnoresFormattingNoise(t *testing.T) {
	a := domain.Card{Front: "What is GO?", Back: "A language"}
	b := domain.Card{Front: "  what is go?\r\n", Back: "a LANGUAGE  "}
	if Hash(a) != Hash(b) {
		t.Error("hashes differ for cards that normalize identically")
	}
}

func TestHashSeparatesFields(t *testing.T) {
	a := domain.Card{Front: "question", Back: "answer"}
	b := domain.Card{Front: "questionanswer", Back: ""}
	if Hash(a) == Hash(b) {
		t.Error("field boundary collapsed in the hash")
	}
}
