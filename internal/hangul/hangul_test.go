package hangul

import (
	"testing"

	"golang.org/x/text/unicode/norm"
)

func TestExtractChoseong(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "메이플", want: "ㅁㅇㅍ"},
		{in: "가힣", want: "ㄱㅎ"},
		{in: "까마귀 Boss 12", want: "ㄲㅁㄱ Boss 12"},
		{in: "ㄱㄴ", want: "ㄱㄴ"},
		{in: "plain ascii", want: "plain ascii"},
		{in: "", want: ""},
	}
	for _, tc := range tests {
		if got := ExtractChoseong(tc.in); got != tc.want {
			t.Fatalf("ExtractChoseong(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		query string
		want  bool
	}{
		{name: "empty query", text: "anything", query: "", want: true},
		{name: "substring", text: "루시드 하드 파티", query: "하드", want: true},
		{name: "case insensitive", text: "Lucid HARD", query: "hard", want: true},
		{name: "choseong", text: "루시드 하드 파티", query: "ㄹㅅㄷ", want: true},
		{name: "mixed syllable query", text: "메이플스토리", query: "메ㅇ", want: true},
		{name: "no match", text: "윌 노말", query: "ㅈㅅ", want: false},
		{name: "decomposed query", text: "메이플", query: norm.NFD.String("메이"), want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Search(tc.text, tc.query); got != tc.want {
				t.Fatalf("Search(%q, %q) = %v, want %v", tc.text, tc.query, got, tc.want)
			}
		})
	}
}

func TestMatchesByChoseong(t *testing.T) {
	if !MatchesByChoseong("하드 보스", "") {
		t.Fatalf("empty query should match")
	}
	if !MatchesByChoseong("하드 보스", "ㅂㅅ") {
		t.Fatalf("expected choseong match")
	}
	if MatchesByChoseong("하드 보스", "ㄱ") {
		t.Fatalf("unexpected choseong match")
	}
}
