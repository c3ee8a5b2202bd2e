package chatbot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testBot(t *testing.T, opts ...Option) *Bot {
	t.Helper()
	entries, err := LoadCorpus("")
	if err != nil {
		t.Fatalf("loading default corpus: %v", err)
	}
	return New(entries, 0.3, opts...)
}

func TestPreprocess(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"How does ATTENDANCE work?", "how does attendance work"},
		{"  what's   the    leave policy?! ", "what s the leave policy"},
		{"Jiří's grades", "jiri s grades"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Preprocess(tt.in); got != tt.want {
			t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFindBestMatch(t *testing.T) {
	b := testBot(t)

	tests := []struct {
		query string
		want  string
	}{
		{"how is attendance marked?", "attendance"},
		{"when is the exam date?", "exam schedule"},
		{"what is the leave policy for sick days", "leave policy"},
		{"library book borrow", "library"},
	}
	for _, tt := range tests {
		match, ok := b.FindBestMatch(tt.query)
		if !ok {
			t.Errorf("FindBestMatch(%q): no match", tt.query)
			continue
		}
		if match.Key != tt.want {
			t.Errorf("FindBestMatch(%q) = %q, want %q", tt.query, match.Key, tt.want)
		}
	}
}

func TestFindBestMatch_Deterministic(t *testing.T) {
	b := testBot(t)
	first, ok := b.FindBestMatch("attendance exam library parking")
	if !ok {
		t.Fatal("expected a match")
	}
	for range 50 {
		match, ok := b.FindBestMatch("attendance exam library parking")
		if !ok || match.Key != first.Key {
			t.Fatalf("non-deterministic match: %q vs %q", match.Key, first.Key)
		}
	}
}

func TestFindBestMatch_SynonymBonus(t *testing.T) {
	b := testBot(t)
	// "quiz" is not a keyword anywhere but is a synonym of "exam".
	match, ok := b.FindBestMatch("quiz schedule")
	if !ok {
		t.Fatal("expected a match via synonym")
	}
	if match.Key != "exam schedule" {
		t.Errorf("got %q, want exam schedule", match.Key)
	}
}

func TestRespond(t *testing.T) {
	b := testBot(t)
	ctx := context.Background()

	resp := b.Respond(ctx, "how does attendance work?")
	if !strings.Contains(resp, "face recognition") {
		t.Errorf("unexpected attendance answer: %q", resp)
	}
	if !strings.Contains(resp, "Tip:") {
		t.Errorf("attendance answer missing category hint: %q", resp)
	}

	if resp := b.Respond(ctx, ""); !strings.Contains(resp, "Please ask a question") {
		t.Errorf("unexpected empty-query answer: %q", resp)
	}
}

func TestRespond_UnmatchedSuggestions(t *testing.T) {
	b := testBot(t)
	ctx := context.Background()

	resp := b.Respond(ctx, "zzz unrelated gibberish")
	if !strings.Contains(resp, "Try asking about") {
		t.Errorf("unexpected fallback: %q", resp)
	}

	// Same unmatched query, same answer.
	if again := b.Respond(ctx, "zzz unrelated gibberish"); again != resp {
		t.Error("fallback answer not deterministic")
	}
}

type fakeAnswerer struct {
	answer string
	err    error
	asked  []string
}

func (f *fakeAnswerer) Answer(_ context.Context, question string) (string, error) {
	f.asked = append(f.asked, question)
	return f.answer, f.err
}

func TestRespond_AIFallback(t *testing.T) {
	ai := &fakeAnswerer{answer: "The answer is 42."}
	b := testBot(t, WithFallback(ai))

	resp := b.Respond(context.Background(), "xyzzy plugh")
	if resp != "The answer is 42." {
		t.Errorf("expected ai answer, got %q", resp)
	}
	if len(ai.asked) != 1 {
		t.Errorf("ai asked %d times", len(ai.asked))
	}

	// Matched queries never reach the provider.
	b.Respond(context.Background(), "how does attendance work?")
	if len(ai.asked) != 1 {
		t.Error("ai consulted for a matched query")
	}
}

func TestRespond_AIFallbackErrorFallsThrough(t *testing.T) {
	ai := &fakeAnswerer{err: errors.New("rate limited")}
	b := testBot(t, WithFallback(ai))

	resp := b.Respond(context.Background(), "xyzzy plugh")
	if !strings.Contains(resp, "Try asking about") {
		t.Errorf("expected canned fallback after ai error, got %q", resp)
	}
}

func TestLoadCorpus_UserFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faq.json")
	content := `{"wifi": {"keywords": ["wifi", "internet"], "answer": "Campus wifi is eduroam.", "category": "facilities"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadCorpus(path)
	if err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	if len(entries) != 1 || entries["wifi"].Answer == "" {
		t.Errorf("unexpected corpus: %+v", entries)
	}
}

func TestLoadCorpus_RejectsInvalidFile(t *testing.T) {
	tests := []struct {
		name, content string
	}{
		{"missing answer", `{"wifi": {"keywords": ["wifi"]}}`},
		{"empty keywords", `{"wifi": {"keywords": [], "answer": "x"}}`},
		{"empty corpus", `{}`},
		{"unknown field", `{"wifi": {"keywords": ["wifi"], "answer": "x", "priority": 1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "faq.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadCorpus(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCategories(t *testing.T) {
	b := testBot(t)
	categories := b.Categories()
	want := []string{"academic", "attendance", "facilities", "policies", "support"}
	if len(categories) != len(want) {
		t.Fatalf("categories = %v, want %v", categories, want)
	}
	for i := range want {
		if categories[i] != want[i] {
			t.Errorf("categories[%d] = %q, want %q", i, categories[i], want[i])
		}
	}

	if got := len(b.ByCategory("attendance")); got != 2 {
		t.Errorf("expected 2 attendance entries, got %d", got)
	}
}
