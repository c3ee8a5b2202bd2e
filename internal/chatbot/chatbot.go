// Package chatbot answers student questions about attendance, exams
// and campus life. Matching is rule based: keyword overlap against a
// FAQ corpus plus a synonym bonus. An optional AI provider handles
// what the rules cannot.
package chatbot

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Entry is one FAQ item.
type Entry struct {
	Keywords []string `json:"keywords"`
	Answer   string   `json:"answer"`
	Category string   `json:"category"`
}

// Match is the outcome of scoring a query against the corpus.
type Match struct {
	Key        string
	Confidence float64
}

// Answerer generates a free-form answer when the FAQ corpus has none.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Bot matches queries against a FAQ corpus.
type Bot struct {
	entries       map[string]Entry
	keys          []string
	synonyms      map[string][]string
	minConfidence float64
	fallback      Answerer
	logger        zerolog.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithFallback routes unmatched queries to an AI provider.
func WithFallback(a Answerer) Option {
	return func(b *Bot) { b.fallback = a }
}

// WithLogger overrides the package logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// New creates a bot over the given corpus. Queries scoring below
// minConfidence get the fallback answer.
func New(entries map[string]Entry, minConfidence float64, opts ...Option) *Bot {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	b := &Bot{
		entries:       entries,
		keys:          keys,
		synonyms:      defaultSynonyms(),
		minConfidence: minConfidence,
		logger:        log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// Preprocess lowercases the query, strips diacritics and punctuation
// and collapses whitespace.
func Preprocess(query string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	query, _, _ = transform.String(t, query)
	query = strings.ToLower(query)
	query = punctuation.ReplaceAllString(query, " ")
	return strings.Join(strings.Fields(query), " ")
}

// FindBestMatch scores the query against every entry and returns the
// best one. The score is the keyword overlap ratio plus half credit
// for synonym hits. Entries are scanned in sorted key order, so equal
// scores resolve to the lexicographically smaller key every time.
func (b *Bot) FindBestMatch(query string) (Match, bool) {
	words := strings.Fields(Preprocess(query))
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}

	var best Match
	found := false
	for _, key := range b.keys {
		entry := b.entries[key]
		score := b.score(wordSet, entry.Keywords)
		if !found || score > best.Confidence {
			best = Match{Key: key, Confidence: score}
			found = true
		}
	}
	if !found || best.Confidence <= 0 {
		return Match{}, false
	}
	return best, true
}

func (b *Bot) score(wordSet map[string]bool, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	kwSet := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kwSet[kw] = true
	}

	common := 0
	for w := range wordSet {
		if kwSet[w] {
			common++
		}
	}
	score := float64(common) / float64(len(keywords))

	// Half credit when a query word is a synonym of a keyword.
	for w := range wordSet {
		for _, group := range b.synonyms {
			if !contains(group, w) {
				continue
			}
			for _, syn := range group {
				if kwSet[syn] {
					score += 0.5 / float64(len(keywords))
					break
				}
			}
		}
	}
	return score
}

// Respond answers the query. Below-threshold matches fall through to
// the AI provider when one is configured, otherwise to a canned
// suggestion keyed on the query topic.
func (b *Bot) Respond(ctx context.Context, query string) string {
	if strings.TrimSpace(query) == "" {
		return "Please ask a question. I can help with attendance, exams, policies, and more!"
	}

	match, ok := b.FindBestMatch(query)
	if ok && match.Confidence > b.minConfidence {
		entry := b.entries[match.Key]
		b.logger.Debug().
			Str("match", match.Key).
			Float64("confidence", match.Confidence).
			Msg("faq matched")
		return entry.Answer + categoryHint(entry.Category)
	}

	b.logger.Info().Str("query", query).Msg("unmatched chatbot query")

	if b.fallback != nil {
		answer, err := b.fallback.Answer(ctx, query)
		if err == nil && answer != "" {
			return answer
		}
		if err != nil {
			b.logger.Warn().Err(err).Msg("ai fallback failed")
		}
	}
	return suggestion(query)
}

// Categories returns the distinct corpus categories, sorted.
func (b *Bot) Categories() []string {
	seen := make(map[string]bool)
	for _, entry := range b.entries {
		category := entry.Category
		if category == "" {
			category = "general"
		}
		seen[category] = true
	}
	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories
}

// ByCategory returns the corpus entries in the given category.
func (b *Bot) ByCategory(category string) map[string]Entry {
	out := make(map[string]Entry)
	for key, entry := range b.entries {
		if entry.Category == category {
			out[key] = entry
		}
	}
	return out
}

// Len returns the corpus size.
func (b *Bot) Len() int {
	return len(b.entries)
}

func categoryHint(category string) string {
	switch category {
	case "attendance":
		return "\n\nTip: face the camera clearly for accurate attendance marking."
	case "academic":
		return "\n\nCheck the student portal for the latest academic information."
	case "policies":
		return "\n\nFor detailed policies, see the student handbook."
	default:
		return ""
	}
}

// suggestion picks a topic-specific nudge for unmatched queries. The
// choice depends only on the query text.
func suggestion(query string) string {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, "attendance", "present", "absent"):
		return "I can help with attendance questions! Ask about marking attendance, checking records, or attendance policies."
	case containsAny(q, "exam", "test", "grade"):
		return "I can help with academic questions! Ask about exam schedules, grades, or academic policies."
	case containsAny(q, "help", "support", "contact"):
		return "For immediate help, contact student services at (555) 123-4567 or visit the student portal."
	default:
		return "I'm not sure about that. Try asking about attendance, exams, policies, or campus facilities."
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func defaultSynonyms() map[string][]string {
	return map[string][]string{
		"attendance": {"attendance", "present", "absent", "mark", "check", "roll call"},
		"exam":       {"exam", "test", "quiz", "assessment", "evaluation"},
		"leave":      {"leave", "absence", "sick", "emergency", "permission", "holiday"},
		"grade":      {"grade", "marks", "score", "result", "gpa", "points"},
		"library":    {"library", "book", "borrow", "return", "fine", "catalog"},
		"food":       {"food", "cafeteria", "lunch", "meal", "dining", "eat"},
		"parking":    {"parking", "vehicle", "car", "bike", "space", "garage"},
		"help":       {"help", "support", "contact", "phone", "email", "assistance"},
	}
}
