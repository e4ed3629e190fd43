package sentiment

import (
	"context"
	"strings"
	"unicode"
)

// Label is a classifier output for one text
type Label struct {
	Label string  `json:"label"` // positive, negative, neutral
	Score float64 `json:"score"` // confidence in [0, 1]
}

const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// Scorer classifies a batch of texts. Output is aligned with input.
type Scorer interface {
	Score(ctx context.Context, texts []string) ([]Label, error)
}

// Signed maps a label to a signed sentiment in [-1, 1]
// ⭐ SSOT: 라벨 → 부호 있는 점수 변환은 여기서만
func Signed(l Label) float64 {
	label := strings.ToLower(l.Label)
	switch {
	case strings.Contains(label, "neg"):
		return -l.Score
	case strings.Contains(label, "pos"):
		return l.Score
	default:
		return 0
	}
}

// LexiconScorer is a word-list classifier for financial headlines
type LexiconScorer struct {
	positive map[string]struct{}
	negative map[string]struct{}
	negators map[string]struct{}
}

// NewLexiconScorer creates a scorer with the built-in finance word lists
func NewLexiconScorer() *LexiconScorer {
	return NewLexiconScorerWith(defaultPositive, defaultNegative)
}

// NewLexiconScorerWith creates a scorer with custom word lists
func NewLexiconScorerWith(positive, negative []string) *LexiconScorer {
	return &LexiconScorer{
		positive: toSet(positive),
		negative: toSet(negative),
		negators: toSet([]string{"not", "no", "never", "without", "fails", "failed"}),
	}
}

// Score implements Scorer
func (s *LexiconScorer) Score(ctx context.Context, texts []string) ([]Label, error) {
	out := make([]Label, len(texts))
	for i, text := range texts {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = s.classify(text)
	}
	return out, nil
}

func (s *LexiconScorer) classify(text string) Label {
	words := tokenize(text)

	var pos, neg int
	for i, w := range words {
		_, isPos := s.positive[w]
		_, isNeg := s.negative[w]
		if !isPos && !isNeg {
			continue
		}
		// 직전 단어가 부정어면 극성 반전
		if i > 0 {
			if _, flip := s.negators[words[i-1]]; flip {
				isPos, isNeg = isNeg, isPos
			}
		}
		if isPos {
			pos++
		}
		if isNeg {
			neg++
		}
	}

	total := pos + neg
	switch {
	case total == 0:
		return Label{Label: LabelNeutral, Score: 1}
	case pos > neg:
		return Label{Label: LabelPositive, Score: float64(pos) / float64(total)}
	case neg > pos:
		return Label{Label: LabelNegative, Score: float64(neg) / float64(total)}
	default:
		return Label{Label: LabelNeutral, Score: 0.5}
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

var defaultPositive = []string{
	"beat", "beats", "surge", "surges", "soar", "soars", "rally", "rallies", "gain", "gains",
	"jump", "jumps", "record", "upgrade", "upgraded", "outperform", "growth", "profit", "profits",
	"strong", "stronger", "raise", "raises", "raised", "boost", "boosts", "bullish", "rebound",
	"approval", "approved", "win", "wins", "expands", "exceeds", "higher", "positive",
}

var defaultNegative = []string{
	"miss", "misses", "missed", "plunge", "plunges", "drop", "drops", "fall", "falls", "slump",
	"slumps", "loss", "losses", "downgrade", "downgraded", "underperform", "weak", "weaker",
	"cut", "cuts", "lawsuit", "probe", "investigation", "recall", "bearish", "bankruptcy",
	"layoffs", "warning", "warns", "decline", "declines", "lower", "negative", "fraud", "halt",
}
