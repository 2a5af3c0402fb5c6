package report

import (
	"sort"
	"strings"
	"unicode"
)

// WordCount is one entry of a word frequency table.
type WordCount struct {
	Word  string
	Count int
}

// stopwords is the english stopword list applied before counting,
// matching NLTK's set closely enough for overview text.
var stopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`
		i me my myself we our ours ourselves you your yours yourself
		yourselves he him his himself she her hers herself it its itself
		they them their theirs themselves what which who whom this that
		these those am is are was were be been being have has had having
		do does did doing a an the and but if or because as until while
		of at by for with about against between into through during
		before after above below to from up down in out on off over
		under again further then once here there when where why how all
		any both each few more most other some such no nor not only own
		same so than too very s t can will just don should now d ll m o
		re ve y ain aren couldn didn doesn hadn hasn haven isn ma mightn
		mustn needn shan shouldn wasn weren won wouldn`) {
		stopwords[w] = true
	}
}

// Tokenize lowercases a text and returns its alphabetic, non-stopword
// tokens.
func Tokenize(text string) []string {
	var tokens []string
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	}) {
		tok = strings.Trim(tok, "'")
		if tok != "" && !stopwords[tok] {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// TopWords counts tokens over all texts and returns the n most frequent,
// ties broken alphabetically so the output is stable.
func TopWords(texts []string, n int) []WordCount {
	counts := map[string]int{}
	for _, text := range texts {
		for _, tok := range Tokenize(text) {
			counts[tok]++
		}
	}

	out := make([]WordCount, 0, len(counts))
	for word, count := range counts {
		out = append(out, WordCount{Word: word, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
