package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Keyword density thresholds, in percent of all words, outside which a
// suggestion is made.
const (
	MinKeywordDensity = 0.5
	MaxKeywordDensity = 2.0

	// DefaultTopWords is the number of most frequent words reported.
	DefaultTopWords = 10
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// KeywordDensity is how often one target keyword occurs in a text.
type KeywordDensity struct {
	Keyword string  `json:"keyword"`
	Count   int     `json:"count"`
	Density float64 `json:"density_percent"`
}

// WordCount is a word and its number of occurrences.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// KeywordAnalysis summarizes keyword usage in a text.
type KeywordAnalysis struct {
	TotalWords  int              `json:"total_words"`
	Targets     []KeywordDensity `json:"targets"`
	TopWords    []WordCount      `json:"top_words"`
	Suggestions []string         `json:"suggestions"`
}

// AnalyzeKeywords counts the words of text case-insensitively, reports the
// density of every target keyword and the top most frequent words, and
// suggests adjustments for targets used too little or too much.
//
// A multi-word keyword is counted as a phrase of consecutive words.
func AnalyzeKeywords(text string, targets []string, top int) KeywordAnalysis {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)

	analysis := KeywordAnalysis{
		TotalWords:  len(words),
		Targets:     []KeywordDensity{},
		TopWords:    []WordCount{},
		Suggestions: []string{},
	}
	if len(words) == 0 {
		return analysis
	}

	for _, keyword := range targets {
		phrase := wordPattern.FindAllString(strings.ToLower(keyword), -1)
		if len(phrase) == 0 {
			continue
		}

		count := countPhrase(words, phrase)
		density := float64(count) * 100 / float64(len(words))
		analysis.Targets = append(analysis.Targets, KeywordDensity{
			Keyword: keyword,
			Count:   count,
			Density: density,
		})

		switch {
		case density < MinKeywordDensity:
			analysis.Suggestions = append(analysis.Suggestions,
				fmt.Sprintf("Consider increasing usage of %q.", keyword))
		case density > MaxKeywordDensity:
			analysis.Suggestions = append(analysis.Suggestions,
				fmt.Sprintf("Consider reducing usage of %q to avoid keyword stuffing.", keyword))
		}
	}

	analysis.TopWords = topWords(words, top)
	return analysis
}

func countPhrase(words, phrase []string) int {
	count := 0
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, w := range phrase {
			if words[i+j] != w {
				match = false
				break
			}
		}
		if match {
			count++
		}
	}
	return count
}

// topWords returns the n most frequent words. Ties are ordered alphabetically.
func topWords(words []string, n int) []WordCount {
	if n <= 0 {
		return []WordCount{}
	}

	counts := make(map[string]int)
	for _, w := range words {
		counts[w]++
	}

	all := make([]WordCount, 0, len(counts))
	for w, c := range counts {
		all = append(all, WordCount{Word: w, Count: c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Word < all[j].Word
	})

	if len(all) > n {
		all = all[:n]
	}
	return all
}

// Content joins the generated sections as "## Title" blocks in position
// order. Sections without text are left out.
func (r *Report) Content() string {
	var blocks []string
	for _, s := range r.Sections {
		if s.Status != SectionStatusGenerated || s.GeneratedText == nil {
			continue
		}
		blocks = append(blocks, "## "+s.Title+"\n"+strings.TrimSpace(*s.GeneratedText))
	}
	return strings.Join(blocks, "\n\n")
}
