// Package lyric splits raw lyric text into syllables with stress and
// phrase-boundary metadata. Tokenization happens once per section;
// the syllables are read-only afterwards except when a shared verse
// form re-derives phrase boundaries.
package lyric

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jsphweid/choirgen/model"
)

var (
	tokenRe = regexp.MustCompile(`[A-Za-z']+(?:-[A-Za-z']+)*|[.,;?!]`)
	vowelRe = regexp.MustCompile(`[^aeiouy]*[aeiouy]+(?:[^aeiouy]|$)`)
)

var punctuation = map[string]bool{".": true, ",": true, ";": true, "?": true, "!": true}

// Suffixes that pull stress onto the syllable just before them.
var stressShiftSuffixes = []string{"tion", "sion", "cian", "cious", "tious"}

// LinesFromText turns free section text into phrase blocks, one per
// non-empty line.
func LinesFromText(text string) []model.LyricLine {
	var lines []model.LyricLine
	for _, raw := range strings.Split(text, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		lines = append(lines, model.LyricLine{Text: raw})
	}
	return lines
}

// TokenizeSection splits a section's phrase blocks into syllables.
// Phrase boundaries come from, in priority order: the end of a block
// unless it is flagged merge-with-next, trailing punctuation, and an
// explicit breath flag (which also forces a phrase end). The final
// syllable of the section is always a phrase end.
func TokenizeSection(sectionID string, lines []model.LyricLine) []model.Syllable {
	var out []model.Syllable
	counter := 0
	wordIndex := -1

	for _, line := range lines {
		tokens := tokenRe.FindAllString(line.Text, -1)
		lineStart := len(out)

		for i, tok := range tokens {
			if punctuation[tok] {
				if len(out) > 0 {
					out[len(out)-1].PhraseEndAfter = true
				}
				continue
			}

			wordIndex++
			parts := strings.Split(tok, "-")
			for partIdx, part := range parts {
				sylls := SplitWord(part)
				stresses := stressPattern(sylls)
				for si, syl := range sylls {
					out = append(out, model.Syllable{
						ID:                  fmt.Sprintf("%s-syl-%d", sectionID, counter),
						Text:                syl,
						SectionID:           sectionID,
						WordIndex:           wordIndex,
						SyllableIndexInWord: si,
						WordText:            tok,
						Hyphenated:          len(parts) > 1 && partIdx < len(parts)-1,
						Stressed:            stresses[si],
					})
					counter++
				}
			}

			if i+1 < len(tokens) && punctuation[tokens[i+1]] {
				out[len(out)-1].PhraseEndAfter = true
			}
		}

		if len(out) > lineStart {
			if !line.MergeWithNext {
				out[len(out)-1].PhraseEndAfter = true
			}
			if line.BreathAfter {
				out[len(out)-1].PhraseEndAfter = true
				out[len(out)-1].BreathAfter = true
			}
		}
	}

	if len(out) > 0 {
		out[len(out)-1].PhraseEndAfter = true
	}
	for i := range out {
		out[i].BarlineAligned = out[i].PhraseEndAfter
	}
	return out
}

// SplitWord breaks a word into syllable chunks with a vowel-cluster
// heuristic: leading consonants plus a vowel run plus at most one
// trailing consonant form a chunk. Words of three letters or fewer
// stay whole.
func SplitWord(word string) []string {
	w := strings.ToLower(word)
	if len(w) <= 3 {
		return []string{word}
	}
	chunks := vowelRe.FindAllString(w, -1)
	if len(chunks) == 0 {
		return []string{word}
	}
	var rebuilt []string
	cursor := 0
	for _, c := range chunks {
		end := cursor + len(c)
		if end > len(word) {
			end = len(word)
		}
		if end > cursor {
			rebuilt = append(rebuilt, word[cursor:end])
		}
		cursor = end
	}
	if cursor < len(word) && len(rebuilt) > 0 {
		rebuilt[len(rebuilt)-1] += word[cursor:]
	}
	if len(rebuilt) == 0 {
		return []string{word}
	}
	return rebuilt
}

// stressPattern assigns primary stress within one word. Monosyllables
// are stressed; suffixes like "-tion" pull stress onto the syllable
// before them; otherwise the first syllable plus any long syllable
// gets stress.
func stressPattern(sylls []string) []bool {
	n := len(sylls)
	out := make([]bool, n)
	if n == 0 {
		return out
	}
	if n == 1 {
		out[0] = true
		return out
	}

	last := strings.ToLower(sylls[n-1])
	for _, suffix := range stressShiftSuffixes {
		if strings.HasSuffix(last, suffix) {
			out[n-2] = true
			return out
		}
	}

	out[0] = true
	for i := 1; i < n; i++ {
		if len(sylls[i]) >= 4 {
			out[i] = true
		}
	}
	return out
}
