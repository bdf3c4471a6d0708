// Package parse extracts structured analyses from free-form model responses.
//
// The upstream model is non-deterministic, so every entry point degrades
// instead of failing: an attribute whose label never appears keeps a zero
// score and an empty description, and a response matching nothing at all
// yields zero-valued analyses carrying the raw text in Description.
package parse

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jwpark-dev/facearena/internal/domain/model"
)

// Score bounds for every attribute and for the computed average.
const (
	minScore = 0
	maxScore = 10
)

// MaxSubjects is the largest comparison the response format supports.
const MaxSubjects = 4

// ordinals are the Korean ordinal words labelling comparison blocks.
var ordinals = [MaxSubjects]string{"첫", "두", "세", "네"}

var (
	averagePattern = regexp.MustCompile(`평균[^\S\n]*점수[^\S\n]*[:：][^\S\n]*(\d+(?:\.\d+)?)[^\S\n]*점`)
	personaPattern = regexp.MustCompile(`(?m)^[^\S\n]*(?:[-*#•][^\S\n]*)*페르소나[^\S\n]*[:：][^\S\n]*([^\n]+)`)
	verdictPattern = regexp.MustCompile(`최종[^\S\n]*평가[^\S\n]*[:：][^\S\n]*([\s\S]+)`)
)

// personaBulletPatterns capture the per-subject persona bullets of a
// comparison response ("- 두 번째: ...").
var personaBulletPatterns = func() [MaxSubjects]*regexp.Regexp {
	var ps [MaxSubjects]*regexp.Regexp
	for i, ord := range ordinals {
		ps[i] = regexp.MustCompile(`(?m)^[^\S\n]*[-*•][^\S\n]*` + ord + `[^\S\n]*번째[^\S\n]*[:：][^\S\n]*([^\n]+)`)
	}
	return ps
}()

// Single parses a single-subject response into one Analysis.
func Single(text string) model.Analysis {
	out := parseBlock(text)
	if m := personaPattern.FindStringSubmatch(text); m != nil {
		out.Persona = strings.TrimSpace(m[1])
	}
	if empty(&out) && out.Persona == "" {
		return fallback(text)
	}
	return out
}

// Comparison parses an n-subject comparison response (2 <= n <= 4) into n
// analyses, one per labelled block.
//
// Block-to-subject mapping is positional: the i-th labelled block belongs
// to the i-th participant in caller order. A "최종 순위" section stated by
// the model is not reconciled against block order; position wins.
func Comparison(text string, n int) []model.Analysis {
	if n < 2 {
		n = 2
	}
	if n > MaxSubjects {
		n = MaxSubjects
	}

	blocks := splitBlocks(text, n)
	if blocks == nil {
		// No section markers at all: degrade to n copies of the raw text,
		// ranked by position so callers still get a definite ordering.
		out := make([]model.Analysis, n)
		for i := range out {
			out[i] = fallback(text)
			out[i].Rank = i + 1
		}
		return out
	}

	verdict := ""
	if m := verdictPattern.FindStringSubmatch(text); m != nil {
		verdict = strings.TrimSpace(m[1])
	}

	out := make([]model.Analysis, n)
	for i := range out {
		out[i] = parseBlock(blocks[i])
		if m := personaBulletPatterns[i].FindStringSubmatch(text); m != nil {
			out[i].Persona = strings.TrimSpace(m[1])
		}
		out[i].Description = verdict
	}
	assignRanks(out)
	return out
}

// parseBlock extracts the five attribute scores plus the average from one
// block of text. Unmatched attributes keep zero score and empty
// description.
func parseBlock(block string) model.Analysis {
	var out model.Analysis
	for _, a := range Attributes {
		m := scorePatterns[a].FindStringSubmatch(block)
		if m == nil {
			continue
		}
		score := clampScore(parseNumber(m[1]))
		desc := strings.TrimSpace(m[2])
		if looksStructural(desc) {
			desc = ""
		}
		a.set(&out, score, desc)
	}
	out.AverageScore = averageOf(block, &out)
	return out
}

// averageOf prefers an explicit "평균 점수: N점" capture anywhere in the
// block; otherwise it averages the sub-scores that were actually found.
// Zero is the "not found" sentinel, so zero-valued scores are excluded
// from the computed mean.
func averageOf(block string, a *model.Analysis) float64 {
	if m := averagePattern.FindStringSubmatch(block); m != nil {
		return clampScore(parseNumber(m[1]))
	}
	sum, count := 0.0, 0
	for _, attr := range Attributes {
		if v := attr.get(a); v > 0 {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return clampScore(sum / float64(count))
}

// assignRanks orders comparison analyses by average score descending and
// writes 1-based ranks. Equal averages keep block order, so earlier
// positions rank first.
func assignRanks(out []model.Analysis) {
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return out[idx[i]].AverageScore > out[idx[j]].AverageScore
	})
	for rank, i := range idx {
		out[i].Rank = rank + 1
	}
}

// splitBlocks slices the text into n per-subject blocks delimited by the
// "<ordinal> 번째 얼굴 분석" markers. Returns nil when the first marker is
// missing. A missing later marker folds the remainder into the previous
// block, leaving the absent subjects zero-valued.
func splitBlocks(text string, n int) []string {
	starts := make([]int, 0, n)
	for i := 0; i < n; i++ {
		marker := ordinals[i] + " 번째 얼굴 분석"
		pos := strings.Index(text, marker)
		if pos < 0 {
			if i == 0 {
				return nil
			}
			break
		}
		starts = append(starts, pos)
	}

	blocks := make([]string, n)
	for i := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		blocks[i] = text[starts[i]:end]
	}
	return blocks
}

// fallback is the all-zero Analysis carrying the raw text, returned when
// nothing in the response matched.
func fallback(text string) model.Analysis {
	return model.Analysis{Description: text}
}

// empty reports whether nothing was extracted from a block.
func empty(a *model.Analysis) bool {
	return a.AverageScore == 0 &&
		a.GoldenRatio == 0 && a.FacialFeatures == 0 && a.SkinTexture == 0 &&
		a.Impressiveness == 0 && a.GrowingCharm == 0 &&
		a.GoldenRatioDesc == "" && a.FacialFeaturesDesc == "" && a.SkinTextureDesc == "" &&
		a.ImpressivenessDesc == "" && a.GrowingCharmDesc == ""
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// clampScore folds NaN and negatives to 0 and caps at the scale maximum.
func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < minScore {
		return 0
	}
	if v > maxScore {
		return maxScore
	}
	return v
}

// looksStructural reports whether a captured description line is actually
// the next structural line of the response rather than free text.
func looksStructural(line string) bool {
	if line == "" {
		return true
	}
	switch {
	case strings.Contains(line, "점수"):
		return true
	case strings.Contains(line, "번째 얼굴 분석"):
		return true
	case strings.Contains(line, "페르소나"):
		return true
	case strings.Contains(line, "최종 순위"), strings.Contains(line, "최종 평가"):
		return true
	}
	return false
}
