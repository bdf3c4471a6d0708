package judge

import (
	"lukechampine.com/frand"

	"github.com/jwpark-dev/facearena/internal/domain/model"
)

// Fallback score range. Placeholder scores sit in the unremarkable middle
// of the scale so a degraded result neither flatters nor insults.
const (
	fallbackScoreMin  = 5.0
	fallbackScoreSpan = 2.5
)

// fallbackDescription flags the analysis as a temporary-error substitute.
const fallbackDescription = "일시적인 오류로 임시 분석 결과를 제공합니다. 잠시 후 다시 시도해 주세요."

// FallbackAnalysis builds the clearly-flagged placeholder substituted when
// the model stays overloaded past the retry budget. Scores are randomized
// so repeated failures do not pile identical entries into the data.
func FallbackAnalysis() model.Analysis {
	a := model.Analysis{
		GoldenRatio:    fallbackScore(),
		FacialFeatures: fallbackScore(),
		SkinTexture:    fallbackScore(),
		Impressiveness: fallbackScore(),
		GrowingCharm:   fallbackScore(),
		Description:    fallbackDescription,
	}
	a.AverageScore = (a.GoldenRatio + a.FacialFeatures + a.SkinTexture + a.Impressiveness + a.GrowingCharm) / 5
	return a
}

// FallbackComparison builds n placeholder analyses with positional ranks.
func FallbackComparison(n int) []model.Analysis {
	out := make([]model.Analysis, n)
	for i := range out {
		out[i] = FallbackAnalysis()
		out[i].Rank = i + 1
	}
	return out
}

func fallbackScore() float64 {
	// One decimal place, like the model's own scores.
	return fallbackScoreMin + float64(frand.Intn(int(fallbackScoreSpan*10)))/10
}
