package judge

import (
	"fmt"
	"strings"
)

// maxComparisonSubjects matches the largest comparison format the parser
// understands.
const maxComparisonSubjects = 4

var comparisonOrdinals = [maxComparisonSubjects]string{"첫", "두", "세", "네"}

// singlePrompt asks the model to score one face in the exact line format
// the parser extracts: "<라벨> 점수: N점" followed by one justification
// line per attribute, an explicit average, and a persona tagline.
const singlePrompt = `당신은 얼굴 평가 전문가입니다. 제공된 얼굴 사진을 분석하고, 아래 형식을 정확히 지켜서 답변해 주세요. 각 점수는 0점에서 10점 사이로 매기고, 점수 아래 줄에 한 줄짜리 이유를 적어 주세요.

황금비율 점수: N점
(이유 한 줄)
이목구비 점수: N점
(이유 한 줄)
피부 텍스처 점수: N점
(이유 한 줄)
분위기 점수: N점
(이유 한 줄)
볼매력 점수: N점
(이유 한 줄)
평균 점수: N점
페르소나: (짧은 별명 한 줄)`

// comparisonPrompt builds the n-subject comparison prompt. Subjects are
// addressed strictly in the order the images are attached; the parser maps
// the i-th block back to the i-th participant by position.
func comparisonPrompt(n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "당신은 얼굴 평가 전문가입니다. %d장의 얼굴 사진을 첨부된 순서대로 비교 분석해 주세요. 사진마다 아래 블록 형식을 정확히 지켜 주세요.\n\n", n)

	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%s 번째 얼굴 분석\n", comparisonOrdinals[i])
		b.WriteString(`황금비율 점수: N점
(이유 한 줄)
이목구비 점수: N점
(이유 한 줄)
피부 텍스처 점수: N점
(이유 한 줄)
분위기 점수: N점
(이유 한 줄)
볼매력 점수: N점
(이유 한 줄)
평균 점수: N점

`)
	}

	b.WriteString("모든 블록 다음에:\n페르소나:\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "- %s 번째: (짧은 별명)\n", comparisonOrdinals[i])
	}
	if n > 2 {
		b.WriteString("최종 순위: (예: 2위 > 1위 > 3위)\n")
	}
	b.WriteString("최종 평가: (전체 비교 총평)")
	return b.String()
}
