// Package parse extracts structured analyses from free-form model responses.
package parse

import (
	"regexp"

	"github.com/jwpark-dev/facearena/internal/domain/model"
)

// Attribute identifies one of the five scored facial attributes. The set is
// closed: text extraction maps label matches onto typed Analysis fields
// through an exhaustive switch, never through string-keyed lookup.
type Attribute int

const (
	GoldenRatio Attribute = iota
	FacialFeatures
	SkinTexture
	Impressiveness
	GrowingCharm
)

// Attributes lists all scored attributes in block order.
var Attributes = [5]Attribute{GoldenRatio, FacialFeatures, SkinTexture, Impressiveness, GrowingCharm}

// Label returns the Korean label the model uses for the attribute.
func (a Attribute) Label() string {
	switch a {
	case GoldenRatio:
		return "황금비율"
	case FacialFeatures:
		return "이목구비"
	case SkinTexture:
		return "피부 텍스처"
	case Impressiveness:
		return "분위기"
	case GrowingCharm:
		return "볼매력"
	default:
		return ""
	}
}

func (a Attribute) String() string { return a.Label() }

// set writes a score and its description onto the matching Analysis fields.
func (a Attribute) set(out *model.Analysis, score float64, desc string) {
	switch a {
	case GoldenRatio:
		out.GoldenRatio = score
		out.GoldenRatioDesc = desc
	case FacialFeatures:
		out.FacialFeatures = score
		out.FacialFeaturesDesc = desc
	case SkinTexture:
		out.SkinTexture = score
		out.SkinTextureDesc = desc
	case Impressiveness:
		out.Impressiveness = score
		out.ImpressivenessDesc = desc
	case GrowingCharm:
		out.GrowingCharm = score
		out.GrowingCharmDesc = desc
	}
}

// get reads the score stored for the attribute.
func (a Attribute) get(in *model.Analysis) float64 {
	switch a {
	case GoldenRatio:
		return in.GoldenRatio
	case FacialFeatures:
		return in.FacialFeatures
	case SkinTexture:
		return in.SkinTexture
	case Impressiveness:
		return in.Impressiveness
	case GrowingCharm:
		return in.GrowingCharm
	default:
		return 0
	}
}

// scorePatterns captures "<label> 점수: N점" plus the following line, which
// carries the justification text for that attribute.
var scorePatterns = func() map[Attribute]*regexp.Regexp {
	m := make(map[Attribute]*regexp.Regexp, len(Attributes))
	for _, a := range Attributes {
		m[a] = regexp.MustCompile(
			`(?m)^[^\S\n]*(?:[-*#•][^\S\n]*)*` + regexp.QuoteMeta(a.Label()) +
				`[^\S\n]*점수[^\S\n]*[:：][^\S\n]*(\d+(?:\.\d+)?)[^\S\n]*점?[^\n]*\n?([^\n]*)`)
	}
	return m
}()
