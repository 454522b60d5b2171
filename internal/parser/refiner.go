package parser

import (
	"strings"

	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/internal/normalizer"
)

// Municipality is the gazetteer city field split into county, city and ward.
// County and Ward are never both set.
type Municipality struct {
	County *string
	City   *string
	Ward   *string
}

// RefineMunicipality reclassifies a gazetteer city.
//
//	西牟婁郡白浜町 -> county 西牟婁郡, city 白浜町
//	大阪市中央区   -> city 大阪市, ward 中央区 (outside Tokyo only)
//	郡山市         -> unchanged; a leading 郡 is part of the city name
func RefineMunicipality(pref, city string, glyphs normalizer.MunicipalityRules) Municipality {
	if i := strings.Index(city, glyphs.CountyGlyph); i > 0 {
		end := i + len(glyphs.CountyGlyph)
		return Municipality{
			County: models.Optional(city[:end]),
			City:   models.Optional(city[end:]),
		}
	}

	if pref != glyphs.Tokyo && strings.Contains(city, glyphs.WardGlyph) {
		if i := strings.Index(city, glyphs.CityGlyph); i >= 0 {
			end := i + len(glyphs.CityGlyph)
			if ward := city[end:]; ward != "" {
				return Municipality{
					City: models.Optional(city[:end]),
					Ward: models.Optional(ward),
				}
			}
		}
	}

	return Municipality{City: models.Optional(city)}
}
