package dates

import (
	"regexp"
	"strings"

	"github.com/golang-sql/civil"
)

var reCompetencia = regexp.MustCompile(`(20\d\d)/([0-1]\d)`)

// CompetenciaFromPath extracts the reference month from a file path laid
// out as ".../2023/07/...". Windows separators are accepted. The result is
// the first day of that month.
func CompetenciaFromPath(path string) (civil.Date, bool) {
	m := reCompetencia.FindStringSubmatch(strings.ReplaceAll(path, `\`, "/"))
	if m == nil {
		return civil.Date{}, false
	}
	y, _ := atoiDigits(m[1])
	return firstOfMonth(y, atoi2(m[2]))
}
