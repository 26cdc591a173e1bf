package assessment

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError marks a malformed or incomplete submission. It is a
// caller-level error: nothing is persisted when scoring returns one.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Outcome band labels, kept verbatim from the questionnaires' source forms.
const (
	BandSelfEsteemLow    = "Autoestima Baja"
	BandSelfEsteemMedium = "Autoestima Media"
	BandSelfEsteemHigh   = "Autoestima Alta"

	BandSkillsVeryLow  = "Muy bajo"
	BandSkillsLow      = "Bajo"
	BandSkillsAverage  = "Promedio"
	BandSkillsAdequate = "Adecuado"

	BandHealthAdequate = "Salud adecuada"
	BandHealthMild     = "Riesgo leve"
	BandHealthModerate = "Riesgo moderado"
	BandHealthHigh     = "Riesgo alto"

	BandScreenNone     = "Sin indicios"
	BandScreenEvaluate = "Requiere evaluación"
	BandAlcoholNoRisk  = "Sin riesgo"
	BandAlcoholAtRisk  = "Consumo de riesgo"

	BandNeuroNotSignificant = "No significativo"
	BandNeuroMild           = "Leve"
	BandNeuroModerate       = "Moderado"
	BandNeuroElevated       = "Elevado"
)

// ScoreSelfEsteem sums the ten Rosenberg items. Exactly ten numeric answers
// under "p"-prefixed keys must be present.
func ScoreSelfEsteem(answers map[string]string) (string, error) {
	sum := 0
	count := 0
	for k, v := range answers {
		if !strings.HasPrefix(k, "p") {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		sum += n
		count++
	}
	if count != 10 {
		return "", invalidf("faltan respuestas en el cuestionario: %d de 10", count)
	}
	switch {
	case sum <= 15:
		return BandSelfEsteemLow, nil
	case sum <= 25:
		return BandSelfEsteemMedium, nil
	default:
		return BandSelfEsteemHigh, nil
	}
}

// learningDimensions fixes both the item layout and the tie-break order:
// on equal sums the first dimension listed here wins.
var learningDimensions = []struct {
	name  string
	items [5]int
}{
	{"Activo", [5]int{1, 5, 9, 13, 17}},
	{"Reflexivo", [5]int{2, 6, 10, 14, 18}},
	{"Teórico", [5]int{3, 7, 11, 15, 19}},
	{"Pragmático", [5]int{4, 8, 12, 16, 20}},
}

// ScoreLearningStyles sums items p1..p20 into four dimensions and returns
// the dominant one.
func ScoreLearningStyles(answers map[string]string) (string, error) {
	values := make(map[int]int, 20)
	for i := 1; i <= 20; i++ {
		raw, ok := answers["p"+strconv.Itoa(i)]
		if !ok {
			return "", invalidf("falta la respuesta p%d", i)
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", invalidf("respuesta p%d no numérica", i)
		}
		values[i] = n
	}

	best := ""
	bestSum := 0
	for _, dim := range learningDimensions {
		sum := 0
		for _, item := range dim.items {
			sum += values[item]
		}
		if best == "" || sum > bestSum {
			best = dim.name
			bestSum = sum
		}
	}
	return best, nil
}

// ScoreSkills counts "no" answers across all submitted items.
func ScoreSkills(answers map[string]string) string {
	no := 0
	for _, v := range answers {
		if v == "no" {
			no++
		}
	}
	switch {
	case no >= 16:
		return BandSkillsVeryLow
	case no >= 13:
		return BandSkillsLow
	case no >= 10:
		return BandSkillsAverage
	default:
		return BandSkillsAdequate
	}
}

// ScoreHealth counts affirmative answers case-insensitively and returns the
// band together with the raw answers retained for authorized review. The
// caller-identity field is dropped before retention.
func ScoreHealth(answers map[string]string) (string, map[string]string) {
	points := 0
	retained := make(map[string]string, len(answers))
	for k, v := range answers {
		if strings.ToLower(v) == "si" {
			points++
		}
		if k == "alumno" {
			continue
		}
		retained[k] = v
	}

	var band string
	switch {
	case points <= 2:
		band = BandHealthAdequate
	case points <= 5:
		band = BandHealthMild
	case points <= 8:
		band = BandHealthModerate
	default:
		band = BandHealthHigh
	}
	return band, retained
}

// ScreeningResult carries the four sub-scale bands of the screening battery.
type ScreeningResult struct {
	Depression      string
	Anxiety         string
	Alcohol         string
	Neurodivergence string
}

// Entries lists the four sub-results under their persisted tags, in the
// battery's fixed order.
func (r ScreeningResult) Entries() [][2]string {
	return [][2]string{
		{TagScreeningDepression, r.Depression},
		{TagScreeningAnxiety, r.Anxiety},
		{TagScreeningAlcohol, r.Alcohol},
		{TagScreeningNeuro, r.Neurodivergence},
	}
}

// Composite renders the legacy single-string form of the battery outcome.
func (r ScreeningResult) Composite() string {
	return fmt.Sprintf("Depresión: %s | Ansiedad: %s | Alcohol: %s | Neurodivergencia: %s",
		r.Depression, r.Anxiety, r.Alcohol, r.Neurodivergence)
}

// AtRiskBands are the sub-scale outcomes that flag a class as requiring
// attention on the dashboard.
var AtRiskBands = map[string]bool{
	BandScreenEvaluate: true,
	BandAlcoholAtRisk:  true,
	BandNeuroElevated:  true,
	BandNeuroModerate:  true,
}

// ScoreScreening evaluates the four sub-scales: depression d1-d2, anxiety
// a1-a2, alcohol al1-al3 and neurodivergence n1-n17.
func ScoreScreening(answers map[string]string) (ScreeningResult, error) {
	dep, err := sumItems(answers, "d", 2)
	if err != nil {
		return ScreeningResult{}, err
	}
	anx, err := sumItems(answers, "a", 2)
	if err != nil {
		return ScreeningResult{}, err
	}
	alcohol, err := sumItems(answers, "al", 3)
	if err != nil {
		return ScreeningResult{}, err
	}
	neuro, err := sumItems(answers, "n", 17)
	if err != nil {
		return ScreeningResult{}, err
	}

	out := ScreeningResult{
		Depression: BandScreenNone,
		Anxiety:    BandScreenNone,
		Alcohol:    BandAlcoholNoRisk,
	}
	if dep > 2 {
		out.Depression = BandScreenEvaluate
	}
	if anx > 2 {
		out.Anxiety = BandScreenEvaluate
	}
	if alcohol >= 4 {
		out.Alcohol = BandAlcoholAtRisk
	}
	switch {
	case neuro <= 16:
		out.Neurodivergence = BandNeuroNotSignificant
	case neuro <= 28:
		out.Neurodivergence = BandNeuroMild
	case neuro <= 40:
		out.Neurodivergence = BandNeuroModerate
	default:
		out.Neurodivergence = BandNeuroElevated
	}
	return out, nil
}

func sumItems(answers map[string]string, prefix string, count int) (int, error) {
	sum := 0
	for i := 1; i <= count; i++ {
		key := prefix + strconv.Itoa(i)
		raw, ok := answers[key]
		if !ok {
			return 0, invalidf("falta la respuesta %s", key)
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, invalidf("respuesta %s no numérica", key)
		}
		sum += n
	}
	return sum, nil
}
