// Package assessment holds the instrument catalogue, the scoring rules and
// the questionnaire sequencer. Scoring and sequencing are pure; persistence
// stays in the store.
package assessment

// Instrument is one questionnaire family. The set is fixed and compiled in;
// instrument identity is never matched on free-text strings outside this
// file.
type Instrument int

const (
	InstrumentUnknown Instrument = iota
	InstrumentSelfEsteem
	InstrumentLearningStyles
	InstrumentSkills
	InstrumentScreening
	InstrumentHealth
)

// Screening battery sub-result tags. The battery is sequenced as one unit
// but persisted as four rows under these tags.
const (
	screeningTagPrefix = "Tamizaje -"

	TagScreeningDepression = "Tamizaje - Depresión"
	TagScreeningAnxiety    = "Tamizaje - Ansiedad"
	TagScreeningAlcohol    = "Tamizaje - Alcohol"
	TagScreeningNeuro      = "Tamizaje - Neurodivergencia"
)

var instrumentTags = map[Instrument]string{
	InstrumentSelfEsteem:     "Autoestima Rosenberg",
	InstrumentLearningStyles: "Estilos de aprendizaje",
	InstrumentSkills:         "Habilidades",
	InstrumentScreening:      "Batería de Tamizaje",
	InstrumentHealth:         "Cuestionario de Salud",
}

var instrumentRoutes = map[Instrument]string{
	InstrumentSelfEsteem:     "autoestima",
	InstrumentLearningStyles: "estilos",
	InstrumentSkills:         "habilidades",
	InstrumentScreening:      "tamizaje",
	InstrumentHealth:         "salud",
}

// Tag is the persisted instrument identifier.
func (i Instrument) Tag() string { return instrumentTags[i] }

// Route is the presentation-layer route name for the instrument.
func (i Instrument) Route() string { return instrumentRoutes[i] }

func (i Instrument) String() string { return i.Tag() }

// ByTag resolves a persisted tag back to its instrument.
func ByTag(tag string) (Instrument, bool) {
	for i, t := range instrumentTags {
		if t == tag {
			return i, true
		}
	}
	return InstrumentUnknown, false
}

// ByRoute resolves a route name back to its instrument.
func ByRoute(route string) (Instrument, bool) {
	for i, r := range instrumentRoutes {
		if r == route {
			return i, true
		}
	}
	return InstrumentUnknown, false
}

// IsScreeningTag reports whether a persisted tag is a screening battery
// sub-result.
func IsScreeningTag(tag string) bool {
	return len(tag) >= len(screeningTagPrefix) && tag[:len(screeningTagPrefix)] == screeningTagPrefix
}

// ScreeningTags lists the battery's sub-result tags in battery order.
func ScreeningTags() []string {
	return []string{
		TagScreeningDepression,
		TagScreeningAnxiety,
		TagScreeningAlcohol,
		TagScreeningNeuro,
	}
}

// All lists the instruments in presentation order.
func All() []Instrument {
	return []Instrument{
		InstrumentSelfEsteem,
		InstrumentLearningStyles,
		InstrumentSkills,
		InstrumentScreening,
		InstrumentHealth,
	}
}
