// Package analytics computes the dashboard views over persisted results.
// All figures are derived fresh from storage on every call; percentages use
// the number of distinct students with at least one result of the
// instrument in scope as denominator, rounded to one decimal place.
package analytics

import (
	"context"
	"math"
	"sort"

	"github.com/orienta-lab/orienta/internal/assessment"
	"github.com/orienta-lab/orienta/internal/store"
	"github.com/orienta-lab/orienta/internal/vault"
)

// Store is the read-only slice of persistence the aggregator needs.
type Store interface {
	ListClasses(ctx context.Context) ([]store.Class, error)
	ListStudents(ctx context.Context) ([]store.Student, error)
	ListResultRows(ctx context.Context) ([]store.ResultRow, error)
	ListResultRowsByClass(ctx context.Context, classID int64) ([]store.ResultRow, error)
}

type OutcomeCount struct {
	Class      string `json:"class"`
	Instrument string `json:"instrument"`
	Outcome    string `json:"outcome"`
	Total      int    `json:"total"`
}

type Breakdown struct {
	Outcome string  `json:"outcome"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

type ClassPercent struct {
	Class   string  `json:"class"`
	Percent float64 `json:"percent"`
}

type ClassOutcomePercent struct {
	Class   string  `json:"class"`
	Outcome string  `json:"outcome"`
	Percent float64 `json:"percent"`
}

type ClassProgress struct {
	Class      string `json:"class"`
	Registered int    `json:"registered"`
	Submitted  int    `json:"submitted"`
}

// Dashboard is the admin overview across all classes.
type Dashboard struct {
	Overview           []OutcomeCount        `json:"overview"`
	SelfEsteem         []OutcomeCount        `json:"self_esteem"`
	SelfEsteemLowRisk  []ClassPercent        `json:"self_esteem_low_risk"`
	HealthRisk         []ClassPercent        `json:"health_risk"`
	Skills             []OutcomeCount        `json:"skills"`
	Styles             []ClassOutcomePercent `json:"styles"`
	ScreeningAttention []string              `json:"screening_attention"`
	Progress           []ClassProgress       `json:"progress"`
}

// GroupStats is the dashboard restricted to one selected class.
type GroupStats struct {
	Total      int                    `json:"total"`
	Styles     []Breakdown            `json:"styles"`
	SelfEsteem []Breakdown            `json:"self_esteem"`
	Skills     []Breakdown            `json:"skills"`
	Screening  map[string][]Breakdown `json:"screening"`
	Health     []Breakdown            `json:"health"`
}

type Aggregator struct {
	store Store
	vault *vault.Vault
}

func NewAggregator(s Store, v *vault.Vault) *Aggregator {
	return &Aggregator{store: s, vault: v}
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return round1(100 * float64(n) / float64(d))
}

// openHealthRows maps health ciphertext outcomes down to their bands.
// A row that fails integrity checks aborts the whole view.
func (a *Aggregator) openHealthRows(rows []store.ResultRow) ([]store.ResultRow, error) {
	out := make([]store.ResultRow, len(rows))
	for i, r := range rows {
		if r.Instrument == assessment.InstrumentHealth.Tag() {
			band, _, err := a.vault.Open(r.Outcome)
			if err != nil {
				return nil, err
			}
			r.Outcome = band
		}
		out[i] = r
	}
	return out, nil
}

// tally groups rows by (class, instrument): outcome counts plus the set of
// distinct students that the percentage denominators come from.
type tally struct {
	counts   map[string]map[string]map[string]int // class -> instrument -> outcome -> n
	students map[string]map[string]map[int64]bool // class -> instrument -> student set
}

func newTally(rows []store.ResultRow) tally {
	t := tally{
		counts:   map[string]map[string]map[string]int{},
		students: map[string]map[string]map[int64]bool{},
	}
	for _, r := range rows {
		if t.counts[r.ClassName] == nil {
			t.counts[r.ClassName] = map[string]map[string]int{}
			t.students[r.ClassName] = map[string]map[int64]bool{}
		}
		if t.counts[r.ClassName][r.Instrument] == nil {
			t.counts[r.ClassName][r.Instrument] = map[string]int{}
			t.students[r.ClassName][r.Instrument] = map[int64]bool{}
		}
		t.counts[r.ClassName][r.Instrument][r.Outcome]++
		t.students[r.ClassName][r.Instrument][r.StudentID] = true
	}
	return t
}

func (t tally) classNames() []string {
	names := make([]string, 0, len(t.counts))
	for name := range t.counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t tally) denominator(class, instrument string) int {
	return len(t.students[class][instrument])
}

func sortedOutcomes(counts map[string]int) []string {
	outcomes := make([]string, 0, len(counts))
	for o := range counts {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	return outcomes
}

// Dashboard computes the all-classes admin views in one pass over the
// results table.
func (a *Aggregator) Dashboard(ctx context.Context) (*Dashboard, error) {
	rows, err := a.store.ListResultRows(ctx)
	if err != nil {
		return nil, err
	}
	rows, err = a.openHealthRows(rows)
	if err != nil {
		return nil, err
	}
	t := newTally(rows)

	d := &Dashboard{}
	healthTag := assessment.InstrumentHealth.Tag()
	selfTag := assessment.InstrumentSelfEsteem.Tag()
	skillsTag := assessment.InstrumentSkills.Tag()
	stylesTag := assessment.InstrumentLearningStyles.Tag()

	for _, class := range t.classNames() {
		instruments := make([]string, 0, len(t.counts[class]))
		for instrument := range t.counts[class] {
			instruments = append(instruments, instrument)
		}
		sort.Strings(instruments)

		for _, instrument := range instruments {
			counts := t.counts[class][instrument]
			for _, outcome := range sortedOutcomes(counts) {
				oc := OutcomeCount{Class: class, Instrument: instrument, Outcome: outcome, Total: counts[outcome]}
				d.Overview = append(d.Overview, oc)
				switch instrument {
				case selfTag:
					d.SelfEsteem = append(d.SelfEsteem, oc)
				case skillsTag:
					d.Skills = append(d.Skills, oc)
				}
			}
		}

		if counts, ok := t.counts[class][selfTag]; ok {
			d.SelfEsteemLowRisk = append(d.SelfEsteemLowRisk, ClassPercent{
				Class:   class,
				Percent: percent(counts[assessment.BandSelfEsteemLow], t.denominator(class, selfTag)),
			})
		}
		if counts, ok := t.counts[class][healthTag]; ok {
			atRisk := counts[assessment.BandHealthModerate] + counts[assessment.BandHealthHigh]
			d.HealthRisk = append(d.HealthRisk, ClassPercent{
				Class:   class,
				Percent: percent(atRisk, t.denominator(class, healthTag)),
			})
		}
		if counts, ok := t.counts[class][stylesTag]; ok {
			denom := t.denominator(class, stylesTag)
			for _, outcome := range sortedOutcomes(counts) {
				d.Styles = append(d.Styles, ClassOutcomePercent{
					Class:   class,
					Outcome: outcome,
					Percent: percent(counts[outcome], denom),
				})
			}
		}
	}

	d.ScreeningAttention = screeningAttention(rows)

	progress, err := a.progress(ctx, rows)
	if err != nil {
		return nil, err
	}
	d.Progress = progress
	return d, nil
}

// screeningAttention flags classes where any student carries any at-risk
// screening sub-result. Deduplication is at the class level: one flag per
// class regardless of how many rows match.
func screeningAttention(rows []store.ResultRow) []string {
	flagged := map[string]bool{}
	for _, r := range rows {
		if assessment.IsScreeningTag(r.Instrument) && assessment.AtRiskBands[r.Outcome] {
			flagged[r.ClassName] = true
		}
	}
	out := make([]string, 0, len(flagged))
	for name := range flagged {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// progress reports registered vs. submitted students per class, including
// classes that have no results yet.
func (a *Aggregator) progress(ctx context.Context, rows []store.ResultRow) ([]ClassProgress, error) {
	classes, err := a.store.ListClasses(ctx)
	if err != nil {
		return nil, err
	}
	students, err := a.store.ListStudents(ctx)
	if err != nil {
		return nil, err
	}

	nameByID := map[int64]string{}
	registered := map[string]int{}
	for _, c := range classes {
		nameByID[c.ID] = c.Name
		registered[c.Name] = 0
	}
	for _, st := range students {
		if name, ok := nameByID[st.ClassID]; ok {
			registered[name]++
		}
	}
	submitted := map[string]map[int64]bool{}
	for _, r := range rows {
		if submitted[r.ClassName] == nil {
			submitted[r.ClassName] = map[int64]bool{}
		}
		submitted[r.ClassName][r.StudentID] = true
	}

	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ClassProgress, 0, len(names))
	for _, name := range names {
		out = append(out, ClassProgress{
			Class:      name,
			Registered: registered[name],
			Submitted:  len(submitted[name]),
		})
	}
	return out, nil
}

// GroupView computes the per-class dashboard for one selected class.
func (a *Aggregator) GroupView(ctx context.Context, classID int64) (*GroupStats, error) {
	rows, err := a.store.ListResultRowsByClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	rows, err = a.openHealthRows(rows)
	if err != nil {
		return nil, err
	}

	distinct := map[int64]bool{}
	for _, r := range rows {
		distinct[r.StudentID] = true
	}
	t := newTally(rows)

	var class string
	if len(rows) > 0 {
		class = rows[0].ClassName
	}

	g := &GroupStats{
		Total:     len(distinct),
		Screening: map[string][]Breakdown{},
	}
	g.Styles = t.breakdown(class, assessment.InstrumentLearningStyles.Tag())
	g.SelfEsteem = t.breakdown(class, assessment.InstrumentSelfEsteem.Tag())
	g.Skills = t.breakdown(class, assessment.InstrumentSkills.Tag())
	g.Health = t.breakdown(class, assessment.InstrumentHealth.Tag())
	for _, tag := range assessment.ScreeningTags() {
		g.Screening[tag] = t.breakdown(class, tag)
	}
	return g, nil
}

func (t tally) breakdown(class, instrument string) []Breakdown {
	counts := t.counts[class][instrument]
	denom := t.denominator(class, instrument)
	out := make([]Breakdown, 0, len(counts))
	for _, outcome := range sortedOutcomes(counts) {
		out = append(out, Breakdown{
			Outcome: outcome,
			Total:   counts[outcome],
			Percent: percent(counts[outcome], denom),
		})
	}
	return out
}
