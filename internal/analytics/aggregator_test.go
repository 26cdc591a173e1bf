package analytics

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orienta-lab/orienta/internal/assessment"
	"github.com/orienta-lab/orienta/internal/store"
	"github.com/orienta-lab/orienta/internal/vault"
)

type fakeAggStore struct {
	classes  []store.Class
	students []store.Student
	rows     []store.ResultRow
}

func (f *fakeAggStore) ListClasses(context.Context) ([]store.Class, error)   { return f.classes, nil }
func (f *fakeAggStore) ListStudents(context.Context) ([]store.Student, error) { return f.students, nil }
func (f *fakeAggStore) ListResultRows(context.Context) ([]store.ResultRow, error) {
	return f.rows, nil
}

func (f *fakeAggStore) ListResultRowsByClass(_ context.Context, classID int64) ([]store.ResultRow, error) {
	var out []store.ResultRow
	for _, r := range f.rows {
		if r.ClassID == classID {
			out = append(out, r)
		}
	}
	return out, nil
}

func testAggVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New(bytes.Repeat([]byte{0x24}, 32))
	require.NoError(t, err)
	return v
}

func row(classID int64, class string, studentID int64, instrument, outcome string) store.ResultRow {
	return store.ResultRow{
		ClassID:    classID,
		ClassName:  class,
		StudentID:  studentID,
		Instrument: instrument,
		Outcome:    outcome,
	}
}

func sealedHealth(t *testing.T, v *vault.Vault, band string) string {
	t.Helper()
	ct, err := v.Seal(band, map[string]string{"n1": "si"})
	require.NoError(t, err)
	return ct
}

func TestDashboardPercentagesUseDistinctStudents(t *testing.T) {
	v := testAggVault(t)
	selfTag := assessment.InstrumentSelfEsteem.Tag()
	fs := &fakeAggStore{
		classes: []store.Class{{ID: 1, Name: "1A"}},
		rows: []store.ResultRow{
			row(1, "1A", 10, selfTag, assessment.BandSelfEsteemLow),
			row(1, "1A", 11, selfTag, assessment.BandSelfEsteemMedium),
			row(1, "1A", 12, selfTag, assessment.BandSelfEsteemHigh),
		},
	}
	agg := NewAggregator(fs, v)

	d, err := agg.Dashboard(context.Background())
	require.NoError(t, err)

	require.Len(t, d.SelfEsteemLowRisk, 1)
	require.Equal(t, "1A", d.SelfEsteemLowRisk[0].Class)
	require.InDelta(t, 33.3, d.SelfEsteemLowRisk[0].Percent, 1e-9, "1 of 3 distinct students, rounded to one decimal")

	require.Len(t, d.SelfEsteem, 3)
	require.Len(t, d.Overview, 3)
}

func TestDashboardHealthRiskDecryptsBands(t *testing.T) {
	v := testAggVault(t)
	healthTag := assessment.InstrumentHealth.Tag()
	fs := &fakeAggStore{
		classes: []store.Class{{ID: 1, Name: "2B"}},
		rows: []store.ResultRow{
			row(1, "2B", 20, healthTag, sealedHealth(t, v, assessment.BandHealthModerate)),
			row(1, "2B", 21, healthTag, sealedHealth(t, v, assessment.BandHealthAdequate)),
		},
	}
	agg := NewAggregator(fs, v)

	d, err := agg.Dashboard(context.Background())
	require.NoError(t, err)

	require.Len(t, d.HealthRisk, 1)
	require.InDelta(t, 50.0, d.HealthRisk[0].Percent, 1e-9)
}

func TestDashboardRejectsTamperedHealthRow(t *testing.T) {
	v := testAggVault(t)
	fs := &fakeAggStore{
		classes: []store.Class{{ID: 1, Name: "2B"}},
		rows: []store.ResultRow{
			row(1, "2B", 20, assessment.InstrumentHealth.Tag(), "not-a-ciphertext"),
		},
	}
	agg := NewAggregator(fs, v)

	_, err := agg.Dashboard(context.Background())
	require.ErrorIs(t, err, vault.ErrIntegrity)
}

func TestDashboardScreeningAttentionDedupesPerClass(t *testing.T) {
	v := testAggVault(t)
	fs := &fakeAggStore{
		classes: []store.Class{{ID: 1, Name: "1A"}, {ID: 2, Name: "3C"}},
		rows: []store.ResultRow{
			row(1, "1A", 10, assessment.TagScreeningAlcohol, assessment.BandAlcoholAtRisk),
			row(1, "1A", 11, assessment.TagScreeningDepression, assessment.BandScreenEvaluate),
			row(2, "3C", 30, assessment.TagScreeningAlcohol, assessment.BandAlcoholNoRisk),
		},
	}
	agg := NewAggregator(fs, v)

	d, err := agg.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"1A"}, d.ScreeningAttention, "one flag per class, unflagged classes absent")
}

func TestDashboardProgressIncludesEmptyClasses(t *testing.T) {
	v := testAggVault(t)
	stylesTag := assessment.InstrumentLearningStyles.Tag()
	fs := &fakeAggStore{
		classes: []store.Class{{ID: 1, Name: "1A"}, {ID: 2, Name: "Nueva"}},
		students: []store.Student{
			{ID: 10, ClassID: 1},
			{ID: 11, ClassID: 1},
			{ID: 12, ClassID: 2},
		},
		rows: []store.ResultRow{
			row(1, "1A", 10, stylesTag, "Activo"),
		},
	}
	agg := NewAggregator(fs, v)

	d, err := agg.Dashboard(context.Background())
	require.NoError(t, err)

	require.Equal(t, []ClassProgress{
		{Class: "1A", Registered: 2, Submitted: 1},
		{Class: "Nueva", Registered: 1, Submitted: 0},
	}, d.Progress)
}

func TestGroupViewBreakdowns(t *testing.T) {
	v := testAggVault(t)
	stylesTag := assessment.InstrumentLearningStyles.Tag()
	fs := &fakeAggStore{
		rows: []store.ResultRow{
			row(1, "1A", 10, stylesTag, "Activo"),
			row(1, "1A", 11, stylesTag, "Activo"),
			row(1, "1A", 12, stylesTag, "Teórico"),
			row(1, "1A", 10, assessment.TagScreeningAnxiety, assessment.BandScreenEvaluate),
			// another class must not leak into class 1's view
			row(2, "3C", 30, stylesTag, "Pragmático"),
		},
	}
	agg := NewAggregator(fs, v)

	g, err := agg.GroupView(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, 3, g.Total, "distinct students in the class")
	require.Equal(t, []Breakdown{
		{Outcome: "Activo", Total: 2, Percent: 66.7},
		{Outcome: "Teórico", Total: 1, Percent: 33.3},
	}, g.Styles)

	require.Equal(t, []Breakdown{
		{Outcome: assessment.BandScreenEvaluate, Total: 1, Percent: 100},
	}, g.Screening[assessment.TagScreeningAnxiety])
	require.Empty(t, g.Screening[assessment.TagScreeningAlcohol])
	require.Empty(t, g.SelfEsteem)
}

func TestGroupViewEmptyClass(t *testing.T) {
	agg := NewAggregator(&fakeAggStore{}, testAggVault(t))

	g, err := agg.GroupView(context.Background(), 99)
	require.NoError(t, err)
	require.Zero(t, g.Total)
	require.Empty(t, g.Styles)
	require.NotNil(t, g.Screening)
}

func TestPercentRounding(t *testing.T) {
	require.InDelta(t, 66.7, percent(2, 3), 1e-9)
	require.InDelta(t, 33.3, percent(1, 3), 1e-9)
	require.Zero(t, percent(1, 0), "empty denominator yields zero, not NaN")
}
