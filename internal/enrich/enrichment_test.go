package enrich_test

import (
	"strings"
	"testing"

	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/enrich"
	"github.com/jlicht/krikri/internal/enrich/parsedate"
	"github.com/stretchr/testify/require"
)

var upcase = enrich.TransformFunc(func(v record.Value) []record.Value {
	return []record.Value{record.String(strings.ToUpper(v.Text))}
})

func sampleRecord() *record.Record {
	creator := record.New()
	creator.SetField("name", record.Strings("ada", "grace"))

	rec := record.New()
	rec.SetField("title", record.Strings("first", "second"))
	rec.SetField("subject", record.Strings("maps"))
	rec.SetField("creator", []record.Value{record.Resource(creator)})
	return rec
}

func TestEnrich_DoesNotMutateInput(t *testing.T) {
	rec := sampleRecord()
	out := enrich.New(upcase, nil).Enrich(rec, enrich.ParseChain("title"), enrich.ParseChain("creator.name"))

	require.Equal(t, []string{"first", "second"}, rec.Field("title").Values())
	require.Equal(t, []string{"ada", "grace"}, rec.Field("creator").Field("name").Values())
	require.Equal(t, []string{"FIRST", "SECOND"}, out.Field("title").Values())
	require.Equal(t, []string{"ADA", "GRACE"}, out.Field("creator").Field("name").Values())
	require.Equal(t, []string{"maps"}, out.Field("subject").Values())
}

func TestEnrich_AllFields(t *testing.T) {
	rec := sampleRecord()
	rec.Remove("creator")

	for _, chains := range [][]enrich.FieldChain{nil, {enrich.ParseChain(enrich.All)}} {
		out := enrich.New(upcase, nil).Enrich(rec, chains...)
		require.Equal(t, []string{"FIRST", "SECOND"}, out.Field("title").Values())
		require.Equal(t, []string{"MAPS"}, out.Field("subject").Values())
	}
}

func TestEnrich_UnknownChainIsNoOp(t *testing.T) {
	rec := sampleRecord()
	out := enrich.New(upcase, nil).Enrich(rec, enrich.ParseChain("nonexistent"), enrich.ParseChain("title.nested"))
	require.Equal(t, rec.FieldNames(), out.FieldNames())
	require.False(t, out.Has("nonexistent"))
	require.Equal(t, []string{"first", "second"}, out.Field("title").Values())
}

func TestEnrich_FlattensAndDropsEmpty(t *testing.T) {
	rec := record.New()
	rec.SetField("subject", record.Strings("maps; charts", " ", "atlases"))

	out := enrich.New(enrich.Chain(enrich.SplitOn(";"), enrich.StripWhitespace), nil).Enrich(rec, enrich.FieldChain{"subject"})
	require.Equal(t, []string{"maps", "charts", "atlases"}, out.Field("subject").Values())
}

func TestEnrich_DateScenario(t *testing.T) {
	rec := record.New()
	rec.SetField("title", record.Strings("March 3 1975", "undated"))

	out := enrich.New(parsedate.ParseDate{}, nil).Enrich(rec, enrich.FieldChain{"title"})
	values := out.Field("title")
	require.Equal(t, []string{"1975-03-03", "undated"}, values.Values())
	require.Equal(t, record.KindDate, values[0].Kind)
	require.Equal(t, record.KindString, values[1].Kind)
}

func TestEnrich_FailurePolicies(t *testing.T) {
	panicky := enrich.TransformFunc(func(v record.Value) []record.Value {
		if v.Text == "bad" {
			panic("cannot handle")
		}
		return []record.Value{record.String(strings.ToUpper(v.Text))}
	})
	rec := record.New()
	rec.SetField("title", record.Strings("good", "bad"))

	keep := enrich.New(panicky, nil)
	require.Equal(t, []string{"GOOD", "bad"}, keep.Enrich(rec).Field("title").Values())

	drop := &enrich.FieldEnrichment{Transform: panicky, Policy: enrich.PolicyDrop}
	require.Equal(t, []string{"GOOD"}, drop.Enrich(rec).Field("title").Values())

	recorder := &enrich.FieldEnrichment{Transform: panicky, Policy: enrich.PolicyRecord}
	out, report := recorder.EnrichWithReport(rec, enrich.FieldChain{"title"})
	require.Equal(t, []string{"GOOD", "bad"}, out.Field("title").Values())
	require.Len(t, report.Failures, 1)
	require.Equal(t, "title", report.Failures[0].Field)
	require.Equal(t, "bad", report.Failures[0].Value)
	require.Contains(t, report.Failures[0].Error, "cannot handle")
}

func TestParsePolicy(t *testing.T) {
	p, err := enrich.ParsePolicy("")
	require.NoError(t, err)
	require.Equal(t, enrich.PolicyKeep, p)

	p, err = enrich.ParsePolicy("Record")
	require.NoError(t, err)
	require.Equal(t, enrich.PolicyRecord, p)

	_, err = enrich.ParsePolicy("retry")
	require.Error(t, err)
}

func TestLookupChain(t *testing.T) {
	tr, err := enrich.LookupChain("strip_whitespace", "parse_date")
	require.NoError(t, err)
	out := tr.EnrichValue(record.String("  1975-03  "))
	require.Len(t, out, 1)
	require.Equal(t, "1975-03", out[0].String())

	_, err = enrich.LookupChain("strip_whitespace", "nope")
	require.Error(t, err)
	require.Contains(t, enrich.Names(), "split_semicolon")
}

func TestStripPunctuation(t *testing.T) {
	out := enrich.StripPunctuation.EnrichValue(record.String(" ...Maps of Boston (1975). ;"))
	require.Equal(t, "Maps of Boston (1975)", out[0].String())
}
