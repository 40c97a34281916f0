package oai_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jlicht/krikri/internal/harvest"
	"github.com/jlicht/krikri/internal/harvest/oai"
	"github.com/jlicht/krikri/internal/minter"
	"github.com/stretchr/testify/require"
)

const recordTemplate = `<record><header%s><identifier>%s</identifier><datestamp>2015-01-01</datestamp><setSpec>%s</setSpec></header>` +
	`<metadata><oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" xmlns:dc="http://purl.org/dc/elements/1.1/">` +
	`<dc:title>Title %s</dc:title><dc:date type="created">March 3 1975</dc:date></oai_dc:dc></metadata></record>`

// repository serves two pages of two records per set.
type repository struct {
	requests atomic.Int32
	verbs    []string
	deleted  string
	failPage string
}

func (r *repository) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.requests.Add(1)
	q := req.URL.Query()
	verb := q.Get("verb")
	r.verbs = append(r.verbs, verb+" "+q.Get("set")+q.Get("resumptionToken"))

	set := q.Get("set")
	page := "1"
	if tok := q.Get("resumptionToken"); tok != "" {
		set, page, _ = strings.Cut(tok, ":")
	}
	if set == "" {
		set = "all"
	}
	if page == r.failPage {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	var body strings.Builder
	switch verb {
	case "Identify":
		body.WriteString(`<Identify><repositoryName>Test</repositoryName><protocolVersion>2.0</protocolVersion></Identify>`)
	case "GetRecord":
		id := q.Get("identifier")
		if id == "missing" {
			body.WriteString(`<error code="idDoesNotExist">no such record</error>`)
			break
		}
		body.WriteString("<GetRecord>" + r.record(id, set) + "</GetRecord>")
	case "ListIdentifiers", "ListRecords":
		if set == "empty" {
			body.WriteString(`<error code="noRecordsMatch"/>`)
			break
		}
		body.WriteString("<" + verb + ">")
		for i := 1; i <= 2; i++ {
			id := fmt.Sprintf("oai:test:%s-%s-%d", set, page, i)
			if verb == "ListIdentifiers" {
				body.WriteString("<header><identifier>" + id + "</identifier></header>")
			} else {
				body.WriteString(r.record(id, set))
			}
		}
		if page == "1" {
			body.WriteString("<resumptionToken>" + set + ":2</resumptionToken>")
		} else {
			body.WriteString("<resumptionToken/>")
		}
		body.WriteString("</" + verb + ">")
	default:
		body.WriteString(`<error code="badVerb"/>`)
	}

	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprintf(w, `<?xml version="1.0"?><OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/"><responseDate>2015-01-01T00:00:00Z</responseDate>%s</OAI-PMH>`, body.String())
}

func (r *repository) record(id, set string) string {
	status := ""
	if id == r.deleted {
		status = ` status="deleted"`
	}
	return fmt.Sprintf(recordTemplate, status, id, set, id)
}

func newHarvester(t *testing.T, repo *repository, extra harvest.Options) *oai.Harvester {
	t.Helper()
	srv := httptest.NewServer(repo)
	t.Cleanup(srv.Close)

	opts := harvest.Options{"uri": srv.URL, "name": "test", "metadata_prefix": "oai_dc"}
	h, err := oai.NewHarvester(opts.Merge(extra), oai.ClientConfig{}, nil)
	require.NoError(t, err)
	return h
}

func TestHarvester_RecordIDsIsLazy(t *testing.T) {
	repo := &repository{}
	h := newHarvester(t, repo, nil)

	it := h.RecordIDs(context.Background(), nil)
	require.Equal(t, int32(0), repo.requests.Load())

	ids, err := harvest.Take(it, 0)
	require.NoError(t, err)
	require.Empty(t, ids)
	require.Equal(t, int32(0), repo.requests.Load())

	ids, err = harvest.Take(it, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"oai:test:all-1-1", "oai:test:all-1-2"}, ids)
	require.Equal(t, int32(1), repo.requests.Load())

	ids, err = harvest.Take(it, 10)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.Equal(t, int32(2), repo.requests.Load())
}

func TestHarvester_RecordsPerSetInOrder(t *testing.T) {
	repo := &repository{}
	h := newHarvester(t, repo, harvest.Options{"set": []string{"a", "b"}})

	recs, err := harvest.Collect(h.Records(context.Background(), nil))
	require.NoError(t, err)
	require.Len(t, recs, 8)
	require.Equal(t, "oai:test:a-1-1", recs[0].SourceID)
	require.Equal(t, "oai:test:b-2-2", recs[7].SourceID)
	require.Equal(t, []string{"ListRecords a", "ListRecords a:2", "ListRecords b", "ListRecords b:2"}, repo.verbs)
}

func TestHarvester_PerCallOptionsWin(t *testing.T) {
	repo := &repository{}
	h := newHarvester(t, repo, harvest.Options{"set": "a"})

	ids, err := harvest.Take(h.RecordIDs(context.Background(), harvest.Options{"set": "c"}), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"oai:test:c-1-1"}, ids)
}

func TestHarvester_RecordNormalization(t *testing.T) {
	repo := &repository{}
	h := newHarvester(t, repo, nil)

	recs, err := harvest.Take(h.Records(context.Background(), nil), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]

	require.Equal(t, minter.Mint("oai:test:all-1-1", "test"), rec.ID)
	require.Equal(t, "test", rec.Provider)
	require.Equal(t, oai.ContentType, rec.ContentType)
	require.True(t, strings.HasPrefix(rec.Content, `<record xmlns="http://www.openarchives.org/OAI/2.0/"><header><identifier>oai:test:all-1-1</identifier>`))
	require.Contains(t, rec.Content, `<metadata><oai_dc:dc xmlns:oai_dc=`)
	require.Contains(t, rec.Content, `<dc:title>Title oai:test:all-1-1</dc:title>`)

	require.Equal(t, []string{"Title oai:test:all-1-1"}, rec.Record.Field("title").Values())
	dates := rec.Record.Field("date")
	require.Equal(t, []string{"March 3 1975"}, dates.MatchAttribute("type", "CREATED").Values())
	require.Equal(t, []string{"all"}, rec.Record.Field("header").Field("set_spec").Values())
}

func TestHarvester_DeletedRecord(t *testing.T) {
	repo := &repository{deleted: "oai:test:all-1-2"}
	h := newHarvester(t, repo, nil)

	recs, err := harvest.Take(h.Records(context.Background(), nil), 2)
	require.NoError(t, err)
	require.False(t, recs[0].Deleted)
	require.True(t, recs[1].Deleted)
	require.Contains(t, recs[1].Content, `<header status="deleted">`)
}

func TestHarvester_ErrorSurfacesAtFailingPage(t *testing.T) {
	repo := &repository{failPage: "2"}
	h := newHarvester(t, repo, nil)

	it := h.Records(context.Background(), nil)
	first, err := harvest.Take(it, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	require.False(t, it.Next())
	var herr *oai.HTTPError
	require.ErrorAs(t, it.Err(), &herr)
	require.Equal(t, http.StatusServiceUnavailable, herr.StatusCode)
}

func TestHarvester_NoRecordsMatchIsEmpty(t *testing.T) {
	repo := &repository{}
	h := newHarvester(t, repo, harvest.Options{"set": "empty"})

	ids, err := harvest.Collect(h.RecordIDs(context.Background(), nil))
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestHarvester_GetRecord(t *testing.T) {
	repo := &repository{}
	h := newHarvester(t, repo, nil)

	rec, err := h.GetRecord(context.Background(), "oai:test:x", nil)
	require.NoError(t, err)
	require.Equal(t, minter.Mint("oai:test:x", "test"), rec.ID)

	_, err = h.GetRecord(context.Background(), "missing", nil)
	var perr *oai.ProtocolError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, oai.CodeIDDoesNotExist, perr.Code)
}

func TestHarvester_CountNotSupported(t *testing.T) {
	h := newHarvester(t, &repository{}, nil)
	_, err := h.Count(context.Background(), nil)
	require.ErrorIs(t, err, harvest.ErrNotSupported)
}

func TestNewHarvester_RequiresMetadataPrefix(t *testing.T) {
	_, err := oai.NewHarvester(harvest.Options{"uri": "http://example.org/oai", "set": "dag"}, oai.ClientConfig{}, nil)
	require.ErrorIs(t, err, harvest.ErrInvalidOptions)
}

func TestClient_Identify(t *testing.T) {
	srv := httptest.NewServer(&repository{})
	t.Cleanup(srv.Close)

	c, err := oai.NewClient(srv.URL, oai.ClientConfig{RateLimit: 100}, nil)
	require.NoError(t, err)
	id, err := c.Identify(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Test", id.RepositoryName)
}

func TestParseMetadata_NestedResources(t *testing.T) {
	rec, err := oai.ParseMetadata([]byte(`<mods><name type="personal"><namePart>Ada</namePart><role>author</role></name><title> Spaced </title></mods>`))
	require.NoError(t, err)
	require.Equal(t, []string{"Spaced"}, rec.Field("title").Values())

	names := rec.Field("name")
	require.Len(t, names, 1)
	require.True(t, names[0].IsResource())
	attr, ok := names[0].Attribute("type")
	require.True(t, ok)
	require.Equal(t, "personal", attr)
	require.Equal(t, []string{"Ada"}, names.Field("namePart").Values())
}
