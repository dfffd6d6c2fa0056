package edgar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raghuneu/finsage/internal/cache"
	"github.com/raghuneu/finsage/internal/ingesterr"
	"github.com/raghuneu/finsage/internal/models"
	"github.com/raghuneu/finsage/internal/source"
)

const tickersBody = `{"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."},"1":{"cik_str":789019,"ticker":"MSFT","title":"MICROSOFT CORP"}}`

const factsBody = `{"cik":320193,"entityName":"Apple Inc.","facts":{"us-gaap":{
 "Revenues":{"label":"Revenues","units":{"USD":[
   {"start":"2023-10-01","end":"2023-12-30","val":119575000000,"accn":"0000320193-24-000006","fy":2024,"fp":"Q1","form":"10-Q","filed":"2024-02-02"},
   {"start":"2023-10-01","end":"2023-12-30","val":119580000000,"accn":"0000320193-24-000069","fy":2024,"fp":"Q1","form":"10-Q","filed":"2024-05-03"},
   {"start":"2023-12-31","end":"2024-03-30","val":90753000000,"accn":"0000320193-24-000069","fy":2024,"fp":"Q2","form":"10-Q","filed":"2024-05-03"},
   {"end":"2024-03-30","val":1,"fp":"H1","form":"8-K","filed":"2024-05-03"}
 ]}},
 "Assets":{"label":"Assets","units":{"USD":[
   {"end":"2024-03-30","val":337411000000,"accn":"0000320193-24-000069","fy":2024,"fp":"Q2","form":"10-Q","filed":"2024-05-03"}
 ]}},
 "EarningsPerShareBasic":{"label":"EPS","units":{"USD/shares":[
   {"end":"2024-03-30","val":1.53,"fp":"Q2","filed":"2024-05-03"}
 ]}}
}}}`

const submissionsBody = `{"name":"Apple Inc.","filings":{"recent":{
 "accessionNumber":["0000320193-24-000070","0000320193-24-000069","0000320193-24-000006","0000320193-23-000106"],
 "filingDate":["2024-05-10","2024-05-03","2024-02-02","2023-11-03"],
 "reportDate":["","2024-03-30","2023-12-30","2023-09-30"],
 "form":["8-K","10-Q","10-Q","10-K"],
 "primaryDocument":["a8k.htm","aapl-20240330.htm","aapl-20231230.htm","aapl-20230930.htm"]
}}}`

func newTestClient(t *testing.T, tickerHits *int32) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tickerHits, 1)
		_, _ = w.Write([]byte(tickersBody))
	})
	mux.HandleFunc("/api/xbrl/companyfacts/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "finsage test@example.com", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(factsBody))
	})
	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(submissionsBody))
	})
	mux.HandleFunc("/Archives/edgar/data/320193/000032019324000069/aapl-20240330.htm", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>Item 2. Management's Discussion and Analysis of Financial Condition</p><p>" +
			strings.Repeat("growth ", 100) + "</p><p>Item 3. Quantitative and Qualitative Disclosures</p></body></html>"))
	})
	mux.HandleFunc("/Archives/edgar/data/320193/000032019324000006/aapl-20231230.htm", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>Exhibit index only</p></body></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	hc := source.NewClient(source.WithUserAgent("finsage test@example.com"), source.WithRateLimit(100))
	return New(Options{BaseURL: srv.URL, ArchiveURL: srv.URL, TickersURL: srv.URL + "/files/company_tickers.json"}, hc, cache.NewMemoryStore(), nil)
}

func TestCIKResolutionIsCached(t *testing.T) {
	var hits int32
	c := newTestClient(t, &hits)
	ctx := context.Background()

	cik, err := c.CIK(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", cik)

	_, err = c.CIK(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	_, err = c.CIK(ctx, "NOPE")
	var ue *ingesterr.UnknownEntityError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "NOPE", ue.EntityKey)
}

func TestFetchFacts(t *testing.T) {
	var hits int32
	c := newTestClient(t, &hits)

	facts, err := c.FetchFacts(context.Background(), "AAPL", nil)
	require.NoError(t, err)
	require.Len(t, facts, 3)

	assert.Equal(t, "Assets", facts[0].Concept)
	assert.Nil(t, facts[0].PeriodStart)

	q1 := facts[1]
	assert.Equal(t, "Revenues", q1.Concept)
	assert.Equal(t, "Q1", q1.FiscalPeriod)
	assert.Equal(t, "119580000000", q1.Value.String(), "restated value from the later filing wins")
	assert.Equal(t, "2024-05-03", *q1.FiledDate)
	assert.Equal(t, "0000320193", q1.CIK)
	assert.Equal(t, 2024, *q1.FiscalYear)
}

func TestFetchFactsSinceWatermark(t *testing.T) {
	var hits int32
	c := newTestClient(t, &hits)
	since := "2024-05-03"
	facts, err := c.FetchFacts(context.Background(), "AAPL", &since)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestFetchFilingDocuments(t *testing.T) {
	var hits int32
	c := newTestClient(t, &hits)

	docs, err := c.FetchFilingDocuments(context.Background(), "AAPL", nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	ok := docs[0]
	assert.Equal(t, "0000320193-24-000069", ok.AccessionNo)
	assert.Equal(t, "10-Q", *ok.FormType)
	assert.Equal(t, models.ExtractionStatusExtracted, ok.ExtractionStatus)
	assert.Equal(t, 100+9, ok.MDAWordCount)
	assert.Nil(t, ok.RiskFactorsText)
	assert.Equal(t, "Apple Inc.", *ok.CompanyName)
	assert.Equal(t, 55.0, ok.ExtractionQualityScore)

	failed := docs[1]
	assert.Equal(t, "0000320193-24-000006", failed.AccessionNo)
	assert.Equal(t, models.ExtractionStatusFailed, failed.ExtractionStatus)
	require.NotNil(t, failed.ExtractionError)
	assert.Contains(t, *failed.ExtractionError, "404")
}

func TestFilingWithoutSectionsIsFailed(t *testing.T) {
	var hits int32
	c := newTestClient(t, &hits)
	c.opts.MaxFilings = 3

	docs, err := c.FetchFilingDocuments(context.Background(), "AAPL", nil)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	empty := docs[2]
	assert.Equal(t, "0000320193-23-000106", empty.AccessionNo)
	assert.Equal(t, models.ExtractionStatusFailed, empty.ExtractionStatus)
	require.NotNil(t, empty.ExtractionError)
	assert.Contains(t, *empty.ExtractionError, "no md&a or risk factors section")
	assert.Zero(t, empty.MDAWordCount)
	assert.Equal(t, 30.0, empty.ExtractionQualityScore)
}

func TestListFilingsSince(t *testing.T) {
	var hits int32
	c := newTestClient(t, &hits)
	since := "2024-02-02"
	_, list, err := c.ListFilings(context.Background(), "0000320193", &since)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2024-05-03", list[0].FilingDate)
	assert.Equal(t, c.opts.ArchiveURL+"/Archives/edgar/data/320193/000032019324000069/aapl-20240330.htm", c.DocumentURL("0000320193", list[0]))
}
