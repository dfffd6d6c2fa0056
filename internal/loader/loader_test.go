package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raghuneu/finsage/internal/archive"
	"github.com/raghuneu/finsage/internal/config"
	"github.com/raghuneu/finsage/internal/db"
	"github.com/raghuneu/finsage/internal/ingesterr"
	"github.com/raghuneu/finsage/internal/models"
	"github.com/raghuneu/finsage/internal/warehouse"
)

func openStore(t *testing.T) *warehouse.Store {
	t.Helper()
	d, err := db.Open(config.DBConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "loader.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(d) })
	require.NoError(t, db.AutoMigrate(d))
	return warehouse.New(d.Gorm, 100)
}

func dec(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func bars(n int, start time.Time) []models.StockPrice {
	out := make([]models.StockPrice, n)
	for i := range out {
		vol := int64(1000 + i)
		out[i] = models.StockPrice{
			Date: start.AddDate(0, 0, i).Format(time.RFC3339),
			Open: dec(100), High: dec(102), Low: dec(99), Close: dec(101),
			Volume: &vol,
		}
	}
	return out
}

// fixed returns a copy of rows on every call so mutation by the loader does not leak between runs.
func fixed(rows []models.StockPrice, seen *[]*string) FetcherFunc[models.StockPrice] {
	return func(_ context.Context, _ string, since *string) ([]models.StockPrice, error) {
		if seen != nil {
			*seen = append(*seen, since)
		}
		return append([]models.StockPrice(nil), rows...), nil
	}
}

func TestStockLoaderEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	var seen []*string
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	l, err := NewStockLoader(store, fixed(bars(5, start), &seen), nil, Options{Timeout: time.Minute})
	require.NoError(t, err)

	first := l.Load(ctx, "AAPL")
	require.Equal(t, StateDone, first.State, first.Error)
	assert.Equal(t, 5, first.Fetched)
	assert.Equal(t, 5, first.Inserted)
	assert.Equal(t, 0, first.Updated)
	assert.Equal(t, 100.0, first.QualityScore)

	second := l.Load(ctx, "AAPL")
	require.Equal(t, StateDone, second.State, second.Error)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 5, second.Updated)

	n, err := store.Count(ctx, l.Table(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	require.Len(t, seen, 2)
	assert.Nil(t, seen[0])
	require.NotNil(t, seen[1])
	assert.Equal(t, "2024-01-06", *seen[1])

	var stored models.StockPrice
	require.NoError(t, store.DB().Where("ticker = ?", "AAPL").Order("date").First(&stored).Error)
	assert.Equal(t, "2024-01-02", stored.Date)
	assert.Equal(t, models.SourceYahooFinance, stored.Source)
	assert.Equal(t, 100.0, stored.DataQualityScore)
	assert.NotEmpty(t, stored.IngestedAt)
}

func TestWatermarkNeverDecreases(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	late := bars(3, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	early := bars(2, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	l, err := NewStockLoader(store, fixed(late, nil), nil, Options{})
	require.NoError(t, err)
	require.True(t, l.Load(ctx, "AAPL").OK())

	l2, err := NewStockLoader(store, fixed(early, nil), nil, Options{})
	require.NoError(t, err)
	require.True(t, l2.Load(ctx, "AAPL").OK())

	mark, err := store.Watermark(ctx, l.Table(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, mark)
	assert.Equal(t, "2024-03-03", *mark)
}

func TestValidationRejectionLeavesTableUnchanged(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	good := bars(2, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	l, err := NewStockLoader(store, fixed(good, nil), nil, Options{})
	require.NoError(t, err)
	require.True(t, l.Load(ctx, "AAPL").OK())

	bad := bars(3, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	bad[2].High = dec(90)
	lb, err := NewStockLoader(store, fixed(bad, nil), nil, Options{})
	require.NoError(t, err)
	out := lb.Load(ctx, "AAPL")

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, StateValidate, out.FailedAt)
	assert.Equal(t, ingesterr.KindValidation, out.ErrorKind)

	n, err := store.Count(ctx, l.Table(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDuplicateMergeKeysRejected(t *testing.T) {
	store := openStore(t)
	rows := bars(2, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	rows[1].Date = "2024-01-02"
	l, err := NewStockLoader(store, fixed(rows, nil), nil, Options{})
	require.NoError(t, err)

	out := l.Load(context.Background(), "AAPL")
	assert.Equal(t, StateFailed, out.State)
	var ve *ingesterr.ValidationError
	require.True(t, errors.As(out.Err, &ve))
	assert.Equal(t, "merge_key_unique", ve.Invariant)
}

func TestFetchFailure(t *testing.T) {
	store := openStore(t)
	boom := FetcherFunc[models.StockPrice](func(context.Context, string, *string) ([]models.StockPrice, error) {
		return nil, fmt.Errorf("http 503")
	})
	l, err := NewStockLoader(store, boom, nil, Options{})
	require.NoError(t, err)

	out := l.Load(context.Background(), "AAPL")
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, StateFetch, out.FailedAt)
	assert.Equal(t, ingesterr.KindFetch, out.ErrorKind)
	assert.Contains(t, out.Error, "http 503")
}

func TestEmptyFetchIsDone(t *testing.T) {
	l, err := NewStockLoader(openStore(t), fixed(nil, nil), nil, Options{})
	require.NoError(t, err)
	out := l.Load(context.Background(), "AAPL")
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, 0, out.Fetched)
	assert.Equal(t, 0, out.Inserted)
}

func TestPanicBecomesFailure(t *testing.T) {
	panicky := FetcherFunc[models.StockPrice](func(context.Context, string, *string) ([]models.StockPrice, error) {
		panic("vendor client exploded")
	})
	l, err := NewStockLoader(openStore(t), panicky, nil, Options{})
	require.NoError(t, err)

	out := l.Load(context.Background(), "AAPL")
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, StateFetch, out.FailedAt)
	assert.Equal(t, ingesterr.KindInternal, out.ErrorKind)
}

func TestTimeout(t *testing.T) {
	slow := FetcherFunc[models.StockPrice](func(ctx context.Context, _ string, _ *string) ([]models.StockPrice, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	l, err := NewStockLoader(openStore(t), slow, nil, Options{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	out := l.Load(context.Background(), "AAPL")
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, ingesterr.KindTimeout, out.ErrorKind)
}

func TestMinQualityGate(t *testing.T) {
	store := openStore(t)
	rows := []models.StockPrice{{Date: "2024-01-02", Close: dec(10)}}

	advisory, err := NewStockLoader(store, fixed(rows, nil), nil, Options{})
	require.NoError(t, err)
	out := advisory.Load(context.Background(), "MSFT")
	require.True(t, out.OK(), out.Error)
	assert.Equal(t, 70.0, out.QualityScore)

	strict, err := NewStockLoader(store, fixed(rows, nil), nil, Options{MinQualityScore: 80})
	require.NoError(t, err)
	out = strict.Load(context.Background(), "GOOGL")
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, StateScore, out.FailedAt)
	assert.Contains(t, out.Error, InvariantMinQuality)
}

func TestArchiveCommittedBatch(t *testing.T) {
	dir := t.TempDir()
	ctx := warehouse.WithRunID(context.Background(), "run-42")
	l, err := NewStockLoader(openStore(t), fixed(bars(2, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)), nil), nil,
		Options{Archive: archive.ParquetWriter{Dir: dir}})
	require.NoError(t, err)

	out := l.Load(ctx, "AAPL")
	require.True(t, out.OK(), out.Error)
	assert.Equal(t, filepath.Join(dir, "stocks", "AAPL", "run-42.parquet"), out.ArchivePath)
}

func TestFundamentalsSnapshotHasNoWatermark(t *testing.T) {
	store := openStore(t)
	var seen []*string
	f := FetcherFunc[models.Fundamental](func(_ context.Context, _ string, since *string) ([]models.Fundamental, error) {
		seen = append(seen, since)
		return []models.Fundamental{{FiscalQuarter: "2024-Q2", Revenue: dec(1), NetIncome: dec(1), EPS: dec(1), PERatio: dec(1)}}, nil
	})
	l, err := NewFundamentalsLoader(store, f, nil, Options{})
	require.NoError(t, err)

	require.True(t, l.Load(context.Background(), "AAPL").OK())
	out := l.Load(context.Background(), "AAPL")
	require.True(t, out.OK(), out.Error)
	assert.Equal(t, 1, out.Updated)
	assert.Equal(t, []*string{nil, nil}, seen)
}

func TestSharedArticleKeepsRowPerTicker(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	url := "https://example.com/earnings-roundup"
	f := FetcherFunc[models.NewsArticle](func(_ context.Context, _ string, _ *string) ([]models.NewsArticle, error) {
		title, published := "Big tech earnings", "2024-05-03T10:00:00Z"
		return []models.NewsArticle{{Title: &title, URL: &url, PublishedAt: &published}}, nil
	})
	l, err := NewNewsLoader(store, f, nil, Options{})
	require.NoError(t, err)

	for _, key := range []string{"AAPL", "MSFT"} {
		out := l.Load(ctx, key)
		require.True(t, out.OK(), out.Error)
		assert.Equal(t, 1, out.Inserted, key)
	}

	for _, key := range []string{"AAPL", "MSFT"} {
		n, err := store.Count(ctx, l.Table(), key)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, key)

		mark, err := store.Watermark(ctx, l.Table(), key)
		require.NoError(t, err)
		require.NotNil(t, mark, key)
		assert.Equal(t, "2024-05-03 10:00:00", *mark)
	}
}
