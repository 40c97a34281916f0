package harvest_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/jlicht/krikri/internal/harvest"
	"github.com/stretchr/testify/require"
)

// pagedSource serves pages of size items and counts fetches.
type pagedSource struct {
	pages   [][]string
	fetches int
	failAt  int
}

func (p *pagedSource) fetch(_ context.Context, token string) (harvest.Page[string], error) {
	p.fetches++
	idx := 0
	if token != "" {
		idx, _ = strconv.Atoi(token)
	}
	if p.failAt > 0 && idx == p.failAt {
		return harvest.Page[string]{}, errors.New("connection reset")
	}
	page := harvest.Page[string]{Items: p.pages[idx]}
	if idx+1 < len(p.pages) {
		page.Next = strconv.Itoa(idx + 1)
	}
	return page, nil
}

func TestPageIterator_FetchesLazily(t *testing.T) {
	src := &pagedSource{pages: [][]string{{"a", "b"}, {"c", "d"}, {"e"}}}
	it := harvest.NewPageIterator(context.Background(), src.fetch)
	require.Equal(t, 0, src.fetches)

	got, err := harvest.Take[string](it, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, got)
	require.Equal(t, 1, src.fetches)

	rest, err := harvest.Collect[string](it)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "d", "e"}, rest)
	require.Equal(t, 3, src.fetches)
}

func TestTake_ZeroFetchesNothing(t *testing.T) {
	src := &pagedSource{pages: [][]string{{"a"}}}
	got, err := harvest.Take[string](harvest.NewPageIterator(context.Background(), src.fetch), 0)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, 0, src.fetches)
}

func TestPageIterator_ErrorSurfacesAtFailingPage(t *testing.T) {
	src := &pagedSource{pages: [][]string{{"a", "b"}, {"c"}}, failAt: 1}
	it := harvest.NewPageIterator(context.Background(), src.fetch)

	got, err := harvest.Take[string](it, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, got)

	require.False(t, it.Next())
	require.EqualError(t, it.Err(), "connection reset")
}

func TestPageIterator_SkipsEmptyPages(t *testing.T) {
	src := &pagedSource{pages: [][]string{{}, {}, {"x"}}}
	got, err := harvest.Collect[string](harvest.NewPageIterator(context.Background(), src.fetch))
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, got)
}

func TestPageIterator_RepeatedToken(t *testing.T) {
	fetch := func(context.Context, string) (harvest.Page[int], error) {
		return harvest.Page[int]{Next: "same"}, nil
	}
	_, err := harvest.Collect[int](harvest.NewPageIterator(context.Background(), fetch))
	require.ErrorIs(t, err, harvest.ErrRepeatedToken)
}

func TestPageIterator_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &pagedSource{pages: [][]string{{"a"}}}
	_, err := harvest.Collect[string](harvest.NewPageIterator(ctx, src.fetch))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, src.fetches)
}

func TestConcat_BuildsLazily(t *testing.T) {
	built := 0
	factory := func(items ...string) func() harvest.Iterator[string] {
		return func() harvest.Iterator[string] {
			built++
			return harvest.FromSlice(items)
		}
	}
	it := harvest.Concat(factory("a"), factory("b", "c"), factory("d"))

	got, err := harvest.Take(it, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, got)
	require.Equal(t, 2, built)
	require.NoError(t, it.Close())
}

func TestConcat_StopsOnError(t *testing.T) {
	it := harvest.Concat(
		func() harvest.Iterator[string] { return harvest.FromSlice([]string{"a"}) },
		func() harvest.Iterator[string] { return harvest.Failed[string](errors.New("boom")) },
		func() harvest.Iterator[string] { return harvest.FromSlice([]string{"never"}) },
	)
	got, err := harvest.Collect(it)
	require.EqualError(t, err, "boom")
	require.Equal(t, []string{"a"}, got)
}

func TestMap(t *testing.T) {
	it := harvest.Map[string, int](harvest.FromSlice([]string{"1", "2", "x", "4"}), strconv.Atoi)
	got, err := harvest.Collect(it)
	require.Error(t, err)
	require.Equal(t, []int{1, 2}, got)
}
