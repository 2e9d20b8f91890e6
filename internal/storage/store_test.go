package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/danieldreier/kanji-srs/internal/srs"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 2, 3, 8, 15, 0, 0, time.UTC)

func testCards() []srs.Card {
	return []srs.Card{
		{ID: "3", Character: "木", Facets: map[srs.FacetKind]string{srs.FacetMeaning: "tree", srs.FacetReadingOn: "モク", srs.FacetReadingKun: "き"}, Frequency: 317},
		{ID: "1", Character: "水", Facets: map[srs.FacetKind]string{srs.FacetMeaning: "water", srs.FacetReadingOn: "スイ"}, Frequency: 223},
		{ID: "2", Character: "鬱", Facets: map[srs.FacetKind]string{srs.FacetMeaning: "gloom"}},
	}
}

// storeFactories lets every contract test run against both implementations.
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"file": func(t *testing.T) Store {
			fs, err := OpenFileStore(filepath.Join(t.TempDir(), "store.json"), srs.DefaultConfig(), zap.NewNop())
			require.NoError(t, err)
			return fs
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), ":memory:", srs.DefaultConfig(), zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestStore_Cards(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		cards, err := s.ListCards(ctx)
		require.NoError(t, err)
		assert.Empty(t, cards)

		added, err := s.ImportCards(ctx, testCards())
		require.NoError(t, err)
		assert.Equal(t, 3, added)

		cards, err = s.ListCards(ctx)
		require.NoError(t, err)
		ids := make([]string, len(cards))
		for i, c := range cards {
			ids[i] = c.ID
		}
		assert.Equal(t, []string{"1", "3", "2"}, ids, "frequency order, unknown last")

		got, err := s.GetCard(ctx, "3")
		require.NoError(t, err)
		if diff := cmp.Diff(testCards()[0], got); diff != "" {
			t.Errorf("GetCard mismatch (-want +got):\n%s", diff)
		}

		_, err = s.GetCard(ctx, "missing")
		assert.ErrorIs(t, err, ErrCardNotFound)

		update := testCards()[1]
		update.Facets[srs.FacetReadingKun] = "みず"
		added, err = s.ImportCards(ctx, []srs.Card{update})
		require.NoError(t, err)
		assert.Equal(t, 0, added)

		got, err = s.GetCard(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "みず", got.Facets[srs.FacetReadingKun])
	})
}

func TestStore_StateLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		cfg := srs.DefaultConfig()
		key := srs.KeyOf("1", srs.FacetMeaning)

		_, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		rs := srs.NewReviewState("1", srs.FacetMeaning, cfg, testNow)
		rs.Interval = 6
		rs.Repetitions = 2
		rs.LastReview = testNow
		require.NoError(t, s.Put(ctx, rs))

		got, ok, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		if diff := cmp.Diff(rs, got); diff != "" {
			t.Errorf("Get mismatch (-want +got):\n%s", diff)
		}

		next, err := s.Update(ctx, key, func(cur srs.ReviewState, ok bool) (srs.ReviewState, error) {
			require.True(t, ok)
			cur.Interval = 15
			cur.Repetitions++
			cur.Leech = true
			return cur, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 15, next.Interval)

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, 3, all[key].Repetitions)
		assert.True(t, all[key].Leech)

		require.NoError(t, s.Reset(ctx))
		all, err = s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestStore_UpdateFailureWritesNothing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		cfg := srs.DefaultConfig()
		key := srs.KeyOf("1", srs.FacetReadingOn)
		rs := srs.NewReviewState("1", srs.FacetReadingOn, cfg, testNow)
		require.NoError(t, s.Put(ctx, rs))

		boom := errors.New("boom")
		_, err := s.Update(ctx, key, func(cur srs.ReviewState, ok bool) (srs.ReviewState, error) {
			return srs.ReviewState{}, boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = s.Update(ctx, key, func(cur srs.ReviewState, ok bool) (srs.ReviewState, error) {
			cur.Easiness = 0.5
			return cur, nil
		})
		assert.ErrorIs(t, err, srs.ErrInvalidState)

		_, err = s.Update(ctx, key, func(cur srs.ReviewState, ok bool) (srs.ReviewState, error) {
			cur.CardID = "2"
			return cur, nil
		})
		assert.ErrorIs(t, err, srs.ErrInvalidState)

		got, _, err := s.Get(ctx, key)
		require.NoError(t, err)
		if diff := cmp.Diff(rs, got); diff != "" {
			t.Errorf("state changed after failed updates (-want +got):\n%s", diff)
		}
	})
}

func TestStore_InvalidKey(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, _, err := s.Get(ctx, srs.KeyOf("", srs.FacetMeaning))
		assert.ErrorIs(t, err, srs.ErrMissingCardID)

		_, _, err = s.Get(ctx, srs.KeyOf("1", "bogus"))
		assert.ErrorIs(t, err, srs.ErrUnknownFacet)
	})
}

func TestStore_ReviewLog(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		key := srs.KeyOf("1", srs.FacetMeaning)

		reviews := []Review{
			{CardID: "1", Facet: srs.FacetMeaning, Quality: 4, Passed: true, WasNew: true, Timestamp: testNow.Add(-25 * time.Hour), Interval: 1, Easiness: 2.5},
			{CardID: "1", Facet: srs.FacetMeaning, Quality: 2, Timestamp: testNow.Add(-time.Hour), Easiness: 2.18},
			{CardID: "3", Facet: srs.FacetMeaning, Quality: 5, Passed: true, WasNew: true, Timestamp: testNow, Interval: 1, Easiness: 2.6},
		}
		for _, r := range reviews {
			require.NoError(t, s.AddReview(ctx, r))
		}

		got, err := s.ReviewsFor(ctx, key)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.NotEmpty(t, got[0].ID)
		assert.Equal(t, 4, got[0].Quality)
		assert.True(t, got[0].Timestamp.Equal(reviews[0].Timestamp))
		assert.False(t, got[1].Passed)

		n, err := s.IntroducedSince(ctx, srs.StartOfDay(testNow))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		require.NoError(t, s.Reset(ctx))
		got, err = s.ReviewsFor(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestSortCards(t *testing.T) {
	cards := []srs.Card{{ID: "b"}, {ID: "a", Frequency: 10}, {ID: "c", Frequency: 2}, {ID: "a2"}}
	sortCards(cards)
	var ids []string
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"c", "a", "a2", "b"}, ids)
}
