package subscriptions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

func seededCatalog(t *testing.T) (*Catalog, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	catalog := NewCatalog(store, logging.Discard())
	require.NoError(t, catalog.EnsureDefaults(context.Background()))
	return catalog, store
}

func TestCatalog_ForVolume(t *testing.T) {
	catalog, _ := seededCatalog(t)
	cases := map[int]string{
		1000:   "Starter",
		1001:   "Pro",
		10000:  "Pro",
		100000: "Entreprise",
	}
	for volume, want := range cases {
		got, err := catalog.ForVolume(context.Background(), volume)
		require.NoError(t, err)
		assert.Equal(t, want, got.Name, "volume %d", volume)
	}
}

func TestCatalog_ForVolumeSkipsDeleted(t *testing.T) {
	catalog, store := seededCatalog(t)
	ctx := context.Background()

	starter, err := catalog.ForVolume(ctx, 500)
	require.NoError(t, err)
	_, err = store.SoftDelete(ctx, starter.ID, "admin", "")
	require.NoError(t, err)

	got, err := catalog.ForVolume(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, "Pro", got.Name)
}

func TestCatalog_NoMatch(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Create(context.Background(), &CreateTypeRequest{Name: "Tiny", Price: 1, DurationDays: 1, MaxProspects: intPtr(10)})
	require.NoError(t, err)

	_, err = NewCatalog(store, nil).ResolveTypeID(context.Background(), 1000)
	assert.ErrorIs(t, err, ErrNoMatchingType)
}

func TestCatalog_EqualPriceTighterCeilingWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.Create(ctx, &CreateTypeRequest{Name: "Open", Price: 10, DurationDays: 1})
	require.NoError(t, err)
	tight, err := store.Create(ctx, &CreateTypeRequest{Name: "Tight", Price: 10, DurationDays: 1, MaxProspects: intPtr(5000)})
	require.NoError(t, err)

	id, err := NewCatalog(store, nil).ResolveTypeID(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, tight.ID, id)
}

func TestCatalog_EnsureDefaultsIsIdempotent(t *testing.T) {
	catalog, store := seededCatalog(t)
	require.NoError(t, catalog.EnsureDefaults(context.Background()))
	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, len(DefaultTypes()))
}

func TestCatalog_EnsureDefaultsAfterAllTypesDeleted(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			catalog := NewCatalog(store, logging.Discard())
			require.NoError(t, catalog.EnsureDefaults(ctx))

			list, err := store.List(ctx)
			require.NoError(t, err)
			for _, st := range list {
				_, err := store.SoftDelete(ctx, st.ID, "admin-1", "retired")
				require.NoError(t, err)
			}

			require.NoError(t, catalog.EnsureDefaults(ctx))
			list, err = store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list, "deleted defaults must not be resurrected")
		})
	}
}
