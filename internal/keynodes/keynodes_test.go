package keynodes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/scagents/internal/inmemorygraph"
	"github.com/vk/scagents/internal/sc"
)

func TestResolve_CreatesMissing(t *testing.T) {
	// --- Arrange ---
	ctx := context.Background()
	store := inmemorygraph.New()

	// --- Act ---
	kn, err := Resolve(ctx, store)

	// --- Assert ---
	require.NoError(t, err)
	idtfs, err := store.SystemIdentifiers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, Identifiers(), idtfs)

	typ, err := store.ElementType(ctx, kn.RrelStructure)
	require.NoError(t, err)
	assert.Equal(t, sc.ConstRole, typ)

	typ, err = store.ElementType(ctx, kn.NrelMainIdentifier)
	require.NoError(t, err)
	assert.Equal(t, sc.ConstNoRole, typ)
}

func TestResolve_ReusesExisting(t *testing.T) {
	ctx := context.Background()
	store := inmemorygraph.New()
	existing, err := store.CreateNode(ctx, sc.ConstClass)
	require.NoError(t, err)
	require.NoError(t, store.SetSystemIdentifier(ctx, existing, "concept_search_template"))

	kn, err := Resolve(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, existing, kn.SearchTemplate)

	again, err := Resolve(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, kn, again)
}

func TestResolve_StoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: inmemorygraph.New()}

	_, err := Resolve(ctx, store)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.Contains(t, err.Error(), "concept_search_template")
}

type failingStore struct {
	*inmemorygraph.Store
}

func (f *failingStore) CreateNode(ctx context.Context, t sc.Type) (sc.Addr, error) {
	return sc.EmptyAddr, errors.New("disk full")
}

func TestIdentifiers_Unique(t *testing.T) {
	seen := map[string]bool{}
	for _, idtf := range Identifiers() {
		assert.False(t, seen[idtf], "duplicate identifier %s", idtf)
		seen[idtf] = true
	}
}
