package rulestorage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/cache"
	"github.com/arxos/graphrules/internal/grlog"
)

const validAction = `ACTION Invoice.void(reason: string?) { EFFECT { SET inv.status = "void"; } }`
const invalidSource = `ACTION X.y() { EFFECT { SET a.b = 1; }`

func newTestLoader() (*Loader, *MemorySourceStore, *[]ast.ActionDef, *[]ast.RuleDef) {
	store := NewMemorySourceStore()
	var gotActions []ast.ActionDef
	var gotRules []ast.RuleDef
	l := NewLoader(store, grlog.New(grlog.LevelError, "test"),
		func(a []ast.ActionDef) { gotActions = append(gotActions, a...) },
		func(r []ast.RuleDef) { gotRules = append(gotRules, r...) },
	)
	return l, store, &gotActions, &gotRules
}

func TestUploadRejectsInvalidSource(t *testing.T) {
	l, store, _, _ := newTestLoader()
	err := l.Upload(context.Background(), "bad.dsl", invalidSource)
	require.Error(t, err)

	_, getErr := store.GetSource(context.Background(), "bad.dsl")
	assert.Error(t, getErr, "a rejected upload must never be persisted")
}

func TestUploadPersistsAndDispatchesActions(t *testing.T) {
	l, store, gotActions, _ := newTestLoader()
	require.NoError(t, l.Upload(context.Background(), "invoice.dsl", validAction))

	src, err := store.GetSource(context.Background(), "invoice.dsl")
	require.NoError(t, err)
	assert.Equal(t, validAction, src)
	require.Len(t, *gotActions, 1)
	assert.Equal(t, "void", (*gotActions)[0].ActionName)
}

func TestLoadAllSkipsUnparsableStoredDocuments(t *testing.T) {
	l, store, gotActions, _ := newTestLoader()
	require.NoError(t, store.PutSource(context.Background(), "good.dsl", validAction))
	require.NoError(t, store.PutSource(context.Background(), "corrupt.dsl", invalidSource))

	require.NoError(t, l.LoadAll(context.Background()))
	require.Len(t, *gotActions, 1)
	assert.Equal(t, "void", (*gotActions)[0].ActionName)
}

// listsGhostStore still lists "ghost.dsl" after it is gone from the
// backing map, so GetSource fails for a key that ListSources returned.
type listsGhostStore struct{ *MemorySourceStore }

func (s listsGhostStore) ListSources(ctx context.Context) ([]string, error) {
	keys, err := s.MemorySourceStore.ListSources(ctx)
	return append(keys, "ghost.dsl"), err
}

func TestLoadAllReadErrorIsSkippedNotFatal(t *testing.T) {
	l, store, gotActions, _ := newTestLoader()
	require.NoError(t, store.PutSource(context.Background(), "good.dsl", validAction))
	require.NoError(t, store.PutSource(context.Background(), "ghost.dsl", "placeholder"))
	// simulate a source disappearing between ListSources and GetSource:
	// the wrapper keeps listing the key that is removed from the map here.
	delete(store.sources, "ghost.dsl")
	l.Store = listsGhostStore{store}

	require.NoError(t, l.LoadAll(context.Background()))
	require.Len(t, *gotActions, 1)
}

func TestParseCachedDispatchesEachUploadWithCacheAttached(t *testing.T) {
	c, err := cache.New(100, 1<<20)
	require.NoError(t, err)
	defer c.Close()

	l, _, gotActions, _ := newTestLoader()
	l.WithCache(c)

	require.NoError(t, l.Upload(context.Background(), "invoice.dsl", validAction))
	require.NoError(t, l.Upload(context.Background(), "invoice-again.dsl", validAction))
	assert.Len(t, *gotActions, 2, "cache hit must still dispatch the same parsed defs on each call")
}

func TestMemorySourceStoreListSourcesSorted(t *testing.T) {
	store := NewMemorySourceStore()
	require.NoError(t, store.PutSource(context.Background(), "b.dsl", "x"))
	require.NoError(t, store.PutSource(context.Background(), "a.dsl", "y"))

	keys, err := store.ListSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.dsl", "b.dsl"}, keys)
}

func TestMemorySourceStoreGetMissingKey(t *testing.T) {
	store := NewMemorySourceStore()
	_, err := store.GetSource(context.Background(), "missing.dsl")
	assert.Error(t, err)
}
