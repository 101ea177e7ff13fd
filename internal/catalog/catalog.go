// Package catalog owns every table's Index, DocStore, and configuration and
// hands out borrowed references to handlers, the ApplyWorker, and the dump
// writer/reader. TableCatalog is the sole owner; everyone else borrows.
package catalog

import (
	"sync"
	"sync/atomic"

	"github.com/libraz/mygramdb/internal/config"
	"github.com/libraz/mygramdb/internal/errs"
	"github.com/libraz/mygramdb/internal/index"
	"github.com/libraz/mygramdb/internal/storage"
)

// TableContext bundles one table's configuration with its exclusively owned
// Index and DocStore.
type TableContext struct {
	Config config.TableConfig
	Index  *index.Index
	Docs   *storage.DocStore
}

// TableCatalog is the catalog-wide owner of all TableContexts, plus the
// read-only/loading-only flags DumpHandler toggles around SAVE/LOAD.
type TableCatalog struct {
	mu     sync.RWMutex
	tables map[string]*TableContext

	readOnly   atomic.Bool
	loadingOnly atomic.Bool
}

// New builds a catalog with one TableContext per configured table.
func New(tables []config.TableConfig) *TableCatalog {
	c := &TableCatalog{tables: make(map[string]*TableContext, len(tables))}
	for _, t := range tables {
		c.tables[t.Name] = &TableContext{
			Config: t,
			Index:  index.New(t.NgramSize, t.KanjiNgramSize),
			Docs:   storage.NewDocStore(),
		}
	}
	return c
}

// Get returns the named table's context, or NotFound.
func (c *TableCatalog) Get(name string) (*TableContext, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tc, ok := c.tables[name]
	if !ok {
		return nil, errs.New(errs.NotFound, "Table not found: "+name)
	}
	return tc, nil
}

// Names returns every configured table name.
func (c *TableCatalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.tables))
	for n := range c.tables {
		out = append(out, n)
	}
	return out
}

// All returns every TableContext, for dump writing and INFO aggregation.
func (c *TableCatalog) All() map[string]*TableContext {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]*TableContext, len(c.tables))
	for n, tc := range c.tables {
		out[n] = tc
	}
	return out
}

// SetReadOnly toggles the catalog-wide read-only flag DumpHandler sets
// around DUMP SAVE. The flag is only recorded and reported by ReadOnly; the
// apply worker does not consult it and keeps applying during the snapshot.
func (c *TableCatalog) SetReadOnly(v bool) { c.readOnly.Store(v) }

// ReadOnly reports the current read-only flag.
func (c *TableCatalog) ReadOnly() bool { return c.readOnly.Load() }

// SetLoadingOnly toggles the loading-only flag DumpHandler sets around
// DUMP LOAD; SearchHandler and CountHandler refuse queries while it is set.
func (c *TableCatalog) SetLoadingOnly(v bool) { c.loadingOnly.Store(v) }

// LoadingOnly reports the current loading-only flag.
func (c *TableCatalog) LoadingOnly() bool { return c.loadingOnly.Load() }
