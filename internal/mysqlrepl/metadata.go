package mysqlrepl

import "sync"

// ColumnMeta is the per-column schema captured from a TABLE_MAP event.
type ColumnMeta struct {
	Type     byte
	Meta     uint16
	Nullable bool
	Unsigned bool
	Name     string
}

// TableMetadata is the schema snapshot for one table_id, replaced wholesale
// on the next TABLE_MAP for the same id.
type TableMetadata struct {
	TableID uint64
	DB      string
	Table   string
	Columns []ColumnMeta
}

func sameSchema(a, b []ColumnMeta) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || a[i].Meta != b[i].Meta || a[i].Name != b[i].Name ||
			a[i].Nullable != b[i].Nullable || a[i].Unsigned != b[i].Unsigned {
			return false
		}
	}
	return true
}

// AddResult reports what add_or_update did to the cache.
type AddResult int

const (
	ResultAdded AddResult = iota
	ResultUpdated
	ResultSchemaChanged
)

// TableMetadataCache is keyed by table_id, touched only by the fetch loop;
// it lives for the ReplicationReader's lifetime and survives a reconnect.
type TableMetadataCache struct {
	mu      sync.Mutex
	byID    map[uint64]*TableMetadata
	byName  map[string]uint64 // "db.table" -> latest table_id, for DDL routing
}

// NewTableMetadataCache returns an empty cache.
func NewTableMetadataCache() *TableMetadataCache {
	return &TableMetadataCache{
		byID:   make(map[uint64]*TableMetadata),
		byName: make(map[string]uint64),
	}
}

// AddOrUpdate records metadata for table_id, returning whether it is new,
// identical to the prior entry, or a schema change.
func (c *TableMetadataCache) AddOrUpdate(m *TableMetadata) AddResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, existed := c.byID[m.TableID]
	c.byID[m.TableID] = m
	c.byName[m.DB+"."+m.Table] = m.TableID

	if !existed {
		return ResultAdded
	}
	if sameSchema(prev.Columns, m.Columns) {
		return ResultUpdated
	}
	return ResultSchemaChanged
}

// Get returns the cached metadata for table_id, if any.
func (c *TableMetadataCache) Get(tableID uint64) (*TableMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byID[tableID]
	return m, ok
}

// Remove explicitly evicts a table_id; there is no TTL-based expiry.
func (c *TableMetadataCache) Remove(tableID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.byID[tableID]; ok {
		delete(c.byName, m.DB+"."+m.Table)
	}
	delete(c.byID, tableID)
}
