package mysqlrepl

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gomysql "github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"go.uber.org/zap"

	"github.com/libraz/mygramdb/internal/catalog"
	"github.com/libraz/mygramdb/internal/config"
	"github.com/libraz/mygramdb/internal/errs"
	"github.com/libraz/mygramdb/internal/logging"
)

// Source decouples the core from the concrete go-mysql-backed adapter: the
// rest of the core depends only on this interface.
type Source interface {
	// Start connects and begins the fetch loop, delivering row and DDL
	// events on the returned channel until ctx is cancelled or Stop is
	// called. The channel is closed on terminal shutdown.
	Start(ctx context.Context) (<-chan Event, error)
	// Stop signals the fetch loop to exit and blocks until it has joined,
	// so the caller never frees the connection out from under a running
	// fetch loop.
	Stop()
	// CurrentGTID is the GTID last observed in a GTID event — the current,
	// not-yet-applied cursor, distinct from the ApplyWorker's applied-GTID.
	CurrentGTID() string
}

// reconnectBackoffCap is the maximum multiple of reconnect_delay_ms applied
// to the base delay: reconnection backoff caps at 10x the base delay.
const reconnectBackoffCap = 10

// ReplicationReader is the concrete go-mysql-org/go-mysql-backed adapter
// implementing Source. It owns the upstream connection, the
// TableMetadataCache, and the fetch-loop state machine.
type ReplicationReader struct {
	mysqlCfg config.MySQLConfig
	replCfg  config.ReplicationConfig
	catalog  *catalog.TableCatalog
	filter   FilterEvaluator
	log      *zap.Logger

	meta *TableMetadataCache

	syncer *replication.BinlogSyncer

	currentGTID atomic.Value // string
	shouldStop  atomic.Bool
	wg          sync.WaitGroup

	out chan Event
}

// NewReplicationReader builds a reader bound to the given catalog (for table
// routing and schema lookups) and configuration.
func NewReplicationReader(mysqlCfg config.MySQLConfig, replCfg config.ReplicationConfig, cat *catalog.TableCatalog, log *zap.Logger) *ReplicationReader {
	r := &ReplicationReader{
		mysqlCfg: mysqlCfg,
		replCfg:  replCfg,
		catalog:  cat,
		filter:   FilterEvaluator{Log: log},
		log:      log,
		meta:     NewTableMetadataCache(),
		out:      make(chan Event, orDefault(replCfg.QueueSize, 10000)),
	}
	r.currentGTID.Store(replCfg.StartGTID)
	return r
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Start builds a BinlogSyncer (which opens its own connection for the
// subscription), starts a GTID-based stream from start_gtid, and launches
// the fetch loop goroutine. It does not query the upstream's GTID mode and
// does not change the connection's checksum setting itself.
func (r *ReplicationReader) Start(ctx context.Context) (<-chan Event, error) {
	cfg := replication.BinlogSyncerConfig{
		ServerID:        r.replCfg.ServerID,
		Flavor:          "mysql",
		Host:            r.mysqlCfg.Host,
		Port:            uint16(r.mysqlCfg.Port),
		User:            r.mysqlCfg.User,
		Password:        r.mysqlCfg.Password,
		RawModeEnabled:  false,
		ParseTime:       false, // keep datetime/time values as canonical strings
		UseDecimal:      true,  // exact-precision NEWDECIMAL via shopspring/decimal
	}
	r.syncer = replication.NewBinlogSyncer(cfg)

	gset, err := gomysql.ParseMysqlGTIDSet(r.replCfg.StartGTID)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, "parsing start_gtid", err)
	}

	streamer, err := r.syncer.StartSyncGTID(gset)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "starting binlog stream", err)
	}

	r.wg.Add(1)
	go r.fetchLoop(ctx, streamer)

	return r.out, nil
}

// Stop requests the fetch loop exit and blocks until it has joined, so the
// connection is never freed while a blocking fetch might still touch it.
func (r *ReplicationReader) Stop() {
	r.shouldStop.Store(true)
	r.wg.Wait()
	if r.syncer != nil {
		r.syncer.Close()
	}
}

// CurrentGTID returns the GTID last observed in a GTID_LOG_EVENT.
func (r *ReplicationReader) CurrentGTID() string {
	v, _ := r.currentGTID.Load().(string)
	return v
}

func (r *ReplicationReader) fetchLoop(ctx context.Context, streamer *replication.BinlogStreamer) {
	defer r.wg.Done()
	defer close(r.out)

	attempt := 0
	var pendingGtid Gtid
	var currentDB string

	for {
		if r.shouldStop.Load() {
			return
		}

		fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		ev, err := streamer.GetEvent(fetchCtx)
		cancel()

		// Re-check shutdown immediately after the blocking call returns,
		// before touching anything connection-derived; Stop() waits for
		// this loop to return before it closes the syncer.
		if r.shouldStop.Load() {
			return
		}

		if err != nil {
			if err == context.DeadlineExceeded {
				continue // caught up; nothing new since the last poll
			}
			if isTransientReplicationError(err) {
				attempt++
				delay := time.Duration(r.replCfg.ReconnectDelayMs) * time.Millisecond * time.Duration(min(attempt, reconnectBackoffCap))
				logging.Event("replication_reconnect").
					Field("attempt", attempt).
					Field("delay_ms", delay.Milliseconds()).
					Field("error", err.Error()).
					Warn(r.log)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
				continue
			}
			logging.Event("replication_fatal_error").Field("error", err.Error()).Error(r.log)
			return
		}
		attempt = 0

		switch e := ev.Event.(type) {
		case *replication.GTIDEvent:
			pendingGtid = r.handleGTIDEvent(e)

		case *replication.TableMapEvent:
			r.handleTableMap(e)

		case *replication.RowsEvent:
			r.handleRowsEvent(ev.Header, e, pendingGtid, &currentDB)

		case *replication.QueryEvent:
			currentDB = string(e.Schema)
			r.handleQueryEvent(e, pendingGtid)

		case *replication.RotateEvent:
			// Position bookkeeping only; GTID streaming makes the file/
			// position pair informational.

		case *replication.XIDEvent:
			// Transactional boundary only; no action.
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func isTransientReplicationError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"connection lost", "server gone", "broken pipe", "eof", "reset by peer", "i/o timeout"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

func (r *ReplicationReader) handleGTIDEvent(e *replication.GTIDEvent) Gtid {
	var sid [16]byte
	copy(sid[:], e.SID)
	g := Gtid{UUID: FormatSourceUUID(sid), GNO: uint64(e.GNO)}
	r.currentGTID.Store(g.String())
	return g
}

func (r *ReplicationReader) handleTableMap(e *replication.TableMapEvent) {
	db := string(e.Schema)
	table := string(e.Table)

	tc, err := r.catalog.Get(table)
	if err != nil {
		return // unregistered table: ignored
	}

	meta := buildTableMetadata(e, tc.Config.Columns)
	switch r.meta.AddOrUpdate(meta) {
	case ResultSchemaChanged:
		logging.Event("mysql_binlog_warning").
			Field("type", "schema_changed").
			Field("table", db+"."+table).
			Warn(r.log)
	}
}

func (r *ReplicationReader) handleQueryEvent(e *replication.QueryEvent, gtid Gtid) {
	sql := strings.ToUpper(strings.TrimSpace(string(e.Query)))
	if sql == "COMMIT" || sql == "BEGIN" {
		return
	}

	verb, table, ok := DetectDdl(sql)
	if !ok {
		return
	}
	if _, err := r.catalog.Get(table); err != nil {
		return // not a tracked table
	}

	select {
	case r.out <- Event{Kind: KindDdl, Table: table, Gtid: gtid, SQLUpper: sql, DdlVerb: verb.String()}:
	default:
		logging.Event("replication_queue_full").Field("table", table).Warn(r.log)
	}
}

func (r *ReplicationReader) handleRowsEvent(h *replication.EventHeader, e *replication.RowsEvent, gtid Gtid, currentDB *string) {
	table := string(e.Table.Table)
	tc, err := r.catalog.Get(table)
	if err != nil {
		return // unregistered table_id: skip with no side effects
	}

	meta, ok := r.meta.Get(e.Table.TableID)
	if !ok {
		return // no TABLE_MAP seen yet for this table_id
	}
	if len(meta.Columns) != int(e.Table.ColumnCount) {
		logging.Event("mysql_binlog_warning").
			Field("type", "column_count_mismatch").
			Field("table_id", e.Table.TableID).
			Warn(r.log)
		return
	}

	columnNames := tc.Config.Columns

	isWrite := h.EventType == replication.WRITE_ROWS_EVENTv1 || h.EventType == replication.WRITE_ROWS_EVENTv2
	isUpdate := h.EventType == replication.UPDATE_ROWS_EVENTv1 || h.EventType == replication.UPDATE_ROWS_EVENTv2
	isDelete := h.EventType == replication.DELETE_ROWS_EVENTv1 || h.EventType == replication.DELETE_ROWS_EVENTv2

	switch {
	case isWrite:
		for _, row := range e.Rows {
			r.emitSingleImage(table, tc, columnNames, row, gtid, KindInsert)
		}
	case isDelete:
		for _, row := range e.Rows {
			r.emitSingleImage(table, tc, columnNames, row, gtid, KindDelete)
		}
	case isUpdate:
		for i := 0; i+1 < len(e.Rows); i += 2 {
			r.emitUpdateImage(table, tc, columnNames, e.Rows[i], e.Rows[i+1], gtid)
		}
	}
}

func textSourceColumns(tc config.TableConfig) []string {
	if tc.TextSource.Column != "" {
		return []string{tc.TextSource.Column}
	}
	return tc.TextSource.Concat
}

func buildText(row map[string]string, tc config.TableConfig) string {
	cols := textSourceColumns(tc)
	if len(cols) == 1 && tc.TextSource.Column != "" {
		return row[cols[0]]
	}
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, row[c])
	}
	delim := tc.TextSource.Delimiter
	return strings.Join(parts, delim)
}

func (r *ReplicationReader) emitSingleImage(table string, tc *catalog.TableContext, columnNames []string, row []interface{}, gtid Gtid, kind Kind) {
	rowMap := stringifyRow(row, columnNames)

	if !r.filter.EvaluateRequired(rowMap, tc.Config) {
		return // required-filter rejection happens before enqueue
	}

	pk := rowMap[tc.Config.PrimaryKey]
	text := buildText(rowMap, tc.Config)
	filters := r.filter.ExtractAllFilters(rowMap, tc.Config)

	ev := Event{Kind: kind, Table: table, Gtid: gtid, PrimaryKey: pk, Filters: filters, Text: text}

	select {
	case r.out <- ev:
	default:
		logging.Event("replication_queue_full").Field("table", table).Warn(r.log)
	}
}

func (r *ReplicationReader) emitUpdateImage(table string, tc *catalog.TableContext, columnNames []string, before, after []interface{}, gtid Gtid) {
	beforeMap := stringifyRow(before, columnNames)
	afterMap := stringifyRow(after, columnNames)

	if !r.filter.EvaluateRequired(afterMap, tc.Config) {
		return
	}

	pk := afterMap[tc.Config.PrimaryKey]
	oldText := buildText(beforeMap, tc.Config)
	newText := buildText(afterMap, tc.Config)
	filters := r.filter.ExtractAllFilters(afterMap, tc.Config)

	ev := Event{Kind: KindUpdate, Table: table, Gtid: gtid, PrimaryKey: pk, OldText: oldText, NewText: newText, Filters: filters}

	select {
	case r.out <- ev:
	default:
		logging.Event("replication_queue_full").Field("table", table).Warn(r.log)
	}
}
