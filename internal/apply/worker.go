// Package apply owns the single-threaded consumer that turns a
// mysqlrepl.Event stream into mutations on the catalog's Index and DocStore,
// advances the applied-GTID cursor, and periodically persists it.
package apply

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/libraz/mygramdb/internal/cache"
	"github.com/libraz/mygramdb/internal/catalog"
	"github.com/libraz/mygramdb/internal/dump"
	"github.com/libraz/mygramdb/internal/logging"
	"github.com/libraz/mygramdb/internal/mysqlrepl"
)

// Worker consumes events in the exact order the fetch loop enqueued them,
// which is upstream commit order, so applied state is commit-serial. It is
// the sole writer of every table's Index and DocStore.
type Worker struct {
	catalog *catalog.TableCatalog
	cache   *cache.QueryCache // may be nil when the cache is disabled
	state   dump.GtidStateFile
	log     *zap.Logger

	stateWriteIntervalEvents int

	appliedGTID atomic.Value // string
	eventsSinceWrite int

	wg sync.WaitGroup
}

// New builds a Worker. qc may be nil if the cache is disabled at startup.
func New(cat *catalog.TableCatalog, qc *cache.QueryCache, state dump.GtidStateFile, stateWriteIntervalEvents int, log *zap.Logger) *Worker {
	w := &Worker{
		catalog:                  cat,
		cache:                    qc,
		state:                    state,
		log:                      log,
		stateWriteIntervalEvents: orDefault(stateWriteIntervalEvents, 100),
	}
	w.appliedGTID.Store("")
	return w
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// AppliedGTID returns the GTID of the most recently applied event.
func (w *Worker) AppliedGTID() string {
	v, _ := w.appliedGTID.Load().(string)
	return v
}

// SetStartGTID seeds the applied cursor on a resumed start, before any event
// has been processed.
func (w *Worker) SetStartGTID(gtid string) { w.appliedGTID.Store(gtid) }

// Run drains events until the channel closes or ctx is cancelled, applying
// each to the catalog in order. It returns once draining is complete; callers
// typically run it in its own goroutine.
func (w *Worker) Run(ctx context.Context, events <-chan mysqlrepl.Event) {
	w.wg.Add(1)
	defer w.wg.Done()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				w.flushState()
				return
			}
			w.apply(ev)
		case <-ctx.Done():
			w.flushState()
			return
		}
	}
}

// Wait blocks until Run has returned, for orderly shutdown.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) apply(ev mysqlrepl.Event) {
	tc, err := w.catalog.Get(ev.Table)
	if err != nil {
		return // table dropped from config since the event was enqueued
	}

	switch ev.Kind {
	case mysqlrepl.KindInsert:
		id, err := tc.Docs.AddDocument(ev.PrimaryKey, ev.Filters)
		if err != nil {
			logging.Event("apply_error").Field("table", ev.Table).Field("error", err.Error()).Error(w.log)
			break
		}
		tc.Index.AddDocument(id, ev.Text)

	case mysqlrepl.KindUpdate:
		id, ok := tc.Docs.GetDocId(ev.PrimaryKey)
		if !ok {
			// Row wasn't known (e.g. it failed a required filter before);
			// treat the update as a fresh insert of the new image.
			id, err = tc.Docs.AddDocument(ev.PrimaryKey, ev.Filters)
			if err != nil {
				break
			}
			tc.Index.AddDocument(id, ev.NewText)
			break
		}
		if err := tc.Docs.UpdateDocument(id, ev.Filters); err != nil {
			break
		}
		if ev.OldText != ev.NewText {
			tc.Index.RemoveDocument(id, ev.OldText)
			tc.Index.AddDocument(id, ev.NewText)
		}

	case mysqlrepl.KindDelete:
		if id, ok := tc.Docs.GetDocId(ev.PrimaryKey); ok {
			tc.Index.RemoveDocument(id, ev.Text)
			tc.Docs.RemoveDocument(id)
		}

	case mysqlrepl.KindDdl:
		w.applyDdl(ev, tc)
	}

	if w.cache != nil {
		w.cache.InvalidateTable(ev.Table)
	}

	if ev.Gtid.UUID != "" {
		w.appliedGTID.Store(ev.Gtid.String())
	}
	w.eventsSinceWrite++
	if w.eventsSinceWrite >= w.stateWriteIntervalEvents {
		w.flushState()
	}
}

func (w *Worker) applyDdl(ev mysqlrepl.Event, tc *catalog.TableContext) {
	switch strings.ToUpper(ev.DdlVerb) {
	case "TRUNCATE", "DROP":
		tc.Docs.Clear()
		tc.Index.Clear()
	case "ALTER":
		logging.Event("ddl_alter_observed").
			Field("table", ev.Table).
			Field("sql", ev.SQLUpper).
			Warn(w.log)
	}
}

func (w *Worker) flushState() {
	gtid := w.AppliedGTID()
	if gtid == "" {
		return
	}
	if err := w.state.Write(gtid); err != nil {
		logging.Event("gtid_state_write_error").Field("error", err.Error()).Error(w.log)
		return
	}
	w.eventsSinceWrite = 0
}
