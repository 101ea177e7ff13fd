package server

import (
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/libraz/mygramdb/internal/apply"
	"github.com/libraz/mygramdb/internal/cache"
	"github.com/libraz/mygramdb/internal/catalog"
	"github.com/libraz/mygramdb/internal/config"
	"github.com/libraz/mygramdb/internal/errs"
	"github.com/libraz/mygramdb/internal/mysqlrepl"
	"github.com/libraz/mygramdb/internal/queryspec"
	"github.com/libraz/mygramdb/internal/stats"
)

// Dispatcher parses request lines and routes them to the handler methods.
// Each call to Dispatch is independent: no parser state is shared across
// connections or even across requests on the same connection.
type Dispatcher struct {
	Catalog *catalog.TableCatalog
	Cache   *cache.QueryCache
	Config  *config.Config
	Stats   *stats.ServerStats
	Worker  *apply.Worker
	Source  mysqlrepl.Source // nil when replication.enable is false
	Log     *zap.Logger

	startedAt time.Time
	debug     atomic.Bool
}

// NewDispatcher wires a Dispatcher over the already-constructed subsystems.
func NewDispatcher(cat *catalog.TableCatalog, qc *cache.QueryCache, cfg *config.Config, st *stats.ServerStats, w *apply.Worker, src mysqlrepl.Source, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		Catalog:   cat,
		Cache:     qc,
		Config:    cfg,
		Stats:     st,
		Worker:    w,
		Source:    src,
		Log:       log,
		startedAt: time.Now(),
	}
}

// Dispatch parses one request line and returns the rendered response,
// always newline-terminated and ready to write to the connection.
func (d *Dispatcher) Dispatch(line string) string {
	if d.Config.Server.MaxQueryLength > 0 && len(line) > d.Config.Server.MaxQueryLength {
		d.Stats.ErrorResponses.Add(1)
		return errResponse("request exceeds max_query_length").render()
	}

	q, err := ParseLine(line)
	if err != nil {
		d.Stats.ErrorResponses.Add(1)
		return errResponse(err.Error()).render()
	}

	var tc *catalog.TableContext
	if q.Table != "" {
		tc, err = d.Catalog.Get(q.Table)
		if err != nil {
			d.Stats.ErrorResponses.Add(1)
			return errResponse(err.Error()).render()
		}
	}

	if (q.Type == queryspec.Search || q.Type == queryspec.Count) && !q.LimitExplicit {
		q.Limit = d.Config.Server.DefaultLimit
	}

	var resp response
	switch q.Type {
	case queryspec.Search:
		resp = d.handleSearch(tc, q)
	case queryspec.Count:
		resp = d.handleCount(tc, q)
	case queryspec.Get:
		resp = d.handleGet(tc, q)
	case queryspec.Info:
		resp = d.handleInfo()
	case queryspec.ConfigCmd:
		resp = d.handleConfig(q)
	case queryspec.DumpCmd:
		resp = d.handleDump(q)
	case queryspec.CacheCmd:
		resp = d.handleCache(q)
	case queryspec.DebugCmd:
		resp = d.handleDebug(q)
	default:
		resp = errResponse("unhandled command")
	}

	if len(resp.lines) > 0 && strings.HasPrefix(resp.lines[0], "ERROR") {
		d.Stats.ErrorResponses.Add(1)
	}
	return resp.render()
}

func notReady(cat *catalog.TableCatalog) error {
	if cat.LoadingOnly() {
		return errs.New(errs.Unavailable, "catalog is loading a dump, try again shortly")
	}
	return nil
}
