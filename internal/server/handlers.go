package server

import (
	"fmt"
	"strings"

	"github.com/libraz/mygramdb/internal/cache"
	"github.com/libraz/mygramdb/internal/catalog"
	"github.com/libraz/mygramdb/internal/config"
	"github.com/libraz/mygramdb/internal/dump"
	"github.com/libraz/mygramdb/internal/queryspec"
)

func (d *Dispatcher) handleSearch(tc *catalog.TableContext, q queryspec.Query) response {
	d.Stats.SearchRequests.Add(1)
	if err := notReady(d.Catalog); err != nil {
		return errResponse(err.Error())
	}

	key := cache.HashKey(cache.Fingerprint(q, tc.Config.PrimaryKey))
	res := execute(tc, d.Cache, q, key)
	if res.fromCache {
		d.Stats.CacheHits.Add(1)
	} else if d.Cache != nil && d.Cache.IsEnabled() {
		d.Stats.CacheMisses.Add(1)
	}

	page := sortAndPaginate(tc, res.ids, q)

	lines := make([]string, 0, len(page)+1)
	for _, id := range page {
		if pk, ok2 := tc.Docs.GetPrimaryKey(id); ok2 {
			lines = append(lines, pk)
		}
	}
	return ok(lines...)
}

func (d *Dispatcher) handleCount(tc *catalog.TableContext, q queryspec.Query) response {
	d.Stats.CountRequests.Add(1)
	if err := notReady(d.Catalog); err != nil {
		return errResponse(err.Error())
	}

	key := cache.HashKey(cache.Fingerprint(q, tc.Config.PrimaryKey))
	res := execute(tc, d.Cache, q, key)
	if res.fromCache {
		d.Stats.CacheHits.Add(1)
	} else if d.Cache != nil && d.Cache.IsEnabled() {
		d.Stats.CacheMisses.Add(1)
	}
	return okValue("%d", len(res.ids))
}

func (d *Dispatcher) handleGet(tc *catalog.TableContext, q queryspec.Query) response {
	d.Stats.GetRequests.Add(1)
	if err := notReady(d.Catalog); err != nil {
		return errResponse(err.Error())
	}
	if _, ok2 := tc.Docs.GetDocId(q.PrimaryKey); !ok2 {
		return errResponse("document not found")
	}
	return okValue("%s", q.PrimaryKey)
}

func (d *Dispatcher) handleInfo() response {
	snap := d.Stats.Snapshot()
	lines := []string{
		fmt.Sprintf("search_requests %d", snap.SearchRequests),
		fmt.Sprintf("count_requests %d", snap.CountRequests),
		fmt.Sprintf("get_requests %d", snap.GetRequests),
		fmt.Sprintf("error_responses %d", snap.ErrorResponses),
		fmt.Sprintf("cache_hits %d", snap.CacheHits),
		fmt.Sprintf("cache_misses %d", snap.CacheMisses),
		fmt.Sprintf("replication_events_applied %d", snap.ReplicationEventsApplied),
	}
	if d.Worker != nil {
		lines = append(lines, "applied_gtid "+d.Worker.AppliedGTID())
	}
	if d.Source != nil {
		lines = append(lines, "current_gtid "+d.Source.CurrentGTID())
	}
	for name, tc := range d.Catalog.All() {
		lines = append(lines, fmt.Sprintf("table.%s.documents %d", name, tc.Docs.Count()))
	}
	return ok(lines...)
}

func (d *Dispatcher) handleConfig(q queryspec.Query) response {
	switch q.Sub {
	case "SHOW":
		masked := d.Config.MaskedCopy()
		return ok(fmt.Sprintf("mysql.host %s", masked.MySQL.Host),
			fmt.Sprintf("mysql.password %s", masked.MySQL.Password),
			fmt.Sprintf("server.port %d", masked.Server.Port),
			fmt.Sprintf("cache.enabled %t", masked.Cache.Enabled))
	case "VERIFY":
		if q.Arg != "" {
			if _, err := config.Load(q.Arg); err != nil {
				return errResponse(strings.Join(strings.Fields(err.Error()), " "))
			}
			return ok("configuration is valid")
		}
		if violations := d.Config.Validate(); len(violations) > 0 {
			return errResponse(strings.Join(violations, "; "))
		}
		return ok("configuration is valid")
	case "HELP":
		return ok("mysql", "replication", "tables", "cache", "server")
	default:
		return errResponse("CONFIG requires HELP, SHOW, or VERIFY")
	}
}

func (d *Dispatcher) handleDump(q queryspec.Query) response {
	path := q.Arg
	switch q.Sub {
	case "SAVE":
		d.Catalog.SetReadOnly(true)
		defer d.Catalog.SetReadOnly(false)

		gtid := ""
		if d.Worker != nil {
			gtid = d.Worker.AppliedGTID()
		}
		if err := dump.Write(path, d.Catalog, d.Config, dump.Options{GTID: gtid}); err != nil {
			return errResponse(err.Error())
		}
		return ok("dump written to " + path)

	case "LOAD":
		d.Catalog.SetLoadingOnly(true)
		defer d.Catalog.SetLoadingOnly(false)

		gtid, err := dump.Read(path, d.Catalog)
		if err != nil {
			return errResponse(err.Error())
		}
		if d.Worker != nil {
			d.Worker.SetStartGTID(gtid)
		}
		if d.Cache != nil {
			d.Cache.Clear()
		}
		return ok("dump loaded from " + path + ", gtid " + gtid)

	case "VERIFY":
		if err := dump.Verify(path); err != nil {
			return errResponse(err.Error())
		}
		return ok("dump is valid")

	case "INFO":
		info, err := dump.ReadInfo(path)
		if err != nil {
			return errResponse(err.Error())
		}
		return ok(
			fmt.Sprintf("version %d", info.Version),
			fmt.Sprintf("gtid %s", info.GTID),
			fmt.Sprintf("table_count %d", info.TableCount),
			fmt.Sprintf("file_size %d", info.FileSizeBytes),
			fmt.Sprintf("timestamp %d", info.TimestampUnix),
			fmt.Sprintf("has_statistics %t", info.HasStatistics),
		)

	default:
		return errResponse("DUMP requires SAVE, LOAD, VERIFY, or INFO")
	}
}

func (d *Dispatcher) handleCache(q queryspec.Query) response {
	if d.Cache == nil {
		return errResponse("cache is not configured")
	}
	switch q.Sub {
	case "CLEAR":
		if q.Arg != "" {
			d.Cache.ClearTable(q.Arg)
		} else {
			d.Cache.Clear()
		}
		return ok("cache cleared")
	case "STATS":
		s := d.Cache.Stats()
		return ok(
			fmt.Sprintf("hits %d", s.Hits),
			fmt.Sprintf("misses %d", s.Misses),
			fmt.Sprintf("evictions %d", s.Evictions),
			fmt.Sprintf("entries %d", s.CurrentEntries),
			fmt.Sprintf("memory_bytes %d", s.CurrentMemoryBytes),
		)
	case "ENABLE":
		if err := d.Cache.Enable(); err != nil {
			return errResponse(err.Error())
		}
		return ok("cache enabled")
	case "DISABLE":
		d.Cache.Disable()
		return ok("cache disabled")
	default:
		return errResponse("CACHE requires CLEAR, STATS, ENABLE, or DISABLE")
	}
}

func (d *Dispatcher) handleDebug(q queryspec.Query) response {
	switch q.Sub {
	case "ON":
		d.debug.Store(true)
		return ok("debug on")
	case "OFF":
		d.debug.Store(false)
		return ok("debug off")
	default:
		return errResponse("DEBUG requires ON or OFF")
	}
}
