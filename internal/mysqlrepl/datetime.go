package mysqlrepl

import (
	"strconv"
	"strings"
	"time"
)

// parseDatetimeToEpoch parses a MySQL "YYYY-MM-DD[ hh:mm:ss[.ffffff]]" or
// "YYYY-MM-DD" string (as already decoded by go-mysql's row value to a Go
// string) in the given zone offset into epoch-seconds.
func parseDatetimeToEpoch(raw, tz string) (uint64, bool) {
	loc, err := parseZoneOffset(tz)
	if err != nil {
		return 0, false
	}

	layouts := []string{
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			sec := t.Unix()
			if sec < 0 {
				return 0, false
			}
			return uint64(sec), true
		}
	}
	return 0, false
}

// parseTimeOfDay parses a MySQL TIME string "[-]hh:mm:ss[.ffffff]" into
// signed seconds-since-midnight.
func parseTimeOfDay(raw string) (int64, bool) {
	neg := strings.HasPrefix(raw, "-")
	s := strings.TrimPrefix(raw, "-")

	parts := strings.SplitN(s, ".", 2)
	hms := strings.Split(parts[0], ":")
	if len(hms) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(hms[0])
	m, err2 := strconv.Atoi(hms[1])
	sec, err3 := strconv.Atoi(hms[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}

	total := int64(h)*3600 + int64(m)*60 + int64(sec)
	if neg {
		total = -total
	}
	return total, true
}

// parseZoneOffset parses a "+HH:MM" / "-HH:MM" offset string into a
// fixed-offset time.Location, the form the mysql.datetime_timezone config
// option uses.
func parseZoneOffset(tz string) (*time.Location, error) {
	if tz == "" || tz == "+00:00" || tz == "UTC" {
		return time.UTC, nil
	}

	neg := strings.HasPrefix(tz, "-")
	s := strings.TrimPrefix(strings.TrimPrefix(tz, "+"), "-")
	parts := strings.SplitN(s, ":", 2)
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.UTC, err
	}
	m := 0
	if len(parts) == 2 {
		m, err = strconv.Atoi(parts[1])
		if err != nil {
			return time.UTC, err
		}
	}
	offset := h*3600 + m*60
	if neg {
		offset = -offset
	}
	return time.FixedZone(tz, offset), nil
}
