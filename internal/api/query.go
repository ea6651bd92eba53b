package api

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/modlib/internal/index"
	"github.com/starford/modlib/internal/library"
)

const maxSearchLimit = 10000

// parseSearchQuery reads the search parameters of GET /api/modules. A text
// filter without an explicit field list searches every text field.
func parseSearchQuery(v url.Values) (library.SearchQuery, error) {
	q := library.SearchQuery{
		Text:        v.Get("q"),
		Melody:      v.Get("melody"),
		Fingerprint: v.Get("fingerprint"),
		Sort:        v.Get("sort"),
	}

	if raw := v.Get("fields"); raw != "" {
		f, err := index.ParseFields(strings.Split(raw, ","))
		if err != nil {
			return q, err
		}
		q.Fields = f
	} else if q.Text != "" {
		q.Fields = index.FieldAll
	}

	switch strings.ToLower(v.Get("order")) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return q, fmt.Errorf("order must be asc or desc")
	}

	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid limit %q", raw)
		}
		q.Limit = min(n, maxSearchLimit)
	}

	var err error
	if q.Size, err = parseRange(v, "size", parseInt); err != nil {
		return q, err
	}
	if q.FileDate, err = parseRange(v, "filedate", parseDate); err != nil {
		return q, err
	}
	if q.ReleaseDate, err = parseRange(v, "release", parseDate); err != nil {
		return q, err
	}
	if q.Duration, err = parseRange(v, "duration", parseSeconds); err != nil {
		return q, err
	}
	return q, nil
}

// parseRange reads <name>_min and <name>_max. A missing bound is open.
func parseRange(v url.Values, name string, parse func(s string, upper bool) (int64, error)) (*index.Range, error) {
	lo, hi := v.Get(name+"_min"), v.Get(name+"_max")
	if lo == "" && hi == "" {
		return nil, nil
	}
	r := &index.Range{Min: math.MinInt64, Max: math.MaxInt64}
	var err error
	if lo != "" {
		if r.Min, err = parse(lo, false); err != nil {
			return nil, fmt.Errorf("invalid %s_min %q", name, lo)
		}
	}
	if hi != "" {
		if r.Max, err = parse(hi, true); err != nil {
			return nil, fmt.Errorf("invalid %s_max %q", name, hi)
		}
	}
	return r, nil
}

func parseInt(s string, _ bool) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func parseSeconds(s string, _ bool) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n * 1000, err
}

// parseDate accepts unix seconds or YYYY-MM-DD. An upper bound given as a
// day covers that whole day.
func parseDate(s string, upper bool) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return 0, err
	}
	if upper {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t.Unix(), nil
}
