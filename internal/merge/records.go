package merge

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// record is one line of a line-delimited file. Parsed lines carry their
// decoded document; raw lines only carry the original text.
type record struct {
	identity string
	ts       float64
	order    int // encounter position, for a stable sort among equal timestamps
	doc      map[string]any
	raw      string
}

// mergeRecords merges two line-delimited record files. Records are
// deduplicated by identity (id, then uuid, then timestamp, then the raw
// line); when both sides carry the same identity the record with the larger
// timestamp survives, side B winning ties. Output is every surviving record
// sorted by timestamp ascending.
func mergeRecords(c *Conflict) string {
	byIdentity := make(map[string]*record)
	var order []string
	next := 0

	ingest := func(content string) {
		for _, line := range strings.Split(content, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			rec := parseRecord(line, next)
			next++
			prev, seen := byIdentity[rec.identity]
			if !seen {
				byIdentity[rec.identity] = rec
				order = append(order, rec.identity)
				continue
			}
			if rec.ts >= prev.ts {
				rec.order = prev.order
				byIdentity[rec.identity] = rec
			}
		}
	}

	ingest(c.ContentA)
	ingest(c.ContentB)

	merged := make([]*record, 0, len(order))
	for _, id := range order {
		merged = append(merged, byIdentity[id])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].ts != merged[j].ts {
			return merged[i].ts < merged[j].ts
		}
		return merged[i].order < merged[j].order
	})

	var sb strings.Builder
	for _, rec := range merged {
		sb.WriteString(rec.serialize())
		sb.WriteString("\n")
	}
	return sb.String()
}

func parseRecord(line string, order int) *record {
	var doc map[string]any
	if err := json.Unmarshal([]byte(line), &doc); err != nil || doc == nil {
		// non-parsing lines are their own identity and survive verbatim
		return &record{identity: line, order: order, raw: line}
	}

	rec := &record{order: order, doc: doc, raw: line}
	rec.ts = recordTime(doc)

	for _, field := range []string{"id", "uuid", "timestamp"} {
		if v, ok := doc[field]; ok {
			rec.identity = field + ":" + identityString(v)
			return rec
		}
	}
	rec.identity = line
	return rec
}

func (r *record) serialize() string {
	if r.doc == nil {
		return r.raw
	}
	out, err := json.Marshal(r.doc)
	if err != nil {
		return r.raw
	}
	return string(out)
}

func identityString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		out, _ := json.Marshal(val)
		return string(out)
	}
}

// recordTime extracts a comparable timestamp from a record. Numbers are used
// as-is; strings are tried as a number, then RFC3339.
func recordTime(doc map[string]any) float64 {
	for _, field := range []string{"timestamp", "ts"} {
		v, ok := doc[field]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case float64:
			return val
		case string:
			if n, err := strconv.ParseFloat(val, 64); err == nil {
				return n
			}
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				return float64(t.UnixMilli())
			}
		}
	}
	return 0
}
