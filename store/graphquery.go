package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// graphConn is a thin wrapper for issuing openCypher queries against a
// FalkorDB graph over the redis protocol.
type graphConn struct {
	name   string
	client redis.UniversalClient
}

// graphResult holds the parsed pieces of a GRAPH.QUERY reply.
type graphResult struct {
	Header     []string
	Rows       [][]any
	Statistics []string
}

// query executes a cypher query and parses the raw reply. FalkorDB replies
// with either [header, rows, stats] or [rows, stats] depending on the query.
func (g *graphConn) query(ctx context.Context, cypher string) (*graphResult, error) {
	res, err := g.client.Do(ctx, "GRAPH.QUERY", g.name, cypher).Result()
	if err != nil {
		return nil, err
	}

	reply, ok := res.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected graph reply type: %T", res)
	}

	qr := &graphResult{}
	switch len(reply) {
	case 3:
		if header, ok := reply[0].([]any); ok {
			qr.Header = make([]string, len(header))
			for i, h := range header {
				qr.Header[i] = fmt.Sprint(h)
			}
		}
		qr.Rows = parseRows(reply[1])
		qr.Statistics = parseStats(reply[2])
	case 2:
		qr.Rows = parseRows(reply[0])
		qr.Statistics = parseStats(reply[1])
	default:
		return nil, fmt.Errorf("unexpected graph reply length: %d", len(reply))
	}
	return qr, nil
}

func parseRows(v any) [][]any {
	rows, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		if vals, ok := row.([]any); ok {
			out = append(out, vals)
		}
	}
	return out
}

func parseStats(v any) []string {
	stats, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, len(stats))
	for i, s := range stats {
		out[i] = fmt.Sprint(s)
	}
	return out
}

// parseNodeRecord decodes a node reply entry into a Record. A node arrives as
// [internal-id, labels, properties] where properties is a list of [key,
// value] pairs.
func parseNodeRecord(obj any) (Record, bool) {
	vals, ok := obj.([]any)
	if !ok || len(vals) < 3 {
		return Record{}, false
	}

	props, ok := vals[2].([]any)
	if !ok {
		return Record{}, false
	}

	rec := Record{Kind: KindGraph}
	for _, p := range props {
		pair, ok := p.([]any)
		if !ok || len(pair) != 2 {
			continue
		}
		key := asString(pair[0])
		val := pair[1]
		switch key {
		case "id":
			rec.ID = asString(val)
		case "name":
			rec.Name = asString(val)
		case "url":
			rec.URL = asString(val)
		case "content":
			rec.Content = asString(val)
		case "origin_query":
			rec.OriginQuery = asString(val)
		case "domain":
			rec.Domain = asString(val)
		case "created_at":
			if ms, err := strconv.ParseInt(asString(val), 10, 64); err == nil {
				rec.CreatedAt = time.UnixMilli(ms).UTC()
			}
		}
	}

	return rec, rec.ID != ""
}

func asString(v any) string {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// escapeCypherString escapes a value for inclusion in single-quoted cypher
// string literals.
func escapeCypherString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
