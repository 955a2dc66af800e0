package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2beens/ironlog/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// filter ops supported by the store: equality on the JSON value,
// range compares on the text form of the field.
const (
	OpEqual        = "=="
	OpGreaterEqual = ">="
	OpLessEqual    = "<="
)

type filter struct {
	field string
	op    string
	value any
}

type Query struct {
	collection *Collection
	filters    []filter
	orderField string
	orderDesc  bool
	limit      int
}

func (c *Collection) Query() *Query {
	return &Query{
		collection: c,
	}
}

func (q *Query) Where(field, op string, value any) *Query {
	q.filters = append(q.filters, filter{field: field, op: op, value: value})
	return q
}

func (q *Query) OrderBy(field string, desc bool) *Query {
	q.orderField = field
	q.orderDesc = desc
	return q
}

func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

func (q *Query) Documents(ctx context.Context) (_ []Document, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "docstore.query")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("collection", q.collection.name))
	span.SetAttributes(attribute.Int("filters", len(q.filters)))

	sql, args, err := q.buildSQL()
	if err != nil {
		return nil, err
	}

	rows, err := q.collection.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	var docs []Document
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		docs = append(docs, Document{ID: id, Data: doc})
	}

	if docs == nil {
		docs = make([]Document, 0)
	}

	return docs, nil
}

func (q *Query) buildSQL() (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT doc_id, doc FROM user_document WHERE user_id = $1 AND collection = $2`)
	args := []any{q.collection.userID, q.collection.name}

	for _, f := range q.filters {
		switch f.op {
		case OpEqual:
			// compares the JSON value, so match on null works too
			valueJson, err := json.Marshal(f.value)
			if err != nil {
				return "", nil, fmt.Errorf("marshal filter value for [%s]: %w", f.field, err)
			}
			args = append(args, valueJson)
			fmt.Fprintf(&sb, " AND doc->'%s' = $%d::jsonb", f.field, len(args))
		case OpGreaterEqual, OpLessEqual:
			args = append(args, textValue(f.value))
			op := ">="
			if f.op == OpLessEqual {
				op = "<="
			}
			fmt.Fprintf(&sb, " AND doc->>'%s' %s $%d", f.field, op, len(args))
		default:
			return "", nil, fmt.Errorf("unsupported filter op: %s", f.op)
		}
	}

	if q.orderField != "" {
		direction := "ASC"
		if q.orderDesc {
			direction = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY doc->>'%s' %s", q.orderField, direction)
	}

	if q.limit > 0 {
		args = append(args, q.limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	sb.WriteString(";")
	return sb.String(), args, nil
}

func textValue(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
