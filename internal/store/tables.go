package store

import (
	"fmt"
	"strings"

	"github.com/roach88/casetrail/internal/ir"
)

type colType int

const (
	colText colType = iota
	colInt
	colBool
)

type column struct {
	name string
	typ  colType
}

// entityTable describes the live table of a standalone entity kind.
// The first column is always the primary key "id".
type entityTable struct {
	kind    ir.EntityKind
	name    string
	columns []column
}

// linkTable describes a note association table.
type linkTable struct {
	kind  ir.EntityKind
	name  string
	child ir.EntityKind
}

var entityTables = map[ir.EntityKind]entityTable{
	ir.KindNote: {
		kind: ir.KindNote,
		name: "notes",
		columns: []column{
			{"id", colText},
			{"title", colText},
			{"public_details", colText},
			{"private_details", colText},
			{"is_submitted", colBool},
			{"interacted_at", colInt},
			{"created_at", colInt},
			{"updated_at", colInt},
		},
	},
	ir.KindMood: {
		kind: ir.KindMood,
		name: "moods",
		columns: []column{
			{"id", colText},
			{"note_id", colText},
			{"descriptor", colText},
			{"created_at", colInt},
		},
	},
	ir.KindTask: {
		kind: ir.KindTask,
		name: "tasks",
		columns: []column{
			{"id", colText},
			{"title", colText},
			{"status", colText},
			{"created_at", colInt},
		},
	},
	ir.KindServiceRequest: {
		kind: ir.KindServiceRequest,
		name: "service_requests",
		columns: []column{
			{"id", colText},
			{"service", colText},
			{"status", colText},
			{"created_at", colInt},
		},
	},
}

var linkTables = map[ir.EntityKind]linkTable{
	ir.KindPurposeLink:          {ir.KindPurposeLink, "note_purposes", ir.KindTask},
	ir.KindNextStepLink:         {ir.KindNextStepLink, "note_next_steps", ir.KindTask},
	ir.KindProvidedServiceLink:  {ir.KindProvidedServiceLink, "note_provided_services", ir.KindServiceRequest},
	ir.KindRequestedServiceLink: {ir.KindRequestedServiceLink, "note_requested_services", ir.KindServiceRequest},
}

func lookupEntity(kind ir.EntityKind) (entityTable, error) {
	t, ok := entityTables[kind]
	if !ok {
		return entityTable{}, fmt.Errorf("no table for entity kind %q", kind)
	}
	return t, nil
}

func lookupLink(kind ir.EntityKind) (linkTable, error) {
	t, ok := linkTables[kind]
	if !ok {
		return linkTable{}, fmt.Errorf("no link table for kind %q", kind)
	}
	return t, nil
}

func (t entityTable) column(name string) (column, bool) {
	for _, c := range t.columns {
		if c.name == name {
			return c, true
		}
	}
	return column{}, false
}

func (t entityTable) columnList() string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return strings.Join(names, ", ")
}

// normalize checks fields against the table and returns the full row image
// with absent columns set to their zero value.
func (t entityTable) normalize(fields ir.IRObject) (ir.IRObject, error) {
	out := make(ir.IRObject, len(t.columns))
	for _, c := range t.columns {
		out[c.name] = c.zero()
	}
	for k, v := range fields {
		c, ok := t.column(k)
		if !ok {
			return nil, fmt.Errorf("%s: unknown column %q", t.name, k)
		}
		cv, err := c.coerce(v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.name, k, err)
		}
		out[k] = cv
	}
	return out, nil
}

func (c column) zero() ir.IRValue {
	switch c.typ {
	case colInt:
		return ir.IRInt(0)
	case colBool:
		return ir.IRBool(false)
	default:
		return ir.IRString("")
	}
}

// coerce checks v against the column type. Null maps to the zero value.
func (c column) coerce(v ir.IRValue) (ir.IRValue, error) {
	if _, ok := v.(ir.IRNull); ok || v == nil {
		return c.zero(), nil
	}
	switch c.typ {
	case colText:
		if s, ok := v.(ir.IRString); ok {
			return s, nil
		}
	case colInt:
		if n, ok := v.(ir.IRInt); ok {
			return n, nil
		}
	case colBool:
		switch b := v.(type) {
		case ir.IRBool:
			return b, nil
		case ir.IRInt:
			return ir.IRBool(b != 0), nil
		}
	}
	return nil, fmt.Errorf("value of type %T does not fit column", v)
}

// arg converts a column value into a database/sql argument.
func (c column) arg(v ir.IRValue) (any, error) {
	if c.typ == colBool {
		if b, ok := v.(ir.IRBool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
	}
	return ir.ToSQL(v)
}

// scanTarget returns a pointer suitable for rows.Scan.
func (c column) scanTarget() any {
	switch c.typ {
	case colText:
		return new(string)
	default:
		return new(int64)
	}
}

// fromScan converts a filled scan target back into a column value.
func (c column) fromScan(dst any) ir.IRValue {
	switch c.typ {
	case colText:
		return ir.IRString(*dst.(*string))
	case colBool:
		return ir.IRBool(*dst.(*int64) != 0)
	default:
		return ir.IRInt(*dst.(*int64))
	}
}
