package query

import (
	"fmt"
	"strings"

	"github.com/basalytics/basalytics/internal/event"
)

// Condition is a compiled filter: a SQL boolean expression over the event
// table plus its positional arguments.
type Condition struct {
	SQL  string
	Args []any
}

// Compile lowers a filter tree to a SQL condition by recursive descent.
// Placeholders are numbered starting at argOffset+1 so the condition can be
// appended to a statement that already binds arguments (the date window).
//
// An empty conjunction compiles to TRUE and an empty disjunction to FALSE.
// A leaf compiles to a set-membership subquery against the typed property
// table selected by the expected value's kind.
func Compile(f Filter, argOffset int) Condition {
	var sb strings.Builder
	args := make([]any, 0, 4)
	compileNode(f, &sb, &args, argOffset)
	return Condition{SQL: sb.String(), Args: args}
}

func compileNode(f Filter, sb *strings.Builder, args *[]any, argOffset int) {
	switch f.op {
	case opAnd:
		if len(f.children) == 0 {
			sb.WriteString("TRUE")
			return
		}
		compileChildren(f.children, " AND ", sb, args, argOffset)
	case opOr:
		if len(f.children) == 0 {
			sb.WriteString("FALSE")
			return
		}
		compileChildren(f.children, " OR ", sb, args, argOffset)
	default:
		table := propertyTable(f.eq.Kind())
		fmt.Fprintf(sb, "event.key IN (SELECT event_key FROM %s WHERE name = $%d AND value = $%d)",
			table, argOffset+len(*args)+1, argOffset+len(*args)+2)
		*args = append(*args, f.name, leafArg(f.eq))
	}
}

func compileChildren(children []Filter, sep string, sb *strings.Builder, args *[]any, argOffset int) {
	sb.WriteByte('(')
	for i, child := range children {
		if i > 0 {
			sb.WriteString(sep)
		}
		compileNode(child, sb, args, argOffset)
	}
	sb.WriteByte(')')
}

func propertyTable(k event.Kind) string {
	switch k {
	case event.KindInteger:
		return "property_integer"
	case event.KindBoolean:
		return "property_boolean"
	default:
		return "property_string"
	}
}

// leafArg unwraps the tagged value into the native scalar the typed column
// compares against.
func leafArg(v event.Value) any {
	switch v.Kind() {
	case event.KindInteger:
		return v.Int()
	case event.KindBoolean:
		return v.Bool()
	default:
		return v.Str()
	}
}
