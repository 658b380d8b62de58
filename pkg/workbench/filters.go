package workbench

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Operator sigils understood by the Workbench search endpoints. An operator
// is encoded as a prefix on the filter value, not as a separate parameter.
const (
	sigilNeq        = "!"
	sigilContains   = ":"
	sigilStartsWith = "^"
	sigilGt         = ">"
	sigilLt         = "<"
	sigilNull       = "␀"
)

// operandTimeFormat is the timestamp encoding the search endpoints accept.
const operandTimeFormat = "2006-01-02T15:04:05"

// Expr is an operator applied to a filter value, built by the operator
// constructors (Neq, Contains, Gt, Window, IsNull, ...). A plain value used
// where an Expr is expected means equality.
type Expr struct {
	op     string
	values []string
	err    error
}

func exprError(op, reason string) Expr {
	return Expr{op: op, err: &InvalidFilterOperandError{Op: op, Reason: reason}}
}

func operandString(op string, value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", &InvalidFilterOperandError{Op: op, Reason: "nil operand"}
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.Format(operandTimeFormat), nil
	case *time.Time:
		if v == nil {
			return "", &InvalidFilterOperandError{Op: op, Reason: "nil operand"}
		}

		return v.Format(operandTimeFormat), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func sigilExpr(op, sigil string, operands []interface{}) Expr {
	values := make([]string, 0, len(operands))

	for _, operand := range operands {
		s, err := operandString(op, operand)
		if err != nil {
			return Expr{op: op, err: err}
		}

		values = append(values, sigil+s)
	}

	return Expr{op: op, values: values}
}

// Eq matches records whose attribute equals any of the given values. It is
// implied when a plain value is passed to Where or Rel.
func Eq(values ...interface{}) Expr {
	return sigilExpr("eq", "", values)
}

// Neq matches records whose attribute differs from every given value. With no
// operands the expression is a no-op.
func Neq(values ...interface{}) Expr {
	return sigilExpr("neq", sigilNeq, values)
}

// Contains matches records whose attribute contains every given substring.
// With no operands the expression is a no-op.
func Contains(values ...interface{}) Expr {
	return sigilExpr("contains", sigilContains, values)
}

// StartsWith matches records whose attribute starts with the given prefix.
func StartsWith(value interface{}) Expr {
	return sigilExpr("startswith", sigilStartsWith, []interface{}{value})
}

// Gt matches records whose attribute is greater than the given bound.
// time.Time bounds are encoded in the API's timestamp format.
func Gt(value interface{}) Expr {
	return sigilExpr("gt", sigilGt, []interface{}{value})
}

// Lt matches records whose attribute is less than the given bound.
func Lt(value interface{}) Expr {
	return sigilExpr("lt", sigilLt, []interface{}{value})
}

// Window matches records whose attribute lies between the two bounds. A nil
// bound leaves that side of the window open.
func Window(lower, upper interface{}) Expr {
	var values []string

	if lower != nil {
		s, err := operandString("window", lower)
		if err != nil {
			return Expr{op: "window", err: err}
		}

		values = append(values, sigilGt+s)
	}

	if upper != nil {
		s, err := operandString("window", upper)
		if err != nil {
			return Expr{op: "window", err: err}
		}

		values = append(values, sigilLt+s)
	}

	return Expr{op: "window", values: values}
}

// IsNull matches records whose attribute is null. IsNull(false) matches
// records whose attribute is set. Takes zero or one operand.
func IsNull(null ...bool) Expr {
	if len(null) > 1 {
		return exprError("isnull", "takes zero or one operand")
	}

	value := true
	if len(null) == 1 {
		value = null[0]
	}

	return Expr{op: "isnull", values: []string{sigilNull + strconv.FormatBool(value)}}
}

// NotNull matches records whose attribute is set. NotNull(false) matches
// records whose attribute is null. Takes zero or one operand.
func NotNull(notNull ...bool) Expr {
	if len(notNull) > 1 {
		return exprError("notnull", "takes zero or one operand")
	}

	value := true
	if len(notNull) == 1 {
		value = notNull[0]
	}

	return Expr{op: "notnull", values: []string{sigilNull + strconv.FormatBool(!value)}}
}

// exprFor coerces a filter argument into an Expr: Expr values pass through,
// anything else is an implied equality.
func exprFor(value interface{}) Expr {
	if expr, ok := value.(Expr); ok {
		return expr
	}

	return Eq(value)
}

// queryState accumulates query parameters while filters are applied.
type queryState struct {
	values       url.Values
	explicitSort bool
}

// Filter is one composable query predicate or search option. Filters are
// immutable values; passing several to Search conjoins them.
type Filter interface {
	apply(desc *Descriptor, state *queryState) error
}

type attrFilter struct {
	attr string
	expr Expr
}

// Where filters on an attribute of the searched resource type. The value may
// be a plain value (equality) or an operator expression.
func Where(attr string, value interface{}) Filter {
	return attrFilter{attr: attr, expr: exprFor(value)}
}

func (f attrFilter) apply(_ *Descriptor, state *queryState) error {
	if f.expr.err != nil {
		return f.expr.err
	}

	key := "filter[" + f.attr + "]"
	for _, v := range f.expr.values {
		state.values.Add(key, v)
	}

	return nil
}

type relFilter struct {
	path string
	expr Expr
	err  error
}

// Rel filters on an attribute reached through a declared relationship of the
// searched resource type. The path is "<relationship>.<attribute>"; an
// attribute segment of the form "<name>_id" is expanded to the nested
// "<name>.id" the server expects. Building the query fails with
// UnknownRelationshipError when the relationship is not declared.
func Rel(path string, value interface{}) Filter {
	f := relFilter{path: path, expr: exprFor(value)}

	if strings.Count(path, ".") != 1 {
		f.err = &InvalidFilterOperandError{
			Op:     "relationship",
			Reason: fmt.Sprintf("path %q must be <relationship>.<attribute>", path),
		}
	}

	return f
}

func (f relFilter) apply(desc *Descriptor, state *queryState) error {
	if f.err != nil {
		return f.err
	}

	if f.expr.err != nil {
		return f.expr.err
	}

	parts := strings.SplitN(f.path, ".", 2)
	rel, attr := parts[0], parts[1]

	if _, ok := desc.Relationship(rel); !ok {
		return &UnknownRelationshipError{Type: desc.Type, Path: f.path}
	}

	key := "filter[" + rel + "]"
	if stem, ok := strings.CutSuffix(attr, "_id"); ok && stem != "" {
		key += "[" + stem + "][id]"
	} else {
		key += "[" + attr + "]"
	}

	for _, v := range f.expr.values {
		state.values.Add(key, v)
	}

	return nil
}

type flagFilter struct {
	name  string
	value interface{}
}

// Flag sets a reserved server-defined search parameter that alters search
// behavior beyond plain filtering.
func Flag(name string, value interface{}) Filter {
	return flagFilter{name: name, value: value}
}

func (f flagFilter) apply(_ *Descriptor, state *queryState) error {
	s, err := operandString("flag", f.value)
	if err != nil {
		return err
	}

	state.values.Set("flag["+f.name+"]", s)

	return nil
}

type limitFilter struct {
	n int
}

// Limit caps the page size requested from the server. It does not bound the
// total number of records a cursor yields.
func Limit(n int) Filter {
	return limitFilter{n: n}
}

func (f limitFilter) apply(_ *Descriptor, state *queryState) error {
	if f.n < 0 {
		return &InvalidFilterOperandError{Op: "limit", Reason: "negative page size"}
	}

	state.values.Set("page[limit]", strconv.Itoa(f.n))

	return nil
}

type sortFilter struct {
	field     string
	direction string
	err       error
}

// Sort orders results by a field. Direction is "+"/"asc" (default) or
// "-"/"desc". Passing any explicit Sort suppresses the default
// created_at/id ordering.
func Sort(field string, direction ...string) Filter {
	f := sortFilter{field: field, direction: "+"}

	if len(direction) > 1 {
		f.err = &InvalidFilterOperandError{Op: "sort", Reason: "takes zero or one direction"}

		return f
	}

	if len(direction) == 1 {
		switch direction[0] {
		case "+", "asc":
			f.direction = "+"
		case "-", "desc":
			f.direction = "-"
		default:
			f.err = &InvalidFilterOperandError{
				Op:     "sort",
				Reason: fmt.Sprintf("direction %q is not +, -, asc or desc", direction[0]),
			}
		}
	}

	return f
}

func (f sortFilter) apply(_ *Descriptor, state *queryState) error {
	if f.err != nil {
		return f.err
	}

	state.values.Add("sort", f.direction+f.field)
	state.explicitSort = true

	return nil
}

type includeFilter struct {
	relations []string
}

// Include requests related resources as a compound document. Included
// resources pre-populate relationship caches on the yielded instances.
func Include(relations ...string) Filter {
	return includeFilter{relations: relations}
}

func (f includeFilter) apply(_ *Descriptor, state *queryState) error {
	if len(f.relations) == 0 {
		return &InvalidFilterOperandError{Op: "include", Reason: "no relations named"}
	}

	state.values.Set("include", strings.Join(f.relations, ","))

	return nil
}

// defaultSort keeps pagination stable when the caller does not order results.
var defaultSort = []string{"+created_at", "+id"}

// BuildQuery serializes filters against a resource descriptor. The encoding
// is deterministic: keys are emitted in sorted order and repeated values for
// one key keep their operand order, so equal inputs produce byte-identical
// query strings.
func BuildQuery(desc *Descriptor, filters ...Filter) (url.Values, error) {
	state := &queryState{values: url.Values{}}

	for _, f := range filters {
		if err := f.apply(desc, state); err != nil {
			return nil, err
		}
	}

	if !state.explicitSort {
		for _, s := range defaultSort {
			state.values.Add("sort", s)
		}
	}

	return state.values, nil
}
