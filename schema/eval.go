package schema

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	schemawatch "github.com/schemawatch/schemawatch"
	"github.com/schemawatch/schemawatch/document"
)

const (
	maxEvalDepth = 256
	// multipleOf works on fractional divisors; exact remainders are not
	// representable in binary floating point.
	multipleOfTolerance = 1e-9
)

// Validate evaluates a document tree against a compiled schema entry and
// returns violations in document traversal order. Running it twice on the
// same inputs yields the identical sequence; diagnostic stability depends on
// it. The store dereferences external $refs lazily; pass nil to restrict
// evaluation to local references.
func Validate(root *document.Node, entry *Entry, store *Store) schemawatch.Violations {
	if root == nil || entry == nil {
		return nil
	}
	ev := &evaluator{store: store, active: map[activeKey]struct{}{}}
	out := ev.eval(entry.Root, entry, root, "")
	sortByDocumentOrder(out, root)
	return out
}

type activeKey struct {
	schema *Schema
	node   *document.Node
}

type evaluator struct {
	store  *Store
	active map[activeKey]struct{}
	depth  int
}

func (ev *evaluator) eval(s *Schema, entry *Entry, n *document.Node, instPath string) schemawatch.Violations {
	if s == nil || n == nil {
		return nil
	}
	if s.boolean != nil {
		if *s.boolean {
			return nil
		}
		return schemawatch.Violations{{
			InstancePath: instPath, SchemaPath: s.path, Code: schemawatch.CodeNot,
			Message: "schema disallows any value here", Severity: schemawatch.SeverityError,
		}}
	}

	key := activeKey{schema: s, node: n}
	if _, revisit := ev.active[key]; revisit || ev.depth >= maxEvalDepth {
		return schemawatch.Violations{{
			InstancePath: instPath, SchemaPath: s.path, Code: schemawatch.CodeRecursionLimit,
			Message: "schema reference cycle detected while validating this value", Severity: schemawatch.SeverityError,
		}}
	}
	ev.active[key] = struct{}{}
	ev.depth++
	defer func() {
		delete(ev.active, key)
		ev.depth--
	}()

	var out schemawatch.Violations

	if s.ref != "" {
		target, tentry, err := ev.deref(s, entry)
		if err != nil {
			out = append(out, refErrorViolation(err, s, instPath))
		} else {
			out = append(out, ev.eval(target, tentry, n, instPath)...)
		}
	}

	out = append(out, ev.checkType(s, n, instPath)...)
	out = append(out, ev.checkEnum(s, n, instPath)...)

	switch n.Kind {
	case document.KindNumber:
		out = append(out, ev.checkNumber(s, n, instPath)...)
	case document.KindString:
		out = append(out, ev.checkString(s, n, instPath)...)
	case document.KindSequence:
		out = append(out, ev.checkSequence(s, entry, n, instPath)...)
	case document.KindMapping:
		out = append(out, ev.checkMapping(s, entry, n, instPath)...)
	}

	out = append(out, ev.checkCombinators(s, entry, n, instPath)...)
	return out
}

// deref resolves this node's $ref into its target schema and owning entry.
func (ev *evaluator) deref(s *Schema, entry *Entry) (*Schema, *Entry, error) {
	loc, frag := splitRef(s.ref)
	if loc == "" {
		target, err := entry.schemaAt(frag)
		return target, entry, err
	}
	if ev.store == nil {
		return nil, nil, &Error{Kind: ErrNotFound, Location: loc, Detail: "no store available for external reference"}
	}
	tentry, err := ev.store.Compile(resolveLocation(entry.Location, loc))
	if err != nil {
		return nil, nil, err
	}
	target, err := tentry.schemaAt(frag)
	return target, tentry, err
}

func refErrorViolation(err error, s *Schema, instPath string) schemawatch.Violation {
	code := schemawatch.CodeSchemaNotFound
	if serr, ok := err.(*Error); ok && serr.Kind == ErrParseFailure {
		code = schemawatch.CodeSchemaParseFailure
	}
	return schemawatch.Violation{
		InstancePath: instPath, SchemaPath: s.path, Code: code,
		Message: fmt.Sprintf("cannot resolve schema reference %q: %v", s.ref, err), Severity: schemawatch.SeverityError,
	}
}

func (ev *evaluator) checkType(s *Schema, n *document.Node, instPath string) schemawatch.Violations {
	if len(s.types) == 0 {
		return nil
	}
	actual := n.TypeName()
	for _, t := range s.types {
		if typeMatches(t, n) {
			return nil
		}
	}
	expected := s.types[0]
	if len(s.types) > 1 {
		expected = "one of " + strings.Join(s.types, ", ")
	}
	return schemawatch.Violations{{
		InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "type"), Code: schemawatch.CodeInvalidType,
		Message: fmt.Sprintf("expected %s, got %s", expected, actual), Severity: schemawatch.SeverityError,
	}}
}

func typeMatches(t string, n *document.Node) bool {
	switch t {
	case "null":
		return n.Kind == document.KindNull
	case "boolean":
		return n.Kind == document.KindBool
	case "integer":
		return n.Kind == document.KindNumber && n.IsInteger()
	case "number":
		return n.Kind == document.KindNumber
	case "string":
		return n.Kind == document.KindString
	case "array":
		return n.Kind == document.KindSequence
	case "object":
		return n.Kind == document.KindMapping
	default:
		// unknown type names pass; they were warned about at compile time
		return true
	}
}

func (ev *evaluator) checkEnum(s *Schema, n *document.Node, instPath string) schemawatch.Violations {
	var out schemawatch.Violations
	if s.konst != nil && !n.Equal(s.konst) {
		out = append(out, schemawatch.Violation{
			InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "const"), Code: schemawatch.CodeConst,
			Message:  fmt.Sprintf("value %s does not equal the required constant %s", n.Describe(), s.konst.Describe()),
			Severity: schemawatch.SeverityError,
		})
	}
	if len(s.enum) > 0 {
		ok := false
		for _, allowed := range s.enum {
			if n.Equal(allowed) {
				ok = true
				break
			}
		}
		if !ok {
			names := make([]string, 0, len(s.enum))
			for _, allowed := range s.enum {
				names = append(names, allowed.Describe())
			}
			out = append(out, schemawatch.Violation{
				InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "enum"), Code: schemawatch.CodeEnum,
				Message:  fmt.Sprintf("value %s is not one of %s", n.Describe(), strings.Join(names, ", ")),
				Severity: schemawatch.SeverityError,
			})
		}
	}
	return out
}

func (ev *evaluator) checkNumber(s *Schema, n *document.Node, instPath string) schemawatch.Violations {
	var out schemawatch.Violations
	v := n.Float()
	add := func(keyword, code, msg string) {
		out = append(out, schemawatch.Violation{
			InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, keyword), Code: code,
			Message: msg, Severity: schemawatch.SeverityError,
		})
	}
	if s.minimum != nil && v < *s.minimum {
		add("minimum", schemawatch.CodeTooSmall, fmt.Sprintf("value %s is less than minimum %v", n.Number, *s.minimum))
	}
	if s.maximum != nil && v > *s.maximum {
		add("maximum", schemawatch.CodeTooBig, fmt.Sprintf("value %s is greater than maximum %v", n.Number, *s.maximum))
	}
	if s.exclMin != nil && v <= *s.exclMin {
		add("exclusiveMinimum", schemawatch.CodeTooSmall, fmt.Sprintf("value %s must be greater than %v", n.Number, *s.exclMin))
	}
	if s.exclMax != nil && v >= *s.exclMax {
		add("exclusiveMaximum", schemawatch.CodeTooBig, fmt.Sprintf("value %s must be less than %v", n.Number, *s.exclMax))
	}
	if s.multipleOf != nil && *s.multipleOf != 0 {
		q := v / *s.multipleOf
		if math.Abs(q-math.Round(q)) > multipleOfTolerance {
			add("multipleOf", schemawatch.CodeMultipleOf, fmt.Sprintf("value %s is not a multiple of %v", n.Number, *s.multipleOf))
		}
	}
	return out
}

func (ev *evaluator) checkString(s *Schema, n *document.Node, instPath string) schemawatch.Violations {
	var out schemawatch.Violations
	length := utf8.RuneCountInString(n.Str)
	if s.minLength != nil && length < *s.minLength {
		out = append(out, schemawatch.Violation{
			InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "minLength"), Code: schemawatch.CodeTooShort,
			Message: fmt.Sprintf("string length %d is less than minLength %d", length, *s.minLength), Severity: schemawatch.SeverityError,
		})
	}
	if s.maxLength != nil && length > *s.maxLength {
		out = append(out, schemawatch.Violation{
			InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "maxLength"), Code: schemawatch.CodeTooLong,
			Message: fmt.Sprintf("string length %d is greater than maxLength %d", length, *s.maxLength), Severity: schemawatch.SeverityError,
		})
	}
	if s.pattern != nil && !s.pattern.MatchString(n.Str) {
		out = append(out, schemawatch.Violation{
			InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "pattern"), Code: schemawatch.CodePattern,
			Message: fmt.Sprintf("string does not match pattern %q", s.pattern.String()), Severity: schemawatch.SeverityError,
		})
	}
	if s.format != "" {
		if msg, checked := checkFormat(s.format, n.Str); checked && msg != "" {
			// format is advisory: report as a warning, never an error
			out = append(out, schemawatch.Violation{
				InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "format"), Code: schemawatch.CodeFormat,
				Message: msg, Severity: schemawatch.SeverityWarning,
			})
		}
	}
	return out
}

func (ev *evaluator) checkSequence(s *Schema, entry *Entry, n *document.Node, instPath string) schemawatch.Violations {
	var out schemawatch.Violations
	if s.minItems != nil && len(n.Items) < *s.minItems {
		out = append(out, schemawatch.Violation{
			InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "minItems"), Code: schemawatch.CodeTooShort,
			Message: fmt.Sprintf("array has %d items, fewer than minItems %d", len(n.Items), *s.minItems), Severity: schemawatch.SeverityError,
		})
	}
	if s.maxItems != nil && len(n.Items) > *s.maxItems {
		out = append(out, schemawatch.Violation{
			InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "maxItems"), Code: schemawatch.CodeTooLong,
			Message: fmt.Sprintf("array has %d items, more than maxItems %d", len(n.Items), *s.maxItems), Severity: schemawatch.SeverityError,
		})
	}
	if s.uniqueItems {
		for i := 1; i < len(n.Items); i++ {
			for j := 0; j < i; j++ {
				if n.Items[i].Equal(n.Items[j]) {
					out = append(out, schemawatch.Violation{
						InstancePath: schemawatch.PointerIndex(instPath, i), SchemaPath: schemawatch.PointerKey(s.path, "uniqueItems"),
						Code:    schemawatch.CodeUniqueItems,
						Message: fmt.Sprintf("item %d duplicates item %d", i, j), Severity: schemawatch.SeverityError,
					})
					break
				}
			}
		}
	}
	for i, item := range n.Items {
		itemPath := schemawatch.PointerIndex(instPath, i)
		switch {
		case i < len(s.prefixItems):
			out = append(out, ev.eval(s.prefixItems[i], entry, item, itemPath)...)
		case s.items != nil:
			out = append(out, ev.eval(s.items, entry, item, itemPath)...)
		case len(s.prefixItems) > 0 && s.addItemsOK != nil && !*s.addItemsOK:
			out = append(out, schemawatch.Violation{
				InstancePath: itemPath, SchemaPath: schemawatch.PointerKey(s.path, "additionalItems"), Code: schemawatch.CodeAdditionalItem,
				Message: fmt.Sprintf("array allows only %d items", len(s.prefixItems)), Severity: schemawatch.SeverityError,
			})
		case len(s.prefixItems) > 0 && s.addItems != nil:
			out = append(out, ev.eval(s.addItems, entry, item, itemPath)...)
		}
	}
	return out
}

func (ev *evaluator) checkMapping(s *Schema, entry *Entry, n *document.Node, instPath string) schemawatch.Violations {
	var out schemawatch.Violations
	for _, req := range s.required {
		if n.Get(req) == nil {
			out = append(out, schemawatch.Violation{
				InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "required"), Code: schemawatch.CodeRequired,
				Message: fmt.Sprintf("missing required property %q", req), Severity: schemawatch.SeverityError,
			})
		}
	}
	if s.minProperties != nil && len(n.Pairs) < *s.minProperties {
		out = append(out, schemawatch.Violation{
			InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "minProperties"), Code: schemawatch.CodeTooFewProperties,
			Message: fmt.Sprintf("object has %d properties, fewer than minProperties %d", len(n.Pairs), *s.minProperties), Severity: schemawatch.SeverityError,
		})
	}
	if s.maxProperties != nil && len(n.Pairs) > *s.maxProperties {
		out = append(out, schemawatch.Violation{
			InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "maxProperties"), Code: schemawatch.CodeTooManyProperties,
			Message: fmt.Sprintf("object has %d properties, more than maxProperties %d", len(n.Pairs), *s.maxProperties), Severity: schemawatch.SeverityError,
		})
	}
	for _, p := range n.Pairs {
		childPath := schemawatch.PointerKey(instPath, p.Key)
		if s.propertyNames != nil {
			nameNode := &document.Node{Kind: document.KindString, Str: p.Key, Span: p.KeySpan}
			for _, v := range ev.eval(s.propertyNames, entry, nameNode, childPath) {
				v.Code = schemawatch.CodePropertyName
				out = append(out, v)
			}
		}
		matched := false
		if sub, ok := s.propIndex[p.Key]; ok {
			matched = true
			out = append(out, ev.eval(sub, entry, p.Value, childPath)...)
		}
		for _, pp := range s.patternProps {
			if pp.re.MatchString(p.Key) {
				matched = true
				out = append(out, ev.eval(pp.schema, entry, p.Value, childPath)...)
			}
		}
		if matched {
			continue
		}
		switch {
		case s.addPropsOK != nil && !*s.addPropsOK:
			out = append(out, schemawatch.Violation{
				InstancePath: childPath, SchemaPath: schemawatch.PointerKey(s.path, "additionalProperties"), Code: schemawatch.CodeAdditionalProperty,
				Message: fmt.Sprintf("property %q is not allowed", p.Key), Severity: schemawatch.SeverityError,
			})
		case s.addProps != nil:
			out = append(out, ev.eval(s.addProps, entry, p.Value, childPath)...)
		}
	}
	return out
}

func (ev *evaluator) checkCombinators(s *Schema, entry *Entry, n *document.Node, instPath string) schemawatch.Violations {
	var out schemawatch.Violations

	// allOf: the union of violations across failing branches
	for _, sub := range s.allOf {
		out = append(out, ev.eval(sub, entry, n, instPath)...)
	}

	if len(s.anyOf) > 0 {
		matched := false
		best, bestIdx := schemawatch.Violations(nil), -1
		for i, sub := range s.anyOf {
			vs := ev.eval(sub, entry, n, instPath)
			if len(vs) == 0 {
				matched = true
				break
			}
			if bestIdx < 0 || len(vs) < len(best) {
				best, bestIdx = vs, i
			}
		}
		if !matched {
			out = append(out, schemawatch.Violation{
				InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "anyOf"), Code: schemawatch.CodeAnyOf,
				Message:  combinatorSummary("value does not match any of the allowed schemas", bestIdx, best),
				Severity: schemawatch.SeverityError,
			})
		}
	}

	if len(s.oneOf) > 0 {
		var matchedIdx []int
		best, bestIdx := schemawatch.Violations(nil), -1
		for i, sub := range s.oneOf {
			vs := ev.eval(sub, entry, n, instPath)
			if len(vs) == 0 {
				matchedIdx = append(matchedIdx, i)
				continue
			}
			if bestIdx < 0 || len(vs) < len(best) {
				best, bestIdx = vs, i
			}
		}
		switch len(matchedIdx) {
		case 1:
			// exactly one match: valid
		case 0:
			out = append(out, schemawatch.Violation{
				InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "oneOf"), Code: schemawatch.CodeOneOfNone,
				Message:  combinatorSummary("value matches none of the expected schemas", bestIdx, best),
				Severity: schemawatch.SeverityError,
			})
		default:
			names := make([]string, 0, len(matchedIdx))
			for _, i := range matchedIdx {
				names = append(names, fmt.Sprintf("%d", i))
			}
			out = append(out, schemawatch.Violation{
				InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "oneOf"), Code: schemawatch.CodeOneOfMultiple,
				Message:  fmt.Sprintf("value matches schemas %s but must match exactly one", strings.Join(names, ", ")),
				Severity: schemawatch.SeverityError,
			})
		}
	}

	if s.not != nil {
		if vs := ev.eval(s.not, entry, n, instPath); len(vs) == 0 {
			out = append(out, schemawatch.Violation{
				InstancePath: instPath, SchemaPath: schemawatch.PointerKey(s.path, "not"), Code: schemawatch.CodeNot,
				Message: "value matches a schema it must not match", Severity: schemawatch.SeverityError,
			})
		}
	}
	return out
}

// combinatorSummary reports the closest-match branch: the one that produced
// the fewest violations, first branch winning ties. This is a stability
// contract, not just a nicety.
func combinatorSummary(prefix string, bestIdx int, best schemawatch.Violations) string {
	if bestIdx < 0 || len(best) == 0 {
		return prefix
	}
	return fmt.Sprintf("%s (closest is schema %d: %s)", prefix, bestIdx, best[0].Message)
}

// sortByDocumentOrder stable-sorts violations by the source position of their
// instance node so combinator output interleaves with the structural walk in
// depth-first document order.
func sortByDocumentOrder(vs schemawatch.Violations, root *document.Node) {
	if len(vs) < 2 {
		return
	}
	type keyed struct {
		pos document.Position
		v   schemawatch.Violation
	}
	ks := make([]keyed, len(vs))
	for i := range vs {
		ks[i].v = vs[i]
		if n := root.Lookup(vs[i].InstancePath); n != nil {
			ks[i].pos = n.Span.Start
		}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].pos.Line != ks[j].pos.Line {
			return ks[i].pos.Line < ks[j].pos.Line
		}
		return ks[i].pos.Column < ks[j].pos.Column
	})
	for i := range ks {
		vs[i] = ks[i].v
	}
}
