package schemawatch

import (
	"errors"
	"fmt"
	"strings"
)

// Violation codes (exported consts for IDE completion and type safety by convention)
const (
	CodeInvalidType        = "invalid_type"
	CodeRequired           = "required"
	CodeEnum               = "invalid_enum"
	CodeConst              = "invalid_const"
	CodeTooSmall           = "too_small"
	CodeTooBig             = "too_big"
	CodeTooShort           = "too_short"
	CodeTooLong            = "too_long"
	CodePattern            = "pattern"
	CodeFormat             = "invalid_format"
	CodeMultipleOf         = "multiple_of"
	CodeUniqueItems        = "unique_items"
	CodeAdditionalProperty = "additional_property"
	CodeAdditionalItem     = "additional_item"
	CodePropertyName       = "invalid_property_name"
	CodeTooFewProperties   = "too_few_properties"
	CodeTooManyProperties  = "too_many_properties"
	CodeAllOf              = "all_of"
	CodeAnyOf              = "any_of"
	CodeOneOfNone          = "one_of_none"
	CodeOneOfMultiple      = "one_of_multiple"
	CodeNot                = "not"
	CodeDuplicateKey       = "duplicate_key"
	CodeParseError         = "parse_error"
	// Schema-side failures surfaced as synthetic document diagnostics.
	CodeSchemaNotFound     = "schema_not_found"
	CodeSchemaParseFailure = "schema_parse_failure"
	CodeRecursionLimit     = "recursion_limit"
)

// Severity follows the LSP numbering so publishers can map it without a table.
type Severity int

const (
	SeverityError   Severity = 1
	SeverityWarning Severity = 2
	SeverityInfo    Severity = 3
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Violation represents a single schema-constraint failure found in a document.
type Violation struct {
	InstancePath string // JSON Pointer into the document (for example: /items/2/price).
	SchemaPath   string // JSON Pointer into the schema (for example: /properties/price/type).
	Code         string // One of the codes listed above.
	Message      string
	Severity     Severity
}

// Violations is an ordered collection of violations that implements error.
// Order follows document traversal order and is deterministic for identical input.
type Violations []Violation

// Error summarizes the first few violations.
func (vs Violations) Error() string {
	if len(vs) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(vs)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		v := vs[i]
		// e.g. invalid_type at /path
		fmt.Fprintf(b, "%s at %s", v.Code, v.InstancePath)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendViolations appends violations to the destination, initializing the
// slice when needed.
func AppendViolations(dst Violations, more ...Violation) Violations {
	if dst == nil {
		dst = Violations{}
	}
	dst = append(dst, more...)
	return dst
}

// AsViolations extracts Violations from an error using errors.As internally.
func AsViolations(err error) (Violations, bool) {
	if err == nil {
		return nil, false
	}
	var vs Violations
	if errors.As(err, &vs) {
		return vs, true
	}
	return nil, false
}
