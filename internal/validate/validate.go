package validate

import (
	"fmt"
	"strings"

	"storygraph/internal/config"
	"storygraph/internal/ingest"
	"storygraph/internal/story"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeEnumInvalid         = "enum_value_invalid"
	codeMissingRequired     = "missing_required_attribute"
	codeShapeMismatch       = "shape_mismatch"
	codeDanglingPlaceholder = "dangling_placeholder"
	codeOrphanedEntity      = "orphaned_entity"
	codeDuplicateName       = "duplicate_name"
	codeAsymmetricRelation  = "asymmetric_relation"
	codeZeroWeight          = "zero_weight"
	codeSelfReference       = "self_reference"
	codeSlotMismatch        = "slot_mismatch"
	codeMissingBackRef      = "missing_back_reference"
	codeDuplicateReference  = "duplicate_reference"
	codeWrongKind           = "wrong_kind"
	codeInvalidReference    = "invalid_reference"
	codeDanglingReference   = "dangling_reference"
)

type Issue struct {
	Severity Severity
	Code     string
	Message  string
	Kind     string
	Entity   string
}

type Report struct {
	Issues []Issue
}

func (r *Report) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Codes returns the issue codes in report order.
func (r *Report) Codes() []string {
	codes := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		codes = append(codes, issue.Code)
	}
	return codes
}

// Run checks p against the binding rules of the story graph and, when a
// schema is given, against the declared attributes of each kind.
func Run(p *story.Plot, schema *config.Schema) (*Report, error) {
	if p == nil {
		return nil, fmt.Errorf("plot is required")
	}

	issues := make([]Issue, 0)
	_ = p.Snapshot(func(r *story.Registry, entities []story.Handle, _ int) error {
		c := &checker{
			r:       r,
			members: make(map[story.Handle]bool, len(entities)),
		}
		for _, h := range entities {
			c.members[h] = true
		}

		issues = append(issues, c.duplicateNames(entities)...)
		for _, h := range entities {
			e, ok := r.Get(h)
			if !ok {
				continue
			}
			issues = append(issues, c.references(h, e)...)
			issues = append(issues, c.relations(h, e)...)
			issues = append(issues, c.backLinks(h, e)...)
			issues = append(issues, c.slots(h, e)...)
			issues = append(issues, c.lifecycle(h, e)...)
			if schema != nil {
				issues = append(issues, validateShapes(e, schema)...)
				issues = append(issues, validateEnumValues(e, schema)...)
				issues = append(issues, validateRequiredAttributes(e, schema)...)
			}
		}
		return nil
	})

	return &Report{Issues: issues}, nil
}

func validateShapes(e *story.Entity, schema *config.Schema) []Issue {
	var issues []Issue
	e.Attributes.Each(func(key string, v *story.Value) bool {
		shape, ok := schema.AttributeShape(e.Kind, key)
		if ok && v.Shape != shape {
			issues = append(issues, newIssue(e, SeverityError, codeShapeMismatch,
				fmt.Sprintf("%s is declared %s but holds %s", key, shape, v.Shape)))
		}
		return true
	})
	return issues
}

func validateEnumValues(e *story.Entity, schema *config.Schema) []Issue {
	var issues []Issue
	for _, attr := range schema.Attributes(e.Kind) {
		if len(attr.Values) == 0 {
			continue
		}
		v, ok := e.Attr(attr.Name)
		if !ok {
			continue
		}
		var scalars []story.Scalar
		switch v.Shape {
		case story.ShapeScalar:
			scalars = []story.Scalar{v.Scalar}
		case story.ShapeScalarList:
			scalars = v.Scalars
		}
		for _, s := range scalars {
			if s.IsBlank() || attr.Allows(s.String()) {
				continue
			}
			issues = append(issues, newIssue(e, SeverityError, codeEnumInvalid,
				fmt.Sprintf("invalid value for %s: %s", attr.Name, s.String())))
		}
	}
	return issues
}

func validateRequiredAttributes(e *story.Entity, schema *config.Schema) []Issue {
	var issues []Issue
	for _, attr := range schema.Attributes(e.Kind) {
		if !attr.Required {
			continue
		}
		v, ok := e.Attr(attr.Name)
		if !ok || v.IsBlank() || (v.Shape == story.ShapeScalar && strings.TrimSpace(v.Scalar.String()) == "") {
			issues = append(issues, newIssue(e, SeverityError, codeMissingRequired,
				fmt.Sprintf("missing required attribute: %s", attr.Name)))
		}
	}
	return issues
}

func isPlaceholder(e *story.Entity) bool {
	s := e.ScalarAttr(ingest.PlaceholderKey)
	return s.Kind == story.ScalarBool && s.Bool
}

func newIssue(e *story.Entity, severity Severity, code, message string) Issue {
	return Issue{
		Severity: severity,
		Code:     code,
		Message:  message,
		Kind:     e.Kind.String(),
		Entity:   e.Name,
	}
}
