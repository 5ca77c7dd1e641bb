// Package assertion classifies HTTP responses as success or failure
// using configurable rules evaluated against the JSON response body.
package assertion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"github.com/pulsegen/pulse/internal/config"
)

// BusinessCodeAbsent is the sentinel recorded when the configured field
// is missing from the response body.
const BusinessCodeAbsent = "N/A"

// Evaluator applies a SuccessCondition to response bodies.
//
// The condition's JSON Schema (if any) is compiled once at construction
// so the per-request path stays cheap. A nil condition falls back to
// HTTP 2xx classification.
type Evaluator struct {
	cond   *config.SuccessCondition
	schema *jsonschema.Schema
}

// New builds an Evaluator for the given condition.
//
// Returns an error if the condition carries a JSON Schema that does not
// compile; rule semantics themselves are checked by config validation.
func New(cond *config.SuccessCondition) (*Evaluator, error) {
	e := &Evaluator{cond: cond}

	if cond != nil && cond.Schema != "" {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("schema.json", strings.NewReader(cond.Schema)); err != nil {
			return nil, fmt.Errorf("invalid schema: %w", err)
		}
		schema, err := compiler.Compile("schema.json")
		if err != nil {
			return nil, fmt.Errorf("invalid schema: %w", err)
		}
		e.schema = schema
	}

	return e, nil
}

// Evaluate classifies one response body.
//
// Returns the success flag and the extracted business code. The business
// code is the stringified value at the first rule's field path, or
// BusinessCodeAbsent when that field is missing; it is empty when no
// rules are configured.
//
// Classification:
//   - no condition: success follows httpOK
//   - body empty or not valid JSON: only exists (false) and notExists
//     (true) are answerable; every other operator resolves to failure
//   - otherwise each rule is applied independently and combined with the
//     condition's AND/OR logic; a schema, when present, must also pass
func (e *Evaluator) Evaluate(body []byte, httpOK bool) (bool, string) {
	if e.cond == nil {
		return httpOK, ""
	}

	raw := string(body)
	parseable := len(body) > 0 && gjson.Valid(raw)

	businessCode := ""
	if len(e.cond.Rules) > 0 {
		businessCode = BusinessCodeAbsent
		if parseable {
			if v := gjson.Get(raw, e.cond.Rules[0].Field); v.Exists() {
				businessCode = stringify(v)
			}
		}
	}

	ok := e.evaluateRules(raw, parseable)

	if ok && e.schema != nil {
		ok = e.validateSchema(body, parseable)
	}

	return ok, businessCode
}

// evaluateRules applies every rule and combines the outcomes.
func (e *Evaluator) evaluateRules(raw string, parseable bool) bool {
	if len(e.cond.Rules) == 0 {
		return true
	}

	and := e.cond.Logic != config.LogicOr
	for _, rule := range e.cond.Rules {
		ok := evaluateRule(raw, parseable, rule)
		if and && !ok {
			return false
		}
		if !and && ok {
			return true
		}
	}
	return and
}

// evaluateRule applies a single rule against the body.
func evaluateRule(raw string, parseable bool, rule config.AssertionRule) bool {
	if !parseable {
		// An unparseable body can only answer presence checks.
		switch rule.Operator {
		case config.OpExists:
			return false
		case config.OpNotExists:
			return true
		default:
			return false
		}
	}

	v := gjson.Get(raw, rule.Field)

	switch rule.Operator {
	case config.OpExists:
		return v.Exists()
	case config.OpNotExists:
		return !v.Exists()
	}

	// Value comparisons treat an absent field as a mismatch, except
	// notEquals/notContains which are vacuously true for absent values.
	if !v.Exists() {
		return rule.Operator == config.OpNotEquals || rule.Operator == config.OpNotContains
	}

	actual := stringify(v)
	switch rule.Operator {
	case config.OpEquals:
		return actual == rule.Value
	case config.OpNotEquals:
		return actual != rule.Value
	case config.OpContains:
		return strings.Contains(actual, rule.Value)
	case config.OpNotContains:
		return !strings.Contains(actual, rule.Value)
	default:
		return false
	}
}

func (e *Evaluator) validateSchema(body []byte, parseable bool) bool {
	if !parseable {
		return false
	}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return false
	}
	return e.schema.Validate(doc) == nil
}

// stringify renders a resolved JSON value for comparison and for the
// business-code statistic. A present null renders as "null", which keeps
// it distinct from an absent field (BusinessCodeAbsent).
func stringify(v gjson.Result) string {
	if v.Type == gjson.Null {
		return "null"
	}
	return v.String()
}
