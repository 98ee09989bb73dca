// Package telemetry stores imported metric values, evaluates success
// criteria against them, and auto-completes tasks whose required attributes
// are all met.
package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"adoptd/internal/models"
)

// Operators allowed in a success criterion.
const (
	OpGTE      = ">="
	OpLTE      = "<="
	OpEQ       = "=="
	OpNEQ      = "!="
	OpGT       = ">"
	OpLT       = "<"
	OpContains = "contains"
)

// ValidOperator reports whether op is one of the seven comparison operators.
func ValidOperator(op string) bool {
	switch op {
	case OpGTE, OpLTE, OpEQ, OpNEQ, OpGT, OpLT, OpContains:
		return true
	default:
		return false
	}
}

// CheckValue validates that a raw imported value can be coerced to the
// attribute's declared data type.
func CheckValue(dataType models.AttributeType, raw string) error {
	switch dataType {
	case models.TypeString:
		return nil
	case models.TypeNumber:
		if _, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err != nil {
			return fmt.Errorf("%q is not a number", raw)
		}
	case models.TypeBoolean:
		if _, err := strconv.ParseBool(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("%q is not a boolean", raw)
		}
	case models.TypeTimestamp:
		if _, err := parseTimestamp(raw); err != nil {
			return err
		}
	case models.TypeJSON:
		if !json.Valid([]byte(raw)) {
			return fmt.Errorf("%q is not valid JSON", raw)
		}
	default:
		return fmt.Errorf("unknown data type %q", dataType)
	}
	return nil
}

// Evaluate applies the attribute's criterion to the raw value, coercing both
// sides per the declared data type. Attributes without a criterion evaluate
// to met so they never block completion.
func Evaluate(attr models.TelemetryAttribute, raw string) (bool, error) {
	if !attr.HasCriteria() {
		return true, nil
	}
	if !ValidOperator(attr.Operator) {
		return false, fmt.Errorf("attribute %s: invalid operator %q", attr.Name, attr.Operator)
	}

	switch attr.DataType {
	case models.TypeNumber:
		return evaluateNumber(attr.Operator, raw, attr.ExpectedValue)
	case models.TypeBoolean:
		return evaluateBoolean(attr.Operator, raw, attr.ExpectedValue)
	case models.TypeTimestamp:
		return evaluateTimestamp(attr.Operator, raw, attr.ExpectedValue)
	case models.TypeJSON:
		return evaluateJSON(attr.Operator, raw, attr.ExpectedValue)
	default:
		return evaluateString(attr.Operator, raw, attr.ExpectedValue), nil
	}
}

func evaluateNumber(op, raw, expected string) (bool, error) {
	if op == OpContains {
		return strings.Contains(raw, expected), nil
	}
	have, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return false, fmt.Errorf("%q is not a number", raw)
	}
	want, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
	if err != nil {
		return false, fmt.Errorf("expected value %q is not a number", expected)
	}
	switch op {
	case OpGTE:
		return have >= want, nil
	case OpLTE:
		return have <= want, nil
	case OpEQ:
		return have == want, nil
	case OpNEQ:
		return have != want, nil
	case OpGT:
		return have > want, nil
	default:
		return have < want, nil
	}
}

func evaluateBoolean(op, raw, expected string) (bool, error) {
	have, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("%q is not a boolean", raw)
	}
	want, err := strconv.ParseBool(strings.TrimSpace(expected))
	if err != nil {
		return false, fmt.Errorf("expected value %q is not a boolean", expected)
	}
	switch op {
	case OpEQ:
		return have == want, nil
	case OpNEQ:
		return have != want, nil
	default:
		return false, fmt.Errorf("operator %q not supported for booleans", op)
	}
}

func evaluateTimestamp(op, raw, expected string) (bool, error) {
	have, err := parseTimestamp(raw)
	if err != nil {
		return false, err
	}
	want, err := parseTimestamp(expected)
	if err != nil {
		return false, err
	}
	switch op {
	case OpGTE:
		return !have.Before(want), nil
	case OpLTE:
		return !have.After(want), nil
	case OpEQ:
		return have.Equal(want), nil
	case OpNEQ:
		return !have.Equal(want), nil
	case OpGT:
		return have.After(want), nil
	case OpLT:
		return have.Before(want), nil
	default:
		return false, fmt.Errorf("operator %q not supported for timestamps", op)
	}
}

func evaluateJSON(op, raw, expected string) (bool, error) {
	switch op {
	case OpContains:
		return strings.Contains(raw, expected), nil
	case OpEQ, OpNEQ:
		eq, err := jsonEqual(raw, expected)
		if err != nil {
			return false, err
		}
		if op == OpNEQ {
			return !eq, nil
		}
		return eq, nil
	default:
		return false, fmt.Errorf("operator %q not supported for JSON", op)
	}
}

func evaluateString(op, raw, expected string) bool {
	switch op {
	case OpGTE:
		return raw >= expected
	case OpLTE:
		return raw <= expected
	case OpEQ:
		return raw == expected
	case OpNEQ:
		return raw != expected
	case OpGT:
		return raw > expected
	case OpLT:
		return raw < expected
	default:
		return strings.Contains(raw, expected)
	}
}

func jsonEqual(a, b string) (bool, error) {
	var av, bv any
	if err := json.Unmarshal([]byte(a), &av); err != nil {
		return false, fmt.Errorf("%q is not valid JSON", a)
	}
	if err := json.Unmarshal([]byte(b), &bv); err != nil {
		return false, fmt.Errorf("expected value %q is not valid JSON", b)
	}
	ab, err := json.Marshal(av)
	if err != nil {
		return false, err
	}
	bb, err := json.Marshal(bv)
	if err != nil {
		return false, err
	}
	return string(ab) == string(bb), nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a timestamp", raw)
}
