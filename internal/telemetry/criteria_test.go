package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adoptd/internal/models"
)

func attr(dataType models.AttributeType, op, expected string) models.TelemetryAttribute {
	return models.TelemetryAttribute{DataType: dataType, Operator: op, ExpectedValue: expected}
}

func TestEvaluateMatrix(t *testing.T) {
	tests := []struct {
		name    string
		attr    models.TelemetryAttribute
		raw     string
		want    bool
		wantErr bool
	}{
		{"number gte met", attr(models.TypeNumber, OpGTE, "10"), "12", true, false},
		{"number gte boundary", attr(models.TypeNumber, OpGTE, "10"), "10", true, false},
		{"number gte unmet", attr(models.TypeNumber, OpGTE, "10"), "8", false, false},
		{"number lte", attr(models.TypeNumber, OpLTE, "5"), "4.5", true, false},
		{"number eq", attr(models.TypeNumber, OpEQ, "3.0"), "3", true, false},
		{"number neq", attr(models.TypeNumber, OpNEQ, "3"), "3", false, false},
		{"number gt", attr(models.TypeNumber, OpGT, "0"), "0.001", true, false},
		{"number lt unmet", attr(models.TypeNumber, OpLT, "0"), "0", false, false},
		{"number malformed", attr(models.TypeNumber, OpGTE, "10"), "many", false, true},

		{"boolean eq met", attr(models.TypeBoolean, OpEQ, "true"), "true", true, false},
		{"boolean eq case", attr(models.TypeBoolean, OpEQ, "true"), "TRUE", true, false},
		{"boolean neq", attr(models.TypeBoolean, OpNEQ, "true"), "false", true, false},
		{"boolean ordering rejected", attr(models.TypeBoolean, OpGTE, "true"), "true", false, true},

		{"timestamp gte", attr(models.TypeTimestamp, OpGTE, "2026-01-01"), "2026-06-15T00:00:00Z", true, false},
		{"timestamp lt unmet", attr(models.TypeTimestamp, OpLT, "2026-01-01"), "2026-06-15", false, false},
		{"timestamp eq", attr(models.TypeTimestamp, OpEQ, "2026-01-02 00:00:00"), "2026-01-02", true, false},
		{"timestamp malformed", attr(models.TypeTimestamp, OpGTE, "2026-01-01"), "junk", false, true},

		{"json eq canonical", attr(models.TypeJSON, OpEQ, `{"b":2,"a":1}`), `{"a":1,"b":2}`, true, false},
		{"json neq", attr(models.TypeJSON, OpNEQ, `{"a":1}`), `{"a":2}`, true, false},
		{"json contains", attr(models.TypeJSON, OpContains, `"mode":"active"`), `{"mode":"active","x":1}`, true, false},

		{"string eq", attr(models.TypeString, OpEQ, "enabled"), "enabled", true, false},
		{"string contains", attr(models.TypeString, OpContains, "abl"), "enabled", true, false},
		{"string gte lexicographic", attr(models.TypeString, OpGTE, "b"), "c", true, false},
		{"string lt unmet", attr(models.TypeString, OpLT, "b"), "c", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.attr, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateWithoutCriteriaIsMet(t *testing.T) {
	met, err := Evaluate(models.TelemetryAttribute{DataType: models.TypeNumber}, "42")
	require.NoError(t, err)
	assert.True(t, met)
}

func TestCheckValue(t *testing.T) {
	assert.NoError(t, CheckValue(models.TypeNumber, "3.14"))
	assert.Error(t, CheckValue(models.TypeNumber, "pi"))
	assert.NoError(t, CheckValue(models.TypeBoolean, "false"))
	assert.Error(t, CheckValue(models.TypeBoolean, "yes"))
	assert.NoError(t, CheckValue(models.TypeTimestamp, "2026-08-30"))
	assert.Error(t, CheckValue(models.TypeTimestamp, "tomorrow"))
	assert.NoError(t, CheckValue(models.TypeJSON, `{"k":[1,2]}`))
	assert.Error(t, CheckValue(models.TypeJSON, "{"))
	assert.NoError(t, CheckValue(models.TypeString, "anything"))
}

func TestValidOperator(t *testing.T) {
	for _, op := range []string{OpGTE, OpLTE, OpEQ, OpNEQ, OpGT, OpLT, OpContains} {
		assert.True(t, ValidOperator(op))
	}
	assert.False(t, ValidOperator("~="))
	assert.False(t, ValidOperator(""))
}
