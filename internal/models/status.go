package models

import "fmt"

// TaskStatus enumerates the lifecycle of an instantiated plan task.
type TaskStatus string

const (
	StatusNotStarted    TaskStatus = "NOT_STARTED"
	StatusInProgress    TaskStatus = "IN_PROGRESS"
	StatusDone          TaskStatus = "DONE"
	StatusNotApplicable TaskStatus = "NOT_APPLICABLE"
	StatusNoLongerUsing TaskStatus = "NO_LONGER_USING"
)

// ParseTaskStatus validates a raw status string against the five allowed values.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	switch TaskStatus(raw) {
	case StatusNotStarted, StatusInProgress, StatusDone, StatusNotApplicable, StatusNoLongerUsing:
		return TaskStatus(raw), nil
	default:
		return "", fmt.Errorf("invalid task status %q", raw)
	}
}

// Applicable reports whether a task with this status counts toward plan
// aggregates. NOT_APPLICABLE and NO_LONGER_USING are excluded from both the
// numerator and the denominator.
func (s TaskStatus) Applicable() bool {
	return s != StatusNotApplicable && s != StatusNoLongerUsing
}

// Completed reports whether this status contributes to completed counters.
func (s TaskStatus) Completed() bool {
	return s == StatusDone
}

// StatusSource records what triggered the most recent status change.
type StatusSource string

const (
	SourceManual    StatusSource = "MANUAL"
	SourceTelemetry StatusSource = "TELEMETRY"
	SourceImport    StatusSource = "IMPORT"
)

// ParseStatusSource validates a raw update-source tag.
func ParseStatusSource(raw string) (StatusSource, error) {
	switch StatusSource(raw) {
	case SourceManual, SourceTelemetry, SourceImport:
		return StatusSource(raw), nil
	default:
		return "", fmt.Errorf("invalid status source %q", raw)
	}
}

// LicenseLevel tiers gate which template tasks apply to an assignment.
type LicenseLevel string

const (
	LicenseEssential LicenseLevel = "ESSENTIAL"
	LicenseAdvantage LicenseLevel = "ADVANTAGE"
	LicenseSignature LicenseLevel = "SIGNATURE"
)

var licenseRanks = map[LicenseLevel]int{
	LicenseEssential: 1,
	LicenseAdvantage: 2,
	LicenseSignature: 3,
}

// ParseLicenseLevel validates a raw license tier name.
func ParseLicenseLevel(raw string) (LicenseLevel, error) {
	if _, ok := licenseRanks[LicenseLevel(raw)]; !ok {
		return "", fmt.Errorf("invalid license level %q", raw)
	}
	return LicenseLevel(raw), nil
}

// Rank returns the ordering of the tier; unknown tiers rank highest so they
// never silently widen an assignment's task set.
func (l LicenseLevel) Rank() int {
	if r, ok := licenseRanks[l]; ok {
		return r
	}
	return len(licenseRanks) + 1
}

// CoveredBy reports whether a task at level l applies to an assignment at the
// given tier.
func (l LicenseLevel) CoveredBy(assignment LicenseLevel) bool {
	return l.Rank() <= assignment.Rank()
}

// AttributeType declares how imported telemetry values are coerced.
type AttributeType string

const (
	TypeString    AttributeType = "STRING"
	TypeNumber    AttributeType = "NUMBER"
	TypeBoolean   AttributeType = "BOOLEAN"
	TypeTimestamp AttributeType = "TIMESTAMP"
	TypeJSON      AttributeType = "JSON"
)

// ParseAttributeType validates a declared telemetry data type.
func ParseAttributeType(raw string) (AttributeType, error) {
	switch AttributeType(raw) {
	case TypeString, TypeNumber, TypeBoolean, TypeTimestamp, TypeJSON:
		return AttributeType(raw), nil
	default:
		return "", fmt.Errorf("invalid attribute type %q", raw)
	}
}
