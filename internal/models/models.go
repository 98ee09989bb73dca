package models

// All returns every persistent model in dependency order, for migration use.
func All() []any {
	return []any{
		&Customer{},
		&Product{},
		&Solution{},
		&SolutionProduct{},
		&Outcome{},
		&Release{},
		&ProductAttribute{},
		&Task{},
		&TelemetryAttribute{},
		&CustomerProduct{},
		&CustomerSolution{},
		&SolutionAdoptionPlan{},
		&AdoptionPlan{},
		&CustomerTask{},
		&CustomerSolutionTask{},
		&TelemetryValue{},
		&User{},
		&Role{},
		&Permission{},
		&UserRole{},
		&AuditLog{},
	}
}
