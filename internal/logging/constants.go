package logging

// Standardized field names for structured logging.
const (
	FieldProvider    = "provider"
	FieldOperation   = "operation"
	FieldRunID       = "run_id"
	FieldMethod      = "method"
	FieldURL         = "url"
	FieldStatus      = "status"
	FieldDuration    = "duration_ms"
	FieldCount       = "count"
	FieldCode        = "code"
	FieldBillDate    = "bill_date"
	FieldAmount      = "amount"
	FieldFile        = "file_path"
	FieldOperationID = "operation_id"
)
