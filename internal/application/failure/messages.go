package failure

import "fmt"

// UserMessage renders the non-technical message shown to tenants.
func UserMessage(t ErrorType, ectx ErrorContext) string {
	switch t {
	case TypeNetwork:
		return "A connection problem occurred. The import is retrying automatically."
	case TypeDatabase:
		return "An internal error occurred while saving your data. Support has been notified."
	case TypeTimeout:
		return "The import is taking longer than expected and is retrying automatically."
	case TypeQuota:
		return "The import rate limit was reached. Processing will resume shortly."
	case TypeValidation:
		if ectx.RecordIndex != nil {
			return fmt.Sprintf("Invalid data at record %d. Please correct it and upload the file again.", *ectx.RecordIndex+1)
		}
		return "Some records contain invalid data. Please correct them and upload the file again."
	case TypeFileFormat:
		if ectx.RecordIndex != nil {
			return fmt.Sprintf("The file could not be read at record %d. Please check the file format.", *ectx.RecordIndex+1)
		}
		return "The file format is not supported or the file is damaged."
	case TypePermission:
		return "You do not have permission to perform this import."
	default:
		return "An unexpected error occurred. Please try again later or contact support."
	}
}
