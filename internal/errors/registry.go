package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Configuration (J100-J199)

	"J100": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
	},
	"J101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
	},
	"J102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},
	"J103": {
		Category: CategoryConfig,
		Message:  "Unknown snapshot backend",
	},
	"J104": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
	},

	// Sessions (J200-J299)

	"J200": {
		Category: CategorySession,
		Message:  "Document could not be loaded",
	},
	"J201": {
		Category: CategorySession,
		Message:  "Path already in use",
	},
	"J202": {
		Category: CategorySession,
		Message:  "Could not listen for connections",
	},

	// Storage (J300-J399)

	"J300": {
		Category: CategoryStorage,
		Message:  "Snapshot store unreachable",
	},

	// CLI (J400-J499)

	"J400": {
		Category: CategoryCLI,
		Message:  "Invalid flag value",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
