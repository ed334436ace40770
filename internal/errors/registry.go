package errors

import "slices"

// ErrorTemplate defines a registered error code.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E120-E129)
	// ============================================

	"E120": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration file",
		Suggestion: "Check that the file is valid YAML or JSON",
	},
	"E121": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Pass the file with --config or create navrouter.yaml",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},
	"E123": {
		Category:   CategoryConfig,
		Message:    "Invalid route declaration",
		Suggestion: "Templates start with \"/\" and parameter segments are written \":name\"",
	},
	"E124": {
		Category:   CategoryConfig,
		Message:    "Duplicate route name",
		Suggestion: "Give every route a unique name",
	},
	"E125": {
		Category:   CategoryConfig,
		Message:    "Remote configuration fetch failed",
		Suggestion: "Check the object URI and the AWS credentials in the environment",
	},

	// ============================================
	// Routing Errors (E200-E209)
	// ============================================

	"E200": {
		Category:   CategoryRouting,
		Message:    "No navigation source bound",
		Suggestion: "Bind a source with BindSource before navigating",
	},
	"E201": {
		Category:   CategoryRouting,
		Message:    "Missing path parameter",
		Suggestion: "Every :name segment of the template needs a value",
	},
	"E202": {
		Category:   CategoryRouting,
		Message:    "Malformed path template",
		Suggestion: "Templates start with \"/\" and parameter segments are written \":name\"",
	},
	"E203": {
		Category: CategoryRouting,
		Message:  "Navigation failed",
	},
	"E204": {
		Category: CategoryRouting,
		Message:  "Router closed",
	},
	"E205": {
		Category:   CategoryRouting,
		Message:    "Invalid navigation path",
		Suggestion: "Paths must be absolute, same-origin and free of backslashes and NUL bytes",
	},

	// ============================================
	// Protocol Errors (E300-E309)
	// ============================================

	"E300": {
		Category: CategoryProtocol,
		Message:  "Invalid session message",
	},
	"E301": {
		Category:   CategoryProtocol,
		Message:    "Navigation not acknowledged",
		Suggestion: "The browser did not confirm the history change in time",
	},

	// ============================================
	// CLI Errors (E400-E409)
	// ============================================

	"E400": {
		Category:   CategoryCLI,
		Message:    "Invalid parameter argument",
		Suggestion: "Write parameters as name=value",
	},
	"E401": {
		Category: CategoryCLI,
		Message:  "Server failed",
	},
}

// Register adds or replaces an error template.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}

// Lookup returns the template registered for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Codes returns all registered codes in sorted order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// CodesByCategory returns the sorted codes registered under category.
func CodesByCategory(category Category) []string {
	var codes []string
	for _, code := range Codes() {
		if registry[code].Category == category {
			codes = append(codes, code)
		}
	}
	return codes
}
