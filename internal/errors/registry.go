package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Reconcile Errors (E001-E009)
	// ============================================

	"E001": {
		Category: CategoryReconcile,
		Message:  "Duplicate sibling key",
		Detail:   "Two children of the same element carry the same key. Keys must be unique among siblings so each child can be matched across renders.",
		DocURL:   "https://vdiff.dev/docs/errors/E001",
	},
	"E002": {
		Category: CategorySink,
		Message:  "Stale or unknown sink handle",
		Detail:   "A mutation referenced a handle that the sink never created or has already removed.",
		DocURL:   "https://vdiff.dev/docs/errors/E002",
	},
	"E003": {
		Category: CategoryReconcile,
		Message:  "Unknown node kind",
		Detail:   "A node is neither an element nor a text node.",
		DocURL:   "https://vdiff.dev/docs/errors/E003",
	},

	// ============================================
	// Document Errors (E010-E019)
	// ============================================

	"E010": {
		Category: CategoryDocument,
		Message:  "Invalid tree document",
		Detail:   "The document does not describe a valid tree. Each node is a mapping with a tag (and optional attrs, children, key) or a text field.",
		DocURL:   "https://vdiff.dev/docs/errors/E010",
	},
	"E011": {
		Category: CategoryDocument,
		Message:  "Unsupported document format",
		Detail:   "Supported formats are yaml, json and html.",
		DocURL:   "https://vdiff.dev/docs/errors/E011",
	},

	// ============================================
	// Protocol Errors (E020-E029)
	// ============================================

	"E020": {
		Category: CategoryProtocol,
		Message:  "Protocol decode failure",
		Detail:   "A frame or patch could not be decoded.",
		DocURL:   "https://vdiff.dev/docs/errors/E020",
	},
	"E021": {
		Category: CategoryProtocol,
		Message:  "Unknown handle in patch stream",
		Detail:   "A patch referenced a node ID that the mirror has not seen created. The stream is out of sync; reconnect to receive a fresh sync frame.",
		DocURL:   "https://vdiff.dev/docs/errors/E021",
	},

	// ============================================
	// Storage Errors (E030-E039)
	// ============================================

	"E030": {
		Category: CategoryStorage,
		Message:  "Snapshot not found",
		Detail:   "No snapshot is stored under this mount name.",
		DocURL:   "https://vdiff.dev/docs/errors/E030",
	},
	"E031": {
		Category: CategoryStorage,
		Message:  "Snapshot storage failure",
		Detail:   "The snapshot backend returned an error.",
		DocURL:   "https://vdiff.dev/docs/errors/E031",
	},

	// ============================================
	// Config Errors (E040-E049)
	// ============================================

	"E040": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "No vdiff.json was found.",
		DocURL:   "https://vdiff.dev/docs/errors/E040",
	},
	"E041": {
		Category: CategoryConfig,
		Message:  "Config parse failure",
		Detail:   "vdiff.json could not be read or is not valid JSON.",
		DocURL:   "https://vdiff.dev/docs/errors/E041",
	},
	"E042": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		Detail:   "A configuration value is out of range or inconsistent with another setting.",
		DocURL:   "https://vdiff.dev/docs/errors/E042",
	},

	// ============================================
	// Server Errors (E050-E059)
	// ============================================

	"E050": {
		Category: CategoryCLI,
		Message:  "Mount not found",
		Detail:   "No mount with this name has been rendered on the server.",
		DocURL:   "https://vdiff.dev/docs/errors/E050",
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

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
