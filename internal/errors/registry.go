package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	DocURL   string
}

const docBase = "https://eventwire.dev/docs/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Collection and request construction (E200-E219)
	"E200": {Category: CategoryCollection, Message: "Payload collection failed", DocURL: docBase + "E200"},
	"E201": {Category: CategoryCollection, Message: "Request type could not be constructed", DocURL: docBase + "E201"},
	"E202": {Category: CategoryCollection, Message: "No enclosing form for submit", DocURL: docBase + "E202"},

	// Authorization and validation (E220-E239)
	"E220": {Category: CategoryAuthorization, Message: "Authorization rejected", DocURL: docBase + "E220"},
	"E230": {Category: CategoryValidation, Message: "Validation failed", DocURL: docBase + "E230"},

	// Routing (E240-E259)
	"E240": {Category: CategoryRoute, Message: "Route not found", DocURL: docBase + "E240"},
	"E241": {Category: CategoryRoute, Message: "Route owner not registered", DocURL: docBase + "E241"},
	"E242": {Category: CategoryRoute, Message: "Route member not found", DocURL: docBase + "E242"},
	"E243": {Category: CategoryRoute, Message: "Invalid handler reference", DocURL: docBase + "E243"},

	// Transport (E260-E279)
	"E260": {Category: CategoryTransport, Message: "Failed to send request", DocURL: docBase + "E260"},
	"E261": {Category: CategoryTransport, Message: "Unexpected HTTP status", DocURL: docBase + "E261"},

	// Handler invocation (E280-E299)
	"E280": {Category: CategoryInvocation, Message: "Handler invocation failed", DocURL: docBase + "E280"},
	"E281": {Category: CategoryInvocation, Message: "Handler panicked", DocURL: docBase + "E281"},
	"E282": {Category: CategoryInvocation, Message: "Result expression failed", DocURL: docBase + "E282"},
	"E283": {Category: CategoryInvocation, Message: "Invocation step panicked", DocURL: docBase + "E283"},

	// Manifest (E300-E319)
	"E300": {Category: CategoryManifest, Message: "Invalid manifest", DocURL: docBase + "E300"},
	"E301": {Category: CategoryManifest, Message: "Duplicate controller", DocURL: docBase + "E301"},
	"E302": {Category: CategoryManifest, Message: "Unknown request type", DocURL: docBase + "E302"},

	// Configuration and CLI (E320-E339)
	"E320": {Category: CategoryConfig, Message: "Invalid configuration", DocURL: docBase + "E320"},
	"E321": {Category: CategoryConfig, Message: "Source could not be opened", DocURL: docBase + "E321"},
	"E330": {Category: CategoryCLI, Message: "Document not configured", DocURL: docBase + "E330"},

	// Sessions (E340-E359)
	"E340": {Category: CategorySession, Message: "Element not found", DocURL: docBase + "E340"},
	"E341": {Category: CategorySession, Message: "Invalid event frame", DocURL: docBase + "E341"},
	"E342": {Category: CategorySession, Message: "Session limit reached", DocURL: docBase + "E342"},
	"E343": {Category: CategorySession, Message: "Session engine could not be built", DocURL: docBase + "E343"},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
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
