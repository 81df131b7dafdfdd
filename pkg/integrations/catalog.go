// Package integrations manages the hub's integration modules: the fixed
// catalog shown on the dashboard, the credential records stored in the
// document store, and the optimistic toggle/key-edit flow over the mutation
// gateway.
package integrations

// Module describes one entry of the hub's module catalog.
type Module struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	DefaultActive bool   `json:"defaultActive"`
}

// Catalog is the fixed set of modules the hub knows how to manage. The ids
// double as the conventional document ids of the credential records; they
// are configuration keys, nothing below assumes any particular value.
func Catalog() []Module {
	return []Module{
		{ID: "sales", Name: "Sales API", Description: "Manage products, prices, and orders. Integrated with payment gateways.", Category: "Commerce", DefaultActive: true},
		{ID: "reservations", Name: "Reservations API", Description: "Handle service or event reservations with availability control.", Category: "Reservations", DefaultActive: true},
		{ID: "google-maps", Name: "Google Maps API", Description: "Geocoding, routing, and geolocation services.", Category: "Location", DefaultActive: true},
		{ID: "shopify", Name: "Shopify API", Description: "Manage products, orders, and customers for your Shopify store.", Category: "Commerce", DefaultActive: true},
		{ID: "voice-to-text", Name: "Voice AI API", Description: "Transcribe voice and generate JSON quotes automatically.", Category: "Voice", DefaultActive: true},
		{ID: "retell-ai", Name: "Retell AI", Description: "Build and manage voice agents with conversational AI.", Category: "Voice", DefaultActive: false},
		{ID: "gemini-ai", Name: "Gemini AI API", Description: "Natural language processing and AI generation powered by Google.", Category: "AI", DefaultActive: true},
		{ID: "authentication", Name: "Authentication API", Description: "User registration and login with role-based access control.", Category: "System", DefaultActive: true},
		{ID: "notifications", Name: "Notifications API", Description: "Send automated notifications via email, WhatsApp, or SMS.", Category: "System", DefaultActive: true},
		{ID: "reports", Name: "Reports API", Description: "Dashboard for sales & reservations data with export functionality.", Category: "System", DefaultActive: true},
		{ID: "api-status", Name: "API Status Endpoint", Description: "A public endpoint to display the status of all active APIs.", Category: "System", DefaultActive: true},
		{ID: "documentation", Name: "OpenAPI/Swagger", Description: "Automatically generated documentation for all your APIs.", Category: "System", DefaultActive: true},
	}
}

// CatalogModule looks a module up by id.
func CatalogModule(id string) (Module, bool) {
	for _, m := range Catalog() {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}
