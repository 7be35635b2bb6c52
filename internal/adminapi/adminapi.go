// Package adminapi holds the http handlers of the admin console, the
// subscriber portal, the status endpoint and the shop webhook.
package adminapi

import "sync"

var registerOnce sync.Once

// Init registers all routes with the webserver. Call before NewWebServer.
func Init() {
	registerOnce.Do(func() {
		registerAuthRoutes()
		registerSubscriberRoutes()
		registerWhatsAppRoutes()
		registerWebhookRoutes()
		registerPortalRoutes()
	})
}
