package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Auth Routes - Login & Logout
	RouteLogin    = "/login/"
	RouteCallback = "/callback/"
	RouteLogout   = "/logout/"

	// Upload
	RouteUpload = "/upload/"

	// Liveness
	RouteHealth = "/healthz"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
)
