// Package gateway is the HTTP edge of the MedLog API. It owns the router,
// the middleware chain (CORS, security headers, bearer-token authentication,
// role gates, per-IP rate limiting on the public view) and the JSON response
// helpers the domain handlers write through.
package gateway
