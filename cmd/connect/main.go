// Connect is a paginating REST proxy in front of a bearer-token upstream API.
//
// Callers issue plain HTTP requests against arbitrary upstream paths. The
// proxy authenticates once, renews the token on 401, follows page cursors
// for GET requests and streams the whole listing back as one JSON array.
//
// Usage:
//
//	# Start the proxy (credentials from config.yaml or BASE_URL/USERNAME/PASSWORD)
//	connect run
//
//	# Start with a custom configuration file
//	connect run --config /etc/connect/config.yaml
//
//	# Check the configuration and the upstream credentials
//	connect validate --check-upstream
//
//	# Show failed requests of the last day from the journal
//	connect journal list --failed --since 24h
//
//	# Delete journal records past the retention period
//	connect journal prune
package main

func main() {
	Execute()
}
