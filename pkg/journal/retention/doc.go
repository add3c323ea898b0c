// Package retention removes journal records older than the configured number
// of days, either on demand (Pruner.Prune, used by "connect journal prune")
// or on a cron schedule while the server runs.
package retention
