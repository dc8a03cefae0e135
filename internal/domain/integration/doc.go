// Package integration holds the domain model for outbound lead
// synchronization: the platforms leads are pushed to, the per-platform
// sync ledger, the dead letter store for exhausted jobs, and the cached
// OAuth tokens used to talk to those platforms.
package integration
