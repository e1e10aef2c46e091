// Governor is a policy evaluation and enforcement engine with a
// tamper-evident audit trail.
//
// Business operations call the engine with an operation context; the
// engine evaluates the active policies, blocks or holds violating
// operations depending on enforcement mode, records violation cases
// with repeat-offense escalation, and appends every evaluation to a
// hash-chained append-only audit log.
//
// Usage:
//
//	# Start the server with default configuration
//	governor run
//
//	# Start with a custom configuration file
//	governor run --config /etc/governor/config.yaml
//
//	# Verify the audit chain of an existing database
//	governor verify --db governor.db
//
//	# Validate a policy seed file
//	governor policy validate policies/fleet.yaml
package main

func main() {
	Execute()
}
