// Package discovery implements mDNS/DNS-SD discovery of flow sinks.
//
// Sinks advertise the _flow._tcp service in the local domain. The instance
// name is user-chosen (default "flow-sink"); TXT records carry:
//
//	v=1          TXT format version
//	name=<text>  optional human-readable sink name
//
// Clients browse for the service and connect to the first advertised
// address. Addresses from several interfaces are merged into one Service
// per instance.
package discovery
