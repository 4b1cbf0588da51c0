// Package protocol defines the HTTP wire contract between the tracker server
// and its clients: the health report and the statement execution request and
// response bodies.
package protocol
