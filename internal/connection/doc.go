// Package connection owns the server's single database link.
//
// The Manager establishes the link with a bounded fixed-delay retry, runs the
// one-time schema bootstrap after the first successful connection, serves
// statement execution and health reports against it, and demotes itself when
// a statement fails with a connection-class error.
//
// State machine:
//
//	disconnected -> connecting -> connected
//	                    |             |
//	                    v             v (probe failure)
//	                 failed  <----- failed
//
// A connection-class statement failure moves connected to disconnected and
// schedules a background re-establish.
package connection
