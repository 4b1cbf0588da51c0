// tracker is the Tender Tracker backend: the database-facing HTTP server and
// the client-side connection tools.
package main

import "os"

func main() {
	os.Exit(execute())
}
