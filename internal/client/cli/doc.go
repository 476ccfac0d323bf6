// Package cli provides the moodkeeper command-line client.
//
// It wires configuration, the local store, the outbox, the sync worker and
// scheduler, the reconciler and the remote store, and exposes them as cobra
// commands:
//
//	diary write|show|list     daily free text
//	mood set|show|list|summary
//	reflect add|list|days     short notes, any number per day
//	sync run|status|requeue   outbox delivery and inspection
//	login [token] / logout
//	daemon                    background sync until SIGINT/SIGTERM
//	shell                     interactive prompt (see runREPL)
//
// Writes always land in the local database first. When a session exists and
// the remote is reachable they are delivered immediately; otherwise they wait
// in the outbox for `sync run` or the daemon.
package cli
