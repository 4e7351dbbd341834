// Package mediasync drives one backup synchronization cycle against the
// snapshot store: stage the local inventory, commit it, reconcile against the
// remote listing, confirm what the remote still holds and collect superseded
// rows. Every finished cycle is recorded in the media_sync_cycle table so
// the latest outcome can be inspected without rerunning it.
package mediasync
