// Package events distributes system events inside one client process and
// across the client processes of the same machine.
//
// A Channel fans an emitted Event out to its listeners synchronously, in
// subscription order, and then publishes it on a Transport so that other
// processes ("tabs") receive it too. Events coming back from the Transport
// with the channel's own origin are dropped.
//
// Duplicate suppression is the consumer's business: a Deduplicator keyed by
// RecencyKey can wrap any Listener, and Log uses one for the display buffer.
package events
