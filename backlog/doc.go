// Package backlog remembers entries seen by a task run so that a later run
// which fails to rediscover them before they expire gets them reinjected.
//
// Records are keyed by (feed, title). Learning an entry again only ever pushes
// its expiry forward. Expired records stay in storage until the next purge,
// which runs at the start of every Inject. Reinjecting a record never removes
// it, so one record can be restored into many runs until it expires.
package backlog
