// Package syncer ships change-sets from an editing session to the
// persistence service.
//
// Every change-set submitted to a Syncer is stamped with the session id and
// the next value of a logical clock, given a content-addressed id, and
// queued. A single Run loop sends the queue strictly in FIFO order. Submit
// never waits for the network: the local store is already updated and stays
// authoritative for the session.
//
// A failed send is reported to the result handler as a *TransportError and
// the loop stops at that change-set, keeping it at the head of the queue so
// nothing behind it overtakes it. The caller decides whether to Retry. A
// retried change-set keeps its id, so the persistence service applies it at
// most once.
//
// Ordering is guaranteed only within one session. Two sessions editing the
// same annotation are not coordinated; the persisted state is field-level
// last-write-wins across them.
package syncer
