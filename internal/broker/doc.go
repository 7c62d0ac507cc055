// Package broker accepts peer connections and relays position updates.
//
// Every inbound position is merged into the store under the sender's remote
// endpoint, then qualified with the sender's client id and enqueued on every
// other live session. The store outlives sessions unless eviction is enabled.
package broker
