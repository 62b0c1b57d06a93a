// Package scheduler pulls READY actions from the Action Store (C2) and
// runs them against handlers registered by the Node and Cluster Action
// Runtimes, enforcing the timeout, cancellation, and result-code
// contract of spec §4.3.
package scheduler
