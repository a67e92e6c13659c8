// Package dispatch is the utility bot state machine. It maps menu selections
// and text messages onto pending tasks, runs the QR and shortening executors,
// records completed tasks and decides what the user sees next.
//
// Transitions for a user run one at a time under the state store's per-user lock.
package dispatch
