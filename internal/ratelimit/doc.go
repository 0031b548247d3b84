// Package ratelimit provides per-sender sliding-window admission control.
//
// Every admission check prunes the sender's window to the trailing duration,
// appends the current instant and admits when the resulting count does not
// exceed the threshold. Rejected attempts stay in the window, so a sender
// retrying while limited keeps itself limited.
package ratelimit
