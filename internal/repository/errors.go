// Package repository implements data access for the booking lifecycle
// engine over database/sql. Sentinel errors defined here let higher layers
// such as services and handlers distinguish failure scenarios with
// errors.Is instead of string matching.
package repository

import "errors"

// ErrGuardViolated is returned when a conditional update matched zero rows
// because the guard column was already set. Callers treat it as "another
// run got here first" and skip the row rather than failing the sweep.
var ErrGuardViolated = errors.New("guard already set")

// ErrNotRefundable is returned when a refund is requested against a
// transaction that is not in the completed state.
var ErrNotRefundable = errors.New("transaction not refundable")

// ErrRefundExceedsAmount is returned when a refund amount is larger than
// the original transaction's amount.
var ErrRefundExceedsAmount = errors.New("refund exceeds original amount")
