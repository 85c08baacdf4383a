// Package model defines the core data structures used throughout nucheck.
//
// This package contains the following main types:
//   - ValidationMessage: A message exactly as the Nu HTML Checker returns it
//   - Message: A ValidationMessage with its grouping kind resolved
//   - GroupSet: Messages bucketed by (kind, message text), in first-seen order
//   - Run: One validation attempt for one target
//
// The filter, highlight, report and database packages all depend on these
// types; model itself imports nothing from nucheck.
package model
