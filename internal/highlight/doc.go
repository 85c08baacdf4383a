// Package highlight locates the fragment of submitted markup that a
// validator message refers to.
//
// The Nu HTML Checker counts columns in UTF-16 code units, so all offsets in
// this package use the same unit. Slicing by byte or by rune would drift on
// any line containing characters outside the Basic Multilingual Plane.
//
// Offsets are converted with unicode/utf16.
package highlight
