// Package main provides the entry point for the nucheck CLI.
//
// nucheck submits HTML to the Nu HTML Checker and reports the messages,
// grouped and filtered by the preferences kept in the local database.
//
// Usage:
//
//	nucheck validate <url|file|->...
//	nucheck filter hide-type warning
//	nucheck history <target>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
