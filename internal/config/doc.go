// Package config provides the nucheck configuration: the flat Config built
// from CLI flags, and the optional .nucheck YAML file with the validator
// endpoint and per-site cookies and headers used when capturing pages.
package config
