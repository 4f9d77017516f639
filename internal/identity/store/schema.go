// Package store holds the relational schema shared by the identity store
// implementations.
package store

import _ "embed"

// Schema is the DDL for the identity tables. Integration tests apply it to
// a fresh database; deployments run it through their migration tooling.
//
//go:embed schema.sql
var Schema string
