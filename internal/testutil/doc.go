// Package testutil holds helpers shared by tests across packages: locating
// the repository's testdata models, loading them into a catalog and
// producing deterministic ObjectIDs.
package testutil
