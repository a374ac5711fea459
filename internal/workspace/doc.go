// Package workspace caches the Databricks SDK client per profile and
// rebuilds it exactly once per credential rotation. The metadata
// operations obtain a ready client here instead of constructing their
// own.
package workspace
