// Package source imports policy documents from disk.
//
// Seed documents are YAML files holding one or more policies. They are
// imported as drafts at startup and, when watching is enabled, whenever
// the seed directory changes. Activation stays an explicit
// administrative call; a seed file never activates anything by itself.
package source
