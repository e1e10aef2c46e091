// Package violation records policy violations and tracks their case
// lifecycle.
//
// Every recorded violation carries an offense count: how many times the
// same subject has violated the same policy, including this occurrence.
// The count is computed inside the storage insert transaction so that
// concurrent reports of the same (policy, subject) pair never produce
// duplicate counts. Repeat offenses map to an escalating disciplinary
// ladder; the suggested action is advisory and never executed by this
// package.
//
// Cases move through a fixed state machine: open, under investigation,
// action taken, closed. An appeal may be raised from any state and
// resolves by closing the case.
package violation
