// Package catalog loads the case catalog: the detective cases, the evidence
// each case requires, and the display metadata of every evidence unit.
//
// Catalogs are written either in CUE or in YAML. CUE catalogs are unified
// with an embedded schema (schema.cue) before decoding, so structural
// mistakes are reported with file positions. Both formats then pass the same
// checks:
//
//   - struct validation with go-playground/validator tags
//   - identifier normalisation (Unicode NFC, surrounding space trimmed)
//   - integrity: unique ids, non-empty requirement sets, requirements that
//     reference known evidence units
//
// Integrity problems are configuration errors. They are collected into a
// single *IntegrityError at load time and never handled per request.
package catalog
