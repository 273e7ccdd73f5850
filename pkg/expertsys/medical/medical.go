// Package medical ships the built-in diagnostic rule set: ten symptom rules
// (R001-R010) followed by five recommendation rules (R011-R015).
package medical

import _ "embed"

// RulesYAML is the built-in rule set in the config rules-file format.
//
//go:embed rules.yaml
var RulesYAML []byte
