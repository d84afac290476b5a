// Package threat holds the domain vocabulary of acoustic threat detection:
// priority tiers, the versioned label table that maps classifier outputs to
// named classes, the error taxonomy shared by all pipeline stages, and the
// Assembler that turns a probability vector into a Detection record.
package threat
