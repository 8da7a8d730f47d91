// Package content defines the Workflow aggregate: the persisted record of one
// piece of content moving through research, outline, draft, edit and SEO
// phases.
//
// State is a closed set. States returns every value, CanTransitionTo encodes
// the directed phase graph, and IsPause/IsTerminal tell the step loop when to
// stop. Mutators on Workflow refresh UpdatedAt and never let it fall behind
// CreatedAt. ChatHistory only grows.
//
// Edit changes and the SEO result are typed fields. EncodeSEO/DecodeSEO and
// EncodeEditChanges/DecodeEditChanges convert them at the storage boundary;
// decoding is lenient and malformed input reads back as absent.
package content
