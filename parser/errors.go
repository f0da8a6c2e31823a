package parser

import "errors"

var errUnterminatedString = errors.New("unterminated string or identifier literal")

// maxChainDepth bounds multi-hop pattern chain length (spec §4.1): a chain
// of more than this many relationship hops fails with TooLarge rather than
// recursing unboundedly.
const maxChainDepth = 50
