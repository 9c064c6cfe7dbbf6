package capi

import _ "embed"

// HeaderFlownodeAPI is the C header describing this library's exported
// surface, embedded so that tooling shipping the shared library can also
// ship the matching header.
//
//go:embed flownode.h
var HeaderFlownodeAPI string
