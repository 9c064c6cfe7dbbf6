// libflownode is the c-shared entry point. Build it with
//
//	go build -buildmode=c-shared -o libflownode.so ./cmd/libflownode
//
// and compile C programs against capi/flownode.h. The exported symbols
// live in the capi package; this package only anchors the build.
package main

import (
	_ "flownode/capi"
)

func main() {}
