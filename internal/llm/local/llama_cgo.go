//go:build llama

package local

// cgo link directives for the in-process llama adapter. The rpath lets the
// binary find libllama.so next to itself in ./bin.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../../bin -lllama
*/
import "C"
