// Package auxmodtest provides a small hand-assembled WebAssembly module for
// tests of the aux module loader and its callers.
package auxmodtest

import (
	"os"
	"path/filepath"
)

// EngineWasm imports imports.imported_func(i32) and exports
//
//	test() i32                 calls imported_func(42), returns 7
//	alloc(i32) i32             returns 1024
//	think(i32, i32, f64) i32   returns load_i32(ptr) + len
//	memory                     one page
var EngineWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type section
	0x01, 0x15, 0x04,
	0x60, 0x01, 0x7f, 0x00,
	0x60, 0x00, 0x01, 0x7f,
	0x60, 0x01, 0x7f, 0x01, 0x7f,
	0x60, 0x03, 0x7f, 0x7f, 0x7c, 0x01, 0x7f,
	// import section
	0x02, 0x19, 0x01,
	0x07, 'i', 'm', 'p', 'o', 'r', 't', 's',
	0x0d, 'i', 'm', 'p', 'o', 'r', 't', 'e', 'd', '_', 'f', 'u', 'n', 'c',
	0x00, 0x00,
	// function section
	0x03, 0x04, 0x03, 0x01, 0x02, 0x03,
	// memory section
	0x05, 0x03, 0x01, 0x00, 0x01,
	// export section
	0x07, 0x21, 0x04,
	0x04, 't', 'e', 's', 't', 0x00, 0x01,
	0x05, 'a', 'l', 'l', 'o', 'c', 0x00, 0x02,
	0x05, 't', 'h', 'i', 'n', 'k', 0x00, 0x03,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	// code section
	0x0a, 0x1b, 0x03,
	0x08, 0x00, 0x41, 0x2a, 0x10, 0x00, 0x41, 0x07, 0x0b,
	0x05, 0x00, 0x41, 0x80, 0x08, 0x0b,
	0x0a, 0x00, 0x20, 0x00, 0x28, 0x02, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

// SpinWasm exports spin(), which loops until the call is interrupted.
var SpinWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type section: () -> ()
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	// function section
	0x03, 0x02, 0x01, 0x00,
	// export section: "spin"
	0x07, 0x08, 0x01, 0x04, 0x73, 0x70, 0x69, 0x6e, 0x00, 0x00,
	// code section: loop br 0 end end
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x0b,
}

// WriteModule writes EngineWasm to dir/engine.wasm and returns the path.
func WriteModule(dir string) (string, error) {
	return write(dir, "engine.wasm", EngineWasm)
}

// WriteSpinModule writes SpinWasm to dir/spin.wasm and returns the path.
func WriteSpinModule(dir string) (string, error) {
	return write(dir, "spin.wasm", SpinWasm)
}

func write(dir, name string, bin []byte) (string, error) {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, bin, 0o644); err != nil {
		return "", err
	}
	return p, nil
}
