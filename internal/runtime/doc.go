// Package runtime is the inference runtime behind the network loader.
//
// A network bundle is a directory (or base URL) holding a JSON graph
// descriptor and a little-endian float32 weight file. Descriptors may be
// specialized per backend:
//
//   - graph_<backend>.json, falling back to graph.json
//   - weight_<backend>.bin, falling back to weight.bin (unless the
//     descriptor names its weight file)
//
// Load walks an ordered backend preference list, picks the first registered
// backend that reports itself available, and compiles the descriptor into a
// Program whose input and output slots are fixed-shape float32 buffers.
//
// Programs are not safe for concurrent Run calls. Callers serialize access
// (see manager.Evaluate).
package runtime
