package codec

import "github.com/tidwall/pretty"

// Indent formats an encoded document for reading. Key order and ids are
// unchanged, so the result decodes to the same graph.
func Indent(data []byte) []byte {
	return pretty.PrettyOptions(data, &pretty.Options{Width: 80, Prefix: "", Indent: "  "})
}

// Compact strips insignificant whitespace.
func Compact(data []byte) []byte {
	return pretty.Ugly(data)
}
