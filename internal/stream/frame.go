package stream

// retry is the reconnect delay, in milliseconds, advertised to viewers.
const retry = "5000"

// Frame wraps data in a server-sent event: "retry: 5000\ndata: <data>\n\n".
func Frame(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(retry)+17)
	out = append(out, "retry: "...)
	out = append(out, retry...)
	out = append(out, "\ndata: "...)
	out = append(out, data...)
	out = append(out, "\n\n"...)
	return out
}
