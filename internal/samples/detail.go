package samples

import "github.com/jpalmerr/gnos/internal/ringbuf"

// Detail summarizes one sample set of an owner.
type Detail struct {
	SampleName string
	Min        float64
	Mean       float64
	Max        float64
}

// Snapshot is a copy of one sample set.
type Snapshot struct {
	// Values holds the retained samples, oldest first.
	Values []float64

	// Adds counts every AddSample processed by the manager, across all
	// owners. Viewers use it to tell whether anything arrived since their
	// last snapshot.
	Adds uint64
}

// summarize returns the detail for buf, or false when it holds no samples.
func summarize(name string, buf *ringbuf.Buffer) (Detail, bool) {
	n := buf.Len()
	if n == 0 {
		return Detail{}, false
	}

	d := Detail{SampleName: name, Min: buf.At(0), Max: buf.At(0)}
	var sum float64
	for i := 0; i < n; i++ {
		v := buf.At(i)
		d.Min = min(d.Min, v)
		d.Max = max(d.Max, v)
		sum += v
	}
	d.Mean = sum / float64(n)
	return d, true
}
