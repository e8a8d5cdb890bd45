// Package samples implements the sample model: bounded numeric time series
// grouped by owner, such as the per-interface bandwidth of one device.
//
// Like the fact model it is a single goroutine reached only through messages.
// Viewers register per owner and receive that owner's [Detail] records every
// time one of its sets gets a sample.
package samples
