// ABOUTME: Sync client package for the UDP time service
// ABOUTME: One request per call, bounded wait, classified outcome
// Package syncclient asks a time service for its clock and classifies what
// happened: a reply, a timeout, or a reply that could not be decoded.
//
// There are no retries. The measured round trip is reported as latency
// only; no clock offset is derived from it.
//
// Example:
//
//	c := syncclient.New(syncclient.Config{})
//	out, err := c.RequestTime("127.0.0.1:5678", 2*time.Second)
//	if err != nil {
//	    // caller or transport error
//	}
//	fmt.Println(out)
package syncclient
