// Command calltrace inspects the call-trace identity and calibration of the
// running host and drives synthetic producers into the segment sinks.
package main

func main() {
	execute()
}
