// Command vmsim runs workloads on a simulated demand-paging virtual memory
// manager and inspects the events they produce.
package main

func main() {
	Execute()
}
