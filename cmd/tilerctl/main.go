// Command tilerctl plans, simulates and serves tiler container reservations.
package main

func main() {
	execute()
}
