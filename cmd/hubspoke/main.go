// Command hubspoke runs hub/spoke decomposition workloads over an
// in-process world of ranks and records each run in a local ledger.
package main

func main() {
	Execute()
}
