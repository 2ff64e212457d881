// Command backlogd runs feed tasks with a persistent backlog and serves the
// backlog admin API.
package main

func main() {
	Execute()
}
