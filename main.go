package main

import "santa-tracker-backend/cmd"

func main() {
	cmd.Run()
}
