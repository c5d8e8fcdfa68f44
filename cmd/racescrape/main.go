package main

import "raceresults/cmd/racescrape/cmd"

func main() {
	cmd.Execute()
}
