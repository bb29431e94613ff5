package main

import "EyeTrackServer/cmd"

func main() {
	cmd.Execute()
}
