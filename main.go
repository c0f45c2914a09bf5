package main

import "github.com/emahelps/sms-hub/cmd"

func main() {
	cmd.Execute()
}
