/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/moamenhredeen/oascall/cmd"

func main() {
	cmd.Execute()
}
