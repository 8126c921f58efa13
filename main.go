package main

import "github.com/collectifor/collectifor/cmd/collectifor"

func main() { collectifor.Execute() }
