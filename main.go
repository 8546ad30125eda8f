package main

import "queryflow/internal/app"

func main() {
	app.Main()
}
