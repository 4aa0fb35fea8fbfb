package main

import "github.com/joho/godotenv"

func main() {
	// Optional .env in the working directory feeds MEDIATIMER_* overrides.
	_ = godotenv.Load()

	Execute()
}
