package main

import (
	"fmt"
	"os"

	"github.com/miguelemosreverte/galileo/internal/app"
)

func main() {
	fmt.Println("Galileo Map Viewer")
	fmt.Println("Controls:")
	fmt.Println("  Mouse drag    : Pan")
	fmt.Println("  Mouse wheel   : Zoom")
	fmt.Println("  Double click  : Zoom in (animated)")
	fmt.Println("  WASD / Arrows : Pan")
	fmt.Println("  Shift / Space : Zoom in / out")
	fmt.Println("  R / F         : Tilt up / down")
	fmt.Println("  Q / E         : Rotate")
	fmt.Println("  Escape        : Exit")
	fmt.Println()

	application, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer application.Cleanup()

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
