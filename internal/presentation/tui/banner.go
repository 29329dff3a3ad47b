package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for derivekit.
func PrintBanner() {
	p := termenv.ColorProfile()
	s1 := termenv.String("     _           _           _    _ _   ").Foreground(p.Color("#818cf8"))
	s2 := termenv.String("  __| | ___ _ __(_)_   _____| | _(_) |_ ").Foreground(p.Color("#a78bfa"))
	s3 := termenv.String(" / _` |/ _ \\ '__| \\ \\ / / _ \\ |/ / | __|").Foreground(p.Color("#c084fc"))
	s4 := termenv.String("| (_| |  __/ |  | |\\ V /  __/   <| | |_ ").Foreground(p.Color("#e879f9"))
	s5 := termenv.String(" \\__,_|\\___|_|  |_| \\_/ \\___|_|\\_\\_|\\__|").Foreground(p.Color("#f472b6"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Println()
}
