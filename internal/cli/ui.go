package cli

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// printHeader prints the colored logo followed by an underlined section
// title. Commands call it before any of their own output.
func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println(strings.Repeat("─", utf8.RuneCountInString(title)+2))
	}
}
