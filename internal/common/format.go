package common

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultWidth is the width of CLI report rules
const DefaultWidth = 80

// Rule returns a line of char repeated width times
func Rule(char string, width int) string {
	return strings.Repeat(char, width)
}

// PrintSeparator prints a rule of char
func PrintSeparator(char string, width int) {
	fmt.Println(Rule(char, width))
}

// PrintHeader prints a report title framed by double rules
func PrintHeader(title string, width int) {
	fmt.Printf("\n%s\n%s\n%s\n", Rule("=", width), title, Rule("=", width))
}

// PrintFooter prints a summary line framed by double rules
func PrintFooter(summary string, width int) {
	fmt.Printf("\n%s\n%s\n%s\n\n", Rule("=", width), summary, Rule("=", width))
}

// PrintBoxSeparator closes the header block of a boxed section
func PrintBoxSeparator(width int) {
	fmt.Println("├" + Rule("─", width))
}

// BoxPrefix is the branch drawn before a list item
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix continues the branch under a list item
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// Truncate shortens s to at most max runes, ending with "..." when cut
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-3]) + "..."
}
