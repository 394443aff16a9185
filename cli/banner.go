package cli

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const bannerDefaultWidth = 60

// PrintBanner renders a box-drawing banner around a title using the default width.
func PrintBanner(w io.Writer, title string) {
	PrintBannerWidth(w, title, bannerDefaultWidth)
}

// PrintBannerWidth renders a box-drawing banner around a title using the provided width.
// If the title is wider than the inner width, the banner grows to fit it.
func PrintBannerWidth(w io.Writer, title string, width int) {
	if width < 10 {
		width = bannerDefaultWidth
	}

	inner := width - 2
	if n := utf8.RuneCountInString(title); n+2 > inner {
		inner = n + 2
	}

	topBottom := strings.Repeat("═", inner)
	middle := padCenter(title, inner)

	fmt.Fprintf(w, "╔%s╗\n", topBottom)
	fmt.Fprintf(w, "║%s║\n", middle)
	fmt.Fprintf(w, "╚%s╝\n", topBottom)
}

func padCenter(text string, width int) string {
	n := utf8.RuneCountInString(text)
	if n >= width {
		return string([]rune(text)[:width])
	}
	padTotal := width - n
	left := padTotal / 2
	right := padTotal - left
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", right)
}
