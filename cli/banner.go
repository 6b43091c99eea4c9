package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const bannerDefaultWidth = 60

var bannerColor = color.New(color.FgCyan, color.Bold)

// PrintBanner renders a box-drawing banner around a title using the default width.
func PrintBanner(title string) {
	PrintBannerWidth(title, bannerDefaultWidth)
}

// PrintBannerWidth renders a box-drawing banner around a title using the provided width.
// If the title is wider than the inner width, the banner grows to fit it.
func PrintBannerWidth(title string, width int) {
	for _, line := range bannerLines(title, width) {
		bannerColor.Println(line)
	}
}

func bannerLines(title string, width int) []string {
	if width < 10 {
		width = bannerDefaultWidth
	}

	inner := width - 2
	if len(title)+2 > inner {
		inner = len(title) + 2
	}

	topBottom := strings.Repeat("═", inner)
	return []string{
		fmt.Sprintf("╔%s╗", topBottom),
		fmt.Sprintf("║%s║", padCenter(title, inner)),
		fmt.Sprintf("╚%s╝", topBottom),
	}
}

func padCenter(text string, width int) string {
	if len(text) >= width {
		return text[:width]
	}
	padTotal := width - len(text)
	left := padTotal / 2
	right := padTotal - left
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", right)
}
