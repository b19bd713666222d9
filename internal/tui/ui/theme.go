package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	TableHeaderFg     tcell.Color
	TableHeaderBg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	HighlightBg       tcell.Color
	UnreadColor       tcell.Color
	OfferColor        tcell.Color
	NewBankColor      tcell.Color
	PendingColor      tcell.Color
	MenuKeyColor      tcell.Color
	TitleColor        tcell.Color
	FlashInfoColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color
	StateOKColor      tcell.Color
	StateWarnColor    tcell.Color
	StateErrColor     tcell.Color
}

// DefaultTheme returns a k9s-inspired dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorCadetBlue,
		BorderColor:       tcell.ColorDodgerBlue,
		TableHeaderFg:     tcell.ColorWhite,
		TableHeaderBg:     tcell.ColorBlack,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorAqua,
		HighlightBg:       tcell.ColorDarkSlateGray,
		UnreadColor:       tcell.ColorOrange,
		OfferColor:        tcell.ColorGreenYellow,
		NewBankColor:      tcell.ColorFuchsia,
		PendingColor:      tcell.ColorGray,
		MenuKeyColor:      tcell.ColorDodgerBlue,
		TitleColor:        tcell.ColorFuchsia,
		FlashInfoColor:    tcell.ColorNavajoWhite,
		FlashErrColor:     tcell.ColorOrangeRed,
		PromptBorderColor: tcell.ColorDodgerBlue,
		StateOKColor:      tcell.ColorGreen,
		StateWarnColor:    tcell.ColorYellow,
		StateErrColor:     tcell.ColorRed,
	}
}

// Tag returns c as a tview color tag name.
func Tag(c tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}
