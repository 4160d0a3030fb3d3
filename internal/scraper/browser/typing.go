package browser

import (
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
)

// TypeHuman types text into an element with human-like timing.
// Small random delays (50-150ms) between keystrokes simulate human typing.
func TypeHuman(el *rod.Element, text string) error {
	for _, char := range text {
		if err := el.Type(input.Key(char)); err != nil {
			return err
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
	return nil
}

// TypeFast types text without delays, still one keyboard event per character.
func TypeFast(el *rod.Element, text string) error {
	runes := []rune(text)
	keys := make([]input.Key, len(runes))
	for i, char := range runes {
		keys[i] = input.Key(char)
	}
	return el.Type(keys...)
}

// Fill clears the field matching selector, found in the page or one of its
// iframes, and types text into it.
func Fill(page *rod.Page, selector, text string, human bool) error {
	el, err := FindInFrames(page, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	if err := el.Input(""); err != nil {
		return err
	}

	if human {
		return TypeHuman(el, text)
	}
	return TypeFast(el, text)
}
