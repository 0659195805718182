package drawing

import (
	"errors"
	"fmt"
)

var ErrInvalidSettings = errors.New("invalid settings")

type Settings struct {
	CanvasWidth         int     `json:"canvasWidth"`
	CanvasHeight        int     `json:"canvasHeight"`
	WeightSliderMinimum float64 `json:"weightSliderMinimum"`
	WeightSliderMaximum float64 `json:"weightSliderMaximum"`
	WeightSliderDefault float64 `json:"weightSliderDefault"`
}

func DefaultSettings() Settings {
	return Settings{
		CanvasWidth:         700,
		CanvasHeight:        700,
		WeightSliderMinimum: 1,
		WeightSliderMaximum: 100,
		WeightSliderDefault: 10,
	}
}

func (s Settings) Validate() error {
	if s.CanvasWidth <= 0 || s.CanvasHeight <= 0 {
		return fmt.Errorf("%w: canvas must be at least 1x1, got %dx%d", ErrInvalidSettings, s.CanvasWidth, s.CanvasHeight)
	}
	if s.WeightSliderMinimum > s.WeightSliderMaximum {
		return fmt.Errorf("%w: weight minimum %v exceeds maximum %v", ErrInvalidSettings, s.WeightSliderMinimum, s.WeightSliderMaximum)
	}
	if s.WeightSliderDefault < s.WeightSliderMinimum || s.WeightSliderDefault > s.WeightSliderMaximum {
		return fmt.Errorf("%w: weight default %v outside [%v, %v]", ErrInvalidSettings,
			s.WeightSliderDefault, s.WeightSliderMinimum, s.WeightSliderMaximum)
	}
	return nil
}

// Contains reports whether p lies on the canvas, edges included.
func (s Settings) Contains(p Position) bool {
	return p.X >= 0 && p.X <= s.CanvasWidth &&
		p.Y >= 0 && p.Y <= s.CanvasHeight
}

func (s Settings) ClampWeight(w float64) float64 {
	if w != w { // NaN
		return s.WeightSliderDefault
	}
	return min(max(w, s.WeightSliderMinimum), s.WeightSliderMaximum)
}
