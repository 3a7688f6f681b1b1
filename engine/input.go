package engine

import (
	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/Carmen-Shannon/chromascope/engine/config"
)

const (
	// ScrollStep is the histogram scale change of one wheel notch.
	ScrollStep float32 = 0.05
	// OpacityStep is the background opacity change of one key press.
	OpacityStep float32 = 0.1
)

// ApplyKey applies the binding of a pressed key to cfg.
//
// Parameters:
//   - cfg: the configuration to mutate
//   - key: the virtual key code, see common.Key*
//
// Returns:
//   - bool: false if the key has no binding
func ApplyKey(cfg *config.Config, key uint32) bool {
	switch key {
	case common.KeyF:
		cfg.EnableFilter = !cfg.EnableFilter
	case common.Key1, common.Key2, common.Key3, common.Key4:
		cfg.FilterMode = config.FilterMode(key - common.Key1)
	case common.KeyR:
		cfg.FilterChannels[0] = !cfg.FilterChannels[0]
	case common.KeyG:
		cfg.FilterChannels[1] = !cfg.FilterChannels[1]
	case common.KeyB:
		cfg.FilterChannels[2] = !cfg.FilterChannels[2]
	case common.KeyH:
		cfg.EnableHistogram = !cfg.EnableHistogram
	case common.KeyM:
		cfg.HistogramMode = cfg.HistogramMode.Next()
	case common.KeyC:
		cfg.EnableColorCloud = !cfg.EnableColorCloud
	case common.KeyV:
		if cfg.ColorCloudMode == config.ColorCloudModeRGB {
			cfg.ColorCloudMode = config.ColorCloudModeHSL
		} else {
			cfg.ColorCloudMode = config.ColorCloudModeRGB
		}
	case common.KeyX:
		cfg.ShowGrid = !cfg.ShowGrid
	case common.KeyT:
		cfg.AdjustBgOpacity(-OpacityStep)
	case common.KeyY:
		cfg.AdjustBgOpacity(OpacityStep)
	default:
		return false
	}
	return true
}

// ApplyScroll changes the histogram scale by one step per wheel notch.
func ApplyScroll(cfg *config.Config, delta float32) {
	cfg.AdjustHistogramScale(ScrollStep * delta)
}

// ApplyDrag rotates the color cloud by a cursor drag. The shorter window side spans half a turn.
//
// Parameters:
//   - cfg: the configuration to mutate
//   - dx, dy: the cursor movement in pixels
func ApplyDrag(cfg *config.Config, dx, dy int32) {
	div := min(cfg.WindowRect.Width, cfg.WindowRect.Height)
	if div <= 0 {
		return
	}
	cfg.Rotate(float32(dx)/float32(div), float32(dy)/float32(div))
}
