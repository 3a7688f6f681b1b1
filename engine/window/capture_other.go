//go:build !windows

package window

import (
	"errors"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func excludeFromCapture(*glfw.Window) error {
	return errors.New("display affinity is only supported on windows")
}
