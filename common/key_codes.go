package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyB   = 66  // B key (ASCII), toggles the blue filter channel
	KeyC   = 67  // C key (ASCII), toggles the color cloud
	KeyF   = 70  // F key (ASCII), toggles the filter
	KeyG   = 71  // G key (ASCII), toggles the green filter channel
	KeyH   = 72  // H key (ASCII), toggles the histogram
	KeyM   = 77  // M key (ASCII), cycles the histogram mode
	KeyR   = 82  // R key (ASCII), toggles the red filter channel
	KeyT   = 84  // T key (ASCII), lowers background opacity
	KeyV   = 86  // V key (ASCII), toggles the color cloud color space
	KeyX   = 88  // X key (ASCII), toggles the grid
	KeyY   = 89  // Y key (ASCII), raises background opacity
	KeyEsc = 256 // Escape key (GLFW)

	Key1 = 49 // 1 key (ASCII)
	Key2 = 50 // 2 key (ASCII)
	Key3 = 51 // 3 key (ASCII)
	Key4 = 52 // 4 key (ASCII)
)

// Mouse buttons, matching GLFW button numbers.
const (
	MouseButtonLeft  = 0
	MouseButtonRight = 1
)
