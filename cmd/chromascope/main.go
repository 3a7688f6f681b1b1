// Command chromascope overlays live color analysis of the desktop: a filtered view, channel
// histograms and a 3D color cloud of the pixels under its window.
//
// Keys: F filter, 1-4 filter mode, R/G/B filter channels, H histogram, M histogram mode,
// C color cloud, V color space, X grid, T/Y background opacity, Esc quit. Scroll scales the
// histogram and a left drag rotates the cloud.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"

	"github.com/Carmen-Shannon/chromascope/engine"
	"github.com/Carmen-Shannon/chromascope/engine/renderer"
)

// GLFW requires every window call on the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", engine.DefaultConfigPath, "settings file, loaded at start and saved on quit")
	backendName := flag.String("backend", "wgpu", "gpu backend: wgpu or software (headless)")
	source := flag.String("source", "dxgi", "capture source: dxgi or screenshot")
	imagePath := flag.String("image", "", "analyze a still image instead of the desktop")
	display := flag.Int("display", 0, "index of the captured display")
	profile := flag.Bool("profile", false, "log frame rate, memory and per-pass gpu timings")
	vsync := flag.Bool("vsync", false, "present on vertical blank")
	flag.Parse()

	backend, err := renderer.ParseBackendType(*backendName)
	if err != nil {
		log.Fatal(err)
	}

	opts := []engine.EngineBuilderOption{
		engine.WithConfigPath(*configPath),
		engine.WithBackend(backend),
		engine.WithCaptureSource(*source, *display),
		engine.WithProfiling(*profile),
		engine.WithVSync(*vsync),
	}
	if *imagePath != "" {
		opts = append(opts, engine.WithImage(*imagePath))
	}

	eng, err := engine.NewEngine(opts...)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		eng.Quit()
	}()

	if err := eng.Run(); err != nil {
		log.Fatalf("pipeline stopped: %v", err)
	}
}
