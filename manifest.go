package strip

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// manifest is the on-disk YAML shape of a reading session: the scene
// layout plus optional tunables.
//
//	viewportWidth: 800
//	options:
//	  enterThreshold: 0.5
//	  exitThreshold: 0.1
//	  stopDelayMs: 500
//	  evictDelayMs: 5000
//	  captureIntervalMs: 500
//	panels:
//	  - id: cover
//	    x: 0
//	    y: 0
//	    width: 800
//	    height: 1200
//	    image: assets/cover.png
//	  - id: battle
//	    y: 1200
//	    width: 800
//	    height: 600
//	    stream: 0
//	    rotation: -2.5
type manifest struct {
	ViewportWidth float64          `yaml:"viewportWidth"`
	Options       *manifestOptions `yaml:"options"`
	Panels        []manifestPanel  `yaml:"panels"`
}

type manifestOptions struct {
	EnterThreshold    *float64 `yaml:"enterThreshold"`
	ExitThreshold     *float64 `yaml:"exitThreshold"`
	StopDelayMs       *int     `yaml:"stopDelayMs"`
	EvictDelayMs      *int     `yaml:"evictDelayMs"`
	CaptureIntervalMs *int     `yaml:"captureIntervalMs"`
}

type manifestPanel struct {
	ID       string        `yaml:"id"`
	X        float64       `yaml:"x"`
	Y        float64       `yaml:"y"`
	Width    float64       `yaml:"width"`
	Height   float64       `yaml:"height"`
	Rotation float64       `yaml:"rotation"`
	Opacity  float64       `yaml:"opacity"`
	ZOrder   int           `yaml:"zOrder"`
	Clip     *manifestClip `yaml:"clip"`
	// Exactly one of image / stream may be set; neither means SourceNone.
	Image  string `yaml:"image"`
	Stream *int   `yaml:"stream"`
}

type manifestClip struct {
	Top    float64 `yaml:"top"`
	Right  float64 `yaml:"right"`
	Bottom float64 `yaml:"bottom"`
	Left   float64 `yaml:"left"`
}

// LoadSceneManifest parses a YAML manifest into a validated Scene and the
// Options it specifies, with DefaultOptions filling anything omitted.
func LoadSceneManifest(data []byte) (*Scene, Options, error) {
	var m manifest
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, opts, fmt.Errorf("strip: parsing scene manifest: %w", err)
	}
	scene := &Scene{ViewportWidth: m.ViewportWidth}
	for _, mp := range m.Panels {
		p := Panel{
			ID:       mp.ID,
			X:        mp.X,
			Y:        mp.Y,
			Width:    mp.Width,
			Height:   mp.Height,
			Rotation: mp.Rotation,
			Opacity:  mp.Opacity,
			ZOrder:   mp.ZOrder,
		}
		if mp.Clip != nil {
			p.Clip = &ClipMask{Top: mp.Clip.Top, Right: mp.Clip.Right, Bottom: mp.Clip.Bottom, Left: mp.Clip.Left}
		}
		switch {
		case mp.Image != "" && mp.Stream != nil:
			return nil, opts, fmt.Errorf("strip: panel %q sets both image and stream", mp.ID)
		case mp.Image != "":
			p.Source = ImageSource(mp.Image)
		case mp.Stream != nil:
			p.Source = StreamSource(*mp.Stream)
		}
		scene.Panels = append(scene.Panels, p)
	}
	if err := scene.Validate(); err != nil {
		return nil, opts, err
	}
	if mo := m.Options; mo != nil {
		if mo.EnterThreshold != nil {
			opts.EnterThreshold = *mo.EnterThreshold
		}
		if mo.ExitThreshold != nil {
			opts.ExitThreshold = *mo.ExitThreshold
		}
		if mo.StopDelayMs != nil {
			opts.StopDelay = time.Duration(*mo.StopDelayMs) * time.Millisecond
		}
		if mo.EvictDelayMs != nil {
			opts.EvictDelay = time.Duration(*mo.EvictDelayMs) * time.Millisecond
		}
		if mo.CaptureIntervalMs != nil {
			opts.CaptureIntervalMs = *mo.CaptureIntervalMs
		}
	}
	if opts.ExitThreshold > opts.EnterThreshold {
		return nil, opts, fmt.Errorf("strip: exitThreshold %v exceeds enterThreshold %v",
			opts.ExitThreshold, opts.EnterThreshold)
	}
	return scene, opts, nil
}

// LoadSceneManifestFile reads and parses a manifest from disk.
func LoadSceneManifestFile(path string) (*Scene, Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, DefaultOptions(), fmt.Errorf("strip: reading scene manifest: %w", err)
	}
	return LoadSceneManifest(data)
}
