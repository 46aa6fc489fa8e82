// Package strip is a long-strip comic reader layer for [Ebitengine] that
// composites static images with live frames captured by an external
// render engine.
//
// A [Scene] describes the scrollable document: an ordered list of
// rectangular panels, each backed by nothing, a static image, or a live
// capture stream. The [Reader] tracks which panels are on screen as the
// page scrolls and drives the external engine so that exactly the visible
// streams are capturing: newly visible streams are started, streams that
// scroll away are stopped after a debounce delay, and the latest frame of
// each stream is cached for painting.
//
// # Quick start
//
//	scene, opts, err := strip.LoadSceneManifestFile("scene.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	handle := strip.LoadRenderer(strip.LoaderConfig{
//		BasePath:  "assets/engine",
//		Construct: myConstructor,
//	})
//	reader, err := strip.NewReader(handle, opts)
//	if err != nil {
//		log.Fatal(err)
//	}
//	reader.SetScene(scene)
//	reader.OnScroll(strip.VisibleRange{Top: 0, Bottom: 600}, scene.ViewportWidth)
//	strip.Run(reader, strip.RunConfig{Title: "Reader", Width: 800, Height: 600})
//
// For full control, implement [ebiten.Game] yourself and call
// [Reader.Update] and [Reader.Draw] directly. Feed scroll and resize
// events from your page chassis through [Reader.OnScroll] and
// [Reader.OnResize].
//
// # Talking to the engine
//
// The engine is reached through one narrow interface: an [Invoker] that
// delivers named commands with string payloads, and two inbound callbacks
// on [Bridge] — OnFrameReceived for encoded frames and OnRendererReady
// for the engine's one-shot readiness signal. [WSBridge] implements the
// transport over a websocket for out-of-process engines; in-process
// engines implement [Invoker] directly.
//
// Visibility uses asymmetric hysteresis (a panel enters the visible set
// at a higher ratio than it exits at) so slow scrolling across a panel
// edge cannot flap its capture stream. All thresholds and delays live in
// [Options].
//
// [Ebitengine]: https://ebitengine.org
package strip
