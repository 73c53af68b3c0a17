// Package app wires the engine to a window: a glfw shell, a WebGPU device,
// a gpu.Canvas compositor, and a mapctl.Map with raster and vector tile
// layers. Everything platform-specific (surface creation, input callbacks)
// lives here so the engine packages stay window-free.
package app

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/rajveermalviya/go-webgpu/wgpu"

	"github.com/miguelemosreverte/galileo/internal/config"
	"github.com/miguelemosreverte/galileo/internal/events"
	"github.com/miguelemosreverte/galileo/internal/featurelayer"
	"github.com/miguelemosreverte/galileo/internal/geom"
	"github.com/miguelemosreverte/galileo/internal/gpu"
	"github.com/miguelemosreverte/galileo/internal/horizon"
	"github.com/miguelemosreverte/galileo/internal/mapctl"
	"github.com/miguelemosreverte/galileo/internal/mapview"
	"github.com/miguelemosreverte/galileo/internal/proj"
	"github.com/miguelemosreverte/galileo/internal/rastertile"
	"github.com/miguelemosreverte/galileo/internal/renderbundle"
	"github.com/miguelemosreverte/galileo/internal/tileschema"
	"github.com/miguelemosreverte/galileo/internal/tileserver"
	"github.com/miguelemosreverte/galileo/internal/vtile"
)

const (
	AmsterdamLat = 52.3676
	AmsterdamLon = 4.9041
	DefaultZoom  = 12

	DefaultWidth  = 1280
	DefaultHeight = 720

	KeyPanSpeed = 10.0
	TiltStep    = 0.05

	rasterURLTemplate = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	userAgent         = "galileo-mapviewer/1.0"
)

type App struct {
	window   *glfw.Window
	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	target *gpu.SurfaceTarget
	canvas *gpu.Canvas
	gmap   *mapctl.Map

	processor  *events.Processor
	dispatcher *events.Dispatcher

	width, height int
}

func New() (*App, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("GLFW init failed: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.CocoaRetinaFramebuffer, glfw.True)

	window, err := glfw.CreateWindow(DefaultWidth, DefaultHeight, "Galileo Map Viewer", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("window creation failed: %w", err)
	}

	app := &App{
		window:     window,
		width:      DefaultWidth,
		height:     DefaultHeight,
		processor:  events.NewProcessor(),
		dispatcher: events.NewDispatcher(),
	}

	if err := app.initWebGPU(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, err
	}

	app.target, err = gpu.NewSurfaceTarget(app.device, app.adapter, app.surface, DefaultWidth, DefaultHeight)
	if err != nil {
		return nil, fmt.Errorf("surface target creation failed: %w", err)
	}

	app.canvas, err = gpu.NewCanvas(app.device, app.queue, app.target.Format(), DefaultWidth, DefaultHeight)
	if err != nil {
		return nil, fmt.Errorf("canvas creation failed: %w", err)
	}
	app.canvas.SetBackground(geom.Color{R: 0xEE, G: 0xEE, B: 0xEE, A: 0xFF})
	if err := app.canvas.EnableHorizon(horizon.DefaultConfig()); err != nil {
		return nil, fmt.Errorf("horizon setup failed: %w", err)
	}

	if err := app.buildMap(); err != nil {
		return nil, err
	}

	app.setupHandlers()
	app.setupCallbacks()
	return app, nil
}

func (app *App) initWebGPU() error {
	app.instance = wgpu.CreateInstance(nil)
	if app.instance == nil {
		return fmt.Errorf("failed to create WebGPU instance")
	}

	app.surface = CreateSurface(app.instance, app.window)
	if app.surface == nil {
		return fmt.Errorf("surface creation failed")
	}

	var err error
	app.adapter, err = app.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: app.surface,
		PowerPreference:   wgpu.PowerPreference_HighPerformance,
	})
	if err != nil {
		app.adapter, err = app.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			PowerPreference: wgpu.PowerPreference_HighPerformance,
		})
		if err != nil {
			return fmt.Errorf("adapter request failed: %w", err)
		}
	}

	props := app.adapter.GetProperties()
	fmt.Printf("GPU: %s (%s)\n", props.Name, props.DriverDescription)

	app.device, err = app.adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "MapViewerDevice",
	})
	if err != nil {
		return fmt.Errorf("device request failed: %w", err)
	}

	app.queue = app.device.GetQueue()
	return nil
}

// buildMap constructs the orchestrator, the OSM raster layer, and the
// initial view centered on Amsterdam.
func (app *App) buildMap() error {
	cfg := config.Get()
	schema := tileschema.WebSchema(cfg.Tiles.LodCount)

	center, ok := proj.WebMercator{}.Project(geom.Point2[float64]{X: AmsterdamLon, Y: AmsterdamLat})
	if !ok {
		return fmt.Errorf("start position does not project")
	}
	resolution, _ := schema.LodResolution(DefaultZoom)
	view := mapview.NewProjected(center, resolution).
		WithSize(geom.Size[float64]{Width: DefaultWidth, Height: DefaultHeight})
	app.gmap = mapctl.NewMap(view)

	diskCache, err := tileserver.NewDiskCache(".tile_cache")
	if err != nil {
		return fmt.Errorf("tile cache creation failed: %w", err)
	}
	pipeline := rastertile.New(
		tileserver.NewHTTPLoader(userAgent),
		diskCache,
		stdImageDecoder{},
		tileURLSource(rasterURLTemplate),
		cfg.OfflineMode,
	)
	pipeline.SetFadeIn(cfg.Fade.TileFadeIn)
	app.gmap.AddLayer(rastertile.NewRasterLayer(schema, pipeline, cfg.Cache.RasterCapacityBytes))

	if cfg.Tiles.VectorURLTemplate != "" {
		vp := vtile.New(tileserver.NewHTTPLoader(userAgent), vectorURLSource(cfg.Tiles.VectorURLTemplate))
		layer := vtile.NewVectorLayer(schema, vp, defaultVectorStyle(), cfg.Cache.VectorCapacityBytes)
		layer.SetDpiScale(cfg.Display.DPIScale)
		app.gmap.AddLayer(layer)
	}

	pins := featurelayer.NewFeatureLayer[pinFeature](
		featurelayer.Cartesian2d,
		featurelayer.PointSymbol[pinFeature]{Paint: renderbundle.PointPaint{
			Shape: renderbundle.ShapeCircle,
			Size:  12,
			Color: geom.Color{R: 0xD0, G: 0x40, B: 0x40, A: 0xFF},
		}},
		nil,
		mapview.CrsEPSG3857,
	)
	pins.Store().Add(pinFeature{pos: geom.Point3[float64]{X: center.X, Y: center.Y}})
	app.gmap.AddLayer(pins)

	return nil
}

// pinFeature is the one feature kind the example app renders: a marker
// pinned at a projected position.
type pinFeature struct {
	pos geom.Point3[float64]
}

func (f pinFeature) Geometry() featurelayer.Geometry {
	return featurelayer.PointGeometry(f.pos)
}

// defaultVectorStyle is a simple styling for arbitrary OSM-schema vector
// tiles: translucent water-blue fills, thin gray strokes, small dots.
func defaultVectorStyle() vtile.VectorTileStyle {
	return vtile.VectorTileStyle{
		Rules: []vtile.StyleRule{
			{
				LayerName: "water",
				HasLayer:  true,
				Symbol: vtile.Symbol{
					HasPolygon: true,
					Polygon:    vtile.PolygonSymbol{FillColor: geom.Color{R: 0x9E, G: 0xC7, B: 0xE8, A: 0xC0}},
				},
			},
		},
		DefaultSymbol: vtile.DefaultSymbol{
			Line:    &vtile.LineSymbol{Width: 1, StrokeColor: geom.Color{R: 0x66, G: 0x66, B: 0x66, A: 0xFF}},
			Polygon: &vtile.PolygonSymbol{FillColor: geom.Color{R: 0xE0, G: 0xE0, B: 0xDC, A: 0x80}},
			Point:   &vtile.PointSymbol{Size: 4, Color: geom.Color{R: 0x30, G: 0x30, B: 0x30, A: 0xFF}},
		},
		Background: geom.Color{R: 0xEE, G: 0xEE, B: 0xEE, A: 0xFF},
	}
}

// setupHandlers registers the gesture handlers: drag pans, scroll and pinch
// zoom, double-click zooms in with an animated fly-to.
func (app *App) setupHandlers() {
	app.dispatcher.Add(events.HandlerFunc(func(e events.UserEvent) events.HandlerResult {
		switch e.Kind {
		case events.EventDragStarted:
			return events.Consume
		case events.EventDrag:
			from := geom.Point2[float64]{X: e.Position.X - e.Delta.DX, Y: e.Position.Y - e.Delta.DY}
			app.gmap.Pan(from, e.Position)
			return events.Consume
		case events.EventScroll:
			factor := 0.8
			if e.Delta.DY < 0 {
				factor = 1.25
			}
			app.gmap.ZoomAtPoint(factor, e.Position)
			return events.Consume
		case events.EventZoom:
			app.gmap.ZoomAtPoint(e.Ratio, e.Anchor)
			return events.Consume
		case events.EventDoubleClick:
			target := app.gmap.View().Zoom(0.5, e.Position)
			app.gmap.AnimateTo(target, 300*time.Millisecond)
			return events.Stop
		default:
			return events.Propagate
		}
	}))
}

func (app *App) setupCallbacks() {
	app.window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		if width == 0 || height == 0 {
			return
		}
		app.width, app.height = width, height
		if err := app.target.Resize(uint32(width), uint32(height)); err != nil {
			fmt.Printf("resize error: %v\n", err)
			return
		}
		app.gmap.Resize(float64(width), float64(height))
	})

	app.window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		x, y := w.GetCursorPos()
		raw := events.RawEvent{
			Button:   glfwButton(button),
			Position: geom.NewPoint2(x, y),
			Time:     time.Now(),
		}
		if action == glfw.Press {
			raw.Kind = events.RawButtonPressed
		} else {
			raw.Kind = events.RawButtonReleased
		}
		app.dispatcher.DispatchAll(app.processor.Process(raw))
	})

	app.window.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		app.dispatcher.DispatchAll(app.processor.Process(events.RawEvent{
			Kind:     events.RawPointerMoved,
			Position: geom.NewPoint2(x, y),
			Time:     time.Now(),
		}))
	})

	app.window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		x, y := w.GetCursorPos()
		evt := events.RawEvent{
			Kind:     events.RawScroll,
			Delta:    geom.Vector2[float64]{DX: xoff, DY: yoff},
			Position: geom.NewPoint2(x, y),
			Time:     time.Now(),
		}
		app.processor.Process(events.RawEvent{Kind: events.RawPointerMoved, Position: evt.Position, Time: evt.Time})
		app.dispatcher.DispatchAll(app.processor.Process(evt))
	})

	app.window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press && action != glfw.Repeat {
			return
		}
		view := app.gmap.View()
		center := geom.Point2[float64]{X: float64(app.width) / 2, Y: float64(app.height) / 2}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyW, glfw.KeyUp:
			app.gmap.Pan(center, geom.Point2[float64]{X: center.X, Y: center.Y + KeyPanSpeed})
		case glfw.KeyS, glfw.KeyDown:
			app.gmap.Pan(center, geom.Point2[float64]{X: center.X, Y: center.Y - KeyPanSpeed})
		case glfw.KeyA, glfw.KeyLeft:
			app.gmap.Pan(center, geom.Point2[float64]{X: center.X + KeyPanSpeed, Y: center.Y})
		case glfw.KeyD, glfw.KeyRight:
			app.gmap.Pan(center, geom.Point2[float64]{X: center.X - KeyPanSpeed, Y: center.Y})
		case glfw.KeyLeftShift, glfw.KeyRightShift:
			app.gmap.ZoomAtPoint(0.5, center)
		case glfw.KeySpace:
			app.gmap.ZoomAtPoint(2, center)
		case glfw.KeyR:
			app.gmap.SetView(view.WithRotationX(clamp(view.RotationX()+TiltStep, 0, 1.2)))
		case glfw.KeyF:
			app.gmap.SetView(view.WithRotationX(clamp(view.RotationX()-TiltStep, 0, 1.2)))
		case glfw.KeyQ:
			app.gmap.SetView(view.WithRotationZ(view.RotationZ() + TiltStep))
		case glfw.KeyE:
			app.gmap.SetView(view.WithRotationZ(view.RotationZ() - TiltStep))
		}
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func glfwButton(b glfw.MouseButton) events.MouseButton {
	switch b {
	case glfw.MouseButtonLeft:
		return events.ButtonLeft
	case glfw.MouseButtonMiddle:
		return events.ButtonMiddle
	case glfw.MouseButtonRight:
		return events.ButtonRight
	default:
		return events.ButtonOther
	}
}

func (app *App) Run() error {
	lastTitle := time.Now()
	frames := 0
	needsFrame := true

	for !app.window.ShouldClose() {
		glfw.PollEvents()

		now := time.Now()
		if app.gmap.Update(now) {
			needsFrame = true
		}
		if app.gmap.TakeDirty() {
			needsFrame = true
		}

		if needsFrame {
			needsFrame = false
			app.gmap.Prepare()
			animating, err := app.canvas.Render(app.target, app.gmap.View(), app.gmap.Layers(), now)
			if err != nil {
				fmt.Printf("render error: %v\n", err)
			}
			if animating || app.gmap.IsAnimating() {
				needsFrame = true
			}
			frames++
		} else {
			time.Sleep(4 * time.Millisecond)
		}

		if time.Since(lastTitle) >= time.Second {
			app.window.SetTitle(fmt.Sprintf("Galileo Map Viewer | res %.1f | FPS: %d", app.gmap.View().Resolution(), frames))
			frames = 0
			lastTitle = time.Now()
		}
	}

	return nil
}

func (app *App) Cleanup() {
	if app.canvas != nil {
		app.canvas.Release()
	}
	if app.queue != nil {
		app.queue.Release()
	}
	if app.device != nil {
		app.device.Release()
	}
	if app.adapter != nil {
		app.adapter.Release()
	}
	if app.surface != nil {
		app.surface.Release()
	}
	if app.instance != nil {
		app.instance.Release()
	}
	if app.window != nil {
		app.window.Destroy()
	}
	glfw.Terminate()
}

// stdImageDecoder decodes PNG/JPEG tile bytes into the tightly packed RGBA
// buffer the GPU layer uploads.
type stdImageDecoder struct{}

func (stdImageDecoder) Decode(data []byte) (*geom.DecodedImage, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return geom.NewDecodedImage(rgba.Pix, geom.Size[uint32]{
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	})
}

// tileURLSource expands a {x}/{y}/{z} template into a raster URLSource.
func tileURLSource(template string) rastertile.URLSource {
	return func(index tileschema.TileIndex) string {
		return expandTileURL(template, index)
	}
}

func vectorURLSource(template string) vtile.URLSource {
	return func(index tileschema.TileIndex) string {
		return expandTileURL(template, index)
	}
}

func expandTileURL(template string, index tileschema.TileIndex) string {
	r := strings.NewReplacer(
		"{x}", strconv.FormatInt(index.X, 10),
		"{y}", strconv.FormatInt(index.Y, 10),
		"{z}", strconv.FormatUint(uint64(index.Z), 10),
	)
	return r.Replace(template)
}
