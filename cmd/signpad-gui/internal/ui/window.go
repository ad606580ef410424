// Package ui implements the signpad window: a sidebar of document and
// element actions next to the page canvas.
package ui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"gioui.org/io/key"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"signpad/cmd/signpad-gui/internal/theme"
	"signpad/internal/bootstrap"
	"signpad/internal/element"
	"signpad/internal/engine"
	"signpad/internal/export"
	"signpad/internal/render"
)

// Window is the main UI component.
type Window struct {
	theme  *theme.Theme
	env    *bootstrap.Env
	s      *engine.Session
	canvas *Canvas
	logger *slog.Logger
	ctx    context.Context

	mu        sync.Mutex
	annotator string
	notice    string
	redraw    func()

	status string
	failed bool

	pathEditor    widget.Editor
	imageEditor   widget.Editor
	sigNameEditor widget.Editor

	openBtn, saveBtn        widget.Clickable
	prevBtn, nextBtn        widget.Clickable
	zoomInBtn, zoomOutBtn   widget.Clickable
	zoomResetBtn            widget.Clickable
	addTextBtn, addImageBtn widget.Clickable
	addSavedBtn, importBtn  widget.Clickable
	storeSigBtn, dropSigBtn widget.Clickable
	deleteBtn, clearBtn     widget.Clickable
	colorBtns               []widget.Clickable
	sigBtns                 []widget.Clickable
	elemBtns                []widget.Clickable
	sidebar                 widget.List

	sigNames    []string
	selectedSig string
}

// NewWindow builds the window over a new session of env. redraw asks the
// window system for a new frame and may be called from any goroutine.
func NewWindow(ctx context.Context, t *theme.Theme, env *bootstrap.Env, redraw func()) (*Window, error) {
	comp, err := render.NewCompositor()
	if err != nil {
		return nil, err
	}
	w := &Window{
		theme:     t,
		env:       env,
		s:         env.NewSession(),
		logger:    env.Log.Logger.With("component", "ui"),
		ctx:       ctx,
		annotator: env.Config.Annotator.Name,
		redraw:    redraw,
		colorBtns: make([]widget.Clickable, len(element.Palette())),
	}
	w.canvas = NewCanvas(t, w.s, comp, w.logger, w.fail)
	w.pathEditor.SingleLine = true
	w.pathEditor.Submit = true
	w.imageEditor.SingleLine = true
	w.imageEditor.Submit = true
	w.sigNameEditor.SingleLine = true
	w.sidebar.Axis = layout.Vertical
	w.refreshLibrary()
	return w, nil
}

// Session returns the window's session.
func (w *Window) Session() *engine.Session {
	return w.s
}

// SetAnnotator changes the name used for the next save. It is safe to call
// from the config watcher.
func (w *Window) SetAnnotator(name string) {
	w.mu.Lock()
	w.annotator = name
	w.notice = fmt.Sprintf("Annotator changed to %s", name)
	w.mu.Unlock()
	if w.redraw != nil {
		w.redraw()
	}
}

// Annotator returns the current annotator name.
func (w *Window) Annotator() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.annotator
}

func (w *Window) takeNotice() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.notice
	w.notice = ""
	return n
}

func (w *Window) fail(err error) {
	if err == nil {
		return
	}
	w.logger.Warn("action failed", "error", err)
	w.status = err.Error()
	w.failed = true
}

// hint shows guidance in the status bar.
func (w *Window) hint(msg string) {
	w.status = msg
	w.failed = false
}

// do runs an action, reports its error and recomposes the canvas.
func (w *Window) do(err error) {
	w.failed = false
	w.status = ""
	if err != nil {
		w.fail(err)
	}
	w.canvas.Invalidate()
}

// Open opens a PDF.
func (w *Window) Open(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		w.hint("Please enter the path of a PDF")
		return
	}
	w.pathEditor.SetText(path)
	w.do(w.s.OpenDocument(w.ctx, path))
	w.canvas.ResetScroll()
}

// Save exports the signed copy. An open editor is confirmed first.
func (w *Window) Save() {
	if _, ok := w.s.EditBox(); ok {
		if err := w.s.ConfirmEdit(w.canvas.EditorText()); err != nil {
			w.do(err)
			return
		}
	}
	res, err := w.env.Sign(w.ctx, w.s, w.Annotator())
	switch {
	case errors.Is(err, export.ErrNothingToExport):
		w.hint("Add a signature or text first")
	case err != nil:
		w.do(err)
	default:
		w.do(nil)
		w.status = res.Message(filepath.Base(res.Path))
	}
}

func (w *Window) refreshLibrary() {
	names, err := w.s.LibraryNames(w.ctx)
	if err != nil {
		if !errors.Is(err, engine.ErrNoLibrary) {
			w.fail(err)
		}
		return
	}
	w.sigNames = names
	if len(w.sigBtns) < len(names) {
		w.sigBtns = make([]widget.Clickable, len(names))
	}
}

func (w *Window) importLegacy() {
	lib, err := w.env.RequireLibrary()
	if err != nil {
		w.do(err)
		return
	}
	res, err := lib.ImportLegacy(w.ctx, w.env.Config.Library.LegacyDir)
	if err != nil {
		w.do(err)
		return
	}
	w.refreshLibrary()
	w.do(nil)
	w.status = fmt.Sprintf("Imported %d saved signatures", len(res.Imported))
}

// storeSignature saves the image named in the image field to the library.
func (w *Window) storeSignature() {
	lib, err := w.env.RequireLibrary()
	if err != nil {
		w.do(err)
		return
	}
	name, err := saveSignature(w.ctx, lib, w.sigNameEditor.Text(), w.imageEditor.Text())
	if err != nil {
		w.do(err)
		return
	}
	w.sigNameEditor.SetText("")
	w.refreshLibrary()
	w.selectedSig = name
	w.do(nil)
	w.status = fmt.Sprintf("Signature %q saved to library", name)
}

// dropSignature deletes the selected saved signature.
func (w *Window) dropSignature() {
	if w.selectedSig == "" {
		w.hint("Please select a saved signature")
		return
	}
	lib, err := w.env.RequireLibrary()
	if err != nil {
		w.do(err)
		return
	}
	name := w.selectedSig
	if err := lib.Delete(w.ctx, name); err != nil {
		w.do(err)
		return
	}
	w.selectedSig = ""
	w.refreshLibrary()
	w.do(nil)
	w.status = fmt.Sprintf("Signature %q deleted", name)
}

// handleShortcuts processes window-wide keyboard shortcuts.
func (w *Window) handleShortcuts(gtx layout.Context) {
	for {
		ev, ok := gtx.Event(
			key.Filter{Name: "O", Required: key.ModShortcut},
			key.Filter{Name: "S", Required: key.ModShortcut},
			key.Filter{Name: "=", Required: key.ModShortcut},
			key.Filter{Name: "+", Required: key.ModShortcut, Optional: key.ModShift},
			key.Filter{Name: "-", Required: key.ModShortcut},
			key.Filter{Name: "0", Required: key.ModShortcut},
			key.Filter{Name: key.NamePageDown},
			key.Filter{Name: key.NamePageUp},
		)
		if !ok {
			return
		}
		ke, ok := ev.(key.Event)
		if !ok || ke.State != key.Press {
			continue
		}
		switch ke.Name {
		case "O":
			w.Open(w.pathEditor.Text())
		case "S":
			w.Save()
		case "=", "+":
			w.do(w.s.ZoomIn(w.ctx))
		case "-":
			w.do(w.s.ZoomOut(w.ctx))
		case "0":
			w.do(w.s.ZoomReset(w.ctx))
		case key.NamePageDown:
			w.do(w.s.NextPage(w.ctx))
		case key.NamePageUp:
			w.do(w.s.PrevPage(w.ctx))
		}
	}
}

func (w *Window) handleButtons(gtx layout.Context) {
	if w.openBtn.Clicked(gtx) {
		w.Open(w.pathEditor.Text())
	}
	for {
		ev, ok := w.pathEditor.Update(gtx)
		if !ok {
			break
		}
		if sub, ok := ev.(widget.SubmitEvent); ok {
			w.Open(sub.Text)
		}
	}
	if w.saveBtn.Clicked(gtx) {
		w.Save()
	}
	if w.prevBtn.Clicked(gtx) {
		w.do(w.s.PrevPage(w.ctx))
	}
	if w.nextBtn.Clicked(gtx) {
		w.do(w.s.NextPage(w.ctx))
	}
	if w.zoomInBtn.Clicked(gtx) {
		w.do(w.s.ZoomIn(w.ctx))
	}
	if w.zoomOutBtn.Clicked(gtx) {
		w.do(w.s.ZoomOut(w.ctx))
	}
	if w.zoomResetBtn.Clicked(gtx) {
		w.do(w.s.ZoomReset(w.ctx))
	}
	if w.addTextBtn.Clicked(gtx) {
		_, err := w.s.AddText()
		w.do(err)
	}
	addImage := w.addImageBtn.Clicked(gtx)
	for {
		ev, ok := w.imageEditor.Update(gtx)
		if !ok {
			break
		}
		if _, ok := ev.(widget.SubmitEvent); ok {
			addImage = true
		}
	}
	if addImage {
		_, err := w.s.AddImageFile(strings.TrimSpace(w.imageEditor.Text()))
		w.do(err)
	}
	if w.addSavedBtn.Clicked(gtx) {
		if w.selectedSig == "" {
			w.hint("Please select a saved signature")
		} else {
			_, err := w.s.AddLibraryImage(w.ctx, w.selectedSig)
			w.do(err)
		}
	}
	if w.importBtn.Clicked(gtx) {
		w.importLegacy()
	}
	if w.storeSigBtn.Clicked(gtx) {
		w.storeSignature()
	}
	if w.dropSigBtn.Clicked(gtx) {
		w.dropSignature()
	}
	if w.deleteBtn.Clicked(gtx) {
		w.do(w.s.DeleteSelected())
	}
	if w.clearBtn.Clicked(gtx) {
		w.s.ClearAll()
		w.do(nil)
	}
	for i, c := range element.Palette() {
		if w.colorBtns[i].Clicked(gtx) {
			w.do(w.s.SetSelectedColor(c))
		}
	}
	for i := range w.sigNames {
		if w.sigBtns[i].Clicked(gtx) {
			w.selectedSig = w.sigNames[i]
		}
	}
	for i := range w.elemBtns {
		if w.elemBtns[i].Clicked(gtx) {
			w.do(w.s.SelectIndex(w.ctx, i))
		}
	}
}

// Layout renders the window.
func (w *Window) Layout(gtx layout.Context) layout.Dimensions {
	w.handleShortcuts(gtx)
	w.handleButtons(gtx)
	if n := w.takeNotice(); n != "" {
		w.status, w.failed = n, false
	}

	paint.Fill(gtx.Ops, w.theme.Palette.Background)
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					width := gtx.Dp(w.theme.Config.SidebarWidth)
					gtx.Constraints.Min.X = width
					gtx.Constraints.Max.X = width
					return w.layoutSidebar(gtx)
				}),
				layout.Rigid(w.divider),
				layout.Flexed(1, w.canvas.Layout),
			)
		}),
		layout.Rigid(w.layoutStatus),
	)
}

func (w *Window) divider(gtx layout.Context) layout.Dimensions {
	size := image.Pt(gtx.Dp(1), gtx.Constraints.Max.Y)
	paint.FillShape(gtx.Ops, w.theme.Palette.Border, clip.Rect{Max: size}.Op())
	return layout.Dimensions{Size: size}
}

func (w *Window) layoutSidebar(gtx layout.Context) layout.Dimensions {
	t := w.theme
	th := t.Theme
	space := layout.Spacer{Height: t.Config.Spacing}.Layout

	heading := func(s string) layout.Widget {
		return func(gtx layout.Context) layout.Dimensions {
			l := material.Body2(th, s)
			l.Color = t.Palette.TextMuted
			return layout.Inset{Top: t.Config.Spacing}.Layout(gtx, l.Layout)
		}
	}
	button := func(c *widget.Clickable, label string) layout.Widget {
		return func(gtx layout.Context) layout.Dimensions {
			b := material.Button(th, c, label)
			b.TextSize = t.Config.FontBody
			b.CornerRadius = t.Config.CornerRadius
			gtx.Constraints.Min.X = gtx.Constraints.Max.X
			return b.Layout(gtx)
		}
	}
	pair := func(a, b layout.Widget) layout.Widget {
		return func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{Spacing: layout.SpaceBetween}.Layout(gtx,
				layout.Flexed(1, a),
				layout.Rigid(layout.Spacer{Width: t.Config.Spacing}.Layout),
				layout.Flexed(1, b),
			)
		}
	}
	field := func(ed *widget.Editor, hint string) layout.Widget {
		return func(gtx layout.Context) layout.Dimensions {
			return widget.Border{Color: t.Palette.Border, CornerRadius: t.Config.CornerRadius, Width: unit.Dp(1)}.Layout(gtx,
				func(gtx layout.Context) layout.Dimensions {
					e := material.Editor(th, ed, hint)
					e.TextSize = t.Config.FontCaption
					return layout.UniformInset(unit.Dp(4)).Layout(gtx, e.Layout)
				})
		}
	}

	title := func(gtx layout.Context) layout.Dimensions {
		l := material.H6(th, "SIGNPAD")
		l.Color = t.Palette.Primary
		l.TextSize = t.Config.FontTitle
		return l.Layout(gtx)
	}
	pageInfo := func(gtx layout.Context) layout.Dimensions {
		txt := "No document"
		if n := w.s.PageCount(); n > 0 {
			txt = fmt.Sprintf("Page %d / %d   Zoom %d%%", w.s.Page()+1, n, int(w.s.Viewport().Zoom*100+0.5))
		}
		return material.Caption(th, txt).Layout(gtx)
	}

	rows := []layout.Widget{
		title,
		material.Caption(th, "Signing as "+w.Annotator()).Layout,
		heading("Document"),
		field(&w.pathEditor, "/path/to/document.pdf"),
		space,
		pair(button(&w.openBtn, "Open"), button(&w.saveBtn, "Save")),
		space,
		pair(button(&w.prevBtn, "< Prev"), button(&w.nextBtn, "Next >")),
		space,
		pageInfo,
		space,
		pair(button(&w.zoomOutBtn, "-"), button(&w.zoomInBtn, "+")),
		space,
		button(&w.zoomResetBtn, "Reset zoom"),
		heading("Add"),
		button(&w.addTextBtn, "Add text"),
		space,
		field(&w.imageEditor, "/path/to/signature.png"),
		space,
		button(&w.addImageBtn, "Add image"),
		heading("Saved signatures"),
	}
	for i, name := range w.sigNames {
		rows = append(rows, func(gtx layout.Context) layout.Dimensions {
			return material.Clickable(gtx, &w.sigBtns[i], func(gtx layout.Context) layout.Dimensions {
				l := material.Body2(th, name)
				if name == w.selectedSig {
					l.Color = t.Palette.Primary
					l.Text = "> " + name
				}
				return layout.UniformInset(unit.Dp(2)).Layout(gtx, l.Layout)
			})
		})
	}
	rows = append(rows,
		space,
		pair(button(&w.addSavedBtn, "Use saved"), button(&w.dropSigBtn, "Delete saved")),
		space,
		field(&w.sigNameEditor, "Name for the image above"),
		space,
		pair(button(&w.storeSigBtn, "Save to library"), button(&w.importBtn, "Import")),
		heading("Text color"),
		w.layoutColors,
		heading("Elements"),
	)

	elems := w.s.Elements()
	if len(w.elemBtns) < len(elems) {
		w.elemBtns = append(w.elemBtns, make([]widget.Clickable, len(elems)-len(w.elemBtns))...)
	}
	selected := w.s.Selected()
	all := w.s.Set().All()
	for i, desc := range elems {
		rows = append(rows, func(gtx layout.Context) layout.Dimensions {
			return material.Clickable(gtx, &w.elemBtns[i], func(gtx layout.Context) layout.Dimensions {
				l := material.Caption(th, desc)
				if selected != nil && i < len(all) && all[i] == selected {
					l.Color = t.Palette.Primary
				}
				return layout.UniformInset(unit.Dp(2)).Layout(gtx, l.Layout)
			})
		})
	}
	rows = append(rows,
		space,
		pair(button(&w.deleteBtn, "Delete"), button(&w.clearBtn, "Clear all")),
	)

	return layout.UniformInset(t.Config.Padding).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return material.List(th, &w.sidebar).Layout(gtx, len(rows), func(gtx layout.Context, i int) layout.Dimensions {
			return rows[i](gtx)
		})
	})
}

func (w *Window) layoutColors(gtx layout.Context) layout.Dimensions {
	palette := element.Palette()
	children := make([]layout.FlexChild, 0, len(palette))
	for i, c := range palette {
		children = append(children, layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.Clickable(gtx, &w.colorBtns[i], func(gtx layout.Context) layout.Dimensions {
				side := gtx.Dp(unit.Dp(22))
				sz := image.Pt(side, side)
				paint.FillShape(gtx.Ops, c.NRGBA(), clip.UniformRRect(image.Rectangle{Max: sz}, gtx.Dp(unit.Dp(3))).Op(gtx.Ops))
				return layout.Dimensions{Size: sz}
			})
		}))
	}
	return layout.Flex{}.Layout(gtx, children...)
}

func (w *Window) layoutStatus(gtx layout.Context) layout.Dimensions {
	msg := w.status
	if msg == "" {
		msg = w.s.Status()
	}
	if msg == "" {
		msg = "Ready"
	}
	return layout.UniformInset(unit.Dp(6)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		l := material.Caption(w.theme.Theme, msg)
		l.Color = w.theme.Palette.TextMuted
		if w.failed {
			l.Color = w.theme.Palette.Danger
		}
		return l.Layout(gtx)
	})
}
