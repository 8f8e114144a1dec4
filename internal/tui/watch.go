package tui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// DefaultInterval is the auto-refresh period.
const DefaultInterval = 5 * time.Second

const panelWidth = 60

// RefreshFunc produces a new snapshot.
type RefreshFunc func(ctx context.Context) (Snapshot, error)

// Watch is the live tview dashboard.
type Watch struct {
	app       *tview.Application
	target    string
	interval  time.Duration
	refreshFn RefreshFunc

	mu          sync.Mutex
	data        Snapshot
	lastErr     error
	autoRefresh bool

	// UI components
	game      *tview.TextView
	media     *tview.TextView
	nodes     *tview.Table
	statusBar *tview.TextView

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWatch creates a dashboard for target, refreshed by refreshFn.
func NewWatch(target string, interval time.Duration, refreshFn RefreshFunc) *Watch {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watch{
		target:      target,
		interval:    interval,
		refreshFn:   refreshFn,
		autoRefresh: true,
		stopChan:    make(chan struct{}),
	}
}

// Run builds the UI, loads the first snapshot and blocks until the user quits.
func (w *Watch) Run() error {
	w.app = tview.NewApplication()
	w.buildUI()
	w.load()
	w.updateUI()

	go w.autoRefreshLoop()

	w.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			w.stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q', 'Q':
				w.stop()
				return nil
			case 'r', 'R':
				go w.refresh()
				return nil
			case 'a', 'A':
				w.mu.Lock()
				w.autoRefresh = !w.autoRefresh
				w.mu.Unlock()
				w.updateStatusBar()
				return nil
			}
		}
		return event
	})

	return w.app.Run()
}

func (w *Watch) stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.app.Stop()
}

func (w *Watch) buildUI() {
	w.game = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	w.game.SetBorder(true).SetTitle(" Game Server ")

	w.media = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	w.media.SetBorder(true).SetTitle(" Media Server ")

	w.nodes = tview.NewTable().
		SetBorders(false).
		SetSelectable(false, false)
	w.nodes.SetBorder(true).SetTitle(" Nodes ")

	w.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	header := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	header.SetText(fmt.Sprintf("\n[::b]DASHSRV[::-] [gray](%s)[-]", tview.Escape(w.target)))

	topRow := tview.NewFlex().
		AddItem(w.game, 0, 3, false).
		AddItem(w.media, 0, 2, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 3, 0, false).
		AddItem(topRow, 9, 0, false).
		AddItem(w.nodes, 0, 1, false).
		AddItem(w.statusBar, 1, 0, false)

	w.app.SetRoot(root, true)
}

// load runs one refresh and stores the result without drawing.
func (w *Watch) load() {
	if w.refreshFn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*w.interval)
	defer cancel()

	data, err := w.refreshFn(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastErr = err
	if err == nil {
		w.data = data
	}
}

func (w *Watch) refresh() {
	w.load()
	w.app.QueueUpdateDraw(func() {
		w.updateUI()
	})
}

func (w *Watch) updateUI() {
	w.mu.Lock()
	data := w.data
	w.mu.Unlock()

	w.game.SetText(gameText(data.Game, panelWidth))
	w.media.SetText(mediaText(data.Media))
	w.updateNodes(data)
	w.updateStatusBar()
}

func (w *Watch) updateNodes(data Snapshot) {
	w.nodes.Clear()

	if len(data.Nodes) == 0 {
		w.nodes.SetCell(0, 0, tview.NewTableCell(" [gray]No nodes reported[-]").SetSelectable(false))
		return
	}

	headers := []string{"", "NODE", "IPS", "CPU", "MEMORY", "PING", "VERSION", "COMPAT"}
	for i, h := range headers {
		cell := tview.NewTableCell(" [yellow::b]" + h + "[-:-:-]").
			SetSelectable(false).
			SetAlign(tview.AlignLeft)
		w.nodes.SetCell(0, i, cell)
	}

	for i, n := range data.Nodes {
		for col, text := range nodeRow(n) {
			w.nodes.SetCell(i+1, col, tview.NewTableCell(" "+text).SetSelectable(false))
		}
	}
}

func (w *Watch) updateStatusBar() {
	w.mu.Lock()
	auto, lastErr, last := w.autoRefresh, w.lastErr, w.data.LastUpdate
	w.mu.Unlock()

	w.statusBar.SetText(statusLine(auto, last, lastErr))
}

func statusLine(auto bool, last time.Time, lastErr error) string {
	autoStr := "[red]off[-]"
	if auto {
		autoStr = "[green]on[-]"
	}

	lastUpdate := "never"
	if !last.IsZero() {
		lastUpdate = last.Format("15:04:05")
	}

	line := fmt.Sprintf(" [yellow][r[][-]efresh  [yellow][a[][-]uto-refresh: %s  [yellow][q[][-]uit  |  Last update: [gray]%s[-]",
		autoStr, lastUpdate)
	if lastErr != nil {
		line += "  [red]" + tview.Escape(truncate(lastErr.Error(), 60)) + "[-]"
	}
	return line
}

func (w *Watch) autoRefreshLoop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.mu.Lock()
			auto := w.autoRefresh
			w.mu.Unlock()
			if auto {
				w.refresh()
			}
		}
	}
}

// RunWatch runs the dashboard against a dashsrv instance at target.
func RunWatch(target string, interval, timeout time.Duration) error {
	fetcher := NewFetcher(target, timeout)
	return NewWatch(target, interval, fetcher.Fetch).Run()
}
