package window

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

var errNoInput = errors.New("no interactive input")

// TerminalOpener shows the payment URL on a terminal and, when configured,
// launches a browser. The window counts as closed once the user presses Enter.
//
// Input is read by one goroutine per opener. A blocked read cannot be
// interrupted, so that goroutine lives until the input ends; windows stop
// listening to it when they are closed or their ctx ends.
type TerminalOpener struct {
	out            io.Writer
	in             io.Reader
	browserCommand string

	readOnce sync.Once
	mu       sync.Mutex
	lines    chan struct{}
	inputEnd bool
}

func NewTerminalOpener(out io.Writer, in io.Reader, browserCommand string) *TerminalOpener {
	return &TerminalOpener{out: out, in: in, browserCommand: browserCommand}
}

func (o *TerminalOpener) Open(ctx context.Context, url string) (Window, error) {
	if o.in == nil {
		return nil, errNoInput
	}

	fmt.Fprintf(o.out, "\nComplete your payment at:\n  %s\n\nPress Enter once you have finished paying.\n", url)
	o.launchBrowser(ctx, url)

	lines := o.readLines()
	w := &terminalWindow{done: make(chan struct{})}
	go func() {
		select {
		case _, ok := <-lines:
			if ok && (w.Closed() || ctx.Err() != nil) {
				// Window already gone; hand the line to the next one.
				o.pushLine()
				return
			}
			w.Close()
		case <-w.done:
		case <-ctx.Done():
		}
	}()
	return w, nil
}

// readLines starts the input reader on first use. The returned channel
// yields one value per line and is closed when the input ends.
func (o *TerminalOpener) readLines() <-chan struct{} {
	o.readOnce.Do(func() {
		o.lines = make(chan struct{}, 1)
		go func() {
			defer o.endInput()
			r := bufio.NewReader(o.in)
			for {
				if _, err := r.ReadString('\n'); err != nil {
					if !errors.Is(err, io.EOF) {
						slog.Debug("terminal input closed", "error", err)
					}
					return
				}
				o.pushLine()
			}
		}()
	})
	return o.lines
}

func (o *TerminalOpener) pushLine() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inputEnd {
		return
	}
	select {
	case o.lines <- struct{}{}:
	default:
	}
}

func (o *TerminalOpener) endInput() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inputEnd = true
	close(o.lines)
}

func (o *TerminalOpener) launchBrowser(ctx context.Context, url string) {
	args := strings.Fields(o.browserCommand)
	if len(args) == 0 {
		return
	}
	cmd := exec.CommandContext(ctx, args[0], append(args[1:], url)...)
	if err := cmd.Start(); err != nil {
		slog.Warn("failed to launch browser", "command", args[0], "error", err)
		return
	}
	go cmd.Wait()
}

type terminalWindow struct {
	done chan struct{}
	once sync.Once
}

func (w *terminalWindow) Closed() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *terminalWindow) Close() error {
	w.once.Do(func() { close(w.done) })
	return nil
}
