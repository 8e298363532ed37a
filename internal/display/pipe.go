package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// pipeMessage is one line of the matrix driver protocol.
type pipeMessage struct {
	Frame
	Mode        string    `json:"mode"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Pipe writes frames as JSON lines to the LED matrix driver, which reads
// them from a FIFO or character device. Close sends a frame of kind
// "clear" that blanks the panel.
type Pipe struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	colors [3]string
	width  int
	height int
	logger *log.Logger
}

// OpenPipe opens the driver feed at path; "-" writes to stdout.
func OpenPipe(path string, width, height int, colors [3]string, logger *log.Logger) (*Pipe, error) {
	if path == "-" {
		return NewPipe(os.Stdout, nil, width, height, colors, logger), nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return nil, fmt.Errorf("open display device %s: %w", path, err)
	}
	return NewPipe(f, f, width, height, colors, logger), nil
}

// NewPipe creates a pipe renderer on w. closer, if not nil, is closed by Close.
func NewPipe(w io.Writer, closer io.Closer, width, height int, colors [3]string, logger *log.Logger) *Pipe {
	return &Pipe{
		w:      w,
		closer: closer,
		colors: colors,
		width:  width,
		height: height,
		logger: logger,
	}
}

// Render writes the frame for u as a single JSON line.
func (p *Pipe) Render(u Update) {
	p.write(pipeMessage{
		Frame:       Compose(u, p.colors),
		Mode:        u.Mode.String(),
		Width:       p.width,
		Height:      p.height,
		GeneratedAt: u.GeneratedAt,
	})
}

// Close blanks the panel and closes the device.
func (p *Pipe) Close() error {
	p.write(pipeMessage{
		Frame:       Frame{Kind: "clear", Colors: p.colors},
		Width:       p.width,
		Height:      p.height,
		GeneratedAt: time.Now().UTC(),
	})
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

func (p *Pipe) write(msg pipeMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.logError("encode frame", err)
		return
	}
	data = append(data, '\n')

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.Write(data); err != nil {
		p.logError("write frame", err)
	}
}

func (p *Pipe) logError(msg string, err error) {
	if p.logger != nil {
		p.logger.Warn(msg, "err", err)
	}
}
