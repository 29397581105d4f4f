package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fleveque/image-loader/internal/imageload"
)

// TerminalHost is a Host whose "dialog" is a prompt on a terminal. The user
// answers with one line of whitespace-separated paths; an empty line or EOF
// means nothing was chosen. Prompts are serialized since they share one
// input stream.
type TerminalHost struct {
	in  io.Reader
	out io.Writer

	start   sync.Once
	answers chan answer

	prompt  sync.Mutex
	mu      sync.Mutex
	mounted map[string]bool
}

type answer struct {
	line string
	err  error
}

// NewTerminalHost reads answers from in and writes prompts to out.
func NewTerminalHost(in io.Reader, out io.Writer) *TerminalHost {
	return &TerminalHost{
		in:      in,
		out:     out,
		answers: make(chan answer),
		mounted: make(map[string]bool),
	}
}

// readLines is the only reader of in. An abandoned prompt leaves its answer
// for the next one. The channel is closed after the first read error.
func (h *TerminalHost) readLines() {
	r := bufio.NewReader(h.in)
	for {
		line, err := r.ReadString('\n')
		h.answers <- answer{line: line, err: err}
		if err != nil {
			close(h.answers)
			return
		}
	}
}

// Mount registers a chooser under id.
func (h *TerminalHost) Mount(_ context.Context, id string, accept []string) (imageload.Chooser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mounted[id] {
		return nil, fmt.Errorf("chooser %s already mounted", id)
	}
	h.mounted[id] = true
	return &terminalChooser{host: h, id: id, accept: accept}, nil
}

// Mounted returns the number of choosers not yet removed.
func (h *TerminalHost) Mounted() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.mounted)
}

type terminalChooser struct {
	host   *TerminalHost
	id     string
	accept []string
}

func (c *terminalChooser) Choose(ctx context.Context) (*imageload.FileSelection, error) {
	c.host.prompt.Lock()
	defer c.host.prompt.Unlock()

	fmt.Fprintf(c.host.out, "Choose an image (%s), empty line to skip: ", strings.Join(c.accept, ", "))

	c.host.start.Do(func() { go c.host.readLines() })

	var a answer
	select {
	case got, ok := <-c.host.answers:
		if !ok {
			return nil, nil
		}
		a = got
	case <-ctx.Done():
		fmt.Fprintln(c.host.out)
		return nil, ctx.Err()
	}

	if a.err != nil && !errors.Is(a.err, io.EOF) {
		return nil, fmt.Errorf("reading answer: %w", a.err)
	}
	return FromPaths(strings.Fields(a.line)...)
}

func (c *terminalChooser) Remove() error {
	c.host.mu.Lock()
	defer c.host.mu.Unlock()
	if !c.host.mounted[c.id] {
		return fmt.Errorf("chooser %s not mounted", c.id)
	}
	delete(c.host.mounted, c.id)
	return nil
}
