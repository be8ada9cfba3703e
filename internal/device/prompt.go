package device

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
)

// NewTerminalPrompt returns a PromptFunc that asks on out and reads a y/N
// answer from in. An empty answer or end of input denies access.
func NewTerminalPrompt(in io.Reader, out io.Writer, source string) PromptFunc {
	return func(ctx context.Context) (bool, error) {
		fmt.Fprintf(out, "Allow rolodex to read contacts from %s? [y/N] ", source)

		type reply struct {
			line string
			err  error
		}
		ch := make(chan reply, 1)
		go func() {
			line, err := bufio.NewReader(in).ReadString('\n')
			ch <- reply{line, err}
		}()

		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return false, ctx.Err()
		case r := <-ch:
			if r.err != nil && !stderrors.Is(r.err, io.EOF) {
				return false, fmt.Errorf("read permission answer: %w", r.err)
			}
			switch strings.ToLower(strings.TrimSpace(r.line)) {
			case "y", "yes":
				return true, nil
			}
			return false, nil
		}
	}
}
