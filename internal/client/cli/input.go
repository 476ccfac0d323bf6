package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword and isTerminal are test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// stdinFd returns the descriptor of in when it is a file, or -1.
func stdinFd(in io.Reader) int {
	if f, ok := in.(*os.File); ok {
		return int(f.Fd())
	}
	return -1
}

// interactive reports whether in is a terminal.
func interactive(in io.Reader) bool {
	fd := stdinFd(in)
	return fd >= 0 && isTerminal(fd)
}

// GetToken reads an access token. On a terminal it prompts on w and reads
// without echo; otherwise it reads the first line of in.
func GetToken(in io.Reader, w io.Writer) ([]byte, error) {
	if interactive(in) {
		if _, err := fmt.Fprint(w, "Access token: "); err != nil {
			return nil, err
		}
		tok, err := readPassword(stdinFd(in))
		fmt.Fprintln(w)
		return tok, err
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	return []byte(strings.TrimSpace(line)), nil
}
