package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/perseo-cms/perseo/internal/auth"
)

// ErrEmptyPassword is returned when no password was supplied.
var ErrEmptyPassword = errors.New("hash-password: empty password")

// HashPassword prints the bcrypt hash of password, or of the first line of
// in when password is empty.
func HashPassword(password string, in io.Reader, out io.Writer) error {
	if password == "" && in != nil {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("hash-password: read: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return ErrEmptyPassword
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}
