// Command hash-generator prints the bcrypt hash of the operator password, for
// use as EREUNA_AUTH_OPERATOR_PASSWORD_HASH.
//
// The password is taken from the first argument, or from the first line of
// stdin when no argument is given:
//
//	hash-generator 'correct horse battery staple'
//	echo -n 'correct horse battery staple' | hash-generator -cost 12
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phrazzld/ereuna/internal/service/auth"
	"golang.org/x/crypto/bcrypt"
)

// minPasswordLength guards against hashing an accidental empty or trivial input.
const minPasswordLength = 8

var errPasswordTooShort = fmt.Errorf("password must be at least %d characters", minPasswordLength)

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	hash, err := hashInput(flag.Args(), os.Stdin, *cost)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash-generator:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

func hashInput(args []string, stdin io.Reader, cost int) (string, error) {
	password, err := readPassword(args, stdin)
	if err != nil {
		return "", err
	}
	if len([]rune(password)) < minPasswordLength {
		return "", errPasswordTooShort
	}
	return auth.HashPassword(password, cost)
}

func readPassword(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
