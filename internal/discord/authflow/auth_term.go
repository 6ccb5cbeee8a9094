package authflow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// TokenFlow obtains the account token from the user.
type TokenFlow interface {
	Token(ctx context.Context) (string, error)
}

var (
	blink     = color.New(color.BlinkSlow)
	italic    = color.New(color.Italic)
	param     = color.New(color.Italic, color.FgBlue, color.BgHiWhite)
	warn      = color.New(color.FgHiRed)
	underline = color.New(color.Underline)

	line = strings.Repeat("-=", 40)
)

// ErrEmptyToken is returned if the user entered nothing.
var ErrEmptyToken = errors.New("empty token")

// TermAuth requests the token in the terminal.
type TermAuth struct{}

func (TermAuth) Token(ctx context.Context) (string, error) {
	instructions()
	fmt.Printf("Enter '%s' (won't be shown): ", param.Sprint(" token "))
	token, err := readpass(ctx)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return normalise(token)
}

// normalise strips the quotes that are copied together with the token from
// the browser developer tools.
func normalise(token string) (string, error) {
	token = strings.Trim(strings.TrimSpace(token), `"'`)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

func instructions() {
	fmt.Println(line)
	fmt.Printf("To get the token, follow the instructions:\n\n")
	fmt.Printf("\t1.  Login to Discord in the browser:\n")
	fmt.Printf("\t\t%s %s %s\n", blink.Sprint("->"), italic.Sprint("https://discord.com/app"), blink.Sprint("<-"))
	fmt.Printf("\t2.  Open %s and switch to the %s tab;\n"+
		"\t3.  Reload the page and select any request to %s;\n"+
		"\t4.  Copy the value of the %s request header.\n\n",
		underline.Sprint("Developer Tools"), underline.Sprint("Network"),
		underline.Sprint("/api"), underline.Sprint("Authorization"))
	fmt.Printf("This application will encrypt and save the token on your device.  You can\n" +
		"delete it any time starting with -reset flag.\n\n")
	warn.Printf("VERY IMPORTANT: This is the key to your account, keep it secret, never share\n" +
		"it with anyone, never publish it online.  Automating a user account may be\n" +
		"against Discord Terms of Service, use it for your own messages only.\n")
	fmt.Println(line)
	fmt.Println()
}

func readln(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readpass(_ context.Context) (string, error) {
	stdin := int(os.Stdin.Fd())
	if !term.IsTerminal(stdin) {
		// piped input
		return readln(os.Stdin)
	}

	oldState, err := term.MakeRaw(stdin)
	if err != nil {
		return "", err
	}
	defer term.Restore(stdin, oldState)

	bytePwd, err := term.ReadPassword(stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytePwd)), nil
}
