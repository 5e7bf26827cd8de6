package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	auth "github.com/folio-cms/go-admin-auth"
	"github.com/folio-cms/go-admin-auth/repository"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/term"
)

func main() {
	driver := flag.String("driver", envOr(auth.EnvDBDriver, auth.DefaultDBDriver), "database driver: sqlite or postgres")
	dsn := flag.String("dsn", envOr(auth.EnvDBDSN, auth.DefaultDBDSN), "database DSN")
	role := flag.String("role", string(auth.RoleAdmin), "role of the new identity: admin or editor")
	flag.Parse()

	logger := auth.NewLogger(os.Stderr, envOr(auth.EnvLogLevel, "warn"))

	if err := run(context.Background(), *driver, *dsn, *role, os.Stdin, os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, driver, dsn, role string, in io.Reader, out io.Writer, logger auth.Logger) error {
	fmt.Fprintln(out, "Create an admin user")
	fmt.Fprintln(out, "====================")

	reader := bufio.NewReader(in)

	name, err := prompt(reader, out, "Name: ")
	if err != nil {
		return err
	}
	email, err := prompt(reader, out, "Email: ")
	if err != nil {
		return err
	}
	password, err := promptPassword(reader, out, "Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword(reader, out, "Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	if problems := auth.PasswordProblems(password); len(problems) > 0 {
		return fmt.Errorf("password too weak:\n  - %s", strings.Join(problems, "\n  - "))
	}

	mgr, err := repository.Open(driver, dsn)
	if err != nil {
		return err
	}
	defer mgr.Close()

	if err := mgr.Migrate(ctx); err != nil {
		return err
	}

	handler := auth.NewCreateAdminHandler(mgr.Users(), auth.NewBcryptHasher(), auth.Named(logger, "create_admin"))
	if err := handler.Execute(ctx, auth.CreateAdminMessage{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     role,
	}); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nAdmin user created: %s (%s, %s)\n", handler.Created.Email, handler.Created.Name, handler.Created.Role)
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword hides input when stdin is a terminal
func promptPassword(reader *bufio.Reader, out io.Writer, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(reader, out, label)
	}

	fmt.Fprint(out, label)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func describe(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if problems, ok := richErr.Metadata["errors"].([]string); ok && len(problems) > 0 {
			return richErr.Message + ": " + strings.Join(problems, ", ")
		}
		return richErr.Message
	}
	return err.Error()
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
