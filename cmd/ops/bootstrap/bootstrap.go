package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"pingbot/internal/secrets"
)

// tokenCategoryKey becomes /{env}/pingbot/discord/token.
const tokenCategoryKey = "discord/token"

const tokenPrompt = `1. Open the Discord Developer Portal > Applications > your bot.
   2. Under Bot, enable the MESSAGE CONTENT privileged intent.
   3. Click Reset Token and copy it (without any "Bot " prefix).
   4. Paste it here:`

// maxRetries is the maximum number of validation failures tolerated.
const maxRetries = 5

// errSkipped is returned by promptToken when the operator skips after empty
// input.
var errSkipped = errors.New("token skipped by operator")

// BootstrapRunner prompts for the bot token and stores it in SSM. It is
// separated from main() to allow testing with injected dependencies.
type BootstrapRunner struct {
	SSM       *SSMManager
	Validator *Validator
	Stdin     io.Reader
	Stderr    io.Writer

	// Verify authenticates the token against Discord in addition to the
	// shape check.
	Verify bool

	// scanner is shared for the whole session so that buffered input is not
	// lost between prompts.
	scanner *bufio.Scanner
}

// NewBootstrapRunner creates a BootstrapRunner with production dependencies.
func NewBootstrapRunner(bctx *BootstrapContext, verify bool) *BootstrapRunner {
	return &BootstrapRunner{
		SSM:       NewSSMManager(bctx),
		Validator: NewValidator(),
		Stdin:     os.Stdin,
		Stderr:    os.Stderr,
		Verify:    verify,
	}
}

// runResult records what happened to the token parameter.
type runResult struct {
	Action string // "written", "skipped", "overwritten"
	Path   string
}

// Run checks SSM for an existing token, prompts, validates and writes, then
// prints a summary.
func (r *BootstrapRunner) Run(ctx context.Context) error {
	fmt.Fprintf(r.Stderr, "\nDiscord Bot Token\n")

	result, err := r.storeToken(ctx)
	if err != nil {
		return fmt.Errorf("storing discord token: %w", err)
	}

	r.printSummary(result)
	return nil
}

func (r *BootstrapRunner) storeToken(ctx context.Context) (runResult, error) {
	path := r.SSM.SSMPath(tokenCategoryKey)
	result := runResult{Path: path}

	exists, err := r.SSM.ParameterExists(ctx, path)
	if err != nil {
		return result, fmt.Errorf("checking existence of %s: %w", path, err)
	}

	if exists {
		fmt.Fprintf(r.Stderr, "  Parameter already exists: %s\n", path)

		choice, err := r.promptChoice("[S]kip or [O]verwrite?", "skip", "overwrite")
		if err != nil {
			return result, fmt.Errorf("reading skip/overwrite choice: %w", err)
		}
		if choice == "skip" {
			fmt.Fprintf(r.Stderr, "  Skipped.\n")
			result.Action = "skipped"
			return result, nil
		}
	}

	token, err := r.promptToken(ctx)
	if errors.Is(err, errSkipped) {
		fmt.Fprintf(r.Stderr, "  Skipped.\n")
		result.Action = "skipped"
		return result, nil
	}
	if err != nil {
		return result, err
	}

	if err := r.SSM.PutSecret(ctx, path, token, exists); err != nil {
		return result, fmt.Errorf("writing SSM parameter %s: %w", path, err)
	}

	result.Action = "written"
	if exists {
		result.Action = "overwritten"
	}

	fmt.Fprintf(r.Stderr, "  Stored: %s\n", path)
	return result, nil
}

func (r *BootstrapRunner) validate(ctx context.Context, token string) ValidationResult {
	if r.Verify {
		return r.Validator.ValidateDiscordToken(ctx, token)
	}
	return r.Validator.ValidateTokenFormat(ctx, token)
}

// promptToken reads the token without echo and validates it. Empty input
// offers skip or retry and does not count as an attempt.
func (r *BootstrapRunner) promptToken(ctx context.Context) (string, error) {
	fmt.Fprintf(r.Stderr, "\n  %s\n\n", tokenPrompt)

	for attempt := 1; attempt <= maxRetries; {
		input, err := r.readSecretInput("  > ")
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			choice, err := r.promptChoice("No input received. [S]kip or [R]etry?", "skip", "retry")
			if err != nil {
				return "", fmt.Errorf("reading skip/retry choice: %w", err)
			}
			if choice == "skip" {
				return "", errSkipped
			}
			continue
		}

		fmt.Fprintf(r.Stderr, "  Received %d chars.\n", len(input))

		vr := r.validate(ctx, input)
		if vr.Valid {
			fmt.Fprintf(r.Stderr, "  Validated: %s\n", vr.Message)
			return input, nil
		}

		fmt.Fprintf(r.Stderr, "  Validation failed: %s\n", vr.Message)
		if attempt < maxRetries {
			fmt.Fprintf(r.Stderr, "  Try again (%d/%d).\n", attempt, maxRetries)
		}
		attempt++
	}

	return "", fmt.Errorf("maximum retries (%d) exceeded", maxRetries)
}

// scanLine returns io.EOF when input is exhausted.
func (r *BootstrapRunner) scanLine() (string, error) {
	if r.scanner == nil {
		r.scanner = bufio.NewScanner(r.Stdin)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// readSecretInput disables echo when stdin is a terminal and falls back to
// line reading otherwise.
func (r *BootstrapRunner) readSecretInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)

	if f, ok := r.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(r.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret input: %w", err)
		}
		return string(password), nil
	}

	return r.scanLine()
}

// promptChoice asks until the answer is one of options, given in full or by
// its first letter, case-insensitively. It returns the matched option.
func (r *BootstrapRunner) promptChoice(question string, options ...string) (string, error) {
	hints := make([]string, len(options))
	for i, opt := range options {
		hints[i] = fmt.Sprintf("'%s' to %s", strings.ToUpper(opt[:1]), opt)
	}

	for {
		fmt.Fprintf(r.Stderr, "  %s ", question)

		line, err := r.scanLine()
		if err != nil {
			return "", err
		}

		answer := strings.TrimSpace(strings.ToLower(line))
		for _, opt := range options {
			if answer == opt || answer == opt[:1] {
				return opt, nil
			}
		}
		fmt.Fprintf(r.Stderr, "  Please enter %s.\n", strings.Join(hints, " or "))
	}
}

func (r *BootstrapRunner) printSummary(res runResult) {
	fmt.Fprintf(r.Stderr, "\n")
	fmt.Fprintf(r.Stderr, "============================================================\n")
	fmt.Fprintf(r.Stderr, "  Bootstrap Summary\n")
	fmt.Fprintf(r.Stderr, "============================================================\n")
	fmt.Fprintf(r.Stderr, "  %-14s %s\n", "["+strings.ToUpper(res.Action)+"]", res.Path)
	fmt.Fprintf(r.Stderr, "============================================================\n")
	if res.Action != "skipped" {
		fmt.Fprintf(r.Stderr, "\n  Next step: deploy the bot with %s_SSM_PARAM=%s\n",
			secrets.DiscordTokenKey, res.Path)
	}
	fmt.Fprintf(r.Stderr, "\n")
}
