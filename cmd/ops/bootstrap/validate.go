package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ValidationResult holds the outcome of a validation check.
type ValidationResult struct {
	// Valid is true if the input passed all validation checks.
	Valid bool

	// Message is shown to the operator. On success it describes what was
	// verified, on failure why validation failed.
	Message string
}

// TokenAuthenticator is the discordgo call used to authenticate a token.
type TokenAuthenticator interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

// Validator encapsulates the dependencies needed by input validation.
type Validator struct {
	newAuthenticator func(token string) (TokenAuthenticator, error)
}

// validateTimeout bounds the Discord API call made by ValidateDiscordToken.
const validateTimeout = 15 * time.Second

// discordTokenRegex matches the three dot-separated base64url segments of a
// bot token.
var discordTokenRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}\.[A-Za-z0-9_-]{4,}\.[A-Za-z0-9_-]{20,}$`)

// NewValidator creates a Validator that talks to the real Discord API.
func NewValidator() *Validator {
	return &Validator{newAuthenticator: newDiscordAuthenticator}
}

// NewValidatorWithDeps creates a Validator with an injected authenticator
// factory for testing.
func NewValidatorWithDeps(newAuthenticator func(token string) (TokenAuthenticator, error)) *Validator {
	return &Validator{newAuthenticator: newAuthenticator}
}

func newDiscordAuthenticator(token string) (TokenAuthenticator, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Client = &http.Client{Timeout: 10 * time.Second}
	return s, nil
}

// ValidateTokenFormat checks the token's shape without any network call.
func (v *Validator) ValidateTokenFormat(_ context.Context, token string) ValidationResult {
	token = strings.TrimSpace(token)
	if token == "" {
		return ValidationResult{Valid: false, Message: "bot token must not be empty"}
	}

	if strings.HasPrefix(token, "Bot ") {
		return ValidationResult{
			Valid:   false,
			Message: `paste the token without the "Bot " prefix`,
		}
	}

	if !discordTokenRegex.MatchString(token) {
		return ValidationResult{
			Valid:   false,
			Message: "bot token format is invalid (expected three dot-separated segments)",
		}
	}

	return ValidationResult{Valid: true, Message: "bot token format valid"}
}

// ValidateDiscordToken checks the token's shape and then authenticates it by
// fetching the bot's own user (GET /users/@me).
func (v *Validator) ValidateDiscordToken(ctx context.Context, token string) ValidationResult {
	if vr := v.ValidateTokenFormat(ctx, token); !vr.Valid {
		return vr
	}
	token = strings.TrimSpace(token)

	if v.newAuthenticator == nil {
		return ValidationResult{Valid: false, Message: "no Discord client configured"}
	}

	auth, err := v.newAuthenticator(token)
	if err != nil {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("creating Discord client: %v", err)}
	}

	callCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	user, err := auth.User("@me", discordgo.WithContext(callCtx))
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusUnauthorized {
			return ValidationResult{Valid: false, Message: "token rejected by Discord (401 Unauthorized)"}
		}
		return ValidationResult{Valid: false, Message: fmt.Sprintf("could not reach Discord: %v", err)}
	}

	if user == nil {
		return ValidationResult{Valid: false, Message: "Discord returned no user for this token"}
	}
	if !user.Bot {
		return ValidationResult{Valid: false, Message: "token belongs to a user account, not a bot"}
	}

	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("authenticated as %s (%s)", user.Username, user.ID),
	}
}
